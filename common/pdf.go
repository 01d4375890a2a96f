package common

import (
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// PDFProcessor extracts text from a PDF source document.
type PDFProcessor struct {
	Path     string
	doc      *fitz.Document
	NumPages int
}

func NewPDFProcessor(path string) (*PDFProcessor, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("error opening PDF: %w", err)
	}
	return &PDFProcessor{Path: path, doc: doc, NumPages: doc.NumPage()}, nil
}

func (p *PDFProcessor) Close() {
	if p.doc != nil {
		p.doc.Close()
	}
}

// ExtractText extracts all text from the PDF, one block per page.
func (p *PDFProcessor) ExtractText() (string, error) {
	var sb strings.Builder
	for i := 0; i < p.NumPages; i++ {
		text, err := p.doc.Text(i)
		if err != nil {
			return "", fmt.Errorf("error extracting text from page %d: %w", i, err)
		}
		sb.WriteString(strings.TrimSpace(text))
		sb.WriteString("\n\n")
	}
	return sb.String(), nil
}
