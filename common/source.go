package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Heading is one markdown heading of a source document.
type Heading struct {
	Level int
	Text  string
}

// SourceDocument is the article a video is made from, with the structure the
// quality gate looks at.
type SourceDocument struct {
	Title      string
	Raw        string
	Text       string // plain text, markdown stripped
	Headings   []Heading
	Paragraphs []string
	Links      []string // distinct link destinations in document order
	ListCount  int
	// LeadParagraphs counts paragraphs before the first section heading.
	LeadParagraphs int
}

// CharCount is the length of the plain text in runes.
func (d *SourceDocument) CharCount() int {
	return utf8.RuneCountInString(d.Text)
}

// Sections returns the level-2 headings.
func (d *SourceDocument) Sections() []string {
	var out []string
	for _, h := range d.Headings {
		if h.Level == 2 {
			out = append(out, h.Text)
		}
	}
	return out
}

// LoadSource reads a pdf, markdown or text file.
func LoadSource(path string) (*SourceDocument, error) {
	fallbackTitle := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		proc, err := NewPDFProcessor(path)
		if err != nil {
			return nil, err
		}
		defer proc.Close()
		raw, err := proc.ExtractText()
		if err != nil {
			return nil, fmt.Errorf("text extraction failed: %w", err)
		}
		return ParseSource([]byte(raw), fallbackTitle), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}
	return ParseSource(data, fallbackTitle), nil
}

// ParseSource parses markdown (plain text is valid markdown) into a SourceDocument.
func ParseSource(src []byte, fallbackTitle string) *SourceDocument {
	doc := &SourceDocument{Raw: string(src)}
	root := goldmark.New().Parser().Parse(text.NewReader(src))

	seenLinks := make(map[string]bool)
	addLink := func(dest string) {
		dest = strings.TrimSpace(dest)
		if dest == "" || seenLinks[dest] {
			return
		}
		seenLinks[dest] = true
		doc.Links = append(doc.Links, dest)
	}

	var blocks []string
	sawSection := false
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			t := plainText(node, src)
			doc.Headings = append(doc.Headings, Heading{Level: node.Level, Text: t})
			if node.Level == 1 && doc.Title == "" {
				doc.Title = t
			}
			if node.Level >= 2 {
				sawSection = true
			}
			blocks = append(blocks, t)
		case *ast.Paragraph:
			t := plainText(node, src)
			if t == "" {
				break
			}
			doc.Paragraphs = append(doc.Paragraphs, t)
			if !sawSection {
				doc.LeadParagraphs++
			}
			blocks = append(blocks, t)
		case *ast.TextBlock:
			if t := plainText(node, src); t != "" {
				blocks = append(blocks, t)
			}
		case *ast.List:
			doc.ListCount++
		case *ast.Link:
			addLink(string(node.Destination))
		case *ast.AutoLink:
			addLink(string(node.URL(src)))
		}
		return ast.WalkContinue, nil
	})

	doc.Text = strings.Join(blocks, "\n\n")
	if doc.Title == "" {
		doc.Title = fallbackTitle
	}
	return doc
}

func plainText(n ast.Node, src []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.String:
			sb.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}
