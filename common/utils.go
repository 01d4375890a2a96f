package common

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	boldRe       = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	italicRe     = regexp.MustCompile(`\*([^*]+)\*`)
	headingRe    = regexp.MustCompile(`#+\s*`)
	linkRe       = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	urlRe        = regexp.MustCompile(`https?://\S+`)
	symbolRe     = regexp.MustCompile(`[^\p{L}\p{N}\s.,!?;:\-()"'。、！？]`)
	spaceRe      = regexp.MustCompile(`\s+`)
	chunkSplitRe = regexp.MustCompile(`[.!?。！？]+\s*`)
)

// CleanTextForTTS strips markdown, links and symbols a speech engine would read aloud.
func CleanTextForTTS(text string) string {
	text = linkRe.ReplaceAllString(text, "$1")
	text = urlRe.ReplaceAllString(text, "")
	text = boldRe.ReplaceAllString(text, "$1")
	text = italicRe.ReplaceAllString(text, "$1")
	text = headingRe.ReplaceAllString(text, "")
	text = symbolRe.ReplaceAllString(text, " ")
	text = spaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// SplitTextIntoChunks groups sentences into chunks of at most maxLength bytes.
// A single sentence longer than maxLength becomes its own chunk.
func SplitTextIntoChunks(text string, maxLength int) []string {
	if len(text) <= maxLength {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	for _, sentence := range splitKeepingTerminators(text) {
		if current.Len() > 0 && current.Len()+len(sentence)+1 > maxLength {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
		current.WriteString(sentence)
		current.WriteString(" ")
	}
	if strings.TrimSpace(current.String()) != "" {
		chunks = append(chunks, strings.TrimSpace(current.String()))
	}
	return chunks
}

func splitKeepingTerminators(text string) []string {
	var out []string
	last := 0
	for _, loc := range chunkSplitRe.FindAllStringIndex(text, -1) {
		if s := strings.TrimSpace(text[last:loc[1]]); s != "" {
			out = append(out, s)
		}
		last = loc[1]
	}
	if s := strings.TrimSpace(text[last:]); s != "" {
		out = append(out, s)
	}
	return out
}

// WriteJSON writes v as indented JSON, creating parent directories.
func WriteJSON(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	return os.WriteFile(path, data, 0644)
}
