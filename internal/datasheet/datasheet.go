// Package datasheet extracts plain text from PDF datasheets.
package datasheet

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// DefaultMaxChars bounds the excerpt stored in component notes.
const DefaultMaxChars = 2000

// Excerpt is the text pulled from a datasheet.
type Excerpt struct {
	Pages     int
	Text      string
	Truncated bool
}

// ExtractFile reads the PDF at path.
func ExtractFile(path string, maxChars int) (Excerpt, error) {
	f, err := os.Open(path)
	if err != nil {
		return Excerpt{}, fmt.Errorf("opening datasheet: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Excerpt{}, fmt.Errorf("reading datasheet: %w", err)
	}
	return Extract(f, info.Size(), maxChars)
}

// Extract reads a PDF from r and returns at most maxChars characters of its
// text with whitespace collapsed. maxChars <= 0 means DefaultMaxChars.
func Extract(r io.ReaderAt, size int64, maxChars int) (ex Excerpt, err error) {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	// The parser panics on some malformed files.
	defer func() {
		if p := recover(); p != nil {
			ex, err = Excerpt{}, fmt.Errorf("parsing datasheet: %v", p)
		}
	}()

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return Excerpt{}, fmt.Errorf("parsing datasheet: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return Excerpt{}, fmt.Errorf("extracting text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return Excerpt{}, fmt.Errorf("extracting text: %w", err)
	}

	text, truncated := truncate(normalize(buf.String()), maxChars)
	return Excerpt{Pages: reader.NumPage(), Text: text, Truncated: truncated}, nil
}

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, maxChars int) (string, bool) {
	if utf8.RuneCountInString(s) <= maxChars {
		return s, false
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:maxChars])) + "...", true
}
