// Package loader reads source documents from disk.
package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/kailas-cloud/kongrag/internal/domain"
)

var bom = []byte{0xEF, 0xBB, 0xBF}

// Load reads path as a Document. ".pdf" files are reduced to their plain text;
// anything else must be UTF-8 text. Line endings are normalized to "\n".
func Load(path string) (domain.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.Document{}, fmt.Errorf("document %s: %w", path, domain.ErrNotFound)
		}
		return domain.Document{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return domain.Document{}, fmt.Errorf("document %s is a directory: %w", path, domain.ErrInvalidInput)
	}

	var text string
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		text, err = readPDF(path)
	} else {
		text, err = readText(path)
	}
	if err != nil {
		return domain.Document{}, err
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	if strings.TrimSpace(text) == "" {
		return domain.Document{}, fmt.Errorf("document %s has no text: %w", path, domain.ErrInvalidInput)
	}
	return domain.Document{Source: path, Content: text}, nil
}

func readText(path string) (string, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	data = bytes.TrimPrefix(data, bom)
	if !utf8.Valid(data) {
		return "", fmt.Errorf("document %s is not valid UTF-8: %w", path, domain.ErrInvalidInput)
	}
	return string(data), nil
}

func readPDF(path string) (text string, err error) {
	// the pdf package panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf %s: %v: %w", path, r, domain.ErrInvalidInput)
		}
	}()

	f, rdr, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf %s: %v: %w", path, err, domain.ErrInvalidInput)
	}
	defer f.Close()

	plain, err := rdr.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text %s: %v: %w", path, err, domain.ErrInvalidInput)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("read pdf text %s: %w", path, err)
	}
	return buf.String(), nil
}
