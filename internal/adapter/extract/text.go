package extract

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"docqa/internal/domain"
	"docqa/internal/logger"
	"docqa/internal/port"
)

// TextExtractor treats form feeds as page breaks.
type TextExtractor struct{}

func (TextExtractor) ExtractPages(data []byte) ([]string, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: text file is not valid utf-8", domain.ErrInvalidInput)
	}
	return strings.Split(string(data), "\f"), nil
}

// ForPath picks an extractor from the file extension.
func ForPath(path string) (port.PageExtractor, error) {
	return forPath(path, nil)
}

// ForPathLogged is ForPath with skipped PDF pages reported to log.
func ForPathLogged(log *logger.Logger) func(string) (port.PageExtractor, error) {
	return func(path string) (port.PageExtractor, error) {
		return forPath(path, log)
	}
}

func forPath(path string, log *logger.Logger) (port.PageExtractor, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return PDFExtractor{Log: log}, nil
	case ".txt", ".md", ".text", "":
		return TextExtractor{}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported file type %q", domain.ErrInvalidInput, filepath.Ext(path))
	}
}
