package extract

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"

	"docqa/internal/logger"
)

// PDFExtractor returns the plain text of every page of a PDF. A page whose
// text cannot be decoded is kept as an empty page.
type PDFExtractor struct {
	Log *logger.Logger
}

func (e PDFExtractor) ExtractPages(data []byte) (pages []string, err error) {
	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("pdf parse: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("pdf reader: %w", err)
	}

	return collectPages(r.NumPage(), func(i int) (string, error) {
		p := r.Page(i)
		if p.V.IsNull() {
			return "", nil
		}
		return p.GetPlainText(nil)
	}, e.Log), nil
}

// collectPages reads pages 1..n. Failed pages are logged and left empty so
// page numbering is preserved.
func collectPages(n int, text func(page int) (string, error), log *logger.Logger) []string {
	if log == nil {
		log = logger.NewNop()
	}
	pages := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		t, err := pageText(i, text)
		if err != nil {
			log.Debug("skipping unreadable pdf page", "page", i, "error", err)
			pages = append(pages, "")
			continue
		}
		pages = append(pages, t)
	}
	return pages
}

func pageText(i int, text func(int) (string, error)) (s string, err error) {
	defer func() {
		if r := recover(); r != nil {
			s, err = "", fmt.Errorf("pdf page %d: %v", i, r)
		}
	}()
	return text(i)
}
