package port

// Segmenter turns a document's pages into ordered chunk texts.
type Segmenter interface {
	Segment(pages []string) []string
}

// PageExtractor pulls per-page plain text out of raw document bytes.
type PageExtractor interface {
	ExtractPages(data []byte) ([]string, error)
}
