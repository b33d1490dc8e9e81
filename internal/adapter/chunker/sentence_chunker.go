package chunker

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"docqa/internal/logger"
)

// ws also covers the Unicode spaces PDF extraction tends to emit.
const ws = `\s\v\p{Z}\x{0085}`

var (
	quoteReplacer = strings.NewReplacer(
		"“", `"`, "”", `"`,
		"‘", "'", "’", "'",
		"–", "-",
	)
	disallowedRe    = regexp.MustCompile(`[^\p{Latin}\p{Nd}` + ws + `.,!?'":;/\[\]&\-+()@]`)
	hyphenBreakRe   = regexp.MustCompile(`-[` + ws + `]+`)
	spaceBeforePunc = regexp.MustCompile(`[` + ws + `]([?.!"](?:[` + ws + `]|$))`)
	lineNumberRe    = regexp.MustCompile(`\p{Nd}+\n`)
	sentenceEndRe   = regexp.MustCompile(`([.!?]["')\]]?)[` + ws + `]+`)
	wsRunRe         = regexp.MustCompile(`[` + ws + `]+`)
)

type SentenceOptions struct {
	MinPageChars     int
	MinSentenceChars int
	Abbreviations    *AbbreviationTable
	Logger           *logger.Logger
}

// SentenceChunker splits cleaned page text into sentence-level chunks.
type SentenceChunker struct {
	minPage     int
	minSentence int
	abbrs       *AbbreviationTable
	log         *logger.Logger
}

func NewSentenceChunker(opts SentenceOptions) *SentenceChunker {
	c := &SentenceChunker{
		minPage:     opts.MinPageChars,
		minSentence: opts.MinSentenceChars,
		abbrs:       opts.Abbreviations,
		log:         opts.Logger,
	}
	if c.minPage <= 0 {
		c.minPage = 50
	}
	if c.minSentence <= 0 {
		c.minSentence = 40
	}
	if c.abbrs == nil {
		c.abbrs = NewAbbreviationTable(DefaultAbbreviations)
	}
	if c.log == nil {
		c.log = logger.NewNop()
	}
	return c
}

// Segment returns the document's chunks in reading order, without duplicates.
func (c *SentenceChunker) Segment(pages []string) []string {
	acc := newAccumulator(c.minSentence)

	for i, raw := range pages {
		if utf8.RuneCountInString(strings.TrimSpace(raw)) < c.minPage {
			c.log.Debug("skipped page with insufficient text", "page", i+1)
			continue
		}
		for _, s := range c.splitSentences(Clean(raw)) {
			acc.add(s)
		}
	}

	chunks := acc.finish()
	c.log.Debug("sentence-level chunking done", "pages", len(pages), "chunks", len(chunks))
	return chunks
}

// Clean normalizes quotes and dashes, strips disallowed characters and
// repairs common PDF extraction artifacts.
func Clean(text string) string {
	text = quoteReplacer.Replace(text)
	text = disallowedRe.ReplaceAllString(text, "")
	text = hyphenBreakRe.ReplaceAllString(text, "")
	text = spaceBeforePunc.ReplaceAllString(text, "$1")
	text = lineNumberRe.ReplaceAllString(text, "")
	return text
}

func (c *SentenceChunker) splitSentences(text string) []string {
	text = c.abbrs.Protect(text)

	var out []string
	emit := func(s string) {
		s = c.abbrs.Restore(s)
		s = strings.TrimSpace(strings.ToLower(wsRunRe.ReplaceAllString(s, " ")))
		if s == "" || allDigits(s) {
			return
		}
		out = append(out, s)
	}

	start := 0
	for _, m := range sentenceEndRe.FindAllStringSubmatchIndex(text, -1) {
		emit(text[start:m[3]])
		start = m[1]
	}
	emit(text[start:])
	return out
}

func allDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// accumulator applies the merge and dedup rules across a whole document.
type accumulator struct {
	min     int
	chunks  []string
	seen    map[string]int
	pending string
}

func newAccumulator(min int) *accumulator {
	return &accumulator{min: min, seen: make(map[string]int)}
}

func (a *accumulator) add(s string) {
	if len(a.chunks) == 0 {
		if a.pending != "" {
			s = joinSentences(a.pending, s)
		}
		if utf8.RuneCountInString(s) < a.min {
			a.pending = s
			return
		}
		a.pending = ""
		a.push(s)
		return
	}

	if utf8.RuneCountInString(s) < a.min {
		last := len(a.chunks) - 1
		merged := joinSentences(a.chunks[last], s)
		delete(a.seen, a.chunks[last])
		if _, dup := a.seen[merged]; dup {
			a.chunks = a.chunks[:last]
			return
		}
		a.chunks[last] = merged
		a.seen[merged] = last
		return
	}

	if _, dup := a.seen[s]; dup {
		return
	}
	a.push(s)
}

func (a *accumulator) push(s string) {
	a.seen[s] = len(a.chunks)
	a.chunks = append(a.chunks, s)
}

func (a *accumulator) finish() []string {
	if a.pending != "" {
		a.push(a.pending)
		a.pending = ""
	}
	return a.chunks
}

func joinSentences(prev, next string) string {
	if strings.HasSuffix(prev, ".") || strings.HasSuffix(prev, "!") || strings.HasSuffix(prev, "?") {
		return prev + " " + next
	}
	return prev + ". " + next
}
