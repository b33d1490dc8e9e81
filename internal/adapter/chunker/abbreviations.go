package chunker

import (
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Placeholder delimiters come from the private-use area; the cleaning
// allow-list removes them from real input before protection runs.
const (
	placeholderOpen  = '\uE000'
	placeholderClose = '\uE001'
)

// DefaultAbbreviations are dotted forms that must not end a sentence.
var DefaultAbbreviations = []string{
	"Mr.", "Mrs.", "Ms.", "Dr.", "Prof.", "Sr.", "Jr.", "St.", "Mt.", "Gen.", "Col.", "Capt.", "Lt.", "Sgt.", "Rev.", "Hon.",
	"U.S.", "U.S.A.", "U.K.", "E.U.", "U.N.", "D.C.", "Ph.D.", "M.D.", "B.A.", "M.A.", "B.Sc.", "M.Sc.",
	"e.g.", "i.e.", "etc.", "vs.", "cf.", "al.", "approx.", "est.", "viz.",
	"Inc.", "Ltd.", "Co.", "Corp.", "LLC.", "Dept.", "Univ.", "Assn.",
	"No.", "Nos.", "Fig.", "Figs.", "Vol.", "Vols.", "Ch.", "Sec.", "Eq.", "Ref.", "Refs.", "Tab.", "pp.", "p.", "ed.", "eds.",
	"Jan.", "Feb.", "Mar.", "Apr.", "Jun.", "Jul.", "Aug.", "Sep.", "Sept.", "Oct.", "Nov.", "Dec.",
	"a.m.", "p.m.", "A.M.", "P.M.",
}

// AbbreviationTable maps abbreviations to unique placeholder tokens and back.
type AbbreviationTable struct {
	abbrs  []string // longest first
	tokens map[string]string
	back   map[string]string
}

func NewAbbreviationTable(abbrs []string) *AbbreviationTable {
	seen := make(map[string]bool, len(abbrs))
	uniq := make([]string, 0, len(abbrs))
	for _, a := range abbrs {
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		uniq = append(uniq, a)
	}
	sort.SliceStable(uniq, func(i, j int) bool {
		return utf8.RuneCountInString(uniq[i]) > utf8.RuneCountInString(uniq[j])
	})

	t := &AbbreviationTable{
		abbrs:  uniq,
		tokens: make(map[string]string, len(uniq)),
		back:   make(map[string]string, len(uniq)),
	}
	for i, a := range uniq {
		tok := string(placeholderOpen) + strconv.Itoa(i) + string(placeholderClose)
		t.tokens[a] = tok
		t.back[tok] = a
	}
	return t
}

// Protect replaces every known abbreviation that starts a word with its placeholder.
func (t *AbbreviationTable) Protect(text string) string {
	for _, a := range t.abbrs {
		text = replaceAtWordStart(text, a, t.tokens[a])
	}
	return text
}

// Restore reverses Protect.
func (t *AbbreviationTable) Restore(text string) string {
	if !strings.ContainsRune(text, placeholderOpen) {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	for {
		start := strings.IndexRune(text, placeholderOpen)
		if start < 0 {
			b.WriteString(text)
			break
		}
		end := strings.IndexRune(text[start:], placeholderClose)
		if end < 0 {
			b.WriteString(text)
			break
		}
		end += start + utf8.RuneLen(placeholderClose)
		b.WriteString(text[:start])
		if abbr, ok := t.back[text[start:end]]; ok {
			b.WriteString(abbr)
		} else {
			b.WriteString(text[start:end])
		}
		text = text[end:]
	}
	return b.String()
}

func replaceAtWordStart(text, old, repl string) string {
	if !strings.Contains(text, old) {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	i := 0
	for {
		j := strings.Index(text[i:], old)
		if j < 0 {
			b.WriteString(text[i:])
			break
		}
		j += i
		b.WriteString(text[i:j])
		if atWordStart(text, j) {
			b.WriteString(repl)
		} else {
			b.WriteString(old)
		}
		i = j + len(old)
	}
	return b.String()
}

func atWordStart(text string, pos int) bool {
	if pos == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:pos])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != placeholderClose
}
