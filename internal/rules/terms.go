package rules

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Terms matches a fixed vocabulary case-insensitively. Each term must start
// on a word boundary unless it begins with punctuation.
type Terms struct {
	terms []string
	all   *regexp.Regexp
	each  []*regexp.Regexp
}

func NewTerms(terms ...string) (*Terms, error) {
	t := &Terms{}
	var alts []string
	for _, raw := range terms {
		term := strings.TrimSpace(raw)
		if term == "" {
			continue
		}
		expr := termExpr(term)
		re, err := regexp.Compile("(?i)" + expr)
		if err != nil {
			return nil, fmt.Errorf("term %q: %w", term, err)
		}
		t.terms = append(t.terms, term)
		t.each = append(t.each, re)
		alts = append(alts, expr)
	}
	if len(alts) > 0 {
		t.all = regexp.MustCompile("(?i)(?:" + strings.Join(alts, "|") + ")")
	}
	return t, nil
}

// MustTerms panics on error. Only for literals known to compile.
func MustTerms(terms ...string) *Terms {
	t, err := NewTerms(terms...)
	if err != nil {
		panic(err)
	}
	return t
}

func termExpr(term string) string {
	r, _ := utf8.DecodeRuneInString(term)
	if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
		return `\b` + regexp.QuoteMeta(term)
	}
	return regexp.QuoteMeta(term)
}

func (t *Terms) Len() int {
	if t == nil {
		return 0
	}
	return len(t.terms)
}

// Count returns the number of non-overlapping term occurrences in text.
func (t *Terms) Count(text string) int {
	if t == nil || t.all == nil {
		return 0
	}
	return len(t.all.FindAllStringIndex(text, -1))
}

func (t *Terms) Any(text string) bool {
	if t == nil || t.all == nil {
		return false
	}
	return t.all.MatchString(text)
}

// Matches returns the distinct terms found in text, in declaration order.
func (t *Terms) Matches(text string) []string {
	if t == nil {
		return nil
	}
	var out []string
	for i, re := range t.each {
		if re.MatchString(text) {
			out = append(out, t.terms[i])
		}
	}
	return out
}

// Pattern is a case-insensitive regular expression from the catalog.
type Pattern struct {
	Source string
	re     *regexp.Regexp
}

func NewPattern(src string) (Pattern, error) {
	re, err := regexp.Compile("(?i)" + src)
	if err != nil {
		return Pattern{}, fmt.Errorf("pattern %q: %w", src, err)
	}
	return Pattern{Source: src, re: re}, nil
}

func (p Pattern) Match(text string) bool {
	return p.re != nil && p.re.MatchString(text)
}

// Find returns the first matched text or "".
func (p Pattern) Find(text string) string {
	if p.re == nil {
		return ""
	}
	return p.re.FindString(text)
}

func compilePatterns(srcs []string) ([]Pattern, error) {
	out := make([]Pattern, 0, len(srcs))
	for _, s := range srcs {
		p, err := NewPattern(s)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
