// Package matcher decides whether extracted page content mentions a keyword.
package matcher

import (
	"sort"
	"strings"
	"unicode"
)

// Normalize collapses every run of whitespace into a single space and trims
// the result.
func Normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Matches reports whether keyword occurs in content, ignoring case and
// differences in whitespace. Empty content or an empty keyword never match.
func Matches(content, keyword string) bool {
	_, ok := index(content, keyword)
	return ok
}

// index returns the byte offset of keyword within the lower-cased normalized
// form of content.
func index(content, keyword string) (int, bool) {
	k := strings.ToLower(Normalize(keyword))
	if k == "" {
		return 0, false
	}
	c := strings.ToLower(Normalize(content))
	if c == "" {
		return 0, false
	}
	i := strings.Index(c, k)
	return i, i >= 0
}

// Snippet returns at most width runes of normalized content centred on the
// first occurrence of keyword, or "" when there is none.
func Snippet(content, keyword string, width int) string {
	if width <= 0 {
		return ""
	}
	norm := Normalize(content)
	lower := strings.ToLower(norm)
	k := strings.ToLower(Normalize(keyword))
	if k == "" || lower == "" {
		return ""
	}
	at := strings.Index(lower, k)
	if at < 0 {
		return ""
	}
	// ToLower can change byte lengths for some scripts; fall back to the
	// lower-cased text so offsets stay valid.
	if len(lower) != len(norm) {
		norm = lower
	}

	runes := []rune(norm)
	start := len([]rune(norm[:at]))
	klen := len([]rune(k))
	if len(runes) <= width {
		return norm
	}
	from := start - (width-klen)/2
	from = max(from, 0)
	to := min(from+width, len(runes))
	from = max(to-width, 0)

	out := string(runes[from:to])
	if from > 0 {
		out = "..." + out
	}
	if to < len(runes) {
		out += "..."
	}
	return out
}

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "of": {}, "to": {}, "in": {}, "a": {}, "for": {}, "is": {}, "on": {}, "with": {}, "as": {},
	"by": {}, "at": {}, "from": {}, "that": {}, "this": {}, "it": {}, "an": {}, "be": {}, "or": {}, "are": {}, "was": {},
	"will": {}, "has": {}, "have": {}, "had": {}, "but": {}, "not": {}, "your": {}, "you": {}, "we": {}, "our": {},
	"can": {}, "how": {}, "use": {}, "all": {}, "more": {},
}

// TopTopics returns the n most frequent terms in text, ignoring stopwords and
// tokens shorter than three characters. Ties break alphabetically.
func TopTopics(text string, n int) []string {
	freq := map[string]int{}
	sep := func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsNumber(r) }
	for _, w := range strings.FieldsFunc(strings.ToLower(text), sep) {
		if len(w) < 3 {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		freq[w]++
	}

	type kv struct {
		K string
		V int
	}
	list := make([]kv, 0, len(freq))
	for k, v := range freq {
		list = append(list, kv{k, v})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].V == list[j].V {
			return list[i].K < list[j].K
		}
		return list[i].V > list[j].V
	})
	n = min(n, len(list))
	out := make([]string, 0, max(n, 0))
	for i := 0; i < n; i++ {
		out = append(out, list[i].K)
	}
	return out
}
