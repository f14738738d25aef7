package processing

import (
	"crypto/sha1"
	"encoding/hex"
	"html"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

var (
	urlRegex    = regexp.MustCompile(`https?://[^\s]+`)
	whitespace  = regexp.MustCompile(`\s+`)
	punctuation = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "to": {}, "in": {}, "for": {}, "of": {}, "on": {},
	"and": {}, "or": {}, "but": {}, "with": {}, "from": {}, "that": {}, "this": {},
	"these": {}, "those": {}, "have": {}, "been": {}, "were": {}, "will": {}, "would": {},
	"about": {}, "there": {}, "their": {}, "which": {}, "what": {}, "when": {}, "your": {},
	"more": {}, "than": {}, "into": {}, "also": {}, "they": {}, "them": {},
}

// RemoveURLs replaces every URL in the input with a space.
func RemoveURLs(input string) string {
	return urlRegex.ReplaceAllString(input, " ")
}

// CleanText strips HTML entities, URLs and punctuation, then squeezes whitespace.
func CleanText(input string) string {
	if input == "" {
		return ""
	}
	decoded := html.UnescapeString(input)
	decoded = RemoveURLs(decoded)
	decoded = punctuation.ReplaceAllString(decoded, " ")
	decoded = whitespace.ReplaceAllString(decoded, " ")
	return strings.TrimSpace(decoded)
}

// ExtractTerms returns the most frequent non-stopword tokens of text, most
// frequent first, ties broken alphabetically.
func ExtractTerms(text string, limit, minLen int) []string {
	clean := strings.ToLower(CleanText(text))
	if clean == "" {
		return nil
	}

	freq := make(map[string]int)
	for _, token := range strings.Fields(clean) {
		token = strings.TrimFunc(token, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		if len([]rune(token)) < minLen {
			continue
		}
		if _, skip := stopwords[token]; skip {
			continue
		}
		freq[token]++
	}

	if len(freq) == 0 {
		return nil
	}

	type kv struct {
		word  string
		count int
	}

	pairs := make([]kv, 0, len(freq))
	for word, count := range freq {
		pairs = append(pairs, kv{word: word, count: count})
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].count == pairs[j].count {
			return pairs[i].word < pairs[j].word
		}
		return pairs[i].count > pairs[j].count
	})

	max := limit
	if max <= 0 || max > len(pairs) {
		max = len(pairs)
	}

	terms := make([]string, 0, max)
	for i := 0; i < max; i++ {
		terms = append(terms, pairs[i].word)
	}
	return terms
}

// BuildDocumentID hashes the URL and title into a deterministic archive id.
func BuildDocumentID(url, title string) string {
	if url == "" && title == "" {
		return ""
	}
	s := sha1.Sum([]byte(strings.TrimSpace(url) + "|" + strings.TrimSpace(title)))
	return hex.EncodeToString(s[:])
}

// GenerateTitleFromText takes the first sentence of text, capped at maxWords
// words ("..." appended when cut). Returns empty string for empty text.
func GenerateTitleFromText(text string, maxWords int) string {
	if text == "" {
		return ""
	}

	withoutURLs := RemoveURLs(text)

	sentence := withoutURLs
	if end := strings.IndexAny(withoutURLs, ".!?"); end > 0 {
		sentence = strings.TrimSpace(withoutURLs[:end])
	}

	words := strings.Fields(sentence)
	if len(words) == 0 {
		return ""
	}

	if maxWords > 0 && len(words) > maxWords {
		return strings.Join(words[:maxWords], " ") + "..."
	}
	return strings.Join(words, " ")
}
