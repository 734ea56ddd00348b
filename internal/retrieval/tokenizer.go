package retrieval

import (
	"strings"
	"unicode"
)

// minTokenLen drops tokens too short to carry retrieval signal.
const minTokenLen = 3

// Indonesian affix lists, ordered longest-first so the stripper never takes
// a short affix when a longer one matches.
var (
	indonesianSuffixes = []string{"lah", "kah", "nya", "kan", "an", "i"}
	indonesianPrefixes = []string{
		"meng", "mem", "men", "me",
		"peng", "pem", "pen", "pe",
		"ber", "be", "ter", "te",
		"di", "ke", "se",
	}
)

// Tokenizer normalizes text into BM25 terms: lowercase, non-word characters
// stripped, short tokens and stop-words removed, and for morphologically
// rich languages a single affix stripped.
type Tokenizer struct {
	language  string
	stopwords map[string]struct{}
}

// NewTokenizer creates a tokenizer for the given language ("en" or "id").
// Unknown languages fall back to English stop-words with no affix stripping.
func NewTokenizer(language string) *Tokenizer {
	return &Tokenizer{
		language:  language,
		stopwords: stopwordsFor(language),
	}
}

// Tokenize splits text into normalized terms.
func (t *Tokenizer) Tokenize(text string) []string {
	raw := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	tokens := make([]string, 0, len(raw))
	for _, tok := range raw {
		if len([]rune(tok)) < minTokenLen {
			continue
		}
		if _, stop := t.stopwords[tok]; stop {
			continue
		}
		if t.language == "id" {
			tok = stripAffix(tok)
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// stripAffix removes at most one Indonesian affix. Suffixes are tried first,
// then prefixes; only the first match is applied, and only when the
// remaining stem is longer than the affix by at least two characters. The
// length guard avoids over-stemming short roots ("makan" keeps its "an").
func stripAffix(token string) string {
	for _, suf := range indonesianSuffixes {
		if strings.HasSuffix(token, suf) {
			stem := token[:len(token)-len(suf)]
			if len(stem) >= len(suf)+2 {
				return stem
			}
		}
	}
	for _, pre := range indonesianPrefixes {
		if strings.HasPrefix(token, pre) {
			stem := token[len(pre):]
			if len(stem) >= len(pre)+2 {
				return stem
			}
		}
	}
	return token
}

// DetectLanguage guesses "en" or "id" from stop-word hit rates. It is a
// coarse heuristic meant for language-consistency checks on generated
// answers, not a general-purpose language identifier.
func DetectLanguage(text string) string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	if len(words) == 0 {
		return "en"
	}

	var en, id int
	for _, w := range words {
		if _, ok := englishStopwords[w]; ok {
			en++
		}
		if _, ok := indonesianStopwords[w]; ok {
			id++
		}
	}
	if id > en {
		return "id"
	}
	return "en"
}
