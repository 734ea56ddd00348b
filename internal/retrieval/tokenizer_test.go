package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize_English(t *testing.T) {
	tok := NewTokenizer("en")

	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "lowercases and splits on punctuation",
			text: "Vector-Search: RANKS chunks!",
			want: []string{"vector", "search", "ranks", "chunks"},
		},
		{
			name: "drops stop words and short tokens",
			text: "the cat is on a mat",
			want: []string{"cat", "mat"},
		},
		{
			name: "keeps numbers",
			text: "error 404 in chapter 12",
			want: []string{"error", "404"},
		},
		{
			name: "empty input",
			text: "",
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tok.Tokenize(tt.text))
		})
	}
}

func TestTokenize_Indonesian(t *testing.T) {
	tok := NewTokenizer("id")

	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "strips suffix",
			text: "makanan",
			want: []string{"makan"},
		},
		{
			name: "strips one affix only",
			text: "makanannya",
			want: []string{"makanan"},
		},
		{
			name: "keeps short roots intact",
			text: "jalan",
			want: []string{"jalan"},
		},
		{
			name: "drops indonesian stop words",
			text: "bagaimana cara kerja mesin",
			want: []string{"cara", "kerja", "mesin"},
		},
		{
			name: "long derived form",
			text: "pembelajaran",
			want: []string{"pembelajar"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tok.Tokenize(tt.text))
		})
	}
}

func TestTokenize_UnknownLanguageFallsBackToEnglish(t *testing.T) {
	tok := NewTokenizer("fr")
	// English stop words apply, no affix stripping happens.
	assert.Equal(t, []string{"makanan"}, tok.Tokenize("the makanan"))
}

func TestStripAffix_LengthGuard(t *testing.T) {
	// Stem must exceed the affix length by two, otherwise the token is
	// left alone.
	assert.Equal(t, "makan", stripAffix("makan"))
	assert.Equal(t, "api", stripAffix("api"))
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "english question",
			text: "what is the capital of france and where is it",
			want: "en",
		},
		{
			name: "indonesian question",
			text: "apa yang dimaksud dengan sistem ini dan bagaimana cara kerjanya",
			want: "id",
		},
		{
			name: "empty defaults to english",
			text: "",
			want: "en",
		},
		{
			name: "no stop words defaults to english",
			text: "kubernetes prometheus grafana",
			want: "en",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectLanguage(tt.text))
		})
	}
}
