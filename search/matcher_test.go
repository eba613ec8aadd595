package search

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchIdentifierBareDigits(t *testing.T) {
	res := MatchIdentifier("Faktura VAT nr 12/2025, NIP: 1234563218, kwota 100 zł", "1234563218")

	assert.True(t, res.Found)
	assert.False(t, res.Fuzzy)
	assert.NotEmpty(t, res.Snippets)
	assert.Contains(t, res.Snippets[0], "1234563218")
}

func TestMatchIdentifierWhitespaceSeparatedDigits(t *testing.T) {
	res := MatchIdentifier("NIP 123 456 32 18 Sprzedawca", "1234563218")

	assert.True(t, res.Found)
	assert.False(t, res.Fuzzy)
}

func TestMatchIdentifierHyphenGroupings(t *testing.T) {
	for _, text := range []string{
		"NIP: 123-456-32-18",
		"NIP: 123-4563218",
	} {
		res := MatchIdentifier(text, "1234563218")
		assert.True(t, res.Found, "text %q", text)
	}
}

func TestMatchIdentifierInputWithSeparators(t *testing.T) {
	// The sought identifier may itself carry separators.
	res := MatchIdentifier("NIP: 1234563218", "123-456-32-18")
	assert.True(t, res.Found)
}

func TestMatchIdentifierFuzzyIsTagged(t *testing.T) {
	// Dots between groups defeat both the bare-digit and the hyphen
	// checks, leaving only the normalized scan.
	res := MatchIdentifier("Identyfikator: 123.456.32.18 koniec", "1234563218")

	assert.True(t, res.Found)
	assert.True(t, res.Fuzzy)
	for _, s := range res.Snippets {
		assert.True(t, strings.HasPrefix(s, "[approx] "), "snippet %q", s)
	}
	assert.Equal(t, "text_extraction_normalized", res.Method("text_extraction"))
}

func TestMatchIdentifierNoMatch(t *testing.T) {
	res := MatchIdentifier("zwykły tekst bez identyfikatora", "1234563218")

	assert.False(t, res.Found)
	assert.Empty(t, res.Snippets)

	assert.False(t, MatchIdentifier("", "1234563218").Found)
	assert.False(t, MatchIdentifier("cokolwiek", "").Found)
}

func TestExtractSnippetsCapAndDedup(t *testing.T) {
	occurrence := "przed 1234563218 po. "
	text := strings.Repeat(occurrence, 10) + strings.Repeat("x", 200) + " 1234563218 unikalny koniec"

	snippets := extractSnippets(text, "1234563218")
	assert.LessOrEqual(t, len(snippets), maxSnippets)
	seen := map[string]bool{}
	for _, s := range snippets {
		assert.False(t, seen[s], "duplicate snippet %q", s)
		seen[s] = true
	}
}

func TestExtractSnippetsContextWindow(t *testing.T) {
	pad := strings.Repeat("a", 200)
	text := pad + " 1234563218 " + pad

	snippets := extractSnippets(text, "1234563218")
	assert.Len(t, snippets, 1)
	// 50 before + needle + 50 after, trimmed.
	assert.LessOrEqual(t, len(snippets[0]), contextBefore+len("1234563218")+contextAfter+2)
	assert.Contains(t, snippets[0], "1234563218")
}

func TestMethodPlain(t *testing.T) {
	assert.Equal(t, "ocr", MatchResult{Found: true}.Method("ocr"))
}
