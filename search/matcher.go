package search

import (
	"regexp"
	"strings"
)

const (
	maxSnippets      = 5
	maxFuzzySnippets = 3
	contextBefore    = 50
	contextAfter     = 50
	fuzzyContextTail = 100
)

// fuzzySeparators are the characters stripped for normalized matching:
// whitespace plus the separators people put inside tax identifiers.
var (
	fuzzySeparators   = regexp.MustCompile(`[\s\-_./\\]+`)
	fuzzySeparatorOne = regexp.MustCompile(`[\s\-_./\\]`)
	nonDigits         = regexp.MustCompile(`[^0-9]`)
	whitespace        = regexp.MustCompile(`\s+`)
)

// MatchResult describes where and how the identifier was found.
type MatchResult struct {
	Found bool
	// Fuzzy is set when only the normalized (separator-stripped) search
	// hit; snippet offsets are then approximate.
	Fuzzy    bool
	Snippets []string
}

// Method augments an extraction-engine name with the match quality, e.g.
// "text_extraction" vs "text_extraction_normalized".
func (m MatchResult) Method(engine string) string {
	if m.Fuzzy {
		return engine + "_normalized"
	}
	return engine
}

// MatchIdentifier searches text for a tax identifier. The identifier is
// reduced to its digits and matched three ways, in order of confidence:
// as a bare digit run with all whitespace removed from the text, as the
// common hyphenated groupings (XXX-XXX-XX-XX and XXX-XXXXXXX) verbatim,
// and finally as a fuzzy separator-stripped scan of the whole text.
func MatchIdentifier(text, identifier string) MatchResult {
	needle := strings.ToLower(strings.TrimSpace(identifier))
	if needle == "" || strings.TrimSpace(text) == "" {
		return MatchResult{}
	}

	if containsIdentifier(text, identifier) || strings.Contains(strings.ToLower(text), needle) {
		return MatchResult{Found: true, Snippets: extractSnippets(text, needle)}
	}

	// Fuzzy only: whatever snippets come back are all approximate.
	if snippets := extractSnippets(text, needle); len(snippets) > 0 {
		return MatchResult{Found: true, Fuzzy: true, Snippets: snippets}
	}
	return MatchResult{}
}

// containsIdentifier applies the digit-run and hyphen-grouping checks.
func containsIdentifier(text, identifier string) bool {
	digits := nonDigits.ReplaceAllString(identifier, "")
	if digits == "" {
		return false
	}

	// Digit run with all whitespace removed catches "123 456 32 18".
	squashed := whitespace.ReplaceAllString(text, "")
	if strings.Contains(squashed, digits) {
		return true
	}

	if len(digits) == 10 {
		groupings := []string{
			strings.Join([]string{digits[:3], digits[3:6], digits[6:8], digits[8:]}, "-"),
			strings.Join([]string{digits[:3], digits[3:]}, "-"),
		}
		for _, g := range groupings {
			if strings.Contains(text, g) {
				return true
			}
		}
	}
	return false
}

// extractSnippets cuts short context windows around every occurrence of
// needle, first verbatim, then (if nothing matched verbatim) against a
// separator-stripped view of the text. Fuzzy snippets get an "[approx]"
// prefix because their offsets are recovered approximately.
func extractSnippets(text, needle string) []string {
	var snippets []string
	lower := strings.ToLower(text)

	for start := 0; ; {
		pos := strings.Index(lower[start:], needle)
		if pos < 0 {
			break
		}
		pos += start

		from := max(0, pos-contextBefore)
		to := min(len(text), pos+len(needle)+contextAfter)
		snippet := strings.TrimSpace(text[from:to])
		if !contains(snippets, snippet) {
			snippets = append(snippets, snippet)
		}
		start = pos + 1
	}

	// Normalized pass, only for needles long enough to be meaningful.
	if len(snippets) == 0 && len(needle) > 3 {
		normNeedle := fuzzySeparators.ReplaceAllString(needle, "")
		normText := fuzzySeparators.ReplaceAllString(lower, "")

		var fuzzy int
		for start := 0; fuzzy < maxFuzzySnippets; {
			pos := strings.Index(normText[start:], normNeedle)
			if pos < 0 {
				break
			}
			pos += start

			approx := approxOffset(text, pos)
			from := max(0, approx-contextBefore)
			to := min(len(text), approx+len(needle)+fuzzyContextTail)
			snippet := "[approx] " + strings.TrimSpace(text[from:to])
			if !contains(snippets, snippet) {
				snippets = append(snippets, snippet)
				fuzzy++
			}
			start = pos + 1
		}
	}

	if len(snippets) > maxSnippets {
		snippets = snippets[:maxSnippets]
	}
	return snippets
}

// approxOffset maps an offset in the separator-stripped text back into
// the original by counting non-separator characters. The result is only
// approximate; callers tag such snippets.
func approxOffset(text string, strippedPos int) int {
	count := 0
	for i, ch := range text {
		if !fuzzySeparatorOne.MatchString(string(ch)) {
			count++
		}
		if count >= strippedPos {
			return i
		}
	}
	return 0
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
