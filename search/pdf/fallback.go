package pdf

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// Caps for the literal-parser fallback.
const (
	fallbackPageCap    = 200        // maximum number of pages to process
	fallbackPerPageCap = 128 * 1024 // 128 KiB per-page text cap
)

// fallbackEngine is the last chain link: dump raw content streams with
// pdfcpu and scrape string literals out of them. Crude, but it salvages
// text from documents the structured readers choke on.
type fallbackEngine struct{}

func (e *fallbackEngine) Name() string    { return "fallback" }
func (e *fallbackEngine) Available() bool { return true }

func (e *fallbackEngine) Extract(data []byte, cancelled func() bool) (out string, err error) {
	// Panic protection around library call.
	defer func() {
		if r := recover(); r != nil {
			out, err = "", nil
		}
	}()

	tmpDir, err := os.MkdirTemp("", "invoicehound_pdfcpu_*")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(tmpDir)

	inFile := filepath.Join(tmpDir, "doc.pdf")
	if err := os.WriteFile(inFile, data, 0o600); err != nil {
		return "", err
	}

	// Dump content streams (PDF syntax) for all pages.
	if err := api.ExtractContentFile(inFile, tmpDir, nil, nil); err != nil {
		return "", nil
	}

	ents, err := os.ReadDir(tmpDir)
	if err != nil {
		return "", err
	}
	sort.Slice(ents, func(i, j int) bool { return ents[i].Name() < ents[j].Name() })

	var b strings.Builder
	pagesProcessed := 0
	for _, de := range ents {
		if de.IsDir() || de.Name() == "doc.pdf" {
			continue
		}
		if pagesProcessed >= fallbackPageCap || cancelled() {
			break
		}
		raw, _ := os.ReadFile(filepath.Join(tmpDir, de.Name()))
		if len(raw) == 0 {
			continue
		}

		txt := asciiNormalize(parsePDFStringLiterals(string(raw), fallbackPerPageCap))
		if len(txt) > fallbackPerPageCap {
			txt = txt[:fallbackPerPageCap]
		}
		if txt == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(txt)
		pagesProcessed++
	}
	return b.String(), nil
}

// parsePDFStringLiterals collects text within balanced parentheses,
// honoring backslash escapes, and caps output size.
func parsePDFStringLiterals(s string, maxOut int) string {
	var out strings.Builder
	depth := 0
	escape := false
	in := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !in {
			if c == '(' {
				in = true
				depth = 1
			}
			continue
		}
		if escape {
			out.WriteByte(c)
			escape = false
			if out.Len() >= maxOut {
				return out.String()
			}
			continue
		}
		switch c {
		case '\\':
			escape = true
		case '(':
			depth++
			out.WriteByte(c)
		case ')':
			depth--
			if depth == 0 {
				in = false
				out.WriteByte(' ')
			} else {
				out.WriteByte(c)
			}
		default:
			out.WriteByte(c)
		}
		if out.Len() >= maxOut {
			return out.String()
		}
	}
	return out.String()
}

// asciiNormalize collapses all non-printable or non-ASCII runes to space
// and then normalizes whitespace to single spaces.
func asciiNormalize(s string) string {
	ascii := strings.Map(func(r rune) rune {
		if r > 127 || !unicode.IsPrint(r) {
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(ascii), " ")
}
