package search

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jhillyerd/enmime"
	"golang.org/x/text/encoding/charmap"
)

// Attachment is one PDF candidate pulled out of a message.
type Attachment struct {
	Filename string
	Content  []byte
}

// ExtractPDFAttachments parses the raw MIME message and returns every
// part that qualifies as a PDF attachment. With requireDisposition set
// (IMAP/POP3), only parts delivered as attachments or named inlines
// qualify; without it (Exchange), any part whose filename ends in .pdf
// counts, including bare body parts.
func ExtractPDFAttachments(raw []byte, requireDisposition bool) ([]Attachment, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	parts := append([]*enmime.Part{}, env.Attachments...)
	parts = append(parts, env.Inlines...)
	if !requireDisposition {
		parts = append(parts, env.OtherParts...)
	}

	var out []Attachment
	for _, part := range parts {
		name := decodeFilename(part.FileName)
		if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
			continue
		}
		if len(part.Content) == 0 {
			continue
		}
		out = append(out, Attachment{Filename: name, Content: part.Content})
	}
	return out, nil
}

// decodeFilename repairs attachment names that arrived as raw Latin-2
// bytes instead of proper RFC 2047 words, which Polish mail servers
// still produce. enmime already decoded well-formed encoded words.
func decodeFilename(name string) string {
	if utf8.ValidString(name) {
		return name
	}
	decoded, err := charmap.ISO8859_2.NewDecoder().String(name)
	if err != nil {
		return name
	}
	return decoded
}
