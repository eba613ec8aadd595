package pdf

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type stubEngine struct {
	name string
	text string
	err  error
}

func (s *stubEngine) Name() string    { return s.name }
func (s *stubEngine) Available() bool { return true }
func (s *stubEngine) Extract(data []byte, cancelled func() bool) (string, error) {
	return s.text, s.err
}

func never() bool { return false }

func TestChainEscalatesPastEmptyAndFailedEngines(t *testing.T) {
	c := &Chain{
		log: zerolog.Nop(),
		engines: []Engine{
			&stubEngine{name: "empty", text: "   \n"},
			&stubEngine{name: "broken", err: errors.New("boom")},
			&stubEngine{name: "winner", text: "NIP 1234563218"},
		},
	}

	text, engine := c.Extract([]byte("%PDF"), never)
	assert.Equal(t, "NIP 1234563218", text)
	assert.Equal(t, "winner", engine)
}

func TestChainAllEnginesEmpty(t *testing.T) {
	c := &Chain{
		log:     zerolog.Nop(),
		engines: []Engine{&stubEngine{name: "a"}, &stubEngine{name: "b"}},
	}

	text, engine := c.Extract(nil, never)
	assert.Empty(t, text)
	assert.Empty(t, engine)
}

func TestChainStopsWhenCancelled(t *testing.T) {
	c := &Chain{
		log:     zerolog.Nop(),
		engines: []Engine{&stubEngine{name: "winner", text: "text"}},
	}

	text, engine := c.Extract(nil, func() bool { return true })
	assert.Empty(t, text)
	assert.Empty(t, engine)
}

func TestNewChainPinsSingleEngine(t *testing.T) {
	c := NewChain(PrefTextLayer, zerolog.Nop())
	assert.Len(t, c.engines, 1)
	assert.Equal(t, "text_extraction", c.engines[0].Name())
	assert.Empty(t, c.Missing)
}

func TestParsePDFStringLiterals(t *testing.T) {
	in := `BT /F1 12 Tf (Faktura VAT) Tj (NIP: 123\) 456) Tj ET`
	out := parsePDFStringLiterals(in, 1024)
	assert.Contains(t, out, "Faktura VAT")
	assert.Contains(t, out, "NIP: 123) 456")
}

func TestAsciiNormalize(t *testing.T) {
	assert.Equal(t, "abc def", asciiNormalize("abc\n\t  def\x00"))
	assert.Equal(t, "Sp ka", asciiNormalize("Spółka"))
}

func TestTextLayerEngineToleratesGarbage(t *testing.T) {
	e := &textLayerEngine{}
	out, err := e.Extract([]byte("not a pdf at all"), never)
	assert.NoError(t, err)
	assert.Empty(t, out)
}
