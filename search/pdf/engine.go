package pdf

import (
	"strings"

	"github.com/rs/zerolog"
)

// Engine turns PDF bytes into plain text. Extract returns "" when the
// engine cannot produce text for this document; that is not an error,
// it just sends the chain to the next engine. The cancelled callback is
// polled by slow engines so a user abort does not wait out a long OCR
// run.
type Engine interface {
	Name() string
	Available() bool
	Extract(data []byte, cancelled func() bool) (string, error)
}

// Chain runs engines in order until one yields non-empty text.
type Chain struct {
	engines []Engine
	log     zerolog.Logger

	// names of unavailable engines seen while building, reported once
	// per run so the operator learns about missing binaries.
	Missing []string
}

// Preference names for NewChain.
const (
	PrefAuto      = "auto"
	PrefTextLayer = "textlayer"
	PrefOCR       = "ocr"
	PrefFallback  = "fallback"
)

// NewChain builds the escalation chain for one search run. "auto" is
// text layer, then OCR, then the literal-parser fallback. Naming a
// single engine pins the chain to just that engine. Unavailable engines
// are dropped and recorded in Missing.
func NewChain(preference string, log zerolog.Logger) *Chain {
	var candidates []Engine
	switch strings.ToLower(strings.TrimSpace(preference)) {
	case PrefTextLayer:
		candidates = []Engine{&textLayerEngine{}}
	case PrefOCR:
		candidates = []Engine{newOCREngine(log)}
	case PrefFallback:
		candidates = []Engine{&fallbackEngine{}}
	default:
		candidates = []Engine{&textLayerEngine{}, newOCREngine(log), &fallbackEngine{}}
	}

	c := &Chain{log: log}
	for _, e := range candidates {
		if !e.Available() {
			c.Missing = append(c.Missing, e.Name())
			continue
		}
		c.engines = append(c.engines, e)
	}
	return c
}

// ChainOf builds a chain from explicit engines, skipping availability
// checks. Callers wanting the standard escalation use NewChain.
func ChainOf(log zerolog.Logger, engines ...Engine) *Chain {
	return &Chain{log: log, engines: engines}
}

// Extract runs the chain. The returned engine name tells the caller
// which stage produced the text ("" when none did). Individual engine
// errors are logged and treated like empty output.
func (c *Chain) Extract(data []byte, cancelled func() bool) (text, engine string) {
	for _, e := range c.engines {
		if cancelled() {
			return "", ""
		}
		out, err := e.Extract(data, cancelled)
		if err != nil {
			c.log.Debug().Err(err).Str("engine", e.Name()).Msg("extraction failed, escalating")
			continue
		}
		if strings.TrimSpace(out) == "" {
			continue
		}
		return out, e.Name()
	}
	return "", ""
}
