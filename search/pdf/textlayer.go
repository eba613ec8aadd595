package pdf

import (
	"bytes"
	"strings"

	"github.com/ledongthuc/pdf"
)

// textLayerEngine reads the embedded text layer. Scanned documents have
// none, which comes out as empty text and escalates the chain.
type textLayerEngine struct{}

func (e *textLayerEngine) Name() string    { return "text_extraction" }
func (e *textLayerEngine) Available() bool { return true }

func (e *textLayerEngine) Extract(data []byte, cancelled func() bool) (out string, err error) {
	// Guard against any panics from the PDF library.
	defer func() {
		if r := recover(); r != nil {
			out, err = "", nil
		}
	}()

	reader, rerr := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if rerr != nil {
		return "", nil
	}

	// Safely obtain number of pages (library may panic on malformed PDFs).
	pages := 0
	func() {
		defer func() { _ = recover() }()
		pages = reader.NumPage()
	}()
	if pages <= 0 {
		return "", nil
	}

	var b strings.Builder
	for i := 1; i <= pages; i++ {
		if cancelled() {
			break
		}
		func() {
			defer func() { _ = recover() }()
			page := reader.Page(i)
			if page.V.IsNull() {
				return
			}
			content := page.Content()
			for _, item := range content.Text {
				b.WriteString(item.S)
				b.WriteString(" ")
			}
			b.WriteString("\n")
		}()
	}
	return strings.TrimSpace(b.String()), nil
}
