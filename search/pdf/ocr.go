package pdf

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// ocrDPI is the rasterization resolution. 200 keeps tesseract accurate
// on invoice-sized type without ballooning render time.
const ocrDPI = "200"

// wellKnownPopplerDirs is probed when pdftoppm is not on PATH. The
// Windows entries match where the poppler zip releases are commonly
// unpacked.
var wellKnownPopplerDirs = []string{
	`C:\poppler\Library\bin`,
	`C:\poppler\bin`,
	`C:\Program Files\poppler\Library\bin`,
	`C:\Program Files\poppler\bin`,
	"/usr/bin",
	"/usr/local/bin",
	"/opt/homebrew/bin",
}

// ocrEngine rasterizes pages with poppler's pdftoppm and feeds them to
// tesseract. Polish plus English models are tried first; if that model
// combination fails once (pol traineddata not installed), the run
// sticks to English for the remaining pages.
type ocrEngine struct {
	log       zerolog.Logger
	pdftoppm  string
	tesseract string
}

func newOCREngine(log zerolog.Logger) *ocrEngine {
	return &ocrEngine{
		log:       log,
		pdftoppm:  findBinary("pdftoppm", wellKnownPopplerDirs),
		tesseract: findBinary("tesseract", nil),
	}
}

func (e *ocrEngine) Name() string    { return "ocr" }
func (e *ocrEngine) Available() bool { return e.pdftoppm != "" && e.tesseract != "" }

func (e *ocrEngine) Extract(data []byte, cancelled func() bool) (string, error) {
	tmpDir, err := os.MkdirTemp("", "invoicehound_ocr_*")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(tmpDir)

	inFile := filepath.Join(tmpDir, "doc.pdf")
	if err := os.WriteFile(inFile, data, 0o600); err != nil {
		return "", err
	}

	cmd := exec.Command(e.pdftoppm, "-png", "-r", ocrDPI, inFile, filepath.Join(tmpDir, "page"))
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("pdftoppm: %w: %s", err, strings.TrimSpace(string(out)))
	}

	pages, err := filepath.Glob(filepath.Join(tmpDir, "page-*.png"))
	if err != nil || len(pages) == 0 {
		// Single-digit page numbering uses a different name shape.
		pages, _ = filepath.Glob(filepath.Join(tmpDir, "page*.png"))
	}
	sort.Strings(pages)

	var (
		texts     []string
		polFailed bool
	)
	for _, page := range pages {
		// A cancelled run returns whatever pages are already done.
		if cancelled() {
			break
		}
		lang := "pol+eng"
		if polFailed {
			lang = "eng"
		}
		text, err := e.runTesseract(page, lang)
		if err != nil && !polFailed {
			e.log.Debug().Err(err).Msg("pol+eng OCR failed, retrying with eng")
			polFailed = true
			text, err = e.runTesseract(page, "eng")
		}
		if err != nil {
			return "", fmt.Errorf("tesseract: %w", err)
		}
		texts = append(texts, strings.TrimSpace(text))
	}
	return strings.Join(texts, "\n"), nil
}

func (e *ocrEngine) runTesseract(image, lang string) (string, error) {
	cmd := exec.Command(e.tesseract, image, "stdout", "-l", lang)
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// findBinary resolves a tool via PATH first, then the given well-known
// directories. Returns "" when the tool is nowhere to be found.
func findBinary(name string, extraDirs []string) string {
	if p, err := exec.LookPath(name); err == nil {
		return p
	}
	for _, dir := range extraDirs {
		for _, candidate := range []string{filepath.Join(dir, name), filepath.Join(dir, name+".exe")} {
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate
			}
		}
	}
	return ""
}
