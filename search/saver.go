package search

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/emersion/go-mbox"
	"github.com/rs/zerolog"

	"invoicehound/mailbox"
)

// CollisionPolicy decides what happens when a target filename already
// exists in the output folder.
type CollisionPolicy string

const (
	// CollisionSuffix appends _1, _2, ... before the extension.
	CollisionSuffix CollisionPolicy = "suffix"
	// CollisionOverwrite replaces the existing file.
	CollisionOverwrite CollisionPolicy = "overwrite"
)

// safeFilenameChars is the whitelist for saved attachment names,
// including the Polish alphabet.
const safeFilenameChars = "-_.() abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789ąćęłńóśźżĄĆĘŁŃÓŚŹŻ"

const maxFilenameLen = 200

// Saver persists matched attachments and their source messages under
// the output folder.
type Saver struct {
	OutputDir    string
	MonthFolders bool // sort into MM.YYYY subfolders by message date
	Policy       CollisionPolicy
	SaveEML      bool // write the raw source message next to the PDF

	log      zerolog.Logger
	mbox     *mbox.Writer
	mboxFile *os.File
}

func NewSaver(outputDir string, monthFolders bool, policy CollisionPolicy, saveEML bool, log zerolog.Logger) *Saver {
	if policy == "" {
		policy = CollisionSuffix
	}
	return &Saver{
		OutputDir:    outputDir,
		MonthFolders: monthFolders,
		Policy:       policy,
		SaveEML:      saveEML,
		log:          log,
	}
}

// Save writes the attachment (and optionally the source .eml) and
// returns the final attachment path. File modification times are set to
// the email date so the folder sorts chronologically; failure to do so
// is only a warning.
func (s *Saver) Save(att Attachment, msg *mailbox.Message) (string, error) {
	dir := s.OutputDir
	if s.MonthFolders && msg.HasDate() {
		dir = filepath.Join(dir, msg.Date.Format("01.2006"))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("cannot create month folder: %w", err)
		}
	}

	name := SafeFilename(att.Filename)
	path, err := s.resolveCollision(filepath.Join(dir, name))
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, att.Content, 0o644); err != nil {
		return "", fmt.Errorf("cannot write %s: %w", path, err)
	}

	if s.SaveEML && len(msg.Raw) > 0 {
		emlPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".eml"
		if err := os.WriteFile(emlPath, msg.Raw, 0o644); err != nil {
			s.log.Warn().Err(err).Str("path", emlPath).Msg("cannot write source message")
		} else if msg.HasDate() {
			if err := os.Chtimes(emlPath, msg.Date, msg.Date); err != nil {
				s.log.Warn().Err(err).Str("path", emlPath).Msg("cannot set file times")
			}
		}
	}

	if msg.HasDate() {
		if err := os.Chtimes(path, msg.Date, msg.Date); err != nil {
			s.log.Warn().Err(err).Str("path", path).Msg("cannot set file times")
		}
	}
	return path, nil
}

// resolveCollision applies the policy to a taken path.
func (s *Saver) resolveCollision(path string) (string, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path, nil
	}
	if s.Policy == CollisionOverwrite {
		return path, nil
	}
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for i := 1; i < 10000; i++ {
		candidate := fmt.Sprintf("%s_%d%s", base, i, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no free filename for %s", path)
}

// Archive appends the matched source message to the run's found.mbox in
// the output folder. The mbox writer is created lazily on first use.
func (s *Saver) Archive(msg *mailbox.Message) error {
	if s.mbox == nil {
		f, err := os.OpenFile(filepath.Join(s.OutputDir, "found.mbox"),
			os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		s.mboxFile = f
		s.mbox = mbox.NewWriter(f)
	}
	w, err := s.mbox.CreateMessage(msg.From, msg.Date)
	if err != nil {
		return err
	}
	_, err = w.Write(msg.Raw)
	return err
}

// CloseArchive flushes the mbox writer if one was opened.
func (s *Saver) CloseArchive() error {
	if s.mbox == nil {
		return nil
	}
	err := s.mbox.Close()
	if cerr := s.mboxFile.Close(); err == nil {
		err = cerr
	}
	s.mbox, s.mboxFile = nil, nil
	return err
}

// SafeFilename strips everything outside the whitelist, caps the length
// preserving the extension, and falls back to "faktura.pdf" when
// nothing survives.
func SafeFilename(filename string) string {
	var b strings.Builder
	for _, r := range filename {
		if strings.ContainsRune(safeFilenameChars, r) {
			b.WriteRune(r)
		}
	}
	safe := b.String()
	if runes := []rune(safe); len(runes) > maxFilenameLen {
		ext := filepath.Ext(safe)
		name := []rune(strings.TrimSuffix(safe, ext))
		safe = string(name[:maxFilenameLen-len(ext)]) + ext
	}
	if strings.TrimSpace(safe) == "" {
		return "faktura.pdf"
	}
	return safe
}
