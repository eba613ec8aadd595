package search

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// FoundInvoice is one persisted record of a matched attachment.
type FoundInvoice struct {
	Date      string `json:"date"`
	Sender    string `json:"sender"`
	Subject   string `json:"subject"`
	Filename  string `json:"filename"`
	FilePath  string `json:"file_path"`
	Timestamp string `json:"found_timestamp"`
}

// FoundStore keeps the cross-run record of every invoice found, as a
// JSON array on disk. Every Add rewrites the file atomically so a crash
// mid-run never corrupts previous runs' records.
type FoundStore struct {
	path string
	log  zerolog.Logger
}

// DefaultFoundPath places the record file in the user's home directory.
func DefaultFoundPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".invoicehound_found.json"
	}
	return filepath.Join(home, ".invoicehound_found.json")
}

func NewFoundStore(path string, log zerolog.Logger) *FoundStore {
	return &FoundStore{path: path, log: log}
}

// Load reads all records. A missing file, unreadable file, malformed
// JSON, or a document that is not an array all come back as an empty
// list: the record file must never block a search run.
func (s *FoundStore) Load() []FoundInvoice {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn().Err(err).Str("path", s.path).Msg("cannot read found-invoices file")
		}
		return nil
	}
	var records []FoundInvoice
	if err := json.Unmarshal(data, &records); err != nil {
		s.log.Warn().Err(err).Str("path", s.path).Msg("found-invoices file malformed, starting empty")
		return nil
	}
	return records
}

// Add appends one record and persists the whole list via a temp file
// and rename.
func (s *FoundStore) Add(rec FoundInvoice) error {
	if rec.Timestamp == "" {
		rec.Timestamp = time.Now().Format(time.RFC3339)
	}
	records := append(s.Load(), rec)

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
