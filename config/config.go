// Package config reads and writes the application's JSON configuration
// file. The file is shared by future tools, so saving one section must
// leave unknown sibling sections untouched.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Mail holds account connection settings.
type Mail struct {
	Protocol string `json:"protocol,omitempty"` // IMAP, POP3 or EXCHANGE
	Server   string `json:"server,omitempty"`
	Port     int    `json:"port,omitempty"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`
	UseSSL   *bool  `json:"use_ssl,omitempty"` // nil means default (on)
}

// SSL resolves the tri-state flag; SSL is on unless switched off.
func (m Mail) SSL() bool { return m.UseSSL == nil || *m.UseSSL }

// Search holds defaults for search runs.
type Search struct {
	Identifier      string   `json:"identifier,omitempty"`
	OutputDir       string   `json:"output_dir,omitempty"`
	FolderPath      string   `json:"folder_path,omitempty"`
	ExcludedFolders []string `json:"excluded_folders,omitempty"`
	MonthFolders    bool     `json:"month_folders,omitempty"`
	Collision       string   `json:"collision,omitempty"` // suffix or overwrite
	Engine          string   `json:"engine,omitempty"`    // auto, textlayer, ocr, fallback
	ArchiveMbox     bool     `json:"archive_mbox,omitempty"`
}

// Config is the typed view of the sections this program owns.
type Config struct {
	Mail   Mail   `json:"mail"`
	Search Search `json:"search"`
}

// DefaultPath is the config file location in the user's home directory.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".invoicehound.json"
	}
	return filepath.Join(home, ".invoicehound.json")
}

// Load reads the config file. A missing file yields a zero Config;
// malformed JSON is an error since silently dropping a user's settings
// would be worse than refusing to start.
func Load(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("cannot read config %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config %s malformed: %w", path, err)
	}
	return cfg, nil
}

// Save writes the mail and search sections, preserving any sibling
// sections other tools may have added. The write goes through a temp
// file and rename.
func Save(path string, cfg Config) error {
	sections := map[string]json.RawMessage{}
	if data, err := os.ReadFile(path); err == nil {
		// Best effort; an unreadable document is replaced wholesale.
		_ = json.Unmarshal(data, &sections)
	}

	mailRaw, err := json.Marshal(cfg.Mail)
	if err != nil {
		return err
	}
	searchRaw, err := json.Marshal(cfg.Search)
	if err != nil {
		return err
	}
	sections["mail"] = mailRaw
	sections["search"] = searchRaw

	out, err := json.MarshalIndent(sections, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
