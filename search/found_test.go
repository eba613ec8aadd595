package search

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempStore(t *testing.T) *FoundStore {
	t.Helper()
	return NewFoundStore(filepath.Join(t.TempDir(), "found.json"), zerolog.Nop())
}

func TestFoundStoreRoundTrip(t *testing.T) {
	s := tempStore(t)

	assert.Empty(t, s.Load())

	rec := FoundInvoice{
		Date:     "2025-03-10",
		Sender:   "ksiegowosc@example.pl",
		Subject:  "Faktura 12/2025",
		Filename: "faktura_12_2025.pdf",
		FilePath: "/tmp/out/03.2025/faktura_12_2025.pdf",
	}
	require.NoError(t, s.Add(rec))

	got := s.Load()
	require.Len(t, got, 1)
	assert.Equal(t, rec.Filename, got[0].Filename)
	assert.NotEmpty(t, got[0].Timestamp, "Add stamps the record")

	require.NoError(t, s.Add(FoundInvoice{Filename: "druga.pdf"}))
	got = s.Load()
	require.Len(t, got, 2)
	assert.Equal(t, "druga.pdf", got[1].Filename)
}

func TestFoundStoreSurvivesCorruptFile(t *testing.T) {
	for _, content := range []string{
		"not json at all",
		`{"a": "object, not a list"}`,
		`"just a string"`,
	} {
		s := tempStore(t)
		require.NoError(t, os.WriteFile(s.path, []byte(content), 0o600))

		assert.Empty(t, s.Load(), "content %q", content)

		// Adding over a corrupt file starts a fresh list.
		require.NoError(t, s.Add(FoundInvoice{Filename: "a.pdf"}))
		assert.Len(t, s.Load(), 1)
	}
}

func TestFoundStoreWritesValidJSONArray(t *testing.T) {
	s := tempStore(t)
	require.NoError(t, s.Add(FoundInvoice{Filename: "a.pdf"}))

	data, err := os.ReadFile(s.path)
	require.NoError(t, err)
	var generic []map[string]any
	require.NoError(t, json.Unmarshal(data, &generic))
	assert.Contains(t, generic[0], "file_path")
	assert.Contains(t, generic[0], "found_timestamp")

	_, err = os.Stat(s.path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file is renamed away")
}
