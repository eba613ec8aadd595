package search

import (
	"encoding/base64"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicehound/mailbox"
	"invoicehound/search/pdf"
)

// rawMessageWithPDF builds a minimal multipart message carrying one PDF
// attachment whose bytes are the given content.
func rawMessageWithPDF(filename, content string) []byte {
	b64 := base64.StdEncoding.EncodeToString([]byte(content))
	msg := "From: ksiegowosc@example.pl\r\n" +
		"To: biuro@example.pl\r\n" +
		"Subject: Faktura marzec\r\n" +
		"Date: Mon, 10 Mar 2025 12:00:00 +0000\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/mixed; boundary=frontier\r\n" +
		"\r\n" +
		"--frontier\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"w załączeniu faktura\r\n" +
		"--frontier\r\n" +
		fmt.Sprintf("Content-Type: application/pdf; name=%q\r\n", filename) +
		fmt.Sprintf("Content-Disposition: attachment; filename=%q\r\n", filename) +
		"Content-Transfer-Encoding: base64\r\n" +
		"\r\n" +
		b64 + "\r\n" +
		"--frontier--\r\n"
	return []byte(msg)
}

// passthroughEngine pretends PDF bytes are already plain text.
type passthroughEngine struct{}

func (passthroughEngine) Name() string    { return "text_extraction" }
func (passthroughEngine) Available() bool { return true }
func (passthroughEngine) Extract(data []byte, cancelled func() bool) (string, error) {
	return string(data), nil
}

type fakeClient struct {
	protocol  mailbox.Protocol
	folders   []string
	listErr   error
	searchErr error
	msgs      map[string][]*mailbox.Message
	closed    bool
	onFetch   func()
}

func (f *fakeClient) Protocol() mailbox.Protocol { return f.protocol }

func (f *fakeClient) ListFolders(base string, excluded map[string]struct{}) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []string
	for _, folder := range f.folders {
		if _, skip := excluded[folder]; !skip {
			out = append(out, folder)
		}
	}
	return out, nil
}

func (f *fakeClient) SearchMessages(folder string, r mailbox.Range) ([]string, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	var ids []string
	for _, m := range f.msgs[folder] {
		if r.ContainsMessage(m.Date, m.HasDate()) {
			ids = append(ids, m.UID)
		}
	}
	return ids, nil
}

func (f *fakeClient) FetchMessage(folder, id string) (*mailbox.Message, error) {
	if f.onFetch != nil {
		f.onFetch()
	}
	for _, m := range f.msgs[folder] {
		if m.UID == id {
			return m, nil
		}
	}
	return nil, errors.New("no such message")
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

func message(uid, folder, filename, pdfText string) *mailbox.Message {
	return &mailbox.Message{
		UID:     uid,
		Subject: "Faktura marzec",
		From:    "ksiegowosc@example.pl",
		Date:    time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC),
		Folder:  folder,
		Raw:     rawMessageWithPDF(filename, pdfText),
	}
}

func newTestEngine(t *testing.T, client mailbox.SearchClient, criteria Criteria) *Engine {
	t.Helper()
	if criteria.OutputDir == "" {
		criteria.OutputDir = t.TempDir()
	}
	store := NewFoundStore(filepath.Join(t.TempDir(), "found.json"), zerolog.Nop())
	chain := pdf.ChainOf(zerolog.Nop(), passthroughEngine{})
	return NewEngine(client, criteria, chain, store, zerolog.Nop())
}

func drain(t *testing.T, e *Engine) (*Summary, []Event) {
	t.Helper()
	var events []Event
	for ev := range e.Events() {
		events = append(events, ev)
		if ev.Kind == EventDone {
			return ev.Summary, events
		}
	}
	t.Fatal("event channel closed without a done event")
	return nil, nil
}

func TestEngineEndToEnd(t *testing.T) {
	client := &fakeClient{
		protocol: mailbox.ProtocolIMAP,
		folders:  []string{"INBOX", "INBOX/Faktury"},
		msgs: map[string][]*mailbox.Message{
			"INBOX": {
				message("1", "INBOX", "faktura_a.pdf", "Sprzedawca NIP: 1234563218 kwota 100"),
				message("2", "INBOX", "newsletter.pdf", "zwykły biuletyn bez numeru"),
			},
			"INBOX/Faktury": {
				message("3", "INBOX/Faktury", "faktura_b.pdf", "NIP 123-456-32-18"),
			},
		},
	}
	e := newTestEngine(t, client, Criteria{Identifier: "1234563218"})
	require.NoError(t, e.Start())

	summary, events := drain(t, e)
	assert.Equal(t, StateCompleted, summary.State)
	assert.Equal(t, 2, summary.Found)
	assert.Equal(t, 3, summary.Checked)
	require.Len(t, summary.Folders, 2)
	assert.True(t, client.closed, "client closed on exit")

	var found []*FoundInvoice
	for _, ev := range events {
		if ev.Kind == EventFound {
			found = append(found, ev.Found)
		}
	}
	require.Len(t, found, 2)
	assert.Equal(t, "faktura_a.pdf", found[0].Filename)
	assert.FileExists(t, found[0].FilePath)
	assert.Equal(t, "2025-03-10", found[0].Date)

	// Store carries the same two records.
	assert.Len(t, e.store.Load(), 2)
}

func TestEngineValidation(t *testing.T) {
	client := &fakeClient{folders: []string{"INBOX"}}

	e := newTestEngine(t, client, Criteria{})
	assert.ErrorIs(t, e.Start(), ErrNoIdentifier)

	e = newTestEngine(t, client, Criteria{
		Identifier: "1234563218",
		DateFrom:   time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		DateTo:     time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	assert.ErrorIs(t, e.Start(), ErrBadDateRange)

	bad := Criteria{Identifier: "1234563218", OutputDir: "/does/not/exist"}
	store := NewFoundStore(filepath.Join(t.TempDir(), "found.json"), zerolog.Nop())
	e = NewEngine(client, bad, pdf.ChainOf(zerolog.Nop()), store, zerolog.Nop())
	assert.ErrorIs(t, e.Start(), ErrNoOutputFolder)
}

func TestEngineFailsWhenFolderListingFails(t *testing.T) {
	client := &fakeClient{listErr: errors.New("LIST broken")}
	e := newTestEngine(t, client, Criteria{Identifier: "1234563218"})
	require.NoError(t, e.Start())

	summary, _ := drain(t, e)
	assert.Equal(t, StateFailed, summary.State)
	assert.Error(t, summary.Err)
	assert.True(t, client.closed)
}

func TestEngineSkipsFailingFolder(t *testing.T) {
	client := &fakeClient{
		protocol:  mailbox.ProtocolIMAP,
		folders:   []string{"INBOX"},
		searchErr: errors.New("SEARCH broken"),
		msgs:      map[string][]*mailbox.Message{},
	}
	e := newTestEngine(t, client, Criteria{Identifier: "1234563218"})
	require.NoError(t, e.Start())

	summary, _ := drain(t, e)
	assert.Equal(t, StateCompleted, summary.State)
	assert.Zero(t, summary.Found)
}

func TestEngineCancelStopsRun(t *testing.T) {
	msgs := make([]*mailbox.Message, 0, 50)
	for i := 0; i < 50; i++ {
		msgs = append(msgs, message(fmt.Sprint(i), "INBOX", "faktura.pdf", "NIP: 1234563218"))
	}
	client := &fakeClient{
		protocol: mailbox.ProtocolIMAP,
		folders:  []string{"INBOX"},
		msgs:     map[string][]*mailbox.Message{"INBOX": msgs},
	}
	e := newTestEngine(t, client, Criteria{Identifier: "1234563218"})
	client.onFetch = e.Cancel // cancel as soon as the first fetch happens
	require.NoError(t, e.Start())

	summary, _ := drain(t, e)
	assert.Equal(t, StateCancelled, summary.State)
	assert.Less(t, summary.Checked, 50)
	assert.True(t, client.closed)
}

func TestEngineExcludesFolders(t *testing.T) {
	client := &fakeClient{
		protocol: mailbox.ProtocolIMAP,
		folders:  []string{"INBOX", "Spam"},
		msgs: map[string][]*mailbox.Message{
			"Spam": {message("9", "Spam", "faktura.pdf", "NIP 1234563218")},
		},
	}
	e := newTestEngine(t, client, Criteria{Identifier: "1234563218", ExcludedFolders: []string{"Spam"}})
	require.NoError(t, e.Start())

	summary, _ := drain(t, e)
	assert.Equal(t, StateCompleted, summary.State)
	assert.Zero(t, summary.Found)
}

func TestEngineDateWindowFiltersMessages(t *testing.T) {
	old := message("1", "INBOX", "faktura.pdf", "NIP 1234563218")
	old.Date = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	client := &fakeClient{
		protocol: mailbox.ProtocolIMAP,
		folders:  []string{"INBOX"},
		msgs: map[string][]*mailbox.Message{
			"INBOX": {old, message("2", "INBOX", "faktura2.pdf", "NIP 1234563218")},
		},
	}
	e := newTestEngine(t, client, Criteria{
		Identifier: "1234563218",
		DateFrom:   time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
		DateTo:     time.Date(2025, time.March, 31, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, e.Start())

	summary, _ := drain(t, e)
	assert.Equal(t, 1, summary.Found)
	assert.Equal(t, 1, summary.Checked)
}

func TestEngineStartTwice(t *testing.T) {
	client := &fakeClient{protocol: mailbox.ProtocolIMAP, folders: []string{"INBOX"},
		msgs: map[string][]*mailbox.Message{}}
	e := newTestEngine(t, client, Criteria{Identifier: "1234563218"})
	require.NoError(t, e.Start())
	assert.ErrorIs(t, e.Start(), ErrAlreadyRunning)
	drain(t, e)
}
