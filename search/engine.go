package search

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"invoicehound/mailbox"
	"invoicehound/search/pdf"
)

// Validation errors for Criteria.
var (
	ErrNoIdentifier   = errors.New("no identifier to search for")
	ErrNoOutputFolder = errors.New("output folder does not exist")
	ErrBadDateRange   = errors.New("date range start is after its end")
	ErrAlreadyRunning = errors.New("a search is already running")
)

// Criteria is everything one search run needs.
type Criteria struct {
	Identifier      string
	DateFrom        time.Time
	DateTo          time.Time
	LastDays        int
	FolderPath      string
	ExcludedFolders []string
	OutputDir       string
	MonthFolders    bool
	Policy          CollisionPolicy
	SaveEML         bool
	ArchiveMbox     bool
	EnginePref      string
}

// Validate rejects criteria the run could not act on.
func (c *Criteria) Validate() error {
	if strings.TrimSpace(c.Identifier) == "" {
		return ErrNoIdentifier
	}
	if c.OutputDir == "" {
		return ErrNoOutputFolder
	}
	if info, err := os.Stat(c.OutputDir); err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNoOutputFolder, c.OutputDir)
	}
	if !c.DateFrom.IsZero() && !c.DateTo.IsZero() && c.DateFrom.After(c.DateTo) {
		return ErrBadDateRange
	}
	return nil
}

// Range resolves the effective date window: explicit dates win over the
// last-N-days shorthand.
func (c *Criteria) Range() mailbox.Range {
	if !c.DateFrom.IsZero() || !c.DateTo.IsZero() {
		return mailbox.NewRange(c.DateFrom, c.DateTo)
	}
	if c.LastDays > 0 {
		return mailbox.LastDays(c.LastDays, time.Now())
	}
	return mailbox.Range{}
}

// Engine runs one mailbox search at a time: a single worker goroutine
// walks folders, messages and attachments, publishing Events as it
// goes. Cancel flips a flag the worker polls at every loop boundary.
type Engine struct {
	client   mailbox.SearchClient
	chain    *pdf.Chain
	store    *FoundStore
	log      zerolog.Logger
	criteria Criteria

	events    chan Event
	cancelled atomic.Bool
	running   atomic.Bool
}

func NewEngine(client mailbox.SearchClient, criteria Criteria, chain *pdf.Chain, store *FoundStore, log zerolog.Logger) *Engine {
	return &Engine{
		client:   client,
		chain:    chain,
		store:    store,
		criteria: criteria,
		log:      log.With().Str("run", uuid.NewString()[:8]).Logger(),
		events:   make(chan Event, 512),
	}
}

// Events returns the queue the UI drains. The channel is closed after
// the EventDone event.
func (e *Engine) Events() <-chan Event { return e.events }

// Cancel requests a cooperative stop. Work already in flight finishes;
// partial results stay saved.
func (e *Engine) Cancel() { e.cancelled.Store(true) }

// Start validates the criteria and launches the worker.
func (e *Engine) Start() error {
	if err := e.criteria.Validate(); err != nil {
		return err
	}
	if !e.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	go e.run()
	return nil
}

func (e *Engine) run() {
	started := time.Now()
	summary := &Summary{State: StateCompleted}
	defer func() {
		if err := e.client.Close(); err != nil {
			e.log.Warn().Err(err).Msg("connection close failed")
		}
		summary.Duration = time.Since(started)
		e.events <- Event{Kind: EventDone, Summary: summary}
		close(e.events)
	}()

	for _, name := range e.chain.Missing {
		e.sendLog("extraction engine %q unavailable, escalation will skip it", name)
	}

	saver := NewSaver(e.criteria.OutputDir, e.criteria.MonthFolders, e.criteria.Policy,
		e.criteria.SaveEML, e.log)
	defer func() {
		if err := saver.CloseArchive(); err != nil {
			e.log.Warn().Err(err).Msg("mbox archive close failed")
		}
	}()

	excluded := make(map[string]struct{}, len(e.criteria.ExcludedFolders))
	for _, f := range e.criteria.ExcludedFolders {
		excluded[f] = struct{}{}
	}

	folders, err := e.client.ListFolders(e.criteria.FolderPath, excluded)
	if err != nil {
		summary.State, summary.Err = StateFailed, err
		e.log.Error().Err(err).Msg("folder listing failed")
		return
	}
	if len(folders) == 0 {
		summary.State = StateFailed
		summary.Err = fmt.Errorf("no folders to search under %q", e.criteria.FolderPath)
		return
	}

	window := e.criteria.Range()
	identifier := strings.TrimSpace(e.criteria.Identifier)

	for _, folder := range folders {
		if e.cancelled.Load() {
			summary.State = StateCancelled
			return
		}
		stats := e.searchFolder(folder, window, identifier, saver, summary)
		summary.Folders = append(summary.Folders, stats)
		summary.Checked += stats.Checked
		summary.Found += stats.Matched
	}
	if e.cancelled.Load() {
		summary.State = StateCancelled
	}
}

func (e *Engine) searchFolder(folder string, window mailbox.Range, identifier string, saver *Saver, summary *Summary) FolderStats {
	stats := FolderStats{Folder: folder}
	e.sendLog("searching folder %s", folder)

	ids, err := e.client.SearchMessages(folder, window)
	if err != nil {
		e.log.Warn().Err(err).Str("folder", folder).Msg("folder search failed, skipping")
		e.sendLog("folder %s skipped: %v", folder, err)
		return stats
	}

	for i, id := range ids {
		if e.cancelled.Load() {
			return stats
		}
		e.sendProgress(folder, i+1, len(ids))

		msg, err := e.client.FetchMessage(folder, id)
		if err != nil {
			e.log.Warn().Err(err).Str("folder", folder).Str("uid", id).Msg("fetch failed, skipping message")
			continue
		}
		stats.Checked++
		stats.Matched += e.searchMessage(msg, identifier, saver)
	}
	return stats
}

// searchMessage runs the PDF pipeline over one message's attachments
// and returns how many attachments matched and were saved.
func (e *Engine) searchMessage(msg *mailbox.Message, identifier string, saver *Saver) int {
	requireDisposition := e.client.Protocol() != mailbox.ProtocolExchange
	atts, err := ExtractPDFAttachments(msg.Raw, requireDisposition)
	if err != nil {
		e.log.Warn().Err(err).Str("uid", msg.UID).Msg("message parse failed, skipping")
		return 0
	}

	matched := 0
	archived := false
	for _, att := range atts {
		if e.cancelled.Load() {
			return matched
		}

		text, engineName := e.chain.Extract(att.Content, e.cancelled.Load)
		res := MatchIdentifier(text, identifier)
		if !res.Found {
			continue
		}
		e.log.Info().Str("attachment", att.Filename).Str("method", res.Method(engineName)).
			Str("folder", msg.Folder).Msg("identifier found")

		path, err := saver.Save(att, msg)
		if err != nil {
			// A match that could not be persisted is not counted.
			e.log.Error().Err(err).Str("attachment", att.Filename).Msg("save failed")
			e.sendLog("MATCH NOT SAVED %s: %v", att.Filename, err)
			continue
		}
		matched++

		rec := FoundInvoice{
			Date:     msgDateString(msg),
			Sender:   msg.From,
			Subject:  msg.Subject,
			Filename: att.Filename,
			FilePath: path,
		}
		if err := e.store.Add(rec); err != nil {
			e.log.Warn().Err(err).Msg("found-invoices record not persisted")
		}
		if e.criteria.ArchiveMbox && !archived {
			if err := saver.Archive(msg); err != nil {
				e.log.Warn().Err(err).Msg("mbox archive append failed")
			}
			archived = true
		}
		e.events <- Event{Kind: EventFound, Found: &rec}
	}
	return matched
}

func (e *Engine) sendLog(format string, args ...any) {
	select {
	case e.events <- Event{Kind: EventLog, Message: fmt.Sprintf(format, args...)}:
	default:
	}
}

func (e *Engine) sendProgress(folder string, processed, total int) {
	select {
	case e.events <- Event{Kind: EventProgress, Folder: folder, Processed: processed, Total: total}:
	default:
	}
}

func msgDateString(msg *mailbox.Message) string {
	if !msg.HasDate() {
		return ""
	}
	return msg.Date.Format("2006-01-02")
}
