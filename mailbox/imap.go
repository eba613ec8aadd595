package mailbox

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/rs/zerolog"
)

// imapSearchClient drives a live IMAP session. One instance owns one TCP
// connection and tracks which mailbox is currently selected.
type imapSearchClient struct {
	c        *imapclient.Client
	log      zerolog.Logger
	selected string
	selData  *imap.SelectData
}

func dialIMAP(acct Account, log zerolog.Logger) (*imapSearchClient, error) {
	var (
		c   *imapclient.Client
		err error
	)
	if acct.UseSSL {
		c, err = imapclient.DialTLS(acct.Addr(), nil)
	} else {
		c, err = imapclient.DialInsecure(acct.Addr(), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("connect to %s failed: %w", acct.Addr(), err)
	}
	if err := c.Login(acct.Email, acct.Password).Wait(); err != nil {
		c.Close()
		return nil, fmt.Errorf("login failed: %w", err)
	}
	log.Debug().Str("server", acct.Addr()).Msg("IMAP session established")
	return &imapSearchClient{c: c, log: log}, nil
}

func (s *imapSearchClient) Protocol() Protocol { return ProtocolIMAP }

// ListFolders enumerates selectable mailboxes. With a base, only the base
// itself and mailboxes underneath it are returned. Folders whose last
// path segment matches an excluded name are skipped along with their
// position in the result (children remain reachable by their own names).
func (s *imapSearchClient) ListFolders(base string, excluded map[string]struct{}) ([]string, error) {
	boxes, err := s.c.List("", "*", nil).Collect()
	if err != nil {
		return nil, fmt.Errorf("LIST failed: %w", err)
	}

	var folders []string
	for _, box := range boxes {
		if hasAttr(box.Attrs, imap.MailboxAttrNoSelect) {
			continue
		}
		delim := "/"
		if box.Delim != 0 {
			delim = string(box.Delim)
		}
		if base != "" && !underBase(box.Mailbox, base, delim) {
			continue
		}
		segs := strings.Split(box.Mailbox, delim)
		if _, skip := excluded[segs[len(segs)-1]]; skip {
			s.log.Debug().Str("folder", box.Mailbox).Msg("folder excluded from search")
			continue
		}
		folders = append(folders, box.Mailbox)
	}
	return folders, nil
}

// SearchMessages prefers a server-side SINCE/BEFORE search. When the
// server rejects the query, it degrades to enumerating every message and
// filtering by the envelope date client-side; messages without a
// parsable date are kept.
func (s *imapSearchClient) SearchMessages(folder string, r Range) ([]string, error) {
	sel, err := s.selectFolder(folder)
	if err != nil {
		return nil, err
	}

	criteria := &imap.SearchCriteria{}
	if !r.Start.IsZero() {
		criteria.Since = r.Start
	}
	if !r.End.IsZero() {
		criteria.Before = r.End
	}

	data, err := s.c.UIDSearch(criteria, nil).Wait()
	if err == nil {
		uids := data.AllUIDs()
		ids := make([]string, len(uids))
		for i, uid := range uids {
			ids[i] = strconv.FormatUint(uint64(uid), 10)
		}
		return ids, nil
	}

	if r.IsZero() {
		return nil, fmt.Errorf("SEARCH in %s failed: %w", folder, err)
	}
	s.log.Warn().Err(err).Str("folder", folder).
		Msg("server rejected dated SEARCH, filtering client-side")
	return s.filterByEnvelopeDate(folder, sel.NumMessages, r)
}

// filterByEnvelopeDate fetches envelopes for every message in bounded
// batches and keeps those whose date falls inside r. A batch whose
// envelope fetch fails is included wholesale rather than dropped.
func (s *imapSearchClient) filterByEnvelopeDate(folder string, total uint32, r Range) ([]string, error) {
	var ids []string
	for lo := uint32(1); lo <= total; lo += fetchBatchSize {
		hi := lo + fetchBatchSize - 1
		if hi > total {
			hi = total
		}
		var seqSet imap.SeqSet
		seqSet.AddRange(lo, hi)

		msgs, err := s.c.Fetch(seqSet, &imap.FetchOptions{Envelope: true, UID: true}).Collect()
		if err != nil {
			s.log.Warn().Err(err).Str("folder", folder).Uint32("from", lo).Uint32("to", hi).
				Msg("envelope batch failed, including whole batch")
			batch, uerr := s.fetchBatchUIDs(lo, hi)
			if uerr != nil {
				s.log.Error().Err(uerr).Str("folder", folder).Msg("batch unrecoverable, skipping")
				continue
			}
			ids = append(ids, batch...)
			continue
		}
		for _, msg := range msgs {
			var date time.Time
			if msg.Envelope != nil {
				date = msg.Envelope.Date
			}
			if r.ContainsMessage(date, !date.IsZero()) {
				ids = append(ids, strconv.FormatUint(uint64(msg.UID), 10))
			}
		}
	}
	return ids, nil
}

func (s *imapSearchClient) fetchBatchUIDs(lo, hi uint32) ([]string, error) {
	var seqSet imap.SeqSet
	seqSet.AddRange(lo, hi)
	msgs, err := s.c.Fetch(seqSet, &imap.FetchOptions{UID: true}).Collect()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		ids = append(ids, strconv.FormatUint(uint64(msg.UID), 10))
	}
	return ids, nil
}

// FetchMessage pulls the full raw message plus envelope headers.
func (s *imapSearchClient) FetchMessage(folder, id string) (*Message, error) {
	if _, err := s.selectFolder(folder); err != nil {
		return nil, err
	}
	uid64, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("bad message uid %q: %w", id, err)
	}
	var uidSet imap.UIDSet
	uidSet.AddNum(imap.UID(uid64))

	section := &imap.FetchItemBodySection{Peek: true}
	msgs, err := s.c.Fetch(uidSet, &imap.FetchOptions{
		Envelope:    true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{section},
	}).Collect()
	if err != nil {
		return nil, fmt.Errorf("FETCH uid %s in %s failed: %w", id, folder, err)
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("uid %s not found in %s", id, folder)
	}

	buf := msgs[0]
	msg := &Message{UID: id, Folder: folder, Raw: buf.FindBodySection(section)}
	if env := buf.Envelope; env != nil {
		msg.ID = env.MessageID
		msg.Subject = env.Subject
		msg.Date = env.Date
		if len(env.From) > 0 {
			msg.From = env.From[0].Addr()
		}
	}
	return msg, nil
}

func (s *imapSearchClient) Close() error {
	if err := s.c.Logout().Wait(); err != nil {
		// Logout is best-effort; drop the connection either way.
		s.c.Close()
		return err
	}
	return s.c.Close()
}

func (s *imapSearchClient) selectFolder(folder string) (*imap.SelectData, error) {
	if s.selected == folder && s.selData != nil {
		return s.selData, nil
	}
	sel, err := s.c.Select(folder, &imap.SelectOptions{ReadOnly: true}).Wait()
	if err != nil {
		return nil, fmt.Errorf("cannot select folder %s: %w", folder, err)
	}
	s.selected = folder
	s.selData = sel
	return sel, nil
}

func hasAttr(attrs []imap.MailboxAttr, want imap.MailboxAttr) bool {
	for _, a := range attrs {
		if a == want {
			return true
		}
	}
	return false
}

// underBase reports whether mailbox equals base or lives beneath it,
// comparing path segments case-insensitively. Bases are accepted with
// either the server delimiter or "/" between segments.
func underBase(mailbox, base, delim string) bool {
	mb := strings.Split(mailbox, delim)
	bs := strings.Split(strings.ReplaceAll(base, "/", delim), delim)
	if len(mb) < len(bs) {
		return false
	}
	for i, seg := range bs {
		if !strings.EqualFold(mb[i], seg) {
			return false
		}
	}
	return true
}
