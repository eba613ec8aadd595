package mailbox

import (
	"bytes"
	"fmt"
	"strconv"

	gomessage "github.com/emersion/go-message"
	gomail "github.com/emersion/go-message/mail"
	"github.com/knadh/go-pop3"
	"github.com/rs/zerolog"
)

// pop3SearchClient treats the single POP3 maildrop as one folder named
// INBOX. POP3 has no server-side search, so date filtering always
// happens client-side from TOP-fetched headers. Message identifiers are
// the session's sequence numbers, valid only for this connection.
type pop3SearchClient struct {
	conn *pop3.Conn
	log  zerolog.Logger
}

func dialPOP3(acct Account, log zerolog.Logger) (*pop3SearchClient, error) {
	p := pop3.New(pop3.Opt{
		Host:       acct.Server,
		Port:       acct.Port,
		TLSEnabled: acct.UseSSL,
	})
	conn, err := p.NewConn()
	if err != nil {
		return nil, fmt.Errorf("connect to %s failed: %w", acct.Addr(), err)
	}
	if err := conn.Auth(acct.Email, acct.Password); err != nil {
		conn.Quit()
		return nil, fmt.Errorf("login failed: %w", err)
	}
	log.Debug().Str("server", acct.Addr()).Msg("POP3 session established")
	return &pop3SearchClient{conn: conn, log: log}, nil
}

func (s *pop3SearchClient) Protocol() Protocol { return ProtocolPOP3 }

func (s *pop3SearchClient) ListFolders(base string, excluded map[string]struct{}) ([]string, error) {
	if _, skip := excluded["INBOX"]; skip {
		return nil, nil
	}
	return []string{"INBOX"}, nil
}

// SearchMessages walks the whole maildrop, reading only headers via TOP.
// Messages whose Date header is missing, unparsable, or unfetchable are
// kept rather than dropped.
func (s *pop3SearchClient) SearchMessages(folder string, r Range) ([]string, error) {
	count, _, err := s.conn.Stat()
	if err != nil {
		return nil, fmt.Errorf("STAT failed: %w", err)
	}

	var ids []string
	for i := 1; i <= count; i++ {
		id := strconv.Itoa(i)
		if r.IsZero() {
			ids = append(ids, id)
			continue
		}
		entity, err := s.conn.Top(i, 0)
		if err != nil {
			s.log.Warn().Err(err).Int("msg", i).Msg("TOP failed, keeping message")
			ids = append(ids, id)
			continue
		}
		h := gomail.Header{Header: entity.Header}
		date, derr := h.Date()
		if r.ContainsMessage(date, derr == nil && !date.IsZero()) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *pop3SearchClient) FetchMessage(folder, id string) (*Message, error) {
	n, err := strconv.Atoi(id)
	if err != nil {
		return nil, fmt.Errorf("bad message id %q: %w", id, err)
	}
	buf, err := s.conn.RetrRaw(n)
	if err != nil {
		return nil, fmt.Errorf("RETR %d failed: %w", n, err)
	}
	raw := buf.Bytes()

	msg := &Message{UID: id, Folder: folder, Raw: raw}
	entity, err := gomessage.Read(bytes.NewReader(raw))
	if err != nil && !gomessage.IsUnknownCharset(err) || entity == nil {
		// Header parse trouble leaves the metadata empty; the raw
		// message is still usable downstream.
		s.log.Warn().Err(err).Int("msg", n).Msg("header parse failed")
		return msg, nil
	}
	h := gomail.Header{Header: entity.Header}
	msg.ID = h.Get("Message-Id")
	if subj, err := h.Subject(); err == nil {
		msg.Subject = subj
	} else {
		msg.Subject = h.Get("Subject")
	}
	if date, err := h.Date(); err == nil {
		msg.Date = date
	}
	if addrs, err := h.AddressList("From"); err == nil && len(addrs) > 0 {
		msg.From = addrs[0].Address
	} else {
		msg.From = h.Get("From")
	}
	return msg, nil
}

func (s *pop3SearchClient) Close() error {
	return s.conn.Quit()
}
