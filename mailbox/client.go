package mailbox

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Protocol selects the mailbox access variant.
type Protocol string

const (
	ProtocolIMAP     Protocol = "IMAP"
	ProtocolPOP3     Protocol = "POP3"
	ProtocolExchange Protocol = "EXCHANGE" // Exchange reached over its IMAP endpoint
)

// Account holds the connection parameters for one mail account.
type Account struct {
	Protocol Protocol
	Server   string
	Port     int
	Email    string
	Password string
	UseSSL   bool
}

// Addr returns the host:port dial address.
func (a Account) Addr() string {
	return fmt.Sprintf("%s:%d", a.Server, a.Port)
}

// Message is one candidate message pulled from the mailbox. Raw carries the
// full RFC 5322 bytes so the message can later be persisted as an .eml
// companion file. A zero Date means the header was absent or unparsable.
type Message struct {
	ID      string // Message-ID header, may be empty
	UID     string // protocol-level identifier within Folder
	Subject string
	From    string
	Date    time.Time
	Folder  string
	Raw     []byte
}

// HasDate reports whether the message carried a parsable Date header.
func (m *Message) HasDate() bool {
	return !m.Date.IsZero()
}

// SearchClient abstracts mailbox traversal over IMAP, POP3 and
// Exchange-over-IMAP. Implementations are not safe for concurrent use;
// one search run owns the client exclusively and must Close it on every
// exit path.
type SearchClient interface {
	// Protocol identifies the variant, which decides attachment
	// qualification rules downstream.
	Protocol() Protocol

	// ListFolders returns the folders to traverse, starting at base
	// (empty = whole account / INBOX for POP3), recursing into children
	// and skipping any folder whose name is in excluded. Exclusion is by
	// exact folder name, not full path.
	ListFolders(base string, excluded map[string]struct{}) ([]string, error)

	// SearchMessages returns identifiers of messages in folder whose date
	// falls inside r. Server-side filtering is used where the protocol
	// supports it; otherwise all messages are enumerated and filtered by
	// their Date header, keeping messages with no parsable date.
	SearchMessages(folder string, r Range) ([]string, error)

	// FetchMessage retrieves the full raw message and decoded headers.
	FetchMessage(folder, id string) (*Message, error)

	Close() error
}

// fetchBatchSize bounds how many messages a single protocol round-trip
// may cover, keeping memory and response sizes in check.
const fetchBatchSize = 200

// ConnError marks connection and authentication failures, which are
// fatal for a search run (unlike per-message errors, which are skipped).
type ConnError struct {
	Server string
	Err    error
}

func (e *ConnError) Error() string { return fmt.Sprintf("connection to %s: %v", e.Server, e.Err) }
func (e *ConnError) Unwrap() error { return e.Err }

// Dial opens an authenticated session for the account and returns the
// protocol-appropriate client.
func Dial(acct Account, log zerolog.Logger) (SearchClient, error) {
	var (
		client SearchClient
		err    error
	)
	switch acct.Protocol {
	case ProtocolPOP3:
		client, err = dialPOP3(acct, log)
	case ProtocolExchange:
		var c *imapSearchClient
		if c, err = dialIMAP(acct, log); err == nil {
			client = &exchangeSearchClient{imapSearchClient: c}
		}
	case ProtocolIMAP, "":
		client, err = dialIMAP(acct, log)
	default:
		return nil, fmt.Errorf("unsupported protocol %q", acct.Protocol)
	}
	if err != nil {
		return nil, &ConnError{Server: acct.Addr(), Err: err}
	}
	return client, nil
}
