package mailbox

import (
	"fmt"
	"strings"
)

// exchangeSearchClient reaches an Exchange account through its IMAP
// endpoint. The transport is plain IMAP; what differs is folder-path
// handling (users give slash-separated display paths, resolved
// case-insensitively) and the attachment qualification rule the
// protocol value selects downstream.
type exchangeSearchClient struct {
	*imapSearchClient
}

func (s *exchangeSearchClient) Protocol() Protocol { return ProtocolExchange }

// ListFolders resolves a slash-separated folder path against the real
// mailbox tree and returns it with all descendants, minus excluded
// names. An unresolvable path is an error that names the folders that
// do exist, since Exchange localizes well-known folder names.
func (s *exchangeSearchClient) ListFolders(base string, excluded map[string]struct{}) ([]string, error) {
	folders, err := s.imapSearchClient.ListFolders(base, excluded)
	if err != nil {
		return nil, err
	}
	if base != "" && len(folders) == 0 {
		all, lerr := s.imapSearchClient.ListFolders("", nil)
		if lerr != nil || len(all) == 0 {
			return nil, fmt.Errorf("folder path %q not found", base)
		}
		return nil, fmt.Errorf("folder path %q not found (have: %s)", base, strings.Join(all, ", "))
	}
	return folders, nil
}
