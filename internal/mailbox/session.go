// Package mailbox wraps go-imap v2 behind the small driver surface the
// processing loop needs: enumerate unseen messages, move a message to an
// outcome folder, and mark it read. A Session holds one authenticated
// IMAP connection scoped to a run; callers must Close it on every exit
// path.
package mailbox

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

// Session is a single authenticated IMAP connection with the configured
// mailbox selected. It is not safe for concurrent use: IMAP does not
// tolerate interleaved commands on one connection.
type Session struct {
	cfg    Config
	client *imapclient.Client
}

// Dial connects to the IMAP server, authenticates, and selects the
// configured mailbox. The caller is responsible for calling Close on the
// returned session.
func Dial(_ context.Context, cfg Config) (*Session, error) {
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}

	client, err := connect(cfg)
	if err != nil {
		return nil, err
	}

	return &Session{cfg: cfg, client: client}, nil
}

// connect establishes and authenticates a single IMAP connection and
// selects the configured mailbox.
func connect(cfg Config) (*imapclient.Client, error) {
	addr := cfg.Host + ":" + cfg.Port

	var client *imapclient.Client
	var err error

	if cfg.TLS {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := client.Login(cfg.Username, cfg.Password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, &AuthError{Username: cfg.Username, Err: err}
	}

	if _, err := client.Select(cfg.Mailbox, nil).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, fmt.Errorf("selecting %s: %w", cfg.Mailbox, err)
	}

	return client, nil
}

// Close logs out and releases the connection.
func (s *Session) Close() error {
	if s.client == nil {
		return nil
	}
	err := s.client.Logout().Wait()
	s.client = nil
	if err != nil {
		return fmt.Errorf("logging out: %w", err)
	}
	return nil
}

// Redial drops the current connection and establishes a fresh one. Used
// after a mid-run connectivity failure; the run aborts if this fails too.
func (s *Session) Redial(_ context.Context) error {
	if s.client != nil {
		_ = s.client.Logout().Wait()
		s.client = nil
	}

	client, err := connect(s.cfg)
	if err != nil {
		return fmt.Errorf("reestablishing IMAP session: %w", err)
	}

	s.client = client
	return nil
}

// EnsureFolders creates the given folders on the server if they do not
// exist yet. Servers report an existing folder as an error, which is
// ignored.
func (s *Session) EnsureFolders(_ context.Context, folders []string) error {
	for _, folder := range folders {
		err := s.client.Create(folder, nil).Wait()
		if err == nil {
			continue
		}
		if strings.Contains(strings.ToLower(err.Error()), "exist") {
			continue
		}
		// Some servers use ALREADYEXISTS without the word in the text.
		var imapErr *imap.Error
		if errors.As(err, &imapErr) &&
			imapErr.Code == imap.ResponseCodeAlreadyExists {
			continue
		}
		return fmt.Errorf("creating folder %s: %w", folder, err)
	}
	return nil
}

// Unseen enumerates the unseen messages in the selected mailbox and
// fetches their full source. Messages are returned in mailbox order.
func (s *Session) Unseen(_ context.Context) ([]Message, error) {
	criteria := &imap.SearchCriteria{
		NotFlag: []imap.Flag{imap.FlagSeen},
	}

	searchData, err := s.client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching unseen messages: %w", err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}

	uidSet := imap.UIDSetNum(uids...)

	// Peek so that fetching does not set \Seen; the processing loop marks
	// messages read only after routing them.
	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOpts := &imap.FetchOptions{
		Envelope:    true,
		Flags:       true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := s.client.Fetch(uidSet, fetchOpts)
	defer fetchCmd.Close()

	var messages []Message
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		buf, err := msg.Collect()
		if err != nil {
			continue
		}

		messages = append(messages, messageFromBuffer(buf, bodySection))
	}

	if err := fetchCmd.Close(); err != nil {
		return messages, fmt.Errorf("fetching unseen messages: %w", err)
	}

	return messages, nil
}

// Move moves the message to the given folder.
func (s *Session) Move(_ context.Context, uid imap.UID, folder string) error {
	uidSet := imap.UIDSetNum(uid)

	if _, err := s.client.Move(uidSet, folder).Wait(); err != nil {
		return fmt.Errorf("moving message %d to %s: %w", uid, folder, err)
	}
	return nil
}

// MarkSeen sets the \Seen flag on the message.
func (s *Session) MarkSeen(_ context.Context, uid imap.UID) error {
	uidSet := imap.UIDSetNum(uid)

	storeCmd := s.client.Store(uidSet, &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagSeen},
	}, nil)

	if err := storeCmd.Close(); err != nil {
		return fmt.Errorf("marking message %d seen: %w", uid, err)
	}
	return nil
}

// messageFromBuffer extracts a Message from a FetchMessageBuffer.
func messageFromBuffer(
	buf *imapclient.FetchMessageBuffer,
	section *imap.FetchItemBodySection,
) Message {
	msg := Message{
		UID: buf.UID,
		Raw: buf.FindBodySection(section),
	}

	if buf.Envelope != nil {
		msg.Date = buf.Envelope.Date
		if len(buf.Envelope.From) > 0 {
			msg.From = buf.Envelope.From[0].Addr()
		}
	}

	return msg
}
