package mailbox

import (
	"fmt"
	"time"

	"github.com/emersion/go-imap/v2"
)

// Message is one unseen inbound message as fetched from the mailbox.
type Message struct {
	// UID identifies the message within the selected mailbox.
	UID imap.UID

	// Raw is the full RFC 2822 message source.
	Raw []byte

	// Date is the envelope date; zero when the server reported none.
	Date time.Time

	// From is the envelope sender address.
	From string
}

// Config holds the connection settings for one mailbox session.
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	TLS      bool

	// Mailbox is the folder scanned for unseen messages.
	Mailbox string
}

// AuthError indicates that authentication failed for the mailbox account.
type AuthError struct {
	Username string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed for %s: %v", e.Username, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }
