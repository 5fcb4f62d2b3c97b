package process_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/lead-ingest/internal/mailbox"
	"github.com/nhle/lead-ingest/internal/model"
	"github.com/nhle/lead-ingest/internal/process"
	"github.com/nhle/lead-ingest/tests/testutil"
)

// rawMessage wraps a plain-text body in a minimal RFC 2822 message.
func rawMessage(body string) []byte {
	return []byte(
		"From: forms@example.com\r\n" +
			"Subject: Neuer Lead\r\n" +
			"Mime-Version: 1.0\r\n" +
			"Content-Type: text/plain; charset=utf-8\r\n" +
			"\r\n" +
			body,
	)
}

func leadMessage(uid imap.UID, leadID int, email string) mailbox.Message {
	body := fmt.Sprintf(
		"Name: Doe, Jane\nGeschlecht: weiblich\nE-Mail: %s\nID: %d\nIP: 203.0.113.5",
		email, leadID,
	)
	return mailbox.Message{
		UID:  uid,
		Raw:  rawMessage(body),
		Date: time.Date(2024, 6, 14, 8, 0, 0, 0, time.UTC),
		From: "forms@example.com",
	}
}

// fakeMailbox implements process.Mailbox in memory.
type fakeMailbox struct {
	messages []mailbox.Message
	folders  []string
	moved    map[imap.UID]string
	seen     map[imap.UID]bool

	moveFailures int // fail this many Move calls, then succeed
	redialErr    error
	redials      int
}

func newFakeMailbox(messages ...mailbox.Message) *fakeMailbox {
	return &fakeMailbox{
		messages: messages,
		moved:    make(map[imap.UID]string),
		seen:     make(map[imap.UID]bool),
	}
}

func (f *fakeMailbox) EnsureFolders(_ context.Context, folders []string) error {
	f.folders = folders
	return nil
}

func (f *fakeMailbox) Unseen(context.Context) ([]mailbox.Message, error) {
	return f.messages, nil
}

func (f *fakeMailbox) Move(_ context.Context, uid imap.UID, folder string) error {
	if f.moveFailures > 0 {
		f.moveFailures--
		return errors.New("connection reset")
	}
	if _, dup := f.moved[uid]; dup {
		return fmt.Errorf("message %d already moved", uid)
	}
	f.moved[uid] = folder
	return nil
}

func (f *fakeMailbox) MarkSeen(_ context.Context, uid imap.UID) error {
	f.seen[uid] = true
	return nil
}

func (f *fakeMailbox) Redial(context.Context) error {
	f.redials++
	return f.redialErr
}

// fakeStore implements process.LeadStore in memory.
type fakeStore struct {
	leads     []model.Lead
	createErr error
	existsErr error
}

func (f *fakeStore) LeadExists(
	_ context.Context, leadID int, email string,
) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	for _, l := range f.leads {
		if l.LeadID == leadID || l.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) CreateLead(
	_ context.Context, lead model.Lead,
) (model.Lead, error) {
	if f.createErr != nil {
		return model.Lead{}, f.createErr
	}
	f.leads = append(f.leads, lead)
	return lead, nil
}

func TestRunPersistsNewLead(t *testing.T) {
	box := newFakeMailbox(leadMessage(1, 42, "jane@x.com"))
	st := &fakeStore{}

	summary, err := process.New(box, st, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, process.Summary{Total: 1, Processed: 1}, summary)
	assert.Equal(t, "Processed", box.moved[1])
	assert.True(t, box.seen[1])
	assert.Equal(t, process.OutcomeFolders, box.folders)

	require.Len(t, st.leads, 1)
	assert.Equal(t, 42, st.leads[0].LeadID)
	assert.Equal(t, "jane@x.com", st.leads[0].Email)
	assert.Equal(t, "Jane Doe", st.leads[0].Name)
	assert.Equal(t, "203.0.113.5", st.leads[0].SourceIP)
	assert.Equal(t, model.DeliveryPending, st.leads[0].DeliveryStatus)
}

func TestRunRoutesDuplicate(t *testing.T) {
	box := newFakeMailbox(leadMessage(1, 42, "jane@x.com"))
	st := &fakeStore{leads: []model.Lead{{LeadID: 42, Email: "jane@x.com"}}}

	summary, err := process.New(box, st, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, process.Summary{Total: 1, Duplicates: 1}, summary)
	assert.Equal(t, "Duplicate", box.moved[1])
	assert.True(t, box.seen[1])
	assert.Len(t, st.leads, 1)
}

func TestRunNaturalKeyOrSemantics(t *testing.T) {
	// A match on leadID alone is a duplicate.
	box := newFakeMailbox(leadMessage(1, 42, "different@x.com"))
	st := &fakeStore{leads: []model.Lead{{LeadID: 42, Email: "jane@x.com"}}}

	summary, err := process.New(box, st, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Duplicates)

	// Likewise for email alone.
	box = newFakeMailbox(leadMessage(1, 7, "jane@x.com"))
	st = &fakeStore{leads: []model.Lead{{LeadID: 42, Email: "jane@x.com"}}}

	summary, err = process.New(box, st, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Duplicates)
}

func TestRunRoutesExtractionFailure(t *testing.T) {
	bad := mailbox.Message{UID: 1, Raw: []byte(" broken\r\n\r\n")}
	box := newFakeMailbox(bad, leadMessage(2, 42, "jane@x.com"))
	st := &fakeStore{}

	summary, err := process.New(box, st, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, process.Summary{Total: 2, Processed: 1, Errors: 1}, summary)
	assert.Equal(t, "ProcessingError", box.moved[1])
	assert.True(t, box.seen[1])
	assert.Equal(t, "Processed", box.moved[2])
}

func TestRunRoutesPersistenceFailure(t *testing.T) {
	box := newFakeMailbox(leadMessage(1, 42, "jane@x.com"))
	st := &fakeStore{createErr: errors.New("disk full")}

	summary, err := process.New(box, st, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, process.Summary{Total: 1, Errors: 1}, summary)
	assert.Equal(t, "DatabaseError", box.moved[1])
	assert.True(t, box.seen[1])
}

func TestRunRoutesDedupeCheckFailure(t *testing.T) {
	box := newFakeMailbox(leadMessage(1, 42, "jane@x.com"))
	st := &fakeStore{existsErr: errors.New("db gone")}

	summary, err := process.New(box, st, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Errors)
	assert.Equal(t, "DatabaseError", box.moved[1])
}

func TestRunContinuesAfterStoreErrors(t *testing.T) {
	// Store failure on one message never aborts the rest of the run.
	box := newFakeMailbox(
		leadMessage(1, 1, "a@x.com"),
		leadMessage(2, 2, "b@x.com"),
		leadMessage(3, 3, "c@x.com"),
	)
	st := &fakeStore{createErr: errors.New("constraint violation")}

	summary, err := process.New(box, st, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 3, summary.Errors)
	for uid := imap.UID(1); uid <= 3; uid++ {
		assert.Equal(t, "DatabaseError", box.moved[uid])
		assert.True(t, box.seen[uid])
	}
}

func TestRunRetriesRoutingAfterRedial(t *testing.T) {
	box := newFakeMailbox(leadMessage(1, 42, "jane@x.com"))
	box.moveFailures = 1
	st := &fakeStore{}

	summary, err := process.New(box, st, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, box.redials)
	assert.Equal(t, 1, summary.Total)
	// The retry re-runs the whole transition; the first attempt already
	// persisted the lead, so the dedupe check turns it into a duplicate.
	assert.Equal(t, "Duplicate", box.moved[1])
	assert.Len(t, st.leads, 1)
}

func TestRunAbortsWhenRedialFails(t *testing.T) {
	box := newFakeMailbox(
		leadMessage(1, 1, "a@x.com"),
		leadMessage(2, 2, "b@x.com"),
	)
	box.moveFailures = 1
	box.redialErr = errors.New("no route to host")
	st := &fakeStore{}

	summary, err := process.New(box, st, nil).Run(context.Background())
	require.Error(t, err)

	// The run stopped before the failed message was counted; the second
	// message stays unseen for the next run.
	assert.Equal(t, 0, summary.Total)
	assert.Empty(t, box.moved)
}

func TestIdempotentDedupeAcrossRuns(t *testing.T) {
	st := testutil.NewTestStore(t)
	ctx := context.Background()

	// First run persists the lead.
	box := newFakeMailbox(leadMessage(1, 42, "jane@x.com"))
	summary, err := process.New(box, st, nil).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Processed)

	// The same message in a later run is routed to Duplicate and no
	// second record is created.
	box = newFakeMailbox(leadMessage(9, 42, "jane@x.com"))
	summary, err = process.New(box, st, nil).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Duplicates)
	assert.Equal(t, "Duplicate", box.moved[9])

	exists, err := st.LeadExists(ctx, 42, "jane@x.com")
	require.NoError(t, err)
	assert.True(t, exists)

	pending, err := st.PendingLeads(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}
