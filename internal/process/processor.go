// Package process drives each unseen inbound message exactly once through
// extract → dedupe-check → persist-or-skip → route to outcome folder →
// mark read. Every message reaches exactly one terminal outcome; no error
// from one message may abort the rest of the run, except connectivity
// failures that make the mailbox session unusable.
package process

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/emersion/go-imap/v2"

	"github.com/nhle/lead-ingest/internal/extract"
	"github.com/nhle/lead-ingest/internal/mailbox"
	"github.com/nhle/lead-ingest/internal/model"
)

// Outcome is the terminal classification of one message's processing
// attempt. Its string value is also the mailbox folder the message is
// routed to.
type Outcome string

const (
	// OutcomeProcessed means a new lead record was persisted.
	OutcomeProcessed Outcome = "Processed"

	// OutcomeDuplicate means a lead with the same natural key already
	// exists; no record was created.
	OutcomeDuplicate Outcome = "Duplicate"

	// OutcomeProcessingError means the message body could not be decoded.
	OutcomeProcessingError Outcome = "ProcessingError"

	// OutcomeDatabaseError means the store rejected the dedupe check or
	// the create.
	OutcomeDatabaseError Outcome = "DatabaseError"
)

// Folder returns the mailbox folder for this outcome.
func (o Outcome) Folder() string { return string(o) }

// OutcomeFolders is the fixed folder universe; the session creates these
// at run start if the server does not have them yet.
var OutcomeFolders = []string{
	string(OutcomeProcessed),
	string(OutcomeDuplicate),
	string(OutcomeProcessingError),
	string(OutcomeDatabaseError),
}

// Mailbox is the driver surface the processor needs. *mailbox.Session
// satisfies it; tests inject fakes.
type Mailbox interface {
	EnsureFolders(ctx context.Context, folders []string) error
	Unseen(ctx context.Context) ([]mailbox.Message, error)
	Move(ctx context.Context, uid imap.UID, folder string) error
	MarkSeen(ctx context.Context, uid imap.UID) error
	Redial(ctx context.Context) error
}

// LeadStore is the persistence surface the processor needs: the dedupe
// check over the natural key and the create.
type LeadStore interface {
	LeadExists(ctx context.Context, leadID int, email string) (bool, error)
	CreateLead(ctx context.Context, lead model.Lead) (model.Lead, error)
}

// Summary tallies the outcomes of one run.
type Summary struct {
	Total      int
	Processed  int
	Duplicates int
	Errors     int
}

// Processor orchestrates one batch of unseen messages sequentially, in
// mailbox order. Sequential processing keeps the single IMAP session's
// move/flag operations strictly ordered per message and avoids the
// check-then-act race two concurrent messages with the same natural key
// would otherwise have.
type Processor struct {
	box       Mailbox
	store     LeadStore
	extractor *extract.Extractor
	log       *slog.Logger
}

// New creates a Processor over the given session and store.
func New(box Mailbox, store LeadStore, log *slog.Logger) *Processor {
	if log == nil {
		log = slog.Default()
	}
	return &Processor{
		box:       box,
		store:     store,
		extractor: extract.New(),
		log:       log,
	}
}

// Run processes every unseen message once. A message whose routing fails
// is retried once on a freshly reestablished connection; if that fails
// too the run terminates, leaving the remaining messages unseen for the
// next run.
func (p *Processor) Run(ctx context.Context) (Summary, error) {
	var summary Summary

	if err := p.box.EnsureFolders(ctx, OutcomeFolders); err != nil {
		return summary, fmt.Errorf("preparing outcome folders: %w", err)
	}

	messages, err := p.box.Unseen(ctx)
	if err != nil {
		return summary, fmt.Errorf("listing unseen messages: %w", err)
	}

	for _, msg := range messages {
		outcome, err := p.processOne(ctx, msg)
		if err != nil {
			p.log.Warn("routing failed, reconnecting",
				"uid", msg.UID, "error", err)

			if rerr := p.box.Redial(ctx); rerr != nil {
				return summary, fmt.Errorf(
					"connection lost at message %d: %w", msg.UID, rerr)
			}
			outcome, err = p.processOne(ctx, msg)
			if err != nil {
				return summary, fmt.Errorf(
					"routing message %d after reconnect: %w", msg.UID, err)
			}
		}

		summary.Total++
		switch outcome {
		case OutcomeProcessed:
			summary.Processed++
		case OutcomeDuplicate:
			summary.Duplicates++
		default:
			summary.Errors++
		}

		p.log.Info("message handled", "uid", msg.UID, "outcome", outcome)
	}

	return summary, nil
}

// processOne classifies a single message and routes it. The returned
// error is run-level: it means the mailbox session failed while routing,
// not that the message itself was bad.
func (p *Processor) processOne(
	ctx context.Context, msg mailbox.Message,
) (Outcome, error) {
	outcome := p.classify(ctx, msg)
	if err := p.route(ctx, msg.UID, outcome); err != nil {
		return outcome, err
	}
	return outcome, nil
}

// classify is the per-message transition function. Each failure path maps
// to exactly one terminal outcome; it never returns an error.
func (p *Processor) classify(ctx context.Context, msg mailbox.Message) Outcome {
	lead, err := p.extractor.ExtractLead(msg.Raw, extract.Envelope{
		From: msg.From,
		Date: msg.Date,
	})
	if err != nil {
		p.log.Error("extraction failed", "uid", msg.UID, "error", err)
		return OutcomeProcessingError
	}

	exists, err := p.store.LeadExists(ctx, lead.LeadID, lead.Email)
	if err != nil {
		p.log.Error("dedupe check failed", "uid", msg.UID, "error", err)
		return OutcomeDatabaseError
	}
	if exists {
		return OutcomeDuplicate
	}

	if _, err := p.store.CreateLead(ctx, lead); err != nil {
		p.log.Error("persisting lead failed",
			"uid", msg.UID, "lead_id", lead.LeadID, "error", err)
		return OutcomeDatabaseError
	}

	return OutcomeProcessed
}

// route moves the message to its outcome folder and marks it read. A
// mark-seen failure after a successful move is not fatal: the message
// already left the inbox, so it cannot be fetched again.
func (p *Processor) route(
	ctx context.Context, uid imap.UID, outcome Outcome,
) error {
	if err := p.box.Move(ctx, uid, outcome.Folder()); err != nil {
		return err
	}

	if err := p.box.MarkSeen(ctx, uid); err != nil {
		p.log.Debug("marking moved message seen", "uid", uid, "error", err)
	}

	return nil
}
