// Package notify sends the templated welcome mail to freshly persisted
// leads and is the only component that moves a lead's delivery status
// past pending.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"gopkg.in/gomail.v2"

	"github.com/nhle/lead-ingest/internal/model"
)

// LeadStore is the persistence surface the sender needs.
type LeadStore interface {
	PendingLeads(ctx context.Context, limit int) ([]model.Lead, error)
	UpdateDeliveryStatus(
		ctx context.Context, id string, status model.DeliveryStatus,
	) error
}

// Sender delivers welcome mail over SMTP.
type Sender struct {
	dialer       *gomail.Dialer
	from         string
	brochurePath string
	store        LeadStore
	log          *slog.Logger
}

// NewSender creates a Sender using the given SMTP settings. brochurePath
// may be empty to send without an attachment.
func NewSender(
	smtp model.SMTPConfig,
	brochurePath string,
	store LeadStore,
	log *slog.Logger,
) *Sender {
	if log == nil {
		log = slog.Default()
	}
	return &Sender{
		dialer: gomail.NewDialer(
			smtp.Host, smtp.Port, smtp.Username, smtp.Password,
		),
		from:         smtp.From,
		brochurePath: brochurePath,
		store:        store,
		log:          log,
	}
}

// SendPending delivers the welcome mail for up to batchSize pending
// leads. Each lead's status is set to sent or failed exactly once; a
// failed delivery never stops the batch.
func (s *Sender) SendPending(
	ctx context.Context, batchSize int,
) (sent, failed int, err error) {
	leads, err := s.store.PendingLeads(ctx, batchSize)
	if err != nil {
		return 0, 0, fmt.Errorf("loading pending leads: %w", err)
	}

	for _, lead := range leads {
		if sendErr := s.send(lead); sendErr != nil {
			failed++
			s.log.Error("sending welcome mail failed",
				"lead", lead.ID, "email", lead.Email, "error", sendErr)
			if err := s.store.UpdateDeliveryStatus(
				ctx, lead.ID, model.DeliveryFailed,
			); err != nil {
				return sent, failed, err
			}
			continue
		}

		sent++
		if err := s.store.UpdateDeliveryStatus(
			ctx, lead.ID, model.DeliverySent,
		); err != nil {
			return sent, failed, err
		}
	}

	return sent, failed, nil
}

// send composes and delivers the welcome mail for one lead.
func (s *Sender) send(lead model.Lead) error {
	subject, body, err := Render(lead)
	if err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", lead.Email)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if s.brochurePath != "" {
		m.Attach(s.brochurePath, gomail.Rename("product_brochure.pdf"))
	}

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("sending mail to %s: %w", lead.Email, err)
	}

	return nil
}
