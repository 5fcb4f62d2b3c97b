package model

import "time"

// Gender is the normalized salutation category of a lead.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// DeliveryStatus tracks whether the welcome mail for a lead has been sent.
// Leads start as pending; only the notification sender moves them on.
type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "pending"
	DeliverySent    DeliveryStatus = "sent"
	DeliveryFailed  DeliveryStatus = "failed"
)

// Lead is the structured record extracted from one inbound message.
//
// A lead is uniquely identified by the (LeadID, Email) pair: a match on
// either field alone is enough to call two leads the same lead. Records
// are immutable once persisted except for DeliveryStatus.
type Lead struct {
	// ID is the internal row identifier assigned by the store.
	ID string `db:"id"`

	// LeadID is the numeric identifier carried in the message body.
	// Zero when the field was absent or unparsable.
	LeadID int `db:"lead_id"`

	// Email is the lead's address: the labeled body field if present and
	// valid, else the envelope sender, else a fixed placeholder. Never empty
	// because it participates in the dedupe key.
	Email string `db:"email"`

	// Position is the desired position stated in the message.
	Position string `db:"position"`

	// Name is the lead's full name composed as "First Last".
	Name string `db:"name"`

	Gender Gender `db:"gender"`

	// Address is the postal address as written in the message.
	Address string `db:"address"`

	// BirthDate falls back to the extraction time when the field
	// was absent or unparsable.
	BirthDate time.Time `db:"birth_date"`

	Phone      string `db:"phone"`
	BirthPlace string `db:"birth_place"`

	// SourceIP is the submitter's IP literal, "0.0.0.0" when invalid.
	SourceIP string `db:"source_ip"`

	// InputKey is the opaque correlation token from the submission form.
	InputKey string `db:"input_key"`

	// ReceivedAt is the message's envelope date, else the extraction time.
	ReceivedAt time.Time `db:"received_at"`

	DeliveryStatus DeliveryStatus `db:"delivery_status"`
}

// LastName returns the final word of the composed name, used for the
// salutation in outbound mail.
func (l Lead) LastName() string {
	name := l.Name
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == ' ' {
			return name[i+1:]
		}
	}
	return name
}

// DailyStat is one row of the per-day lead intake statistics.
type DailyStat struct {
	// Date is the calendar day in YYYY-MM-DD form.
	Date string `db:"date"`

	// Count is the number of leads received on that day.
	Count int `db:"count"`
}
