package store

import (
	"context"

	"github.com/nhle/lead-ingest/internal/model"
)

// Store defines the persistence interface for leads and their intake
// statistics.
type Store interface {
	// CreateLead persists a new lead and returns it with its assigned
	// row identifier.
	CreateLead(ctx context.Context, lead model.Lead) (model.Lead, error)

	// LeadExists reports whether a lead matching the natural key already
	// exists. A match on leadID alone or on email alone is sufficient.
	LeadExists(ctx context.Context, leadID int, email string) (bool, error)

	// PendingLeads returns up to limit leads whose welcome mail has not
	// been attempted yet, oldest first. limit <= 0 means no limit.
	PendingLeads(ctx context.Context, limit int) ([]model.Lead, error)

	// UpdateDeliveryStatus records the outcome of a welcome-mail attempt.
	UpdateDeliveryStatus(
		ctx context.Context, id string, status model.DeliveryStatus,
	) error

	// UpdateDailyStatistics recomputes the per-day lead counts from the
	// leads table and upserts them into the statistics table.
	UpdateDailyStatistics(ctx context.Context) error

	// DailyStatistics returns the per-day intake counts, oldest first.
	DailyStatistics(ctx context.Context) ([]model.DailyStat, error)

	Close() error
}
