package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/lead-ingest/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// CreateLead inserts a new lead row. If the lead has no row ID, a new
// UUID is generated.
func (s *SQLiteStore) CreateLead(
	ctx context.Context, lead model.Lead,
) (model.Lead, error) {
	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}
	if lead.DeliveryStatus == "" {
		lead.DeliveryStatus = model.DeliveryPending
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO leads (
			id, lead_id, email,
			position, name, gender, address,
			birth_date, phone, birth_place,
			source_ip, input_key, received_at, delivery_status
		) VALUES (
			?, ?, ?,
			?, ?, ?, ?,
			?, ?, ?,
			?, ?, ?, ?
		)`,
		lead.ID, lead.LeadID, lead.Email,
		lead.Position, lead.Name, string(lead.Gender), lead.Address,
		lead.BirthDate.UTC(), lead.Phone, lead.BirthPlace,
		lead.SourceIP, lead.InputKey, lead.ReceivedAt.UTC(),
		string(lead.DeliveryStatus),
	)
	if err != nil {
		return model.Lead{}, fmt.Errorf("creating lead %d: %w", lead.LeadID, err)
	}

	return lead, nil
}

// LeadExists runs a fresh OR query over the two natural-key fields. No
// caching: two messages in the same batch can represent the same lead.
func (s *SQLiteStore) LeadExists(
	ctx context.Context, leadID int, email string,
) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM leads WHERE lead_id = ? OR email = ?",
		leadID, email,
	)
	if err != nil {
		return false, fmt.Errorf("checking lead existence: %w", err)
	}
	return count > 0, nil
}

// PendingLeads returns leads awaiting their welcome mail, oldest first.
func (s *SQLiteStore) PendingLeads(
	ctx context.Context, limit int,
) ([]model.Lead, error) {
	query := `
		SELECT * FROM leads
		WHERE delivery_status = ?
		ORDER BY received_at`
	args := []interface{}{string(model.DeliveryPending)}

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var leads []model.Lead
	if err := s.db.SelectContext(ctx, &leads, query, args...); err != nil {
		return nil, fmt.Errorf("querying pending leads: %w", err)
	}

	return leads, nil
}

// UpdateDeliveryStatus sets the delivery status of a single lead row.
func (s *SQLiteStore) UpdateDeliveryStatus(
	ctx context.Context, id string, status model.DeliveryStatus,
) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE leads SET delivery_status = ? WHERE id = ?",
		string(status), id,
	)
	if err != nil {
		return fmt.Errorf("updating delivery status for lead %s: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("updating delivery status: no lead with id %s", id)
	}

	return nil
}

// UpdateDailyStatistics aggregates leads by the calendar day (UTC) they
// were received and upserts the counts into the statistics table.
func (s *SQLiteStore) UpdateDailyStatistics(ctx context.Context) error {
	var received []time.Time
	err := s.db.SelectContext(ctx, &received, "SELECT received_at FROM leads")
	if err != nil {
		return fmt.Errorf("reading lead dates: %w", err)
	}

	counts := make(map[string]int, len(received))
	for _, t := range received {
		counts[t.UTC().Format("2006-01-02")]++
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning statistics transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO statistics (date, count) VALUES (?, ?)
		ON CONFLICT(date) DO UPDATE SET count = excluded.count`,
	)
	if err != nil {
		return fmt.Errorf("preparing statistics upsert: %w", err)
	}
	defer stmt.Close()

	for date, count := range counts {
		if _, err := stmt.ExecContext(ctx, date, count); err != nil {
			return fmt.Errorf("upserting statistics for %s: %w", date, err)
		}
	}

	return tx.Commit()
}

// DailyStatistics returns all per-day intake counts, oldest first.
func (s *SQLiteStore) DailyStatistics(
	ctx context.Context,
) ([]model.DailyStat, error) {
	var stats []model.DailyStat
	err := s.db.SelectContext(ctx, &stats,
		"SELECT date, count FROM statistics ORDER BY date",
	)
	if err != nil {
		return nil, fmt.Errorf("querying statistics: %w", err)
	}
	return stats, nil
}
