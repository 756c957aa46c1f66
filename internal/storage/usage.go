package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// EventContractAnalysis is recorded once per completed analysis
const EventContractAnalysis = "contract_analysis"

// UsageEvent is one metered action of a user
type UsageEvent struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	EventType  string
	ContractID uuid.NullUUID
	WordCount  int
	RiskLevel  string
	CreatedAt  time.Time
}

// UsageRepository defines the interface for usage metering
type UsageRepository interface {
	Record(ctx context.Context, event *UsageEvent) error
	CountSince(ctx context.Context, userID uuid.UUID, eventType string, since time.Time) (int, error)
}

// PostgresUsageRepository implements UsageRepository using PostgreSQL
type PostgresUsageRepository struct {
	db *sql.DB
}

// NewPostgresUsageRepository creates a new PostgresUsageRepository
func NewPostgresUsageRepository(db *sql.DB) *PostgresUsageRepository {
	return &PostgresUsageRepository{db: db}
}

// Record inserts a usage event
func (r *PostgresUsageRepository) Record(ctx context.Context, event *UsageEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO usage_events (id, user_id, event_type, contract_id, word_count, risk_level, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		event.ID,
		event.UserID,
		event.EventType,
		event.ContractID,
		event.WordCount,
		event.RiskLevel,
		event.CreatedAt,
	)

	return err
}

// CountSince counts a user's events of one type created at or after since
func (r *PostgresUsageRepository) CountSince(ctx context.Context, userID uuid.UUID, eventType string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM usage_events
		WHERE user_id = $1 AND event_type = $2 AND created_at >= $3
	`

	var n int
	if err := r.db.QueryRowContext(ctx, query, userID, eventType, since).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// MonthStart returns midnight UTC on the first day of t's month
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
