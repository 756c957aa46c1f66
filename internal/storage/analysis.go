package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Analysis is the stored result of one contract analysis
type Analysis struct {
	ID              uuid.UUID
	ContractID      uuid.UUID
	RiskLevel       string
	Summary         string
	KeyTerms        []string
	RedFlags        []string
	FavorableTerms  []string
	Recommendations []string
	Confidence      float64
	CreatedAt       time.Time
}

// AnalysisRepository defines the interface for analysis storage operations
type AnalysisRepository interface {
	Create(ctx context.Context, analysis *Analysis) error
	GetLatestByContractID(ctx context.Context, contractID uuid.UUID) (*Analysis, error)
}

// PostgresAnalysisRepository implements AnalysisRepository using PostgreSQL text[] columns
type PostgresAnalysisRepository struct {
	db *sql.DB
}

// NewPostgresAnalysisRepository creates a new PostgresAnalysisRepository
func NewPostgresAnalysisRepository(db *sql.DB) *PostgresAnalysisRepository {
	return &PostgresAnalysisRepository{db: db}
}

// Create inserts a new analysis
func (r *PostgresAnalysisRepository) Create(ctx context.Context, analysis *Analysis) error {
	if analysis.ID == uuid.Nil {
		analysis.ID = uuid.New()
	}
	if analysis.CreatedAt.IsZero() {
		analysis.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO contract_analyses (id, contract_id, risk_level, summary, key_terms, red_flags,
			favorable_terms, recommendations, confidence, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(ctx, query,
		analysis.ID,
		analysis.ContractID,
		analysis.RiskLevel,
		analysis.Summary,
		pq.Array(nonNil(analysis.KeyTerms)),
		pq.Array(nonNil(analysis.RedFlags)),
		pq.Array(nonNil(analysis.FavorableTerms)),
		pq.Array(nonNil(analysis.Recommendations)),
		analysis.Confidence,
		analysis.CreatedAt,
	)

	return err
}

// GetLatestByContractID retrieves the most recent analysis of a contract
func (r *PostgresAnalysisRepository) GetLatestByContractID(ctx context.Context, contractID uuid.UUID) (*Analysis, error) {
	query := `
		SELECT id, contract_id, risk_level, summary, key_terms, red_flags,
			favorable_terms, recommendations, confidence, created_at
		FROM contract_analyses
		WHERE contract_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	analysis := &Analysis{}
	err := r.db.QueryRowContext(ctx, query, contractID).Scan(
		&analysis.ID,
		&analysis.ContractID,
		&analysis.RiskLevel,
		&analysis.Summary,
		pq.Array(&analysis.KeyTerms),
		pq.Array(&analysis.RedFlags),
		pq.Array(&analysis.FavorableTerms),
		pq.Array(&analysis.Recommendations),
		&analysis.Confidence,
		&analysis.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return analysis, nil
}

// nonNil keeps NOT NULL text[] columns from receiving NULL
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
