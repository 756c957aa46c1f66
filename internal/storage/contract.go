package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ErrDuplicateContract is returned by Create when the user already stored a
// contract with the same content hash.
var ErrDuplicateContract = errors.New("contract already exists")

const uniqueViolation = "23505"

// Contract processing states
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Contract represents an uploaded contract
type Contract struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	FileName    string
	Content     string
	ContentHash string
	WordCount   int
	Status      string
	RiskScore   sql.NullInt64
	AnalyzedAt  sql.NullTime
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ContractRepository defines the interface for contract storage operations
type ContractRepository interface {
	Create(ctx context.Context, contract *Contract) error
	GetByID(ctx context.Context, id uuid.UUID) (*Contract, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) ([]*Contract, error)
	GetByHash(ctx context.Context, userID uuid.UUID, hash string) (*Contract, error)
	MarkCompleted(ctx context.Context, id uuid.UUID, riskScore int) error
	MarkFailed(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// PostgresContractRepository implements ContractRepository using PostgreSQL
type PostgresContractRepository struct {
	db *sql.DB
}

// NewPostgresContractRepository creates a new PostgresContractRepository
func NewPostgresContractRepository(db *sql.DB) *PostgresContractRepository {
	return &PostgresContractRepository{db: db}
}

const contractColumns = `id, user_id, file_name, content, content_hash, word_count, status, risk_score, analyzed_at, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanContract(s scanner) (*Contract, error) {
	c := &Contract{}
	err := s.Scan(
		&c.ID,
		&c.UserID,
		&c.FileName,
		&c.Content,
		&c.ContentHash,
		&c.WordCount,
		&c.Status,
		&c.RiskScore,
		&c.AnalyzedAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	return c, err
}

// Create inserts a new contract. Status defaults to processing.
func (r *PostgresContractRepository) Create(ctx context.Context, contract *Contract) error {
	if contract.ID == uuid.Nil {
		contract.ID = uuid.New()
	}
	if contract.Status == "" {
		contract.Status = StatusProcessing
	}

	now := time.Now()
	if contract.CreatedAt.IsZero() {
		contract.CreatedAt = now
	}
	if contract.UpdatedAt.IsZero() {
		contract.UpdatedAt = now
	}

	query := `
		INSERT INTO contracts (id, user_id, file_name, content, content_hash, word_count, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		contract.ID,
		contract.UserID,
		contract.FileName,
		contract.Content,
		contract.ContentHash,
		contract.WordCount,
		contract.Status,
		contract.CreatedAt,
		contract.UpdatedAt,
	)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrDuplicateContract
	}
	return err
}

// GetByID retrieves a contract by its ID
func (r *PostgresContractRepository) GetByID(ctx context.Context, id uuid.UUID) (*Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE id = $1`

	contract, err := scanContract(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return contract, nil
}

// GetByUserID retrieves all contracts of a user, newest first
func (r *PostgresContractRepository) GetByUserID(ctx context.Context, userID uuid.UUID) ([]*Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contracts []*Contract
	for rows.Next() {
		contract, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		contracts = append(contracts, contract)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return contracts, nil
}

// GetByHash retrieves a user's contract by content hash
func (r *PostgresContractRepository) GetByHash(ctx context.Context, userID uuid.UUID, hash string) (*Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE user_id = $1 AND content_hash = $2`

	contract, err := scanContract(r.db.QueryRowContext(ctx, query, userID, hash))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return contract, nil
}

// MarkCompleted stores the numeric risk score and the analysis time
func (r *PostgresContractRepository) MarkCompleted(ctx context.Context, id uuid.UUID, riskScore int) error {
	now := time.Now()

	query := `
		UPDATE contracts
		SET status = $2, risk_score = $3, analyzed_at = $4, updated_at = $4
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, id, StatusCompleted, riskScore, now)
	return err
}

// MarkFailed flags a contract whose analysis could not be stored
func (r *PostgresContractRepository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE contracts SET status = $2, updated_at = $3 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, StatusFailed, time.Now())
	return err
}

// Delete removes a contract. Analyses, sections and usage links cascade.
func (r *PostgresContractRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM contracts WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}
