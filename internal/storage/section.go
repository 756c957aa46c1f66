package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// Section is an extracted contract clause with its embedding
type Section struct {
	ID          uuid.UUID
	ContractID  uuid.UUID
	Text        string
	SectionType string
	Position    int
	Embedding   pgvector.Vector
	CreatedAt   time.Time
}

// SectionRepository defines the interface for clause storage and precedent search
type SectionRepository interface {
	CreateBatch(ctx context.Context, sections []*Section) error
	GetByContractID(ctx context.Context, contractID uuid.UUID) ([]*Section, error)
	FindSimilar(ctx context.Context, userID uuid.UUID, embedding pgvector.Vector, limit int, threshold float64) ([]*SectionWithSimilarity, error)
	DeleteByContractID(ctx context.Context, contractID uuid.UUID) error
}

// SectionWithSimilarity represents a section with its similarity score
type SectionWithSimilarity struct {
	Section    *Section
	FileName   string
	Similarity float64
}

// PostgresSectionRepository implements SectionRepository using PostgreSQL with pgvector
type PostgresSectionRepository struct {
	db *sql.DB
}

// NewPostgresSectionRepository creates a new PostgresSectionRepository
func NewPostgresSectionRepository(db *sql.DB) *PostgresSectionRepository {
	return &PostgresSectionRepository{db: db}
}

// CreateBatch inserts multiple sections in a single transaction
func (r *PostgresSectionRepository) CreateBatch(ctx context.Context, sections []*Section) error {
	if len(sections) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO contract_sections (id, contract_id, text, section_type, position, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, s := range sections {
		if s.ID == uuid.Nil {
			s.ID = uuid.New()
		}
		if s.CreatedAt.IsZero() {
			s.CreatedAt = now
		}

		_, err := stmt.ExecContext(ctx,
			s.ID,
			s.ContractID,
			s.Text,
			s.SectionType,
			s.Position,
			s.Embedding,
			s.CreatedAt,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetByContractID retrieves all sections of a contract in extraction order
func (r *PostgresSectionRepository) GetByContractID(ctx context.Context, contractID uuid.UUID) ([]*Section, error) {
	query := `
		SELECT id, contract_id, text, section_type, position, embedding, created_at
		FROM contract_sections
		WHERE contract_id = $1
		ORDER BY position ASC
	`

	rows, err := r.db.QueryContext(ctx, query, contractID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sections []*Section
	for rows.Next() {
		s := &Section{}
		err := rows.Scan(
			&s.ID,
			&s.ContractID,
			&s.Text,
			&s.SectionType,
			&s.Position,
			&s.Embedding,
			&s.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		sections = append(sections, s)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return sections, nil
}

// FindSimilar finds a user's stored clauses closest to the embedding by cosine distance
func (r *PostgresSectionRepository) FindSimilar(ctx context.Context, userID uuid.UUID, embedding pgvector.Vector, limit int, threshold float64) ([]*SectionWithSimilarity, error) {
	if limit <= 0 {
		limit = 10
	}
	if threshold <= 0 {
		threshold = 0.75
	}

	query := `
		SELECT s.id, s.contract_id, s.text, s.section_type, s.position, s.embedding, s.created_at,
			   c.file_name, 1 - (s.embedding <=> $2) AS similarity
		FROM contract_sections s
		JOIN contracts c ON s.contract_id = c.id
		WHERE c.user_id = $1 AND 1 - (s.embedding <=> $2) >= $3
		ORDER BY s.embedding <=> $2
		LIMIT $4
	`

	rows, err := r.db.QueryContext(ctx, query, userID, embedding, threshold, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*SectionWithSimilarity
	for rows.Next() {
		s := &Section{}
		result := &SectionWithSimilarity{Section: s}
		err := rows.Scan(
			&s.ID,
			&s.ContractID,
			&s.Text,
			&s.SectionType,
			&s.Position,
			&s.Embedding,
			&s.CreatedAt,
			&result.FileName,
			&result.Similarity,
		)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return results, nil
}

// DeleteByContractID removes all sections of a contract
func (r *PostgresSectionRepository) DeleteByContractID(ctx context.Context, contractID uuid.UUID) error {
	query := `DELETE FROM contract_sections WHERE contract_id = $1`
	_, err := r.db.ExecContext(ctx, query, contractID)
	return err
}
