// Package store persists extracted invoices across the review workflow.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tallai/tallai/internal/invoice"
	"github.com/tallai/tallai/pkg/database"
)

// ErrNotFound is returned when no invoice has the requested id.
var ErrNotFound = errors.New("invoice not found")

// Status is the review state of a stored invoice.
type Status string

const (
	StatusUploaded      Status = "uploaded"
	StatusPendingReview Status = "pending_review"
	StatusExported      Status = "exported"
	StatusFailed        Status = "failed"
)

// Record is one stored invoice with its review state. Violations are
// the verifier messages current for the stored payload.
type Record struct {
	ID         int64            `json:"id"`
	Company    string           `json:"company"`
	Kind       invoice.Kind     `json:"kind"`
	Status     Status           `json:"status"`
	SourceFile string           `json:"source_file"`
	Invoice    *invoice.Invoice `json:"invoice"`
	Violations []string         `json:"violations"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// Store handles invoice database operations.
type Store struct {
	db     *database.DB
	logger *zap.Logger
}

// NewStore creates a new invoice store.
func NewStore(db *database.DB, logger *zap.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new record and fills in its id.
func (s *Store) Create(rec *Record) error {
	payload, violations, err := marshalRecord(rec)
	if err != nil {
		return err
	}
	if rec.Status == "" {
		rec.Status = StatusUploaded
	}

	result, err := s.db.Exec(`
		INSERT INTO invoices (company, kind, status, source_file, payload, violations)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.Company, string(rec.Kind), string(rec.Status), rec.SourceFile, payload, violations)
	if err != nil {
		s.logger.Error("Failed to create invoice record", zap.Error(err))
		return fmt.Errorf("failed to create invoice record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	rec.ID = id
	return nil
}

// Get retrieves one record by id.
func (s *Store) Get(id int64) (*Record, error) {
	row := s.db.QueryRow(`
		SELECT id, company, kind, status, source_file, payload, violations, created_at, updated_at
		FROM invoices
		WHERE id = ?
	`, id)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		s.logger.Error("Failed to read invoice record", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to read invoice record: %w", err)
	}
	return rec, nil
}

// List returns records newest first, optionally filtered by status.
func (s *Store) List(status Status) ([]*Record, error) {
	query := `
		SELECT id, company, kind, status, source_file, payload, violations, created_at, updated_at
		FROM invoices
	`
	args := []interface{}{}
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY id DESC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoice records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Update rewrites the payload, violations and status of an existing
// record after a review edit.
func (s *Store) Update(rec *Record) error {
	payload, violations, err := marshalRecord(rec)
	if err != nil {
		return err
	}

	result, err := s.db.Exec(`
		UPDATE invoices
		SET status = ?, payload = ?, violations = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, string(rec.Status), payload, violations, rec.ID)
	if err != nil {
		s.logger.Error("Failed to update invoice record", zap.Int64("id", rec.ID), zap.Error(err))
		return fmt.Errorf("failed to update invoice record: %w", err)
	}
	return requireRow(result)
}

// UpdateStatus moves a record through the workflow without touching its
// payload.
func (s *Store) UpdateStatus(id int64, status Status) error {
	result, err := s.db.Exec(`
		UPDATE invoices
		SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update invoice status: %w", err)
	}
	return requireRow(result)
}

// Delete removes a record.
func (s *Store) Delete(id int64) error {
	result, err := s.db.Exec("DELETE FROM invoices WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete invoice record: %w", err)
	}
	return requireRow(result)
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func marshalRecord(rec *Record) (payload, violations string, err error) {
	p, err := json.Marshal(rec.Invoice)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal invoice payload: %w", err)
	}
	if rec.Violations == nil {
		rec.Violations = []string{}
	}
	v, err := json.Marshal(rec.Violations)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal violations: %w", err)
	}
	return string(p), string(v), nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner) (*Record, error) {
	var rec Record
	var kind, status, payload, violations string
	var sourceFile sql.NullString

	if err := row.Scan(&rec.ID, &rec.Company, &kind, &status, &sourceFile,
		&payload, &violations, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}

	rec.Kind = invoice.Kind(kind)
	rec.Status = Status(status)
	rec.SourceFile = sourceFile.String

	if err := json.Unmarshal([]byte(payload), &rec.Invoice); err != nil {
		return nil, fmt.Errorf("corrupt invoice payload: %w", err)
	}
	if err := json.Unmarshal([]byte(violations), &rec.Violations); err != nil {
		return nil, fmt.Errorf("corrupt violations payload: %w", err)
	}
	return &rec, nil
}
