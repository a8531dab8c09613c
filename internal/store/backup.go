package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/katalog/internal/model"
)

// ExportStore keeps the history of catalog exports.
type ExportStore struct {
	db *sql.DB
}

func NewExportStore(db *sql.DB) *ExportStore {
	return &ExportStore{db: db}
}

const exportCols = `id, filename, s3_key, size_bytes, documents, status, error, created_at, completed_at`

func scanExport(scanner interface{ Scan(...any) error }) (*model.Export, error) {
	var e model.Export
	var completedAt sql.NullTime
	err := scanner.Scan(&e.ID, &e.Filename, &e.S3Key, &e.SizeBytes, &e.Documents, &e.Status, &e.ErrorMessage, &e.CreatedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	if completedAt.Valid {
		e.CompletedAt = &completedAt.Time
	}
	return &e, nil
}

func (s *ExportStore) Create(filename, s3Key string) (*model.Export, error) {
	now := time.Now().UTC()
	result, err := s.db.Exec(
		`INSERT INTO exports (filename, s3_key, status, created_at) VALUES (?, ?, ?, ?)`,
		filename, s3Key, model.ExportStatusPending, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create export: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return &model.Export{
		ID:        id,
		Filename:  filename,
		S3Key:     s3Key,
		Status:    model.ExportStatusPending,
		CreatedAt: now,
	}, nil
}

func (s *ExportStore) GetByID(id int64) (*model.Export, error) {
	row := s.db.QueryRow(`SELECT `+exportCols+` FROM exports WHERE id = ?`, id)
	e, err := scanExport(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get export %d: %w", id, err)
	}
	return e, nil
}

// List returns the most recent exports first.
func (s *ExportStore) List(limit int) ([]model.Export, error) {
	rows, err := s.db.Query(`SELECT `+exportCols+` FROM exports ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list exports: %w", err)
	}
	defer rows.Close()

	var exports []model.Export
	for rows.Next() {
		e, err := scanExport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan export: %w", err)
		}
		exports = append(exports, *e)
	}
	return exports, rows.Err()
}

func (s *ExportStore) UpdateStatus(id int64, status model.ExportStatus, errorMsg string) error {
	_, err := s.db.Exec(`UPDATE exports SET status = ?, error = ? WHERE id = ?`, status, errorMsg, id)
	if err != nil {
		return fmt.Errorf("update export status: %w", err)
	}
	return nil
}

func (s *ExportStore) UpdateCompleted(id, sizeBytes int64, documents int) error {
	_, err := s.db.Exec(
		`UPDATE exports SET status = ?, size_bytes = ?, documents = ?, completed_at = ? WHERE id = ?`,
		model.ExportStatusCompleted, sizeBytes, documents, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update export completed: %w", err)
	}
	return nil
}

func (s *ExportStore) LatestCompleted() (*model.Export, error) {
	row := s.db.QueryRow(
		`SELECT `+exportCols+` FROM exports WHERE status = ? ORDER BY completed_at DESC, id DESC LIMIT 1`,
		model.ExportStatusCompleted,
	)
	e, err := scanExport(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest completed export: %w", err)
	}
	return e, nil
}

// DeleteOlderThan deletes exports created before the given time and returns
// the object keys of the deleted exports.
func (s *ExportStore) DeleteOlderThan(before time.Time) ([]string, error) {
	rows, err := s.db.Query(`SELECT s3_key FROM exports WHERE created_at < ?`, before.UTC())
	if err != nil {
		return nil, fmt.Errorf("select old exports: %w", err)
	}
	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan s3 key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if _, err := s.db.Exec(`DELETE FROM exports WHERE created_at < ?`, before.UTC()); err != nil {
		return nil, fmt.Errorf("delete old exports: %w", err)
	}
	return keys, nil
}
