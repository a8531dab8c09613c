package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/katalog/internal/model"
)

// AdminStore is the admin allow-list, keyed by user id.
type AdminStore struct {
	db *sql.DB
}

func NewAdminStore(db *sql.DB) *AdminStore {
	return &AdminStore{db: db}
}

// Get returns the allow-list record for a user, or nil if there is none.
func (s *AdminStore) Get(userID string) (*model.Admin, error) {
	var a model.Admin
	var isAdmin int
	err := s.db.QueryRow(
		`SELECT user_id, is_admin, updated_at FROM admins WHERE user_id = ?`, userID,
	).Scan(&a.UserID, &isAdmin, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get admin: %w", err)
	}
	a.IsAdmin = isAdmin != 0
	return &a, nil
}

// Set upserts the admin flag for a user.
func (s *AdminStore) Set(userID string, isAdmin bool) error {
	var v int
	if isAdmin {
		v = 1
	}
	_, err := s.db.Exec(
		`INSERT INTO admins (user_id, is_admin) VALUES (?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET is_admin = excluded.is_admin, updated_at = CURRENT_TIMESTAMP`,
		userID, v,
	)
	if err != nil {
		return fmt.Errorf("set admin: %w", err)
	}
	return nil
}

func (s *AdminStore) Delete(userID string) error {
	_, err := s.db.Exec(`DELETE FROM admins WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("delete admin: %w", err)
	}
	return nil
}

// List returns all allow-list records, including revoked ones.
func (s *AdminStore) List() ([]model.Admin, error) {
	rows, err := s.db.Query(`SELECT user_id, is_admin, updated_at FROM admins ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	defer rows.Close()

	var admins []model.Admin
	for rows.Next() {
		var a model.Admin
		var isAdmin int
		if err := rows.Scan(&a.UserID, &isAdmin, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan admin: %w", err)
		}
		a.IsAdmin = isAdmin != 0
		admins = append(admins, a)
	}
	return admins, rows.Err()
}
