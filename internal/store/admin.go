package store

import (
	"database/sql"
	"fmt"

	"github.com/nifastore/nifa/internal/model"
)

// AdminStore lists the phone numbers allowed to manage the catalog.
type AdminStore struct {
	db *sql.DB
}

func NewAdminStore(db *sql.DB) *AdminStore {
	return &AdminStore{db: db}
}

// Add grants admin to phone. Adding an existing admin is a no-op.
func (s *AdminStore) Add(phone string) error {
	_, err := s.db.Exec(`INSERT INTO admins (phone) VALUES (?) ON CONFLICT(phone) DO NOTHING`, phone)
	if err != nil {
		return fmt.Errorf("add admin: %w", err)
	}
	return nil
}

func (s *AdminStore) Remove(phone string) error {
	_, err := s.db.Exec(`DELETE FROM admins WHERE phone = ?`, phone)
	if err != nil {
		return fmt.Errorf("remove admin: %w", err)
	}
	return nil
}

func (s *AdminStore) IsAdmin(phone string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM admins WHERE phone = ?)`, phone).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check admin: %w", err)
	}
	return exists, nil
}

func (s *AdminStore) List() ([]model.Admin, error) {
	rows, err := s.db.Query(`SELECT phone, created_at FROM admins ORDER BY phone ASC`)
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	defer rows.Close()

	var admins []model.Admin
	for rows.Next() {
		var a model.Admin
		if err := rows.Scan(&a.Phone, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan admin: %w", err)
		}
		admins = append(admins, a)
	}
	return admins, rows.Err()
}
