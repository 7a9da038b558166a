package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Staff is a login-capable POS user.
type Staff struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
}

func (s *Store) GetStaffByUsername(ctx context.Context, username string) (Staff, error) {
	var (
		staff Staff
		id    pgtype.UUID
	)
	err := s.db.QueryRow(ctx, `
		SELECT id, username, name, role, password_hash
		FROM staff WHERE username = $1`, username,
	).Scan(&id, &staff.Username, &staff.Name, &staff.Role, &staff.PasswordHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Staff{}, ErrStaffNotFound
		}
		return Staff{}, fmt.Errorf("get staff: %w", err)
	}
	staff.ID = uuidFromPG(id)
	return staff, nil
}
