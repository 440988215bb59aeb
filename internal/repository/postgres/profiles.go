package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ProfileRepo resolves account details of analysis owners.
type ProfileRepo struct{ db *sql.DB }

// NewProfileRepo creates a Postgres-backed profile lookup.
func NewProfileRepo(db *sql.DB) *ProfileRepo { return &ProfileRepo{db: db} }

// OwnerEmail returns the owner's account email, or "" when the owner has
// no profile.
func (r *ProfileRepo) OwnerEmail(ctx context.Context, ownerID string) (string, error) {
	var email string
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(email, '') FROM profiles WHERE id = $1`, ownerID,
	).Scan(&email)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get profile email: %w", err)
	}
	return email, nil
}
