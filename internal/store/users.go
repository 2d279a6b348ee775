package store

import (
	"context"

	"shop-service/internal/models"
)

// CreateUser inserts a user
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (username)
		VALUES ($1)
		RETURNING id, created_at`

	return wrap(s.db.GetContext(ctx, user, query, user.Username), "user %q", user.Username)
}

// GetUser retrieves a user by ID
func (s *Store) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, "SELECT id, username, created_at FROM users WHERE id = $1", id)
	if err != nil {
		return nil, wrap(err, "user %d", id)
	}
	return &user, nil
}

// DeleteUser removes a user. The schema cascades to their shops and nulls
// the client of their orders.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		return wrap(err, "user %d", id)
	}
	return expectAffected(res, "user %d", id)
}
