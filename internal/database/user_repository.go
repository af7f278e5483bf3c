package database

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/wandertrip/booking-backend/internal/models"
)

// UserRepository handles database operations for users table
type UserRepository struct {
	db DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(userID string) (*models.User, error) {
	query := `
		SELECT id, email, full_name, phone, roles, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	user := &models.User{}
	var phone sql.NullString
	var roles pq.StringArray

	err := r.db.QueryRow(query, userID).Scan(
		&user.ID, &user.Email, &user.FullName, &phone, &roles,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if phone.Valid {
		user.Phone = &phone.String
	}
	user.Roles = []string(roles)

	return user, nil
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(email string) (*models.User, error) {
	query := `
		SELECT id, email, full_name, phone, roles, created_at, updated_at
		FROM users
		WHERE email = $1
	`

	user := &models.User{}
	var phone sql.NullString
	var roles pq.StringArray

	err := r.db.QueryRow(query, email).Scan(
		&user.ID, &user.Email, &user.FullName, &phone, &roles,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if phone.Valid {
		user.Phone = &phone.String
	}
	user.Roles = []string(roles)

	return user, nil
}
