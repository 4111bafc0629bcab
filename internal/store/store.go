package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// UserInOrganization reports whether the principal belongs to the
// organization. The API layer checks this before any mutation runs.
func (s *Store) UserInOrganization(ctx context.Context, userID, organizationID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM user_organizations WHERE user_id = $1 AND organization_id = $2)",
		userID, organizationID)
	return exists, err
}

// GetOrganizationName returns the display name of an organization, or "" when
// the organization is unknown.
func (s *Store) GetOrganizationName(ctx context.Context, organizationID string) (string, error) {
	var name string
	err := s.db.GetContext(ctx, &name,
		"SELECT name FROM organizations WHERE id = $1", organizationID)
	if err != nil {
		return "", err
	}
	return name, nil
}
