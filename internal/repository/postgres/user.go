package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"sigedoc/internal/domain"
	"sigedoc/internal/domain/models"
	"sigedoc/internal/domain/repositories"
)

// PostgresUserRepository implements the UserRepository interface
type PostgresUserRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(config *RepositoryConfig) repositories.UserRepository {
	return &PostgresUserRepository{
		pool:   config.Pool,
		logger: config.Logger,
	}
}

// GetByID retrieves a user by ID
func (r *PostgresUserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `
		SELECT id, name, rol, signature_image
		FROM users
		WHERE id = $1
	`

	var user models.User
	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.Name,
		&user.Rol,
		&user.SignatureImage,
	)
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return &user, nil
}

// SignatureImage returns the stored signature image path for a user, or
// empty when the user has none.
func (r *PostgresUserRepository) SignatureImage(ctx context.Context, id int64) (string, error) {
	query := `
		SELECT signature_image
		FROM users
		WHERE id = $1
	`

	var image *string
	executor := GetExecutor(ctx, r.pool)
	if err := executor.QueryRow(ctx, query, id).Scan(&image); err != nil {
		if IsPgNoRowsError(err) {
			return "", fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
		}
		return "", fmt.Errorf("get signature image: %w", err)
	}

	if image == nil {
		return "", nil
	}

	return *image, nil
}
