package sign

import (
	"context"
	"errors"
	"log/slog"

	"sigedoc/internal/domain"
	"sigedoc/internal/domain/repositories"
	"sigedoc/internal/domain/services"
	"sigedoc/internal/storage"
)

// Assets resolves signature images: the user's stored image first, the
// system default second, and no image at all when neither exists on
// disk. Signing never fails over a missing picture.
type Assets struct {
	users        repositories.UserRepository
	paths        *storage.Paths
	defaultImage string
	logger       *slog.Logger
}

// NewAssets builds a resolver. defaultImage is a file name inside the
// signatures directory and may be empty to disable the fallback.
func NewAssets(users repositories.UserRepository, paths *storage.Paths, defaultImage string, logger *slog.Logger) services.SignatureAssets {
	return &Assets{users: users, paths: paths, defaultImage: defaultImage, logger: logger}
}

// Resolve returns an absolute image path, or empty for a text-only stamp.
func (a *Assets) Resolve(ctx context.Context, userID *int64) string {
	if userID != nil {
		image, err := a.users.SignatureImage(ctx, *userID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			a.logger.Warn("failed to look up signature image", "user_id", *userID, "error", err)
		}
		if image != "" {
			path := a.paths.SignaturePath(image)
			if storage.Exists(path) {
				return path
			}
			a.logger.Warn("signature image missing on disk", "user_id", *userID, "path", path)
		}
	}

	if a.defaultImage != "" {
		path := a.paths.SignaturePath(a.defaultImage)
		if storage.Exists(path) {
			return path
		}
	}

	return ""
}
