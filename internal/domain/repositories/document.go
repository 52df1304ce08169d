package repositories

import (
	"context"

	"sigedoc/internal/domain/models"
)

// DocumentRepository persists documents and their append-only history.
// Methods participate in an ambient transaction when one is present in
// the context (see DBTX / TransactionManager).
type DocumentRepository interface {
	// Create inserts a new document at version 1. A business-code
	// collision among non-deleted documents yields a DuplicateCodeError.
	Create(ctx context.Context, doc *models.Document) error

	// GetByID returns a non-deleted document or domain.ErrNotFound.
	GetByID(ctx context.Context, id int64) (*models.Document, error)

	// GetByIDForUpdate is GetByID with a row lock; call only inside a
	// transaction. Concurrent updates to the same id serialize here.
	GetByIDForUpdate(ctx context.Context, id int64) (*models.Document, error)

	// List returns non-deleted documents matching the filter.
	List(ctx context.Context, filter *models.ListFilter) ([]models.Document, error)

	// InsertHistory appends a snapshot to the history ledger.
	InsertHistory(ctx context.Context, entry *models.HistoryEntry) error

	// ListHistory returns all snapshots for a document, newest version
	// first.
	ListHistory(ctx context.Context, documentoID int64) ([]models.HistoryEntry, error)

	// ApplyPatch applies a partial update with keep-if-absent semantics
	// and increments the version, returning the updated row.
	ApplyPatch(ctx context.Context, id int64, patch *models.DocumentPatch) (*models.Document, error)

	// CountLinked counts non-deleted documents whose vinculado_a points
	// at id.
	CountLinked(ctx context.Context, id int64) (int, error)

	// SoftDelete marks a document deleted without removing the row or
	// its history.
	SoftDelete(ctx context.Context, id int64) error
}

// UserRepository resolves caller identities and signature assets.
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)

	// SignatureImage returns the stored signature image path for a user,
	// or "" when the user has none.
	SignatureImage(ctx context.Context, id int64) (string, error)
}
