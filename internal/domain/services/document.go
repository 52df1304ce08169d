package services

import (
	"context"

	"sigedoc/internal/domain/models"
)

// UploadedFile describes a file the upload layer already landed on disk.
// The engine only ever receives a stored name it can resolve and read.
type UploadedFile struct {
	StoredName   string
	OriginalName string
	MimeType     string
	Size         int64
}

// CreateDocumentRequest carries the fields for a new document.
type CreateDocumentRequest struct {
	Codigo         string `json:"codigo"`
	Nombre         string `json:"nombre"`
	Descripcion    string `json:"descripcion"`
	GestionID      int64  `json:"gestion_id"`
	Convencion     string `json:"convencion"`
	VinculadoA     *int64 `json:"vinculado_a,omitempty"`
	UsuarioCreador int64  `json:"usuario_creador"`

	// SkipReview lands the document directly in pendiente_aprobacion.
	SkipReview bool `json:"skip_review,omitempty"`

	ArchivoFuente *UploadedFile `json:"-"`
	ArchivoPDF    *UploadedFile `json:"-"`
}

// UpdateDocumentRequest is a partial update; absent fields keep their
// previous value.
type UpdateDocumentRequest struct {
	Patch     models.DocumentPatch
	UsuarioID int64

	ArchivoFuente *UploadedFile
	ArchivoPDF    *UploadedFile
}

// SignResult reports where a signing or stamping operation left its output.
type SignResult struct {
	FileName string `json:"signed_file_path"`
	Path     string `json:"path"`
}

// DocumentService is the document lifecycle engine.
type DocumentService interface {
	Create(ctx context.Context, req *CreateDocumentRequest) (*models.Document, error)
	Get(ctx context.Context, id int64) (*models.Document, error)
	List(ctx context.Context, filter *models.ListFilter) ([]models.Document, error)
	Update(ctx context.Context, id int64, req *UpdateDocumentRequest) (*models.Document, error)
	Delete(ctx context.Context, id int64) error
	History(ctx context.Context, id int64) ([]models.HistoryEntry, error)

	MarkReviewed(ctx context.Context, id, usuarioRevisor int64) (*models.Document, error)
	MarkApproved(ctx context.Context, id, usuarioAprobador int64) (*models.Document, error)
	Reject(ctx context.Context, id, usuarioID int64) (*models.Document, error)

	// ConvertToPDF renders the source file of an approved document to PDF
	// and records the result, returning the produced path.
	ConvertToPDF(ctx context.Context, id, usuarioID int64) (string, error)

	// Sign stamps the source file of an approved document with the
	// signer's mark and records the signature metadata.
	Sign(ctx context.Context, id int64, signerName string, usuarioFirmante *int64) (*SignResult, error)

	// ReviewStamp stamps the source file of a document pending review
	// with the reviewer's mark and advances it to pendiente_aprobacion.
	ReviewStamp(ctx context.Context, id int64, revisorName string, usuarioRevisor *int64) (*SignResult, error)
}
