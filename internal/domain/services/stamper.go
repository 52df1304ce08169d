package services

import "context"

// MarkType selects the label, placeholder token and stamp geometry of a
// signing operation.
type MarkType string

const (
	MarkFirmado  MarkType = "firmado"
	MarkRevisado MarkType = "revisado"
	MarkAprobado MarkType = "aprobado"
)

// StampRequest describes one signing operation. SignatureImage may be
// empty, in which case a text-only mark is placed.
type StampRequest struct {
	SourcePath     string
	OutputPath     string
	SignerName     string
	SignatureImage string
	Mark           MarkType
}

// Stamper places a visible signature mark on a document. Implementations
// must not leave a partially-written file at OutputPath on failure, and
// must reject extensions outside {docx, doc, xlsx, xls, pdf} with
// domain.ErrUnsupportedFormat.
type Stamper interface {
	Stamp(ctx context.Context, req *StampRequest) error
}

// SignatureAssets resolves the signature image to stamp for a user,
// falling back to a system default and finally to no image at all.
type SignatureAssets interface {
	Resolve(ctx context.Context, userID *int64) string
}
