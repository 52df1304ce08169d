package sign

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"sigedoc/internal/domain"
	"sigedoc/internal/domain/services"
)

// Signer dispatches stamp requests to the format-specific stamper by
// source file extension.
type Signer struct {
	pdf    *PDFStamper
	excel  *ExcelStamper
	office *OfficeStamper
	logger *slog.Logger
}

// NewSigner builds the dispatching stamper.
func NewSigner(pdf *PDFStamper, excel *ExcelStamper, office *OfficeStamper, logger *slog.Logger) services.Stamper {
	return &Signer{pdf: pdf, excel: excel, office: office, logger: logger}
}

// Stamp routes the request by extension. Unknown extensions are
// rejected before touching the filesystem.
func (s *Signer) Stamp(ctx context.Context, req *services.StampRequest) error {
	ext := strings.ToLower(filepath.Ext(req.SourcePath))

	var err error
	switch ext {
	case ".pdf":
		err = s.pdf.Stamp(ctx, req)
	case ".xlsx", ".xls":
		err = s.excel.Stamp(ctx, req)
	case ".docx", ".doc":
		err = s.office.Stamp(ctx, req)
	default:
		return &domain.UnsupportedFormatError{Ext: ext}
	}

	if err != nil {
		return fmt.Errorf("stamp %s: %w", filepath.Base(req.SourcePath), err)
	}

	s.logger.Info("stamped document",
		"source", filepath.Base(req.SourcePath),
		"output", filepath.Base(req.OutputPath),
		"mark", req.Mark)
	return nil
}
