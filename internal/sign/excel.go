package sign

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/xuri/excelize/v2"

	"sigedoc/internal/domain"
	"sigedoc/internal/domain/services"
)

// ExcelStamper places a signature block at fixed cells on the first
// sheet of a workbook. Legacy .xls files cannot be opened by the xlsx
// reader and surface as a signing failure, matching how callers treat
// any other unreadable workbook.
type ExcelStamper struct {
	layout *Layout
	logger *slog.Logger
}

// NewExcelStamper builds an Excel stamper with the given placement layout.
func NewExcelStamper(layout *Layout, logger *slog.Logger) *ExcelStamper {
	return &ExcelStamper{layout: layout, logger: logger}
}

// Stamp writes a stamped copy of the workbook to OutputPath.
func (s *ExcelStamper) Stamp(ctx context.Context, req *services.StampRequest) error {
	f, err := excelize.OpenFile(req.SourcePath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", domain.ErrSourceMissing, req.SourcePath)
		}
		return fmt.Errorf("%w: open workbook: %v", domain.ErrSigningFailed, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return fmt.Errorf("%w: workbook has no sheets", domain.ErrSigningFailed)
	}
	sheet := sheets[0]

	cells, ok := s.layout.Excel[string(req.Mark)]
	if !ok {
		return fmt.Errorf("%w: no cell layout for mark %q", domain.ErrSigningFailed, req.Mark)
	}

	mark := s.layout.markLayout(req.Mark)

	if req.SignatureImage != "" {
		err := f.AddPicture(sheet, cells.ImageCell, req.SignatureImage, &excelize.GraphicOptions{
			ScaleX: 0.5,
			ScaleY: 0.5,
		})
		if err != nil {
			return fmt.Errorf("%w: add signature image: %v", domain.ErrSigningFailed, err)
		}
	}

	if err := f.SetCellValue(sheet, cells.NameCell, fmt.Sprintf("%s: %s", mark.Label, req.SignerName)); err != nil {
		return fmt.Errorf("%w: set signer cell: %v", domain.ErrSigningFailed, err)
	}
	if err := f.SetCellValue(sheet, cells.DateCell, time.Now().Format("02/01/2006")); err != nil {
		return fmt.Errorf("%w: set date cell: %v", domain.ErrSigningFailed, err)
	}

	// SaveAs validates the target extension, so the scratch file is
	// written through Write instead and renamed into place.
	tmp := req.OutputPath + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("%w: create scratch file: %v", domain.ErrStorage, err)
	}
	if err := f.Write(out); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("%w: save workbook: %v", domain.ErrSigningFailed, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: save workbook: %v", domain.ErrSigningFailed, err)
	}
	if err := os.Rename(tmp, req.OutputPath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: place output: %v", domain.ErrStorage, err)
	}

	return nil
}
