// Package convert produces PDF renditions of office documents by
// shelling out to LibreOffice in headless mode.
package convert

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"sigedoc/internal/domain"
	"sigedoc/internal/domain/services"
)

// SofficeConverter converts documents to PDF via the soffice binary.
type SofficeConverter struct {
	binary string
	logger *slog.Logger
}

// NewSofficeConverter builds a converter using the given soffice binary
// path (or just "soffice" to rely on PATH).
func NewSofficeConverter(binary string, logger *slog.Logger) services.Converter {
	if binary == "" {
		binary = "soffice"
	}
	return &SofficeConverter{binary: binary, logger: logger}
}

// Convert renders sourcePath to PDF and places the result in outDir,
// returning the produced file name. LibreOffice writes into a scratch
// directory first so a failed run never leaves a partial file where the
// caller looks.
func (c *SofficeConverter) Convert(ctx context.Context, sourcePath, outDir string) (string, error) {
	if _, err := os.Stat(sourcePath); err != nil {
		return "", fmt.Errorf("%w: %s", domain.ErrSourceMissing, sourcePath)
	}

	scratch, err := os.MkdirTemp(outDir, "convert-*")
	if err != nil {
		return "", fmt.Errorf("%w: create scratch dir: %v", domain.ErrStorage, err)
	}
	defer os.RemoveAll(scratch)

	cmd := exec.CommandContext(ctx, c.binary,
		"--headless",
		"--convert-to", "pdf",
		"--outdir", scratch,
		sourcePath,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		c.logger.Error("pdf conversion failed",
			"source", sourcePath,
			"output", strings.TrimSpace(string(output)),
			"error", err)
		return "", fmt.Errorf("%w: %v", domain.ErrConversionFailed, err)
	}

	base := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	pdfName := base + ".pdf"
	produced := filepath.Join(scratch, pdfName)
	if _, err := os.Stat(produced); err != nil {
		c.logger.Error("converter produced no output",
			"source", sourcePath,
			"output", strings.TrimSpace(string(output)))
		return "", fmt.Errorf("%w: no output produced", domain.ErrConversionFailed)
	}

	// Scratch lives under outDir, so this rename stays on one filesystem.
	final := filepath.Join(outDir, pdfName)
	if err := os.Rename(produced, final); err != nil {
		return "", fmt.Errorf("%w: move converted file: %v", domain.ErrStorage, err)
	}

	c.logger.Info("converted document to pdf", "source", sourcePath, "pdf", pdfName)
	return pdfName, nil
}
