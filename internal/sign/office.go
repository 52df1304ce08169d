package sign

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"sigedoc/internal/domain"
	"sigedoc/internal/domain/services"
)

// OfficeStamper stamps Word documents by invoking an external script
// that edits the document body in place of a placeholder token. The
// script receives: input path, signature image path (empty string for
// text-only), output path, signer label text and the placeholder token.
type OfficeStamper struct {
	python string
	script string
	layout *Layout
	logger *slog.Logger
}

// NewOfficeStamper builds a Word stamper around the given interpreter
// and script paths.
func NewOfficeStamper(python, script string, layout *Layout, logger *slog.Logger) *OfficeStamper {
	if python == "" {
		python = "python3"
	}
	return &OfficeStamper{python: python, script: script, layout: layout, logger: logger}
}

// Stamp writes a stamped copy of the document to OutputPath.
func (s *OfficeStamper) Stamp(ctx context.Context, req *services.StampRequest) error {
	if _, err := os.Stat(req.SourcePath); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrSourceMissing, req.SourcePath)
	}

	mark := s.layout.markLayout(req.Mark)

	cmd := exec.CommandContext(ctx, s.python, s.script,
		req.SourcePath,
		req.SignatureImage,
		req.OutputPath,
		fmt.Sprintf("%s: %s", mark.Label, req.SignerName),
		mark.Marker,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		os.Remove(req.OutputPath)
		s.logger.Error("word stamping failed",
			"source", req.SourcePath,
			"output", strings.TrimSpace(string(output)),
			"error", err)
		return fmt.Errorf("%w: %v", domain.ErrSigningFailed, err)
	}

	if _, err := os.Stat(req.OutputPath); err != nil {
		s.logger.Error("word stamper produced no output",
			"source", req.SourcePath,
			"output", strings.TrimSpace(string(output)))
		return fmt.Errorf("%w: no output produced", domain.ErrSigningFailed)
	}

	return nil
}
