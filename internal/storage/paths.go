// Package storage manages the on-disk layout for document files:
// uploaded sources, generated PDFs and signed copies each live in their
// own directory, and callers always address files by stored name rather
// than by client-supplied path.
package storage

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"sigedoc/internal/domain"
)

// Paths resolves and creates the directories used for document files.
type Paths struct {
	UploadsDir    string
	SignedDir     string
	SignaturesDir string
	logger        *slog.Logger
}

// NewPaths builds a Paths rooted at the given directories and ensures
// they exist.
func NewPaths(uploadsDir, signedDir, signaturesDir string, logger *slog.Logger) (*Paths, error) {
	p := &Paths{
		UploadsDir:    uploadsDir,
		SignedDir:     signedDir,
		SignaturesDir: signaturesDir,
		logger:        logger,
	}

	for _, dir := range []string{uploadsDir, signedDir, signaturesDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: create directory %s: %v", domain.ErrStorage, dir, err)
		}
	}

	return p, nil
}

// StoredName generates a unique on-disk name for an upload, keeping the
// original extension. Client-supplied names never become paths.
func StoredName(originalName string) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	return uuid.New().String() + ext
}

// UploadPath resolves a stored name inside the uploads directory.
func (p *Paths) UploadPath(storedName string) string {
	return filepath.Join(p.UploadsDir, filepath.Base(storedName))
}

// SignedPath resolves a file name inside the signed directory.
func (p *Paths) SignedPath(fileName string) string {
	return filepath.Join(p.SignedDir, filepath.Base(fileName))
}

// SignaturePath resolves a signature image inside the signatures
// directory. Empty input stays empty so callers can pass it through.
func (p *Paths) SignaturePath(imageName string) string {
	if imageName == "" {
		return ""
	}
	return filepath.Join(p.SignaturesDir, filepath.Base(imageName))
}

// SignedFileName derives the output name for a signed copy:
// <codigo>_v<version>_signed<ext>. Codigo separators that would not
// survive as file names are flattened.
func SignedFileName(codigo string, version int, sourceName string) string {
	ext := strings.ToLower(filepath.Ext(sourceName))
	safe := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', ' ':
			return '_'
		}
		return r
	}, codigo)
	return fmt.Sprintf("%s_v%d_signed%s", safe, version, ext)
}

// ReviewedFileName derives the output name for a review-stamped copy.
func ReviewedFileName(codigo string, version int, sourceName string) string {
	ext := strings.ToLower(filepath.Ext(sourceName))
	safe := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', ' ':
			return '_'
		}
		return r
	}, codigo)
	return fmt.Sprintf("%s_v%d_revisado%s", safe, version, ext)
}

// SaveUpload writes an uploaded stream under a fresh stored name in the
// uploads directory and returns that name.
func (p *Paths) SaveUpload(src io.Reader, originalName string) (string, error) {
	storedName := StoredName(originalName)
	dst := p.UploadPath(storedName)

	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("%w: create upload: %v", domain.ErrStorage, err)
	}

	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		os.Remove(dst)
		return "", fmt.Errorf("%w: write upload: %v", domain.ErrStorage, err)
	}

	if err := f.Close(); err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("%w: close upload: %v", domain.ErrStorage, err)
	}

	return storedName, nil
}

// CleanupArtifact removes a generated file, logging failures instead of
// surfacing them. Used when a transaction fails after the file was
// already produced.
func (p *Paths) CleanupArtifact(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		p.logger.Warn("failed to remove artifact", "path", path, "error", err)
	}
}

// Exists reports whether a file is present on disk.
func Exists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
