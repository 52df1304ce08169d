// Package service implements the document lifecycle engine: create and
// partial-update with history snapshots, the review and approval state
// machine, PDF conversion and signature stamping.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"sigedoc/internal/domain"
	"sigedoc/internal/domain/models"
	"sigedoc/internal/domain/repositories"
	"sigedoc/internal/domain/services"
	"sigedoc/internal/storage"
)

// History actions recorded on each snapshot.
const (
	accionActualizacion = "actualizacion"
	accionRevision      = "revision"
	accionAprobacion    = "aprobacion"
	accionRechazo       = "rechazo"
	accionConversion    = "conversion"
	accionFirma         = "firma"
)

type documentService struct {
	repo      repositories.DocumentRepository
	users     repositories.UserRepository
	txManager repositories.TransactionManager
	converter services.Converter
	stamper   services.Stamper
	assets    services.SignatureAssets
	paths     *storage.Paths
	logger    *slog.Logger
}

// NewDocumentService creates the lifecycle engine.
func NewDocumentService(
	repo repositories.DocumentRepository,
	users repositories.UserRepository,
	txManager repositories.TransactionManager,
	converter services.Converter,
	stamper services.Stamper,
	assets services.SignatureAssets,
	paths *storage.Paths,
	logger *slog.Logger,
) services.DocumentService {
	return &documentService{
		repo:      repo,
		users:     users,
		txManager: txManager,
		converter: converter,
		stamper:   stamper,
		assets:    assets,
		paths:     paths,
		logger:    logger,
	}
}

var sourceExtensions = map[string]bool{
	".docx": true,
	".doc":  true,
	".xlsx": true,
	".xls":  true,
	".pdf":  true,
}

func checkSourceExtension(name string) error {
	ext := strings.ToLower(filepath.Ext(name))
	if !sourceExtensions[ext] {
		return &domain.UnsupportedFormatError{Ext: ext}
	}
	return nil
}

func ptr[T any](v T) *T { return &v }

// Create validates and inserts a new document at version 1.
func (s *documentService) Create(ctx context.Context, req *services.CreateDocumentRequest) (*models.Document, error) {
	err := validation.ValidateStruct(req,
		validation.Field(&req.Codigo, validation.Required, validation.Length(1, 50)),
		validation.Field(&req.Nombre, validation.Required, validation.Length(1, 255)),
		validation.Field(&req.Descripcion, validation.Length(0, 2000)),
		validation.Field(&req.GestionID, validation.Required, validation.Min(int64(1))),
		validation.Field(&req.Convencion, validation.Required,
			validation.By(func(value interface{}) error {
				if !models.ValidConvencion(value.(string)) {
					return fmt.Errorf("must be one of %s", strings.Join(models.Convenciones, ", "))
				}
				return nil
			})),
		validation.Field(&req.UsuarioCreador, validation.Required, validation.Min(int64(1))),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	if req.ArchivoFuente != nil {
		if err := checkSourceExtension(req.ArchivoFuente.OriginalName); err != nil {
			return nil, err
		}
	}
	if req.ArchivoPDF != nil {
		if ext := strings.ToLower(filepath.Ext(req.ArchivoPDF.OriginalName)); ext != ".pdf" {
			return nil, &domain.UnsupportedFormatError{Ext: ext}
		}
	}

	if req.VinculadoA != nil {
		if _, err := s.repo.GetByID(ctx, *req.VinculadoA); err != nil {
			return nil, fmt.Errorf("%w: linked document %d not found", domain.ErrValidation, *req.VinculadoA)
		}
	}

	estado := models.EstadoPendienteRevision
	if req.SkipReview {
		estado = models.EstadoPendienteAprobacion
	}

	doc := &models.Document{
		Codigo:         req.Codigo,
		Nombre:         req.Nombre,
		Descripcion:    req.Descripcion,
		GestionID:      req.GestionID,
		Convencion:     req.Convencion,
		VinculadoA:     req.VinculadoA,
		Estado:         estado,
		UsuarioCreador: req.UsuarioCreador,
	}
	if req.ArchivoFuente != nil {
		doc.ArchivoFuente = ptr(req.ArchivoFuente.StoredName)
	}
	if req.ArchivoPDF != nil {
		doc.ArchivoPDF = ptr(req.ArchivoPDF.StoredName)
	}

	if err := s.repo.Create(ctx, doc); err != nil {
		return nil, err
	}

	s.logger.Info("document created",
		"id", doc.ID,
		"codigo", doc.Codigo,
		"estado", doc.Estado)
	return doc, nil
}

func (s *documentService) Get(ctx context.Context, id int64) (*models.Document, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *documentService) List(ctx context.Context, filter *models.ListFilter) ([]models.Document, error) {
	if filter == nil {
		filter = &models.ListFilter{}
	}
	if filter.Estado != "" && !filter.Estado.Valid() {
		return nil, fmt.Errorf("%w: unknown estado '%s'", domain.ErrValidation, filter.Estado)
	}
	return s.repo.List(ctx, filter)
}

// applyUpdate runs the snapshot-then-patch protocol in one transaction:
// lock the row, let prepare inspect it and build the patch, append the
// pre-update snapshot and apply the patch. A guard failure inside
// prepare rolls everything back, so rejected operations write nothing.
func (s *documentService) applyUpdate(
	ctx context.Context,
	id, usuarioID int64,
	accion string,
	prepare func(doc *models.Document) (*models.DocumentPatch, error),
) (*models.Document, error) {
	var updated *models.Document
	err := s.txManager.ExecTx(ctx, func(ctx context.Context) error {
		doc, err := s.repo.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}

		patch, err := prepare(doc)
		if err != nil {
			return err
		}

		if err := s.repo.InsertHistory(ctx, models.SnapshotOf(doc, usuarioID, accion)); err != nil {
			return err
		}

		updated, err = s.repo.ApplyPatch(ctx, id, patch)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Update applies a partial content update. Absent fields keep their
// previous value; the version always moves forward by one.
func (s *documentService) Update(ctx context.Context, id int64, req *services.UpdateDocumentRequest) (*models.Document, error) {
	patch := req.Patch

	if patch.Convencion != nil && !models.ValidConvencion(*patch.Convencion) {
		return nil, fmt.Errorf("%w: unknown convencion '%s'", domain.ErrValidation, *patch.Convencion)
	}
	if patch.Estado != nil && !patch.Estado.Valid() {
		return nil, fmt.Errorf("%w: unknown estado '%s'", domain.ErrValidation, *patch.Estado)
	}
	if patch.Nombre != nil && strings.TrimSpace(*patch.Nombre) == "" {
		return nil, fmt.Errorf("%w: nombre cannot be empty", domain.ErrValidation)
	}

	if req.ArchivoFuente != nil {
		if err := checkSourceExtension(req.ArchivoFuente.OriginalName); err != nil {
			return nil, err
		}
		patch.ArchivoFuente = ptr(req.ArchivoFuente.StoredName)
	}
	if req.ArchivoPDF != nil {
		if ext := strings.ToLower(filepath.Ext(req.ArchivoPDF.OriginalName)); ext != ".pdf" {
			return nil, &domain.UnsupportedFormatError{Ext: ext}
		}
		patch.ArchivoPDF = ptr(req.ArchivoPDF.StoredName)
	}

	if patch.VinculadoA != nil {
		if *patch.VinculadoA == id {
			return nil, fmt.Errorf("%w: document cannot link to itself", domain.ErrValidation)
		}
		if _, err := s.repo.GetByID(ctx, *patch.VinculadoA); err != nil {
			return nil, fmt.Errorf("%w: linked document %d not found", domain.ErrValidation, *patch.VinculadoA)
		}
	}

	return s.applyUpdate(ctx, id, req.UsuarioID, accionActualizacion,
		func(doc *models.Document) (*models.DocumentPatch, error) {
			return &patch, nil
		})
}

// Delete soft-deletes a document. Documents that others link to cannot
// be removed.
func (s *documentService) Delete(ctx context.Context, id int64) error {
	return s.txManager.ExecTx(ctx, func(ctx context.Context) error {
		doc, err := s.repo.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}

		linked, err := s.repo.CountLinked(ctx, id)
		if err != nil {
			return err
		}
		if linked > 0 {
			return fmt.Errorf("%w: %d documents link to '%s'", domain.ErrHasDependents, linked, doc.Codigo)
		}

		return s.repo.SoftDelete(ctx, id)
	})
}

// History returns the snapshot trail for a document, newest first.
func (s *documentService) History(ctx context.Context, id int64) ([]models.HistoryEntry, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListHistory(ctx, id)
}

// MarkReviewed advances pendiente_revision to pendiente_aprobacion.
func (s *documentService) MarkReviewed(ctx context.Context, id, usuarioRevisor int64) (*models.Document, error) {
	return s.applyUpdate(ctx, id, usuarioRevisor, accionRevision,
		func(doc *models.Document) (*models.DocumentPatch, error) {
			if doc.Estado != models.EstadoPendienteRevision {
				return nil, &domain.InvalidTransitionError{
					Operation: "mark reviewed",
					Estado:    string(doc.Estado),
					Required:  string(models.EstadoPendienteRevision),
				}
			}
			return &models.DocumentPatch{
				Estado:         ptr(models.EstadoPendienteAprobacion),
				UsuarioRevisor: ptr(usuarioRevisor),
			}, nil
		})
}

// MarkApproved advances pendiente_aprobacion to aprobado.
func (s *documentService) MarkApproved(ctx context.Context, id, usuarioAprobador int64) (*models.Document, error) {
	return s.applyUpdate(ctx, id, usuarioAprobador, accionAprobacion,
		func(doc *models.Document) (*models.DocumentPatch, error) {
			if doc.Estado != models.EstadoPendienteAprobacion {
				return nil, &domain.InvalidTransitionError{
					Operation: "mark approved",
					Estado:    string(doc.Estado),
					Required:  string(models.EstadoPendienteAprobacion),
				}
			}
			return &models.DocumentPatch{
				Estado:           ptr(models.EstadoAprobado),
				UsuarioAprobador: ptr(usuarioAprobador),
			}, nil
		})
}

// Reject moves any non-terminal document to the terminal rechazado state.
func (s *documentService) Reject(ctx context.Context, id, usuarioID int64) (*models.Document, error) {
	return s.applyUpdate(ctx, id, usuarioID, accionRechazo,
		func(doc *models.Document) (*models.DocumentPatch, error) {
			if doc.Estado.Terminal() {
				return nil, &domain.InvalidTransitionError{
					Operation: "reject",
					Estado:    string(doc.Estado),
					Required:  "any non-terminal state",
				}
			}
			return &models.DocumentPatch{
				Estado:         ptr(models.EstadoRechazado),
				UsuarioRevisor: ptr(usuarioID),
			}, nil
		})
}

// ConvertToPDF renders the source file of an approved document to PDF.
// The converter runs outside any transaction; the produced file is only
// recorded once it exists, and removed again if recording fails.
func (s *documentService) ConvertToPDF(ctx context.Context, id, usuarioID int64) (string, error) {
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if doc.Estado != models.EstadoAprobado {
		return "", &domain.InvalidTransitionError{
			Operation: "convert to pdf",
			Estado:    string(doc.Estado),
			Required:  string(models.EstadoAprobado),
		}
	}
	if doc.ArchivoFuente == nil {
		return "", fmt.Errorf("document %d has no source file: %w", id, domain.ErrSourceMissing)
	}
	if ext := strings.ToLower(filepath.Ext(*doc.ArchivoFuente)); ext == ".pdf" {
		return "", &domain.UnsupportedFormatError{Ext: ext}
	}

	sourcePath := s.paths.UploadPath(*doc.ArchivoFuente)
	pdfName, err := s.converter.Convert(ctx, sourcePath, s.paths.UploadsDir)
	if err != nil {
		return "", err
	}
	pdfPath := s.paths.UploadPath(pdfName)

	_, err = s.applyUpdate(ctx, id, usuarioID, accionConversion,
		func(locked *models.Document) (*models.DocumentPatch, error) {
			if locked.Estado != models.EstadoAprobado {
				return nil, &domain.InvalidTransitionError{
					Operation: "convert to pdf",
					Estado:    string(locked.Estado),
					Required:  string(models.EstadoAprobado),
				}
			}
			return &models.DocumentPatch{ArchivoPDF: ptr(pdfName)}, nil
		})
	if err != nil {
		s.paths.CleanupArtifact(pdfPath)
		return "", err
	}

	s.logger.Info("document converted to pdf", "id", id, "pdf", pdfName)
	return pdfName, nil
}

// Sign stamps the source file of an approved document and records the
// signature. The stamper runs outside any transaction; the signed copy
// is removed again if recording fails.
func (s *documentService) Sign(ctx context.Context, id int64, signerName string, usuarioFirmante *int64) (*services.SignResult, error) {
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.Estado != models.EstadoAprobado {
		return nil, &domain.InvalidTransitionError{
			Operation: "sign",
			Estado:    string(doc.Estado),
			Required:  string(models.EstadoAprobado),
		}
	}
	if doc.ArchivoFuente == nil {
		return nil, fmt.Errorf("document %d has no source file: %w", id, domain.ErrSourceMissing)
	}

	signerName = strings.TrimSpace(signerName)
	if signerName == "" && usuarioFirmante != nil {
		user, err := s.users.GetByID(ctx, *usuarioFirmante)
		if err != nil {
			return nil, err
		}
		signerName = user.Name
	}
	if signerName == "" {
		return nil, fmt.Errorf("%w: signer name is required", domain.ErrValidation)
	}

	signedName := storage.SignedFileName(doc.Codigo, doc.Version, *doc.ArchivoFuente)
	outputPath := s.paths.SignedPath(signedName)

	err = s.stamper.Stamp(ctx, &services.StampRequest{
		SourcePath:     s.paths.UploadPath(*doc.ArchivoFuente),
		OutputPath:     outputPath,
		SignerName:     signerName,
		SignatureImage: s.assets.Resolve(ctx, usuarioFirmante),
		Mark:           services.MarkFirmado,
	})
	if err != nil {
		return nil, err
	}

	usuarioID := doc.UsuarioCreador
	if usuarioFirmante != nil {
		usuarioID = *usuarioFirmante
	}

	_, err = s.applyUpdate(ctx, id, usuarioID, accionFirma,
		func(locked *models.Document) (*models.DocumentPatch, error) {
			if locked.Estado != models.EstadoAprobado {
				return nil, &domain.InvalidTransitionError{
					Operation: "sign",
					Estado:    string(locked.Estado),
					Required:  string(models.EstadoAprobado),
				}
			}
			// The signed name embeds the version read before stamping;
			// a concurrent update would make it stale.
			if locked.Version != doc.Version {
				return nil, fmt.Errorf("document %d changed while signing: %w", id, domain.ErrInvalidTransition)
			}
			return &models.DocumentPatch{
				SignedFilePath:  ptr(signedName),
				IsSigned:        ptr(true),
				SignerName:      ptr(signerName),
				SignedAt:        ptr(time.Now()),
				UsuarioFirmante: usuarioFirmante,
			}, nil
		})
	if err != nil {
		s.paths.CleanupArtifact(outputPath)
		return nil, err
	}

	s.logger.Info("document signed", "id", id, "signer", signerName, "file", signedName)
	return &services.SignResult{FileName: signedName, Path: outputPath}, nil
}

// ReviewStamp stamps the source file with the reviewer's mark and
// advances the document to pendiente_aprobacion in the same step.
func (s *documentService) ReviewStamp(ctx context.Context, id int64, revisorName string, usuarioRevisor *int64) (*services.SignResult, error) {
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.Estado != models.EstadoPendienteRevision {
		return nil, &domain.InvalidTransitionError{
			Operation: "review stamp",
			Estado:    string(doc.Estado),
			Required:  string(models.EstadoPendienteRevision),
		}
	}
	if doc.ArchivoFuente == nil {
		return nil, fmt.Errorf("document %d has no source file: %w", id, domain.ErrSourceMissing)
	}

	revisorName = strings.TrimSpace(revisorName)
	if revisorName == "" && usuarioRevisor != nil {
		user, err := s.users.GetByID(ctx, *usuarioRevisor)
		if err != nil {
			return nil, err
		}
		revisorName = user.Name
	}
	if revisorName == "" {
		return nil, fmt.Errorf("%w: reviewer name is required", domain.ErrValidation)
	}

	reviewedName := storage.ReviewedFileName(doc.Codigo, doc.Version, *doc.ArchivoFuente)
	outputPath := s.paths.UploadPath(reviewedName)

	err = s.stamper.Stamp(ctx, &services.StampRequest{
		SourcePath:     s.paths.UploadPath(*doc.ArchivoFuente),
		OutputPath:     outputPath,
		SignerName:     revisorName,
		SignatureImage: s.assets.Resolve(ctx, usuarioRevisor),
		Mark:           services.MarkRevisado,
	})
	if err != nil {
		return nil, err
	}

	usuarioID := doc.UsuarioCreador
	if usuarioRevisor != nil {
		usuarioID = *usuarioRevisor
	}

	_, err = s.applyUpdate(ctx, id, usuarioID, accionRevision,
		func(locked *models.Document) (*models.DocumentPatch, error) {
			if locked.Estado != models.EstadoPendienteRevision {
				return nil, &domain.InvalidTransitionError{
					Operation: "review stamp",
					Estado:    string(locked.Estado),
					Required:  string(models.EstadoPendienteRevision),
				}
			}
			if locked.Version != doc.Version {
				return nil, fmt.Errorf("document %d changed while stamping: %w", id, domain.ErrInvalidTransition)
			}
			return &models.DocumentPatch{
				ArchivoRevisado: ptr(reviewedName),
				Estado:          ptr(models.EstadoPendienteAprobacion),
				UsuarioRevisor:  usuarioRevisor,
			}, nil
		})
	if err != nil {
		s.paths.CleanupArtifact(outputPath)
		return nil, err
	}

	s.logger.Info("document review-stamped", "id", id, "reviewer", revisorName, "file", reviewedName)
	return &services.SignResult{FileName: reviewedName, Path: outputPath}, nil
}
