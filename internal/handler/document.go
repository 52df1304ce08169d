package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"sigedoc/internal/domain/models"
	"sigedoc/internal/domain/services"
	"sigedoc/internal/httputil"
	"sigedoc/internal/storage"
)

// DocumentHandler handles document HTTP requests
type DocumentHandler struct {
	service services.DocumentService
	paths   *storage.Paths
	logger  *slog.Logger
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(service services.DocumentService, paths *storage.Paths, logger *slog.Logger) *DocumentHandler {
	return &DocumentHandler{
		service: service,
		paths:   paths,
		logger:  logger,
	}
}

// CreateDocument creates a new document from a multipart form.
// POST /api/documentos
// Fields: codigo, nombre, descripcion, gestion_id, convencion,
// vinculado_a, skip_review. Files: archivo_fuente, archivo_pdf.
func (h *DocumentHandler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	usuarioID, err := callerID(r)
	if err != nil {
		httputil.RespondError(w, http.StatusUnauthorized, err.Error())
		return
	}

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	gestionID, err := formInt64(r, "gestion_id")
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	vinculadoA, err := formInt64(r, "vinculado_a")
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	req := &services.CreateDocumentRequest{
		Codigo:         strings.TrimSpace(r.FormValue("codigo")),
		Nombre:         strings.TrimSpace(r.FormValue("nombre")),
		Descripcion:    r.FormValue("descripcion"),
		Convencion:     r.FormValue("convencion"),
		VinculadoA:     vinculadoA,
		UsuarioCreador: usuarioID,
		SkipReview:     r.FormValue("skip_review") == "true",
	}
	if gestionID != nil {
		req.GestionID = *gestionID
	}

	if fh := formFile(r, "archivo_fuente"); fh != nil {
		upload, err := landUpload(h.paths, fh)
		if err != nil {
			handleError(w, err)
			return
		}
		req.ArchivoFuente = upload
	}
	if fh := formFile(r, "archivo_pdf"); fh != nil {
		upload, err := landUpload(h.paths, fh)
		if err != nil {
			handleError(w, err)
			return
		}
		req.ArchivoPDF = upload
	}

	doc, err := h.service.Create(r.Context(), req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, doc)
}

// GetDocument retrieves a document by ID
// GET /api/documentos/{id}
func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	doc, err := h.service.Get(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, doc)
}

// ListDocuments lists documents with optional filters.
// GET /api/documentos?codigo=&nombre=&gestion_id=&convencion=&estado=&limit=&offset=
func (h *DocumentHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := &models.ListFilter{
		Codigo:     q.Get("codigo"),
		Nombre:     q.Get("nombre"),
		Convencion: q.Get("convencion"),
		Estado:     models.Estado(q.Get("estado")),
		Limit:      queryInt(r, "limit", 0),
		Offset:     queryInt(r, "offset", 0),
	}
	if raw := q.Get("gestion_id"); raw != "" {
		gestionID, err := formInt64(r, "gestion_id")
		if err != nil {
			httputil.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		filter.GestionID = gestionID
	}

	docs, err := h.service.List(r.Context(), filter)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, docs)
}

// PendingReview lists documents awaiting review, oldest first.
// GET /api/documentos/pendientes/revision
func (h *DocumentHandler) PendingReview(w http.ResponseWriter, r *http.Request) {
	h.pendingQueue(w, r, models.EstadoPendienteRevision)
}

// PendingApproval lists documents awaiting approval, oldest first.
// GET /api/documentos/pendientes/aprobacion
func (h *DocumentHandler) PendingApproval(w http.ResponseWriter, r *http.Request) {
	h.pendingQueue(w, r, models.EstadoPendienteAprobacion)
}

func (h *DocumentHandler) pendingQueue(w http.ResponseWriter, r *http.Request, estado models.Estado) {
	filter := &models.ListFilter{
		Estado:      estado,
		Limit:       queryInt(r, "limit", 0),
		Offset:      queryInt(r, "offset", 0),
		OldestFirst: true,
	}

	docs, err := h.service.List(r.Context(), filter)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, docs)
}

// UpdateDocument applies a partial update. Multipart forms may replace
// the source or PDF file; JSON bodies patch metadata only. Absent
// fields keep their previous value.
// PUT /api/documentos/{id}
func (h *DocumentHandler) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	usuarioID, err := callerID(r)
	if err != nil {
		httputil.RespondError(w, http.StatusUnauthorized, err.Error())
		return
	}

	req := &services.UpdateDocumentRequest{UsuarioID: usuarioID}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := h.parseMultipartUpdate(r, req); err != nil {
			httputil.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
	} else {
		if err := httputil.ParseJSON(w, r, &req.Patch); err != nil {
			httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	doc, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, doc)
}

func (h *DocumentHandler) parseMultipartUpdate(r *http.Request, req *services.UpdateDocumentRequest) error {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		return fmt.Errorf("invalid multipart form")
	}

	// Only fields present in the form become part of the patch; an empty
	// form is a valid no-content update that still snapshots history.
	values := r.MultipartForm.Value
	if v, ok := values["nombre"]; ok && len(v) > 0 {
		req.Patch.Nombre = &v[0]
	}
	if v, ok := values["descripcion"]; ok && len(v) > 0 {
		req.Patch.Descripcion = &v[0]
	}
	if v, ok := values["convencion"]; ok && len(v) > 0 {
		req.Patch.Convencion = &v[0]
	}
	if _, ok := values["gestion_id"]; ok {
		gestionID, err := formInt64(r, "gestion_id")
		if err != nil {
			return err
		}
		req.Patch.GestionID = gestionID
	}
	if _, ok := values["vinculado_a"]; ok {
		vinculadoA, err := formInt64(r, "vinculado_a")
		if err != nil {
			return err
		}
		req.Patch.VinculadoA = vinculadoA
	}

	if fh := formFile(r, "archivo_fuente"); fh != nil {
		upload, err := landUpload(h.paths, fh)
		if err != nil {
			return err
		}
		req.ArchivoFuente = upload
	}
	if fh := formFile(r, "archivo_pdf"); fh != nil {
		upload, err := landUpload(h.paths, fh)
		if err != nil {
			return err
		}
		req.ArchivoPDF = upload
	}

	return nil
}

// DeleteDocument soft-deletes a document.
// DELETE /api/documentos/{id}
func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetHistory returns the document's snapshot trail, newest first.
// GET /api/documentos/{id}/historico
func (h *DocumentHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := h.service.History(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, entries)
}

// MarkReviewed advances a document to pendiente_aprobacion.
// POST /api/documentos/{id}/revisar
func (h *DocumentHandler) MarkReviewed(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.MarkReviewed)
}

// MarkApproved advances a document to aprobado.
// POST /api/documentos/{id}/aprobar
func (h *DocumentHandler) MarkApproved(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.MarkApproved)
}

// Reject moves a pending document to rechazado.
// POST /api/documentos/{id}/rechazar
func (h *DocumentHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Reject)
}

func (h *DocumentHandler) transition(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, id, usuarioID int64) (*models.Document, error),
) {
	id, err := pathID(r)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	usuarioID, err := callerID(r)
	if err != nil {
		httputil.RespondError(w, http.StatusUnauthorized, err.Error())
		return
	}

	doc, err := op(r.Context(), id, usuarioID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, doc)
}

// ConvertToPDF renders an approved document's source file to PDF.
// POST /api/documentos/{id}/convertir
func (h *DocumentHandler) ConvertToPDF(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	usuarioID, err := callerID(r)
	if err != nil {
		httputil.RespondError(w, http.StatusUnauthorized, err.Error())
		return
	}

	pdfName, err := h.service.ConvertToPDF(r.Context(), id, usuarioID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, map[string]string{"archivo_pdf": pdfName})
}

type signRequest struct {
	SignerName string `json:"signer_name"`
}

// Sign stamps an approved document with the caller's signature.
// POST /api/documentos/{id}/firmar
func (h *DocumentHandler) Sign(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	usuarioID, err := callerID(r)
	if err != nil {
		httputil.RespondError(w, http.StatusUnauthorized, err.Error())
		return
	}

	var req signRequest
	if r.ContentLength > 0 {
		if err := httputil.ParseJSON(w, r, &req); err != nil {
			httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	result, err := h.service.Sign(r.Context(), id, req.SignerName, &usuarioID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, result)
}

// ReviewStamp stamps the reviewer's mark onto the source file and
// advances the document to pendiente_aprobacion.
// POST /api/documentos/{id}/sellar-revision
func (h *DocumentHandler) ReviewStamp(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	usuarioID, err := callerID(r)
	if err != nil {
		httputil.RespondError(w, http.StatusUnauthorized, err.Error())
		return
	}

	var req signRequest
	if r.ContentLength > 0 {
		if err := httputil.ParseJSON(w, r, &req); err != nil {
			httputil.RespondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	result, err := h.service.ReviewStamp(r.Context(), id, req.SignerName, &usuarioID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, result)
}

// DownloadFile streams one of the document's files to the client.
// GET /api/documentos/{id}/archivo/{tipo}
// tipo is one of fuente, pdf, revisado, firmado.
func (h *DocumentHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	doc, err := h.service.Get(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	var name *string
	var resolve func(string) string
	switch r.PathValue("tipo") {
	case "fuente":
		name, resolve = doc.ArchivoFuente, h.paths.UploadPath
	case "pdf":
		name, resolve = doc.ArchivoPDF, h.paths.UploadPath
	case "revisado":
		name, resolve = doc.ArchivoRevisado, h.paths.UploadPath
	case "firmado":
		name, resolve = doc.SignedFilePath, h.paths.SignedPath
	default:
		httputil.RespondError(w, http.StatusBadRequest, "unknown file type")
		return
	}

	if name == nil {
		httputil.RespondError(w, http.StatusNotFound, "document has no such file")
		return
	}

	path := resolve(*name)
	if !storage.Exists(path) {
		httputil.RespondError(w, http.StatusNotFound, "file missing from storage")
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", *name))
	http.ServeFile(w, r, path)
}
