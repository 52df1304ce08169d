package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"sigedoc/internal/domain"
	"sigedoc/internal/domain/models"
	"sigedoc/internal/domain/repositories"
	"sigedoc/internal/domain/services"
	"sigedoc/internal/storage"
)

// fakeDocumentRepo is an in-memory DocumentRepository mirroring the SQL
// semantics: partial unique codigo among non-deleted rows, COALESCE
// patches and append-only history.
type fakeDocumentRepo struct {
	docs    map[int64]*models.Document
	history []models.HistoryEntry
	nextID  int64
}

func newFakeDocumentRepo() *fakeDocumentRepo {
	return &fakeDocumentRepo{docs: make(map[int64]*models.Document), nextID: 1}
}

func cloneDoc(doc *models.Document) *models.Document {
	copied := *doc
	return &copied
}

func (r *fakeDocumentRepo) Create(ctx context.Context, doc *models.Document) error {
	for _, existing := range r.docs {
		if existing.Codigo == doc.Codigo && existing.DeletedAt == nil {
			return &domain.DuplicateCodeError{Codigo: doc.Codigo}
		}
	}
	doc.ID = r.nextID
	r.nextID++
	doc.Version = 1
	doc.FechaCreacion = time.Now()
	doc.FechaActualizacion = doc.FechaCreacion
	r.docs[doc.ID] = cloneDoc(doc)
	return nil
}

func (r *fakeDocumentRepo) GetByID(ctx context.Context, id int64) (*models.Document, error) {
	doc, ok := r.docs[id]
	if !ok || doc.DeletedAt != nil {
		return nil, fmt.Errorf("document %d: %w", id, domain.ErrNotFound)
	}
	return cloneDoc(doc), nil
}

func (r *fakeDocumentRepo) GetByIDForUpdate(ctx context.Context, id int64) (*models.Document, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeDocumentRepo) List(ctx context.Context, filter *models.ListFilter) ([]models.Document, error) {
	filter.ApplyDefaults()
	var out []models.Document
	for _, doc := range r.docs {
		if doc.DeletedAt != nil {
			continue
		}
		if filter.Estado != "" && doc.Estado != filter.Estado {
			continue
		}
		if filter.Codigo != "" && !strings.Contains(doc.Codigo, filter.Codigo) {
			continue
		}
		out = append(out, *cloneDoc(doc))
	}
	sort.Slice(out, func(i, j int) bool {
		if filter.OldestFirst {
			return out[i].FechaCreacion.Before(out[j].FechaCreacion)
		}
		return out[j].FechaCreacion.Before(out[i].FechaCreacion)
	})
	return out, nil
}

func (r *fakeDocumentRepo) InsertHistory(ctx context.Context, entry *models.HistoryEntry) error {
	entry.ID = int64(len(r.history) + 1)
	r.history = append(r.history, *entry)
	return nil
}

func (r *fakeDocumentRepo) ListHistory(ctx context.Context, documentoID int64) ([]models.HistoryEntry, error) {
	var out []models.HistoryEntry
	for _, e := range r.history {
		if e.DocumentoID == documentoID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out, nil
}

func (r *fakeDocumentRepo) ApplyPatch(ctx context.Context, id int64, patch *models.DocumentPatch) (*models.Document, error) {
	doc, ok := r.docs[id]
	if !ok || doc.DeletedAt != nil {
		return nil, fmt.Errorf("document %d: %w", id, domain.ErrNotFound)
	}
	patch.Apply(doc)
	return cloneDoc(doc), nil
}

func (r *fakeDocumentRepo) CountLinked(ctx context.Context, id int64) (int, error) {
	count := 0
	for _, doc := range r.docs {
		if doc.DeletedAt == nil && doc.VinculadoA != nil && *doc.VinculadoA == id {
			count++
		}
	}
	return count, nil
}

func (r *fakeDocumentRepo) SoftDelete(ctx context.Context, id int64) error {
	doc, ok := r.docs[id]
	if !ok || doc.DeletedAt != nil {
		return fmt.Errorf("document %d: %w", id, domain.ErrNotFound)
	}
	now := time.Now()
	doc.DeletedAt = &now
	return nil
}

func (r *fakeDocumentRepo) snapshot() ([]models.HistoryEntry, map[int64]*models.Document) {
	docs := make(map[int64]*models.Document, len(r.docs))
	for id, doc := range r.docs {
		docs[id] = cloneDoc(doc)
	}
	history := append([]models.HistoryEntry(nil), r.history...)
	return history, docs
}

// fakeTxManager restores the repo to its pre-transaction state when fn
// fails, matching a real rollback.
type fakeTxManager struct {
	repo *fakeDocumentRepo
}

func (m *fakeTxManager) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	history, docs := m.repo.snapshot()
	if err := fn(ctx); err != nil {
		m.repo.history = history
		m.repo.docs = docs
		return err
	}
	return nil
}

type fakeUserRepo struct {
	users map[int64]*models.User
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
	}
	return user, nil
}

func (r *fakeUserRepo) SignatureImage(ctx context.Context, id int64) (string, error) {
	user, err := r.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if user.SignatureImage == nil {
		return "", nil
	}
	return *user.SignatureImage, nil
}

type fakeConverter struct {
	err   error
	calls int
}

func (c *fakeConverter) Convert(ctx context.Context, sourcePath, outDir string) (string, error) {
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	base := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	name := base + ".pdf"
	if err := os.WriteFile(filepath.Join(outDir, name), []byte("%PDF-fake"), 0o644); err != nil {
		return "", err
	}
	return name, nil
}

type fakeStamper struct {
	err     error
	last    *services.StampRequest
	onStamp func()
}

func (s *fakeStamper) Stamp(ctx context.Context, req *services.StampRequest) error {
	s.last = req
	if s.err != nil {
		return s.err
	}
	if err := os.WriteFile(req.OutputPath, []byte("stamped"), 0o644); err != nil {
		return err
	}
	if s.onStamp != nil {
		s.onStamp()
	}
	return nil
}

type fakeAssets struct {
	image string
}

func (a *fakeAssets) Resolve(ctx context.Context, userID *int64) string { return a.image }

type fixture struct {
	svc       services.DocumentService
	repo      *fakeDocumentRepo
	converter *fakeConverter
	stamper   *fakeStamper
	assets    *fakeAssets
	paths     *storage.Paths
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	root := t.TempDir()
	paths, err := storage.NewPaths(
		filepath.Join(root, "uploads"),
		filepath.Join(root, "signed"),
		filepath.Join(root, "signatures"),
		logger,
	)
	if err != nil {
		t.Fatalf("NewPaths: %v", err)
	}

	repo := newFakeDocumentRepo()
	users := &fakeUserRepo{users: map[int64]*models.User{
		1: {ID: 1, Name: "Ana Torres", Rol: "admin"},
		2: {ID: 2, Name: "Luis Vega", Rol: "revisor"},
		3: {ID: 3, Name: "Marta Soto", Rol: "aprobador"},
	}}
	converter := &fakeConverter{}
	stamper := &fakeStamper{}
	assets := &fakeAssets{}

	svc := NewDocumentService(repo, users, &fakeTxManager{repo: repo}, converter, stamper, assets, paths, logger)
	return &fixture{svc: svc, repo: repo, converter: converter, stamper: stamper, assets: assets, paths: paths}
}

func (f *fixture) createDoc(t *testing.T, codigo string, source string) *models.Document {
	t.Helper()
	req := &services.CreateDocumentRequest{
		Codigo:         codigo,
		Nombre:         "Procedimiento de compras",
		Descripcion:    "Flujo de compras",
		GestionID:      2026,
		Convencion:     "Procedimiento",
		UsuarioCreador: 1,
	}
	if source != "" {
		path := f.paths.UploadPath(source)
		if err := os.WriteFile(path, []byte("contenido"), 0o644); err != nil {
			t.Fatalf("write source: %v", err)
		}
		req.ArchivoFuente = &services.UploadedFile{StoredName: source, OriginalName: source}
	}
	doc, err := f.svc.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return doc
}

func (f *fixture) historyCount(id int64) int {
	count := 0
	for _, e := range f.repo.history {
		if e.DocumentoID == id {
			count++
		}
	}
	return count
}

func TestCreateDefaults(t *testing.T) {
	f := newFixture(t)
	doc := f.createDoc(t, "PRC-001", "")

	if doc.Estado != models.EstadoPendienteRevision {
		t.Errorf("estado = %s, want %s", doc.Estado, models.EstadoPendienteRevision)
	}
	if doc.Version != 1 {
		t.Errorf("version = %d, want 1", doc.Version)
	}
	if f.historyCount(doc.ID) != 0 {
		t.Errorf("new document should have no history entries")
	}
}

func TestCreateSkipReview(t *testing.T) {
	f := newFixture(t)
	doc, err := f.svc.Create(context.Background(), &services.CreateDocumentRequest{
		Codigo:         "MAN-001",
		Nombre:         "Manual de calidad",
		GestionID:      2026,
		Convencion:     "Manual",
		UsuarioCreador: 1,
		SkipReview:     true,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if doc.Estado != models.EstadoPendienteAprobacion {
		t.Errorf("estado = %s, want %s", doc.Estado, models.EstadoPendienteAprobacion)
	}
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		name string
		req  services.CreateDocumentRequest
	}{
		{"missing codigo", services.CreateDocumentRequest{Nombre: "x", GestionID: 1, Convencion: "Manual", UsuarioCreador: 1}},
		{"missing nombre", services.CreateDocumentRequest{Codigo: "A-1", GestionID: 1, Convencion: "Manual", UsuarioCreador: 1}},
		{"bad convencion", services.CreateDocumentRequest{Codigo: "A-1", Nombre: "x", GestionID: 1, Convencion: "Otro", UsuarioCreador: 1}},
		{"missing gestion", services.CreateDocumentRequest{Codigo: "A-1", Nombre: "x", Convencion: "Manual", UsuarioCreador: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.svc.Create(context.Background(), &tc.req); !errors.Is(err, domain.ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestCreateRejectsUnknownExtension(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), &services.CreateDocumentRequest{
		Codigo:         "A-1",
		Nombre:         "x",
		GestionID:      1,
		Convencion:     "Manual",
		UsuarioCreador: 1,
		ArchivoFuente:  &services.UploadedFile{StoredName: "a.exe", OriginalName: "a.exe"},
	})
	if !errors.Is(err, domain.ErrUnsupportedFormat) {
		t.Errorf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func TestCreateDuplicateCode(t *testing.T) {
	f := newFixture(t)
	f.createDoc(t, "PRC-001", "")

	_, err := f.svc.Create(context.Background(), &services.CreateDocumentRequest{
		Codigo:         "PRC-001",
		Nombre:         "Otro",
		GestionID:      2026,
		Convencion:     "Manual",
		UsuarioCreador: 1,
	})
	if !errors.Is(err, domain.ErrDuplicateCode) {
		t.Fatalf("err = %v, want ErrDuplicateCode", err)
	}

	var dup *domain.DuplicateCodeError
	if !errors.As(err, &dup) || dup.Codigo != "PRC-001" {
		t.Errorf("expected DuplicateCodeError carrying the code, got %v", err)
	}
}

func TestCodeReusableAfterDelete(t *testing.T) {
	f := newFixture(t)
	doc := f.createDoc(t, "PRC-001", "")

	if err := f.svc.Delete(context.Background(), doc.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := f.svc.Get(context.Background(), doc.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("deleted document still readable: %v", err)
	}

	// The code is free again once its holder is soft-deleted.
	f.createDoc(t, "PRC-001", "")
}

func TestDeleteWithDependents(t *testing.T) {
	f := newFixture(t)
	parent := f.createDoc(t, "PRC-001", "")

	_, err := f.svc.Create(context.Background(), &services.CreateDocumentRequest{
		Codigo:         "FOR-001",
		Nombre:         "Formato anexo",
		GestionID:      2026,
		Convencion:     "Formato",
		VinculadoA:     &parent.ID,
		UsuarioCreador: 1,
	})
	if err != nil {
		t.Fatalf("Create linked: %v", err)
	}

	if err := f.svc.Delete(context.Background(), parent.ID); !errors.Is(err, domain.ErrHasDependents) {
		t.Fatalf("err = %v, want ErrHasDependents", err)
	}

	if _, err := f.svc.Get(context.Background(), parent.ID); err != nil {
		t.Errorf("parent should survive the blocked delete: %v", err)
	}
}

func TestUpdatePartialPatch(t *testing.T) {
	f := newFixture(t)
	doc := f.createDoc(t, "PRC-001", "")

	nombre := "Procedimiento de compras v2"
	updated, err := f.svc.Update(context.Background(), doc.ID, &services.UpdateDocumentRequest{
		Patch:     models.DocumentPatch{Nombre: &nombre},
		UsuarioID: 1,
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	if updated.Nombre != nombre {
		t.Errorf("nombre = %q, want %q", updated.Nombre, nombre)
	}
	if updated.Descripcion != doc.Descripcion {
		t.Errorf("absent field changed: descripcion = %q", updated.Descripcion)
	}
	if updated.Version != doc.Version+1 {
		t.Errorf("version = %d, want %d", updated.Version, doc.Version+1)
	}

	history, err := f.svc.History(context.Background(), doc.ID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("history entries = %d, want 1", len(history))
	}
	if history[0].Version != doc.Version || history[0].Nombre != doc.Nombre {
		t.Errorf("history should snapshot the pre-update row, got v%d %q", history[0].Version, history[0].Nombre)
	}
	if history[0].Accion != "actualizacion" {
		t.Errorf("accion = %q", history[0].Accion)
	}
}

func TestVersionMatchesHistoryCount(t *testing.T) {
	f := newFixture(t)
	doc := f.createDoc(t, "PRC-001", "")

	for i := 0; i < 3; i++ {
		nombre := fmt.Sprintf("Nombre %d", i)
		if _, err := f.svc.Update(context.Background(), doc.ID, &services.UpdateDocumentRequest{
			Patch:     models.DocumentPatch{Nombre: &nombre},
			UsuarioID: 1,
		}); err != nil {
			t.Fatalf("Update %d: %v", i, err)
		}
	}

	current, _ := f.svc.Get(context.Background(), doc.ID)
	history, _ := f.svc.History(context.Background(), doc.ID)
	if current.Version != len(history)+1 {
		t.Errorf("version = %d, history = %d; want version == history+1", current.Version, len(history))
	}
	for i := 1; i < len(history); i++ {
		if history[i-1].Version <= history[i].Version {
			t.Errorf("history not newest-first at index %d", i)
		}
	}
}

func TestUpdateRejectsSelfLink(t *testing.T) {
	f := newFixture(t)
	doc := f.createDoc(t, "PRC-001", "")

	_, err := f.svc.Update(context.Background(), doc.ID, &services.UpdateDocumentRequest{
		Patch:     models.DocumentPatch{VinculadoA: &doc.ID},
		UsuarioID: 1,
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestLifecycleTransitions(t *testing.T) {
	f := newFixture(t)
	doc := f.createDoc(t, "PRC-001", "")

	reviewed, err := f.svc.MarkReviewed(context.Background(), doc.ID, 2)
	if err != nil {
		t.Fatalf("MarkReviewed: %v", err)
	}
	if reviewed.Estado != models.EstadoPendienteAprobacion {
		t.Errorf("estado = %s", reviewed.Estado)
	}
	if reviewed.UsuarioRevisor == nil || *reviewed.UsuarioRevisor != 2 {
		t.Errorf("usuario_revisor not recorded")
	}

	approved, err := f.svc.MarkApproved(context.Background(), doc.ID, 3)
	if err != nil {
		t.Fatalf("MarkApproved: %v", err)
	}
	if approved.Estado != models.EstadoAprobado {
		t.Errorf("estado = %s", approved.Estado)
	}
	if approved.UsuarioAprobador == nil || *approved.UsuarioAprobador != 3 {
		t.Errorf("usuario_aprobador not recorded")
	}

	history, _ := f.svc.History(context.Background(), doc.ID)
	if len(history) != 2 {
		t.Fatalf("history entries = %d, want 2", len(history))
	}
	if history[0].Accion != "aprobacion" || history[1].Accion != "revision" {
		t.Errorf("acciones = %s, %s", history[0].Accion, history[1].Accion)
	}
}

func TestMarkApprovedWrongState(t *testing.T) {
	f := newFixture(t)
	doc := f.createDoc(t, "PRC-001", "")

	_, err := f.svc.MarkApproved(context.Background(), doc.ID, 3)
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}

	// A failed guard must not write anything.
	current, _ := f.svc.Get(context.Background(), doc.ID)
	if current.Version != 1 || current.Estado != models.EstadoPendienteRevision {
		t.Errorf("document mutated by failed transition: v%d %s", current.Version, current.Estado)
	}
	if f.historyCount(doc.ID) != 0 {
		t.Errorf("failed transition left a history entry")
	}
}

func TestRejectFromBothPendingStates(t *testing.T) {
	f := newFixture(t)

	fromReview := f.createDoc(t, "PRC-001", "")
	if doc, err := f.svc.Reject(context.Background(), fromReview.ID, 2); err != nil || doc.Estado != models.EstadoRechazado {
		t.Fatalf("Reject from revision: doc=%v err=%v", doc, err)
	}

	fromApproval := f.createDoc(t, "PRC-002", "")
	if _, err := f.svc.MarkReviewed(context.Background(), fromApproval.ID, 2); err != nil {
		t.Fatal(err)
	}
	if doc, err := f.svc.Reject(context.Background(), fromApproval.ID, 3); err != nil || doc.Estado != models.EstadoRechazado {
		t.Fatalf("Reject from aprobacion: doc=%v err=%v", doc, err)
	}

	approvedDoc := f.createDoc(t, "PRC-003", "")
	approve(t, f, approvedDoc.ID)
	if doc, err := f.svc.Reject(context.Background(), approvedDoc.ID, 3); err != nil || doc.Estado != models.EstadoRechazado {
		t.Fatalf("Reject from aprobado: doc=%v err=%v", doc, err)
	}
}

func TestRejectIsTerminal(t *testing.T) {
	f := newFixture(t)
	doc := f.createDoc(t, "PRC-001", "")
	if _, err := f.svc.Reject(context.Background(), doc.ID, 2); err != nil {
		t.Fatal(err)
	}

	if _, err := f.svc.Reject(context.Background(), doc.ID, 2); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("second reject: err = %v, want ErrInvalidTransition", err)
	}
	if _, err := f.svc.MarkReviewed(context.Background(), doc.ID, 2); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("review after reject: err = %v, want ErrInvalidTransition", err)
	}
}

func TestConvertToPDF(t *testing.T) {
	f := newFixture(t)
	doc := f.createDoc(t, "PRC-001", "fuente.docx")
	approve(t, f, doc.ID)

	pdfName, err := f.svc.ConvertToPDF(context.Background(), doc.ID, 1)
	if err != nil {
		t.Fatalf("ConvertToPDF: %v", err)
	}
	if pdfName != "fuente.pdf" {
		t.Errorf("pdf name = %q", pdfName)
	}

	current, _ := f.svc.Get(context.Background(), doc.ID)
	if current.ArchivoPDF == nil || *current.ArchivoPDF != pdfName {
		t.Errorf("archivo_pdf not recorded")
	}
	if !storage.Exists(f.paths.UploadPath(pdfName)) {
		t.Errorf("pdf missing on disk")
	}
}

func TestConvertRequiresApproval(t *testing.T) {
	f := newFixture(t)
	doc := f.createDoc(t, "PRC-001", "fuente.docx")

	_, err := f.svc.ConvertToPDF(context.Background(), doc.ID, 1)
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("err = %v, want ErrInvalidTransition", err)
	}
	if f.converter.calls != 0 {
		t.Errorf("converter ran despite failed guard")
	}
}

func TestConvertRejectsPDFSource(t *testing.T) {
	f := newFixture(t)
	doc := f.createDoc(t, "PRC-001", "fuente.pdf")
	approve(t, f, doc.ID)

	if _, err := f.svc.ConvertToPDF(context.Background(), doc.ID, 1); !errors.Is(err, domain.ErrUnsupportedFormat) {
		t.Errorf("err = %v, want ErrUnsupportedFormat", err)
	}
}

func approve(t *testing.T, f *fixture, id int64) {
	t.Helper()
	if _, err := f.svc.MarkReviewed(context.Background(), id, 2); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.MarkApproved(context.Background(), id, 3); err != nil {
		t.Fatal(err)
	}
}

func TestSign(t *testing.T) {
	f := newFixture(t)
	f.assets.image = "/tmp/firma.png"
	doc := f.createDoc(t, "PRC-001", "fuente.docx")
	approve(t, f, doc.ID)

	firmante := int64(3)
	result, err := f.svc.Sign(context.Background(), doc.ID, "Marta Soto", &firmante)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if result.FileName != "PRC-001_v3_signed.docx" {
		t.Errorf("signed file = %q", result.FileName)
	}

	if f.stamper.last == nil {
		t.Fatal("stamper not invoked")
	}
	if f.stamper.last.Mark != services.MarkFirmado {
		t.Errorf("mark = %s", f.stamper.last.Mark)
	}
	if f.stamper.last.SignatureImage != "/tmp/firma.png" {
		t.Errorf("signature image = %q", f.stamper.last.SignatureImage)
	}

	current, _ := f.svc.Get(context.Background(), doc.ID)
	if !current.IsSigned {
		t.Error("is_signed not set")
	}
	if current.SignerName == nil || *current.SignerName != "Marta Soto" {
		t.Error("signer name not recorded")
	}
	if current.SignedAt == nil {
		t.Error("signed_at not recorded")
	}
	if current.UsuarioFirmante == nil || *current.UsuarioFirmante != firmante {
		t.Error("usuario_firmante not recorded")
	}

	history, _ := f.svc.History(context.Background(), doc.ID)
	if history[0].Accion != "firma" {
		t.Errorf("latest accion = %s", history[0].Accion)
	}
}

func TestSignDefaultsNameFromUser(t *testing.T) {
	f := newFixture(t)
	doc := f.createDoc(t, "PRC-001", "fuente.docx")
	approve(t, f, doc.ID)

	firmante := int64(3)
	if _, err := f.svc.Sign(context.Background(), doc.ID, "", &firmante); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	current, _ := f.svc.Get(context.Background(), doc.ID)
	if current.SignerName == nil || *current.SignerName != "Marta Soto" {
		t.Errorf("signer name = %v, want user's name", current.SignerName)
	}
}

func TestSignTextOnlyFallback(t *testing.T) {
	f := newFixture(t)
	f.assets.image = ""
	doc := f.createDoc(t, "PRC-001", "fuente.docx")
	approve(t, f, doc.ID)

	firmante := int64(3)
	if _, err := f.svc.Sign(context.Background(), doc.ID, "Marta Soto", &firmante); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if f.stamper.last.SignatureImage != "" {
		t.Errorf("expected text-only stamp, image = %q", f.stamper.last.SignatureImage)
	}
}

func TestSignRequiresApproval(t *testing.T) {
	f := newFixture(t)
	doc := f.createDoc(t, "PRC-001", "fuente.docx")

	firmante := int64(3)
	if _, err := f.svc.Sign(context.Background(), doc.ID, "Marta Soto", &firmante); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestSignWithoutSource(t *testing.T) {
	f := newFixture(t)
	doc := f.createDoc(t, "PRC-001", "")
	approve(t, f, doc.ID)
	before := f.historyCount(doc.ID)

	firmante := int64(3)
	if _, err := f.svc.Sign(context.Background(), doc.ID, "Marta Soto", &firmante); !errors.Is(err, domain.ErrSourceMissing) {
		t.Fatalf("err = %v, want ErrSourceMissing", err)
	}

	if f.historyCount(doc.ID) != before {
		t.Errorf("failed sign wrote history")
	}
	current, _ := f.svc.Get(context.Background(), doc.ID)
	if current.IsSigned {
		t.Errorf("failed sign set is_signed")
	}
}

func TestSignStamperFailureWritesNothing(t *testing.T) {
	f := newFixture(t)
	f.stamper.err = fmt.Errorf("%w: corrupt file", domain.ErrSigningFailed)
	doc := f.createDoc(t, "PRC-001", "fuente.docx")
	approve(t, f, doc.ID)
	before := f.historyCount(doc.ID)

	firmante := int64(3)
	if _, err := f.svc.Sign(context.Background(), doc.ID, "Marta Soto", &firmante); !errors.Is(err, domain.ErrSigningFailed) {
		t.Fatalf("err = %v, want ErrSigningFailed", err)
	}
	if f.historyCount(doc.ID) != before {
		t.Errorf("failed stamp wrote history")
	}
}

func TestSignDetectsConcurrentUpdate(t *testing.T) {
	f := newFixture(t)
	doc := f.createDoc(t, "PRC-001", "fuente.docx")
	approve(t, f, doc.ID)
	before := f.historyCount(doc.ID)

	// Another user edits the document while the stamp is produced,
	// bumping the version the signed file name was derived from.
	f.stamper.onStamp = func() {
		nombre := "Procedimiento renombrado"
		if _, err := f.svc.Update(context.Background(), doc.ID, &services.UpdateDocumentRequest{
			Patch:     models.DocumentPatch{Nombre: &nombre},
			UsuarioID: 1,
		}); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}

	firmante := int64(3)
	if _, err := f.svc.Sign(context.Background(), doc.ID, "Marta Soto", &firmante); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}

	current, _ := f.svc.Get(context.Background(), doc.ID)
	if current.IsSigned {
		t.Error("failed sign set is_signed")
	}
	if got := f.historyCount(doc.ID); got != before+1 {
		t.Errorf("history count = %d, want %d", got, before+1)
	}
	if _, err := os.Stat(f.paths.SignedPath("PRC-001_v3_signed.docx")); !os.IsNotExist(err) {
		t.Error("stale signed artifact not removed")
	}
}

func TestReviewStampDetectsConcurrentUpdate(t *testing.T) {
	f := newFixture(t)
	doc := f.createDoc(t, "PRC-001", "fuente.docx")

	f.stamper.onStamp = func() {
		nombre := "Procedimiento renombrado"
		if _, err := f.svc.Update(context.Background(), doc.ID, &services.UpdateDocumentRequest{
			Patch:     models.DocumentPatch{Nombre: &nombre},
			UsuarioID: 1,
		}); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}

	revisor := int64(2)
	if _, err := f.svc.ReviewStamp(context.Background(), doc.ID, "", &revisor); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}

	current, _ := f.svc.Get(context.Background(), doc.ID)
	if current.Estado != models.EstadoPendienteRevision {
		t.Errorf("estado = %s, want %s", current.Estado, models.EstadoPendienteRevision)
	}
	if current.ArchivoRevisado != nil {
		t.Error("archivo_revisado recorded for failed stamp")
	}
	if _, err := os.Stat(f.paths.UploadPath("PRC-001_v1_revisado.docx")); !os.IsNotExist(err) {
		t.Error("stale reviewed artifact not removed")
	}
}

func TestReviewStamp(t *testing.T) {
	f := newFixture(t)
	doc := f.createDoc(t, "PRC-001", "fuente.docx")

	revisor := int64(2)
	result, err := f.svc.ReviewStamp(context.Background(), doc.ID, "", &revisor)
	if err != nil {
		t.Fatalf("ReviewStamp: %v", err)
	}
	if result.FileName != "PRC-001_v1_revisado.docx" {
		t.Errorf("reviewed file = %q", result.FileName)
	}
	if f.stamper.last.Mark != services.MarkRevisado {
		t.Errorf("mark = %s", f.stamper.last.Mark)
	}

	current, _ := f.svc.Get(context.Background(), doc.ID)
	if current.Estado != models.EstadoPendienteAprobacion {
		t.Errorf("estado = %s, want %s", current.Estado, models.EstadoPendienteAprobacion)
	}
	if current.ArchivoRevisado == nil || *current.ArchivoRevisado != result.FileName {
		t.Errorf("archivo_revisado not recorded")
	}
}

func TestFullLifecycle(t *testing.T) {
	f := newFixture(t)
	doc := f.createDoc(t, "PRC-001", "fuente.docx")

	revisor := int64(2)
	if _, err := f.svc.ReviewStamp(context.Background(), doc.ID, "", &revisor); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.MarkApproved(context.Background(), doc.ID, 3); err != nil {
		t.Fatal(err)
	}
	firmante := int64(3)
	if _, err := f.svc.Sign(context.Background(), doc.ID, "", &firmante); err != nil {
		t.Fatal(err)
	}

	current, _ := f.svc.Get(context.Background(), doc.ID)
	if current.Estado != models.EstadoAprobado || !current.IsSigned {
		t.Errorf("final state: estado=%s signed=%v", current.Estado, current.IsSigned)
	}

	history, _ := f.svc.History(context.Background(), doc.ID)
	if len(history) != 3 {
		t.Fatalf("history entries = %d, want 3", len(history))
	}
	if current.Version != len(history)+1 {
		t.Errorf("version = %d, history = %d", current.Version, len(history))
	}
	want := []string{"firma", "aprobacion", "revision"}
	for i, accion := range want {
		if history[i].Accion != accion {
			t.Errorf("history[%d].accion = %s, want %s", i, history[i].Accion, accion)
		}
	}
}

func TestListPendingQueuesOldestFirst(t *testing.T) {
	f := newFixture(t)
	first := f.createDoc(t, "PRC-001", "")
	time.Sleep(2 * time.Millisecond)
	second := f.createDoc(t, "PRC-002", "")

	docs, err := f.svc.List(context.Background(), &models.ListFilter{
		Estado:      models.EstadoPendienteRevision,
		OldestFirst: true,
	})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("docs = %d, want 2", len(docs))
	}
	if docs[0].ID != first.ID || docs[1].ID != second.ID {
		t.Errorf("queue order wrong: %d, %d", docs[0].ID, docs[1].ID)
	}
}

func TestListRejectsUnknownEstado(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.List(context.Background(), &models.ListFilter{Estado: "archivado"}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}
