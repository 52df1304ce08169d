package models

import "time"

// Estado is the lifecycle state of a document.
type Estado string

const (
	EstadoPendienteRevision   Estado = "pendiente_revision"
	EstadoPendienteAprobacion Estado = "pendiente_aprobacion"
	EstadoAprobado            Estado = "aprobado"
	EstadoRechazado           Estado = "rechazado"
)

// Terminal reports whether the state ends the main review flow.
// A rejected document is not automatically resurrected.
func (e Estado) Terminal() bool {
	return e == EstadoRechazado
}

// Valid reports whether the value is one of the known lifecycle states.
func (e Estado) Valid() bool {
	switch e {
	case EstadoPendienteRevision, EstadoPendienteAprobacion, EstadoAprobado, EstadoRechazado:
		return true
	}
	return false
}

// Convenciones is the fixed document category enum.
var Convenciones = []string{
	"Manual",
	"Procedimiento",
	"Instructivo",
	"Formato",
	"Documento Externo",
}

// ValidConvencion reports whether v is a known document category.
func ValidConvencion(v string) bool {
	for _, c := range Convenciones {
		if c == v {
			return true
		}
	}
	return false
}

// Document is the current row of a controlled document. File fields hold
// bare filenames; the storage layer resolves them against its directories.
type Document struct {
	ID          int64  `json:"id"`
	Codigo      string `json:"codigo"`
	Nombre      string `json:"nombre"`
	Descripcion string `json:"descripcion"`
	GestionID   int64  `json:"gestion_id"`
	Convencion  string `json:"convencion"`
	VinculadoA  *int64 `json:"vinculado_a,omitempty"`

	ArchivoFuente   *string `json:"archivo_fuente,omitempty"`
	ArchivoPDF      *string `json:"archivo_pdf,omitempty"`
	ArchivoRevisado *string `json:"archivo_revisado,omitempty"`
	SignedFilePath  *string `json:"signed_file_path,omitempty"`

	Estado  Estado `json:"estado"`
	Version int    `json:"version"`

	UsuarioCreador   int64  `json:"usuario_creador"`
	UsuarioRevisor   *int64 `json:"usuario_revisor,omitempty"`
	UsuarioAprobador *int64 `json:"usuario_aprobador,omitempty"`
	UsuarioFirmante  *int64 `json:"usuario_firmante,omitempty"`

	IsSigned   bool       `json:"is_signed"`
	SignerName *string    `json:"signer_name,omitempty"`
	SignedAt   *time.Time `json:"signed_at,omitempty"`

	FechaCreacion      time.Time  `json:"fecha_creacion"`
	FechaActualizacion time.Time  `json:"fecha_actualizacion"`
	DeletedAt          *time.Time `json:"-"`
}

// HistoryEntry is an immutable snapshot of a document as it existed
// immediately before an update was applied. Append-only.
type HistoryEntry struct {
	ID          int64  `json:"id"`
	DocumentoID int64  `json:"documento_id"`
	Version     int    `json:"version"`
	Nombre      string `json:"nombre"`
	Descripcion string `json:"descripcion"`
	GestionID   int64  `json:"gestion_id"`
	Convencion  string `json:"convencion"`

	ArchivoFuente   *string `json:"archivo_fuente,omitempty"`
	ArchivoPDF      *string `json:"archivo_pdf,omitempty"`
	ArchivoRevisado *string `json:"archivo_revisado,omitempty"`
	SignedFilePath  *string `json:"signed_file_path,omitempty"`

	Estado   Estado `json:"estado"`
	IsSigned bool   `json:"is_signed"`

	Fecha     time.Time `json:"fecha"`
	UsuarioID int64     `json:"usuario_id"`
	Accion    string    `json:"accion"`
}

// SnapshotOf captures the content and state fields of doc as a history
// entry attributed to the user applying the update.
func SnapshotOf(doc *Document, usuarioID int64, accion string) *HistoryEntry {
	return &HistoryEntry{
		DocumentoID:     doc.ID,
		Version:         doc.Version,
		Nombre:          doc.Nombre,
		Descripcion:     doc.Descripcion,
		GestionID:       doc.GestionID,
		Convencion:      doc.Convencion,
		ArchivoFuente:   doc.ArchivoFuente,
		ArchivoPDF:      doc.ArchivoPDF,
		ArchivoRevisado: doc.ArchivoRevisado,
		SignedFilePath:  doc.SignedFilePath,
		Estado:          doc.Estado,
		IsSigned:        doc.IsSigned,
		Fecha:           time.Now(),
		UsuarioID:       usuarioID,
		Accion:          accion,
	}
}

// DocumentPatch is a partial update: nil fields keep the existing value
// (COALESCE semantics). Applying a patch always increments the version.
type DocumentPatch struct {
	Nombre      *string `json:"nombre,omitempty"`
	Descripcion *string `json:"descripcion,omitempty"`
	GestionID   *int64  `json:"gestion_id,omitempty"`
	Convencion  *string `json:"convencion,omitempty"`
	VinculadoA  *int64  `json:"vinculado_a,omitempty"`

	ArchivoFuente   *string `json:"archivo_fuente,omitempty"`
	ArchivoPDF      *string `json:"archivo_pdf,omitempty"`
	ArchivoRevisado *string `json:"archivo_revisado,omitempty"`
	SignedFilePath  *string `json:"signed_file_path,omitempty"`

	Estado *Estado `json:"estado,omitempty"`

	UsuarioRevisor   *int64 `json:"usuario_revisor,omitempty"`
	UsuarioAprobador *int64 `json:"usuario_aprobador,omitempty"`
	UsuarioFirmante  *int64 `json:"usuario_firmante,omitempty"`

	IsSigned   *bool      `json:"is_signed,omitempty"`
	SignerName *string    `json:"signer_name,omitempty"`
	SignedAt   *time.Time `json:"signed_at,omitempty"`
}

// Apply writes the patch onto doc, keeping existing values for absent
// fields and incrementing the version. Mirrors the SQL applied by the
// repository; used by in-memory implementations.
func (p *DocumentPatch) Apply(doc *Document) {
	if p.Nombre != nil {
		doc.Nombre = *p.Nombre
	}
	if p.Descripcion != nil {
		doc.Descripcion = *p.Descripcion
	}
	if p.GestionID != nil {
		doc.GestionID = *p.GestionID
	}
	if p.Convencion != nil {
		doc.Convencion = *p.Convencion
	}
	if p.VinculadoA != nil {
		doc.VinculadoA = p.VinculadoA
	}
	if p.ArchivoFuente != nil {
		doc.ArchivoFuente = p.ArchivoFuente
	}
	if p.ArchivoPDF != nil {
		doc.ArchivoPDF = p.ArchivoPDF
	}
	if p.ArchivoRevisado != nil {
		doc.ArchivoRevisado = p.ArchivoRevisado
	}
	if p.SignedFilePath != nil {
		doc.SignedFilePath = p.SignedFilePath
	}
	if p.Estado != nil {
		doc.Estado = *p.Estado
	}
	if p.UsuarioRevisor != nil {
		doc.UsuarioRevisor = p.UsuarioRevisor
	}
	if p.UsuarioAprobador != nil {
		doc.UsuarioAprobador = p.UsuarioAprobador
	}
	if p.UsuarioFirmante != nil {
		doc.UsuarioFirmante = p.UsuarioFirmante
	}
	if p.IsSigned != nil {
		doc.IsSigned = *p.IsSigned
	}
	if p.SignerName != nil {
		doc.SignerName = p.SignerName
	}
	if p.SignedAt != nil {
		doc.SignedAt = p.SignedAt
	}
	doc.Version++
	doc.FechaActualizacion = time.Now()
}

// ListFilter narrows and paginates document listings.
type ListFilter struct {
	Codigo     string
	Nombre     string
	GestionID  *int64
	Convencion string
	Estado     Estado

	Limit  int
	Offset int

	// OldestFirst orders by creation date ascending, used for the
	// pending-review and pending-approval queues.
	OldestFirst bool
}

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// ApplyDefaults fills in pagination defaults and clamps out-of-range values.
func (f *ListFilter) ApplyDefaults() {
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}
