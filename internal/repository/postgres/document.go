package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sigedoc/internal/domain"
	"sigedoc/internal/domain/models"
	"sigedoc/internal/domain/repositories"
)

// documentColumns is the select list shared by every document query.
const documentColumns = `
	id, codigo, nombre, descripcion, gestion_id, convencion, vinculado_a,
	archivo_fuente, archivo_pdf, archivo_revisado, signed_file_path,
	estado, version,
	usuario_creador, usuario_revisor, usuario_aprobador, usuario_firmante,
	is_signed, signer_name, signed_at,
	fecha_creacion, fecha_actualizacion`

// PostgresDocumentRepository implements the DocumentRepository interface
type PostgresDocumentRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(config *RepositoryConfig) repositories.DocumentRepository {
	return &PostgresDocumentRepository{
		pool:   config.Pool,
		logger: config.Logger,
	}
}

func scanDocument(row pgx.Row, doc *models.Document) error {
	return row.Scan(
		&doc.ID,
		&doc.Codigo,
		&doc.Nombre,
		&doc.Descripcion,
		&doc.GestionID,
		&doc.Convencion,
		&doc.VinculadoA,
		&doc.ArchivoFuente,
		&doc.ArchivoPDF,
		&doc.ArchivoRevisado,
		&doc.SignedFilePath,
		&doc.Estado,
		&doc.Version,
		&doc.UsuarioCreador,
		&doc.UsuarioRevisor,
		&doc.UsuarioAprobador,
		&doc.UsuarioFirmante,
		&doc.IsSigned,
		&doc.SignerName,
		&doc.SignedAt,
		&doc.FechaCreacion,
		&doc.FechaActualizacion,
	)
}

// Create inserts a new document at version 1. The partial unique index on
// codigo (WHERE deleted_at IS NULL) enforces uniqueness among non-deleted
// documents; a violation is translated to DuplicateCodeError.
func (r *PostgresDocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	query := `
		INSERT INTO documentos (
			codigo, nombre, descripcion, gestion_id, convencion, vinculado_a,
			archivo_fuente, archivo_pdf, estado, version, usuario_creador,
			fecha_creacion, fecha_actualizacion
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1, $10, NOW(), NOW())
		RETURNING id, version, fecha_creacion, fecha_actualizacion
	`

	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		doc.Codigo,
		doc.Nombre,
		doc.Descripcion,
		doc.GestionID,
		doc.Convencion,
		doc.VinculadoA,
		doc.ArchivoFuente,
		doc.ArchivoPDF,
		doc.Estado,
		doc.UsuarioCreador,
	).Scan(&doc.ID, &doc.Version, &doc.FechaCreacion, &doc.FechaActualizacion)

	if err != nil {
		if IsPgDuplicateError(err) {
			return &domain.DuplicateCodeError{Codigo: doc.Codigo}
		}
		if IsPgForeignKeyError(err) {
			return fmt.Errorf("%w: unknown gestion or linked document", domain.ErrValidation)
		}
		return fmt.Errorf("create document: %w", err)
	}

	return nil
}

// GetByID retrieves a non-deleted document by ID
func (r *PostgresDocumentRepository) GetByID(ctx context.Context, id int64) (*models.Document, error) {
	return r.getByID(ctx, id, false)
}

// GetByIDForUpdate retrieves a document with a row lock. Only meaningful
// inside a transaction; a second concurrent update to the same id blocks
// here until the first commits.
func (r *PostgresDocumentRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.Document, error) {
	return r.getByID(ctx, id, true)
}

func (r *PostgresDocumentRepository) getByID(ctx context.Context, id int64, forUpdate bool) (*models.Document, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM documentos
		WHERE id = $1 AND deleted_at IS NULL
	`, documentColumns)
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var doc models.Document
	executor := GetExecutor(ctx, r.pool)
	err := scanDocument(executor.QueryRow(ctx, query, id), &doc)
	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("document %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get document: %w", err)
	}

	return &doc, nil
}

// List returns non-deleted documents matching the filter.
func (r *PostgresDocumentRepository) List(ctx context.Context, filter *models.ListFilter) ([]models.Document, error) {
	filter.ApplyDefaults()

	query := fmt.Sprintf(`
		SELECT %s
		FROM documentos
		WHERE deleted_at IS NULL
	`, documentColumns)

	var args []interface{}
	paramIndex := 1

	if filter.Codigo != "" {
		query += fmt.Sprintf(` AND codigo ILIKE $%d`, paramIndex)
		args = append(args, "%"+filter.Codigo+"%")
		paramIndex++
	}
	if filter.Nombre != "" {
		query += fmt.Sprintf(` AND nombre ILIKE $%d`, paramIndex)
		args = append(args, "%"+filter.Nombre+"%")
		paramIndex++
	}
	if filter.GestionID != nil {
		query += fmt.Sprintf(` AND gestion_id = $%d`, paramIndex)
		args = append(args, *filter.GestionID)
		paramIndex++
	}
	if filter.Convencion != "" {
		query += fmt.Sprintf(` AND convencion = $%d`, paramIndex)
		args = append(args, filter.Convencion)
		paramIndex++
	}
	if filter.Estado != "" {
		query += fmt.Sprintf(` AND estado = $%d`, paramIndex)
		args = append(args, filter.Estado)
		paramIndex++
	}

	if filter.OldestFirst {
		query += ` ORDER BY fecha_creacion ASC`
	} else {
		query += ` ORDER BY fecha_creacion DESC`
	}

	query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, paramIndex, paramIndex+1)
	args = append(args, filter.Limit, filter.Offset)

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var documents []models.Document
	for rows.Next() {
		var doc models.Document
		if err := scanDocument(rows, &doc); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		documents = append(documents, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}

	if documents == nil {
		documents = []models.Document{}
	}

	return documents, nil
}

// InsertHistory appends a snapshot to historico_documentos. Entries are
// never updated or deleted afterward.
func (r *PostgresDocumentRepository) InsertHistory(ctx context.Context, entry *models.HistoryEntry) error {
	query := `
		INSERT INTO historico_documentos (
			documento_id, version, nombre, descripcion, gestion_id, convencion,
			archivo_fuente, archivo_pdf, archivo_revisado, signed_file_path,
			estado, is_signed, fecha, usuario_id, accion
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id
	`

	executor := GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		entry.DocumentoID,
		entry.Version,
		entry.Nombre,
		entry.Descripcion,
		entry.GestionID,
		entry.Convencion,
		entry.ArchivoFuente,
		entry.ArchivoPDF,
		entry.ArchivoRevisado,
		entry.SignedFilePath,
		entry.Estado,
		entry.IsSigned,
		entry.Fecha,
		entry.UsuarioID,
		entry.Accion,
	).Scan(&entry.ID)

	if err != nil {
		return fmt.Errorf("insert history entry: %w", err)
	}

	return nil
}

// ListHistory returns all snapshots for a document, newest version first.
func (r *PostgresDocumentRepository) ListHistory(ctx context.Context, documentoID int64) ([]models.HistoryEntry, error) {
	query := `
		SELECT id, documento_id, version, nombre, descripcion, gestion_id,
		       convencion, archivo_fuente, archivo_pdf, archivo_revisado,
		       signed_file_path, estado, is_signed, fecha, usuario_id, accion
		FROM historico_documentos
		WHERE documento_id = $1
		ORDER BY version DESC
	`

	executor := GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, documentoID)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var entries []models.HistoryEntry
	for rows.Next() {
		var e models.HistoryEntry
		err := rows.Scan(
			&e.ID,
			&e.DocumentoID,
			&e.Version,
			&e.Nombre,
			&e.Descripcion,
			&e.GestionID,
			&e.Convencion,
			&e.ArchivoFuente,
			&e.ArchivoPDF,
			&e.ArchivoRevisado,
			&e.SignedFilePath,
			&e.Estado,
			&e.IsSigned,
			&e.Fecha,
			&e.UsuarioID,
			&e.Accion,
		)
		if err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}

	if entries == nil {
		entries = []models.HistoryEntry{}
	}

	return entries, nil
}

// ApplyPatch applies a partial update with COALESCE semantics: absent
// fields keep their previous value. The version always increments by
// exactly one.
func (r *PostgresDocumentRepository) ApplyPatch(ctx context.Context, id int64, patch *models.DocumentPatch) (*models.Document, error) {
	query := fmt.Sprintf(`
		UPDATE documentos SET
			nombre = COALESCE($1, nombre),
			descripcion = COALESCE($2, descripcion),
			gestion_id = COALESCE($3, gestion_id),
			convencion = COALESCE($4, convencion),
			vinculado_a = COALESCE($5, vinculado_a),
			archivo_fuente = COALESCE($6, archivo_fuente),
			archivo_pdf = COALESCE($7, archivo_pdf),
			archivo_revisado = COALESCE($8, archivo_revisado),
			signed_file_path = COALESCE($9, signed_file_path),
			estado = COALESCE($10, estado),
			usuario_revisor = COALESCE($11, usuario_revisor),
			usuario_aprobador = COALESCE($12, usuario_aprobador),
			usuario_firmante = COALESCE($13, usuario_firmante),
			is_signed = COALESCE($14, is_signed),
			signer_name = COALESCE($15, signer_name),
			signed_at = COALESCE($16, signed_at),
			version = version + 1,
			fecha_actualizacion = NOW()
		WHERE id = $17 AND deleted_at IS NULL
		RETURNING %s
	`, documentColumns)

	var doc models.Document
	executor := GetExecutor(ctx, r.pool)
	err := scanDocument(executor.QueryRow(ctx, query,
		patch.Nombre,
		patch.Descripcion,
		patch.GestionID,
		patch.Convencion,
		patch.VinculadoA,
		patch.ArchivoFuente,
		patch.ArchivoPDF,
		patch.ArchivoRevisado,
		patch.SignedFilePath,
		patch.Estado,
		patch.UsuarioRevisor,
		patch.UsuarioAprobador,
		patch.UsuarioFirmante,
		patch.IsSigned,
		patch.SignerName,
		patch.SignedAt,
		id,
	), &doc)

	if err != nil {
		if IsPgNoRowsError(err) {
			return nil, fmt.Errorf("document %d: %w", id, domain.ErrNotFound)
		}
		if IsPgForeignKeyError(err) {
			return nil, fmt.Errorf("%w: unknown gestion or linked document", domain.ErrValidation)
		}
		return nil, fmt.Errorf("apply patch: %w", err)
	}

	return &doc, nil
}

// CountLinked counts non-deleted documents pointing at id via vinculado_a.
func (r *PostgresDocumentRepository) CountLinked(ctx context.Context, id int64) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM documentos
		WHERE vinculado_a = $1 AND deleted_at IS NULL
	`

	var count int
	executor := GetExecutor(ctx, r.pool)
	if err := executor.QueryRow(ctx, query, id).Scan(&count); err != nil {
		return 0, fmt.Errorf("count linked documents: %w", err)
	}

	return count, nil
}

// SoftDelete marks a document deleted. History rows stay in place.
func (r *PostgresDocumentRepository) SoftDelete(ctx context.Context, id int64) error {
	query := `
		UPDATE documentos
		SET deleted_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
	`

	executor := GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("document %d: %w", id, domain.ErrNotFound)
	}

	return nil
}
