package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaStatements create the tables in dependency order. The partial
// unique index lets a business code be reused after its document is
// soft-deleted while still rejecting live duplicates.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		rol TEXT NOT NULL DEFAULT 'usuario',
		signature_image TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS documentos (
		id BIGSERIAL PRIMARY KEY,
		codigo TEXT NOT NULL,
		nombre TEXT NOT NULL,
		descripcion TEXT NOT NULL DEFAULT '',
		gestion_id BIGINT NOT NULL,
		convencion TEXT NOT NULL,
		vinculado_a BIGINT REFERENCES documentos(id),
		archivo_fuente TEXT,
		archivo_pdf TEXT,
		archivo_revisado TEXT,
		signed_file_path TEXT,
		estado TEXT NOT NULL DEFAULT 'pendiente_revision',
		version INTEGER NOT NULL DEFAULT 1,
		usuario_creador BIGINT NOT NULL REFERENCES users(id),
		usuario_revisor BIGINT REFERENCES users(id),
		usuario_aprobador BIGINT REFERENCES users(id),
		usuario_firmante BIGINT REFERENCES users(id),
		is_signed BOOLEAN NOT NULL DEFAULT FALSE,
		signer_name TEXT,
		signed_at TIMESTAMPTZ,
		fecha_creacion TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		fecha_actualizacion TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		deleted_at TIMESTAMPTZ
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS documentos_codigo_activo
		ON documentos (codigo) WHERE deleted_at IS NULL`,
	`CREATE INDEX IF NOT EXISTS documentos_estado_idx
		ON documentos (estado) WHERE deleted_at IS NULL`,
	`CREATE TABLE IF NOT EXISTS historico_documentos (
		id BIGSERIAL PRIMARY KEY,
		documento_id BIGINT NOT NULL REFERENCES documentos(id),
		version INTEGER NOT NULL,
		nombre TEXT NOT NULL,
		descripcion TEXT NOT NULL DEFAULT '',
		gestion_id BIGINT NOT NULL,
		convencion TEXT NOT NULL,
		archivo_fuente TEXT,
		archivo_pdf TEXT,
		archivo_revisado TEXT,
		signed_file_path TEXT,
		estado TEXT NOT NULL,
		is_signed BOOLEAN NOT NULL DEFAULT FALSE,
		fecha TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		usuario_id BIGINT NOT NULL,
		accion TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS historico_documento_idx
		ON historico_documentos (documento_id, version DESC)`,
}

// SetupSchema creates all tables and indexes if they do not exist.
func SetupSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("setup schema: %w", err)
		}
	}
	return nil
}
