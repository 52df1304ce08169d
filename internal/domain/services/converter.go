package services

import "context"

// Converter renders an office document to PDF. Implementations are
// stateless and safe to invoke concurrently for different documents.
// The output lands at a deterministic path derived from the source base
// name and the output directory; on failure no output file is left
// behind.
type Converter interface {
	Convert(ctx context.Context, sourcePath, outDir string) (string, error)
}
