package handler

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"

	"sigedoc/internal/domain/services"
	"sigedoc/internal/httputil"
	"sigedoc/internal/storage"
)

// maxUploadSize caps multipart request bodies.
const maxUploadSize = 25 << 20

// pathID parses the {id} path segment.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid document ID")
	}
	return id, nil
}

// callerID extracts the authenticated user, rejecting unauthenticated
// requests. The auth middleware guarantees this for all /api routes.
func callerID(r *http.Request) (int64, error) {
	identity := httputil.GetIdentity(r)
	if identity == nil {
		return 0, errors.New("missing caller identity")
	}
	return identity.UserID, nil
}

// landUpload streams a multipart file into the uploads directory and
// describes it for the service layer.
func landUpload(paths *storage.Paths, fh *multipart.FileHeader) (*services.UploadedFile, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	storedName, err := paths.SaveUpload(f, fh.Filename)
	if err != nil {
		return nil, err
	}

	return &services.UploadedFile{
		StoredName:   storedName,
		OriginalName: fh.Filename,
		MimeType:     fh.Header.Get("Content-Type"),
		Size:         fh.Size,
	}, nil
}

// formFile returns the named multipart file, or nil when absent.
func formFile(r *http.Request, field string) *multipart.FileHeader {
	if r.MultipartForm == nil || r.MultipartForm.File == nil {
		return nil
	}
	files := r.MultipartForm.File[field]
	if len(files) == 0 {
		return nil
	}
	return files[0]
}

// formInt64 parses an optional integer form value.
func formInt64(r *http.Request, field string) (*int64, error) {
	raw := r.FormValue(field)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %q", field, raw)
	}
	return &v, nil
}

// queryInt parses an optional integer query parameter, with a default.
func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
