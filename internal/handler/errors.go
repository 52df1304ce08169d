package handler

import (
	"errors"
	"net/http"

	"sigedoc/internal/domain"
	"sigedoc/internal/httputil"
)

// handleError converts domain errors to HTTP responses
func handleError(w http.ResponseWriter, err error) {
	var dupErr *domain.DuplicateCodeError
	if errors.As(err, &dupErr) {
		httputil.RespondErrorWithExtras(w, http.StatusConflict, dupErr.Error(),
			map[string]interface{}{"codigo": dupErr.Codigo})
		return
	}

	var httpErr domain.HTTPError
	if errors.As(err, &httpErr) {
		httputil.RespondError(w, httpErr.StatusCode(), httpErr.Error())
		return
	}

	switch {
	case errors.Is(err, domain.ErrValidation):
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnsupportedFormat):
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		httputil.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		httputil.RespondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrDuplicateCode),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrHasDependents):
		httputil.RespondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrSourceMissing):
		httputil.RespondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrConversionFailed),
		errors.Is(err, domain.ErrSigningFailed),
		errors.Is(err, domain.ErrStorage):
		httputil.RespondError(w, http.StatusInternalServerError, err.Error())
	default:
		httputil.RespondError(w, http.StatusInternalServerError, "internal server error")
	}
}
