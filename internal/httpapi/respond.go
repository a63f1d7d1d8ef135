package httpapi

import (
	"encoding/json"
	"net/http"

	"kgraph/internal/apierr"
	"kgraph/internal/logging"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// respondError maps err's apierr.Kind to a status code and writes
// {"detail": ...}. 5xx causes are logged with full detail; the wire body
// never carries more than a sanitised message for those.
func respondError(w http.ResponseWriter, err error) {
	status := statusForKind(apierr.KindOf(err))
	detail := err.Error()
	if status >= 500 {
		logging.Log.WithError(err).Warn("request failed with an internal error")
		detail = "internal error"
	}
	respondJSON(w, status, map[string]string{"detail": detail})
}

func statusForKind(kind apierr.Kind) int {
	switch kind {
	case apierr.KindNotFound:
		return http.StatusNotFound
	case apierr.KindConflict:
		return http.StatusConflict
	case apierr.KindValidation:
		return http.StatusBadRequest
	case apierr.KindUnauthorized:
		return http.StatusUnauthorized
	case apierr.KindUpstreamHard, apierr.KindInternal, apierr.KindUpstreamSoft:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	respondJSON(w, http.StatusBadRequest, map[string]string{"detail": msg})
}
