package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/voxweave/voxweave/internal/apperr"
)

// writeJSON encodes v as JSON and writes it with the given status code. On
// encoding failure it falls back to a plain-text 500 response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error_code":"INTERNAL_ERROR"}`, http.StatusInternalServerError)
	}
}

// writeError serialises err into the error envelope. Anything that is not an
// [*apperr.Error] becomes INTERNAL_ERROR with a generic message; the cause is
// logged server-side only. Every string leaving here passes the sanitizer.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	e := apperr.AsError(err)
	if e == nil {
		logger.Error("unhandled error", "error", apperr.Sanitize(err.Error()))
		e = apperr.Internal(err)
	}

	env := errorEnvelope{
		ErrorCode: e.Code,
		Message:   apperr.Sanitize(e.Message),
	}
	if len(e.Details) > 0 {
		env.Details = make(map[string]any, len(e.Details))
		for k, v := range e.Details {
			if s, ok := v.(string); ok {
				env.Details[k] = apperr.Sanitize(s)
			} else {
				env.Details[k] = v
			}
		}
	}
	writeJSON(w, e.HTTPStatus, env)
}

// decodeJSON parses the request body into dst, rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.Validation("Invalid JSON body", map[string]any{"cause": err.Error()})
	}
	return nil
}
