package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"neocafe/internal/common/apperr"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// problem is a simplified RFC 7807 body.
type problem struct {
	Type      string            `json:"type"`
	Title     string            `json:"title"`
	Status    int               `json:"status"`
	Detail    string            `json:"detail"`
	Shortages []apperr.Shortage `json:"shortages,omitempty"`
}

func writeProblem(w http.ResponseWriter, code int, typ, detail string) {
	writeJSON(w, code, problem{Type: typ, Title: http.StatusText(code), Status: code, Detail: detail})
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindInsufficientStock, apperr.KindInsufficientBonus:
		return http.StatusUnprocessableEntity
	case apperr.KindInvalidTransition, apperr.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *OrderHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	code := statusFor(kind)
	detail := err.Error()
	if code == http.StatusInternalServerError {
		h.log.Error("request_failed", err, map[string]any{
			"request_id": requestIDFrom(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
		})
		detail = "internal error"
	}
	writeJSON(w, code, problem{
		Type:      kind.String(),
		Title:     http.StatusText(code),
		Status:    code,
		Detail:    detail,
		Shortages: apperr.ShortagesOf(err),
	})
}

func pathID(r *http.Request, key string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, key), 10, 64)
	return id, err == nil && id > 0
}

func queryInt(r *http.Request, key string, def int64) (int64, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def, nil
	}
	return strconv.ParseInt(s, 10, 64)
}
