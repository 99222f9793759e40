package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/sledilnik/internal/lifecycle"
)

// maxBodySize bounds JSON request bodies. Receive batches are the largest.
const maxBodySize = 1 << 20

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(w http.ResponseWriter, r *http.Request, target any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}

type engineErrorResponse struct {
	Error     string         `json:"error"`
	Kind      lifecycle.Kind `json:"kind"`
	AssetID   string         `json:"asset_id,omitempty"`
	Status    string         `json:"status,omitempty"`
	Operation string         `json:"operation,omitempty"`
	Retryable bool           `json:"retryable,omitempty"`
}

var kindStatus = map[lifecycle.Kind]int{
	lifecycle.KindNotFound:          http.StatusNotFound,
	lifecycle.KindInvalidTransition: http.StatusConflict,
	lifecycle.KindConflict:          http.StatusConflict,
	lifecycle.KindDuplicateSerial:   http.StatusConflict,
	lifecycle.KindValidation:        http.StatusBadRequest,
	lifecycle.KindInternal:          http.StatusInternalServerError,
}

// engineError writes an error returned by the lifecycle engine. Internal
// causes are logged, never sent to the client.
func engineError(w http.ResponseWriter, err error) {
	var e *lifecycle.Error
	if !errors.As(err, &e) {
		slog.Error("unexpected engine error", "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if e.Kind == lifecycle.KindInternal {
		slog.Error("engine storage failure", "asset", e.AssetID, "error", e.Cause)
	}

	status, ok := kindStatus[e.Kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	jsonResponse(w, status, engineErrorResponse{
		Error:     e.Error(),
		Kind:      e.Kind,
		AssetID:   e.AssetID,
		Status:    e.Status,
		Operation: string(e.Operation),
		Retryable: lifecycle.Retryable(e),
	})
}

// pathID parses the {id} path value as a catalog ID.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

// queryInt parses an optional integer query parameter. A missing parameter
// yields 0.
func queryInt(r *http.Request, name string) (int64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	return strconv.ParseInt(v, 10, 64)
}
