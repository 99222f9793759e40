package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/erazemk/sledilnik/internal/imaging"
	"github.com/erazemk/sledilnik/internal/model"
	"github.com/erazemk/sledilnik/internal/store"
)

// ModelsHandler handles the equipment model catalog.
type ModelsHandler struct {
	DB *sql.DB
}

type modelRequest struct {
	Name         string `json:"name"`
	Manufacturer string `json:"manufacturer"`
	// SerialTracked defaults to true when omitted.
	SerialTracked *bool `json:"serial_tracked"`
}

// List handles GET /api/models. ?serial_tracked=true leaves out
// quantity-only models.
func (h *ModelsHandler) List(w http.ResponseWriter, r *http.Request) {
	trackedOnly, _ := strconv.ParseBool(r.URL.Query().Get("serial_tracked"))
	models, err := store.ListEquipmentModels(r.Context(), h.DB, trackedOnly)
	if err != nil {
		slog.Error("failed to list models", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list models")
		return
	}
	if models == nil {
		models = []model.EquipmentModel{}
	}
	jsonResponse(w, http.StatusOK, models)
}

// Create handles POST /api/models.
func (h *ModelsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req modelRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		jsonError(w, http.StatusBadRequest, "name required")
		return
	}
	tracked := req.SerialTracked == nil || *req.SerialTracked

	em, err := store.CreateEquipmentModel(r.Context(), h.DB, req.Name, strings.TrimSpace(req.Manufacturer), tracked)
	if err != nil {
		slog.Error("failed to create model", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to create model")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("equipment model created", "user", claims.Username, "model", req.Name, "serial_tracked", tracked)
	jsonResponse(w, http.StatusCreated, em)
}

// Get handles GET /api/models/{id}.
func (h *ModelsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid model id")
		return
	}

	em, err := store.GetEquipmentModel(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get model", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get model")
		return
	}
	if em == nil || em.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "model not found")
		return
	}

	jsonResponse(w, http.StatusOK, em)
}

// Update handles PUT /api/models/{id}.
func (h *ModelsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid model id")
		return
	}

	var req modelRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		jsonError(w, http.StatusBadRequest, "name required")
		return
	}

	existing, err := store.GetEquipmentModel(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get model", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to update model")
		return
	}
	if existing == nil || existing.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "model not found")
		return
	}

	tracked := existing.SerialTracked
	if req.SerialTracked != nil {
		tracked = *req.SerialTracked
	}

	if err := store.UpdateEquipmentModel(r.Context(), h.DB, id, req.Name, strings.TrimSpace(req.Manufacturer), tracked); err != nil {
		slog.Error("failed to update model", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to update model")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("equipment model updated", "user", claims.Username, "model", req.Name)
	em, _ := store.GetEquipmentModel(r.Context(), h.DB, id)
	jsonResponse(w, http.StatusOK, em)
}

// Delete handles DELETE /api/models/{id}. Assets of the model keep
// referencing it.
func (h *ModelsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid model id")
		return
	}

	em, err := store.GetEquipmentModel(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get model", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to delete model")
		return
	}
	if em == nil || em.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "model not found")
		return
	}

	if err := store.DeleteEquipmentModel(r.Context(), h.DB, id); err != nil {
		slog.Error("failed to delete model", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to delete model")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("equipment model deleted", "user", claims.Username, "model", em.Name)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "model deleted"})
}

// UploadPhoto handles PUT /api/models/{id}/photo.
func (h *ModelsHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid model id")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadSize+1<<20)
	if err := r.ParseMultipartForm(imaging.MaxUploadSize); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	file, _, err := r.FormFile("photo")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "photo file required")
		return
	}
	defer file.Close()

	photo, err := imaging.NormalizePhoto(file)
	if errors.Is(err, imaging.ErrUnsupportedFormat) || errors.Is(err, imaging.ErrTooLarge) {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		slog.Error("failed to process photo", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to process photo")
		return
	}

	em, err := store.GetEquipmentModel(r.Context(), h.DB, id)
	if err != nil || em == nil || em.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "model not found")
		return
	}

	if err := store.SetEquipmentModelPhoto(r.Context(), h.DB, id, photo.Data, photo.MIME); err != nil {
		slog.Error("failed to save photo", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to save photo")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("equipment model photo uploaded", "user", claims.Username, "model", em.Name,
		"width", photo.Width, "height", photo.Height)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "photo uploaded"})
}

// GetPhoto handles GET /api/models/{id}/photo.
func (h *ModelsHandler) GetPhoto(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid model id")
		return
	}

	data, mime, err := store.GetEquipmentModelPhoto(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get photo", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get photo")
		return
	}
	if data == nil {
		jsonError(w, http.StatusNotFound, "no photo")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(data)
}
