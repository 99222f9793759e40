package api

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/erazemk/sledilnik/internal/model"
	"github.com/erazemk/sledilnik/internal/store"
)

// LocationsHandler handles warehouse and vehicle endpoints.
type LocationsHandler struct {
	DB *sql.DB
}

type createLocationRequest struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type updateLocationRequest struct {
	Name string `json:"name"`
}

// List handles GET /api/locations.
func (h *LocationsHandler) List(w http.ResponseWriter, r *http.Request) {
	locationType := r.URL.Query().Get("type")
	locations, err := store.ListLocations(r.Context(), h.DB, locationType)
	if err != nil {
		slog.Error("failed to list locations", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list locations")
		return
	}
	if locations == nil {
		locations = []model.Location{}
	}
	jsonResponse(w, http.StatusOK, locations)
}

// Create handles POST /api/locations.
func (h *LocationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createLocationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.Type == "" {
		jsonError(w, http.StatusBadRequest, "name and type required")
		return
	}

	if req.Type != model.LocationTypeWarehouse && req.Type != model.LocationTypeVehicle {
		jsonError(w, http.StatusBadRequest, "type must be 'warehouse' or 'vehicle'")
		return
	}

	location, err := store.CreateLocation(r.Context(), h.DB, req.Name, req.Type)
	if err != nil {
		slog.Error("failed to create location", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to create location")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("location created", "user", claims.Username, "location", req.Name, "type", req.Type)
	jsonResponse(w, http.StatusCreated, location)
}

// Get handles GET /api/locations/{id}.
func (h *LocationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid location id")
		return
	}

	location, err := store.GetLocation(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get location", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get location")
		return
	}
	if location == nil || location.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "location not found")
		return
	}

	jsonResponse(w, http.StatusOK, location)
}

// Update handles PUT /api/locations/{id}.
func (h *LocationsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid location id")
		return
	}

	var req updateLocationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		jsonError(w, http.StatusBadRequest, "name required")
		return
	}

	if err := store.UpdateLocation(r.Context(), h.DB, id, req.Name); err != nil {
		slog.Error("failed to update location", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to update location")
		return
	}

	location, err := store.GetLocation(r.Context(), h.DB, id)
	if err != nil || location == nil || location.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "location not found")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("location updated", "user", claims.Username, "location", req.Name)
	jsonResponse(w, http.StatusOK, location)
}

// Delete handles DELETE /api/locations/{id}.
func (h *LocationsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid location id")
		return
	}

	location, err := store.GetLocation(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get location", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to delete location")
		return
	}
	if location == nil || location.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "location not found")
		return
	}

	err = store.DeleteLocation(r.Context(), h.DB, id)
	if errors.Is(err, store.ErrLocationNotFound) {
		jsonError(w, http.StatusNotFound, "location not found")
		return
	}
	if errors.Is(err, store.ErrLocationInUse) {
		jsonError(w, http.StatusConflict, fmt.Sprintf("cannot delete %s: assets are still there", location.Name))
		return
	}
	if err != nil {
		slog.Error("failed to delete location", "location", location.Name, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to delete location")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("location deleted", "user", claims.Username, "location", location.Name)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "location deleted"})
}

// Assets handles GET /api/locations/{id}/assets.
func (h *LocationsHandler) Assets(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid location id")
		return
	}
	listAssets(w, r, h.DB, store.AssetFilter{LocationID: id})
}
