package api

import (
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/erazemk/sledilnik/internal/lifecycle"
	"github.com/erazemk/sledilnik/internal/model"
	"github.com/erazemk/sledilnik/internal/store"
)

// AssetsHandler serves asset reads and applies lifecycle operations through
// the engine.
type AssetsHandler struct {
	DB     *sql.DB
	Engine *lifecycle.Engine
}

type assetPage struct {
	Assets []model.Asset `json:"assets"`
	Total  int           `json:"total"`
}

// listAssets writes one page of assets. Query parameters narrow base further
// but never override what the route already fixed.
func listAssets(w http.ResponseWriter, r *http.Request, db *sql.DB, base store.AssetFilter) {
	q := r.URL.Query()
	filter := base

	for name, dst := range map[string]*int64{
		"location_id": &filter.LocationID,
		"model_id":    &filter.ModelID,
		"ticket_id":   &filter.TicketID,
	} {
		if *dst > 0 {
			continue
		}
		v, err := queryInt(r, name)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "invalid "+name)
			return
		}
		*dst = v
	}

	filter.Status = q.Get("status")
	if filter.Status != "" && !model.ValidAssetStatus(filter.Status) {
		jsonError(w, http.StatusBadRequest, "unknown status")
		return
	}
	filter.Search = strings.TrimSpace(q.Get("q"))
	if filter.Search == "" {
		filter.Search = strings.TrimSpace(q.Get("search"))
	}
	filter.Oldest = q.Get("order") == "oldest"

	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	assets, total, err := store.ListAssets(r.Context(), db, filter, store.Page{Limit: limit, Offset: offset})
	if err != nil {
		slog.Error("failed to list assets", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list assets")
		return
	}
	if assets == nil {
		assets = []model.Asset{}
	}
	jsonResponse(w, http.StatusOK, assetPage{Assets: assets, Total: total})
}

// List handles GET /api/assets.
func (h *AssetsHandler) List(w http.ResponseWriter, r *http.Request) {
	listAssets(w, r, h.DB, store.AssetFilter{})
}

// Get handles GET /api/assets/{id}.
func (h *AssetsHandler) Get(w http.ResponseWriter, r *http.Request) {
	asset, err := store.GetAsset(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		slog.Error("failed to get asset", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get asset")
		return
	}
	if asset == nil {
		jsonError(w, http.StatusNotFound, "asset not found")
		return
	}
	jsonResponse(w, http.StatusOK, asset)
}

// GetBySerial handles GET /api/serials/{serial}. ?model_id narrows the
// lookup when several models share a serial.
func (h *AssetsHandler) GetBySerial(w http.ResponseWriter, r *http.Request) {
	modelID, err := queryInt(r, "model_id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid model_id")
		return
	}

	asset, err := store.GetAssetBySerial(r.Context(), h.DB, modelID, r.PathValue("serial"))
	if err != nil {
		slog.Error("failed to get asset by serial", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get asset")
		return
	}
	if asset == nil {
		jsonError(w, http.StatusNotFound, "asset not found")
		return
	}
	jsonResponse(w, http.StatusOK, asset)
}

// Movements handles GET /api/assets/{id}/movements.
func (h *AssetsHandler) Movements(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	asset, err := store.GetAsset(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get asset", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list movements")
		return
	}
	if asset == nil {
		jsonError(w, http.StatusNotFound, "asset not found")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	movements, err := store.ListMovementsForAsset(r.Context(), h.DB, id, limit)
	if err != nil {
		slog.Error("failed to list movements", "asset", id, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list movements")
		return
	}
	if movements == nil {
		movements = []model.Movement{}
	}
	jsonResponse(w, http.StatusOK, movements)
}

// Verify handles GET /api/assets/{id}/verify.
func (h *AssetsHandler) Verify(w http.ResponseWriter, r *http.Request) {
	v, err := lifecycle.Verify(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		engineError(w, err)
		return
	}
	if !v.Consistent {
		slog.Warn("asset disagrees with its ledger", "asset", v.AssetID, "problems", v.Problems)
	}
	jsonResponse(w, http.StatusOK, v)
}

// Receive handles POST /api/assets/receive. It answers 201 when at least one
// item was received and 422 when every item failed.
func (h *AssetsHandler) Receive(w http.ResponseWriter, r *http.Request) {
	var req lifecycle.ReceiveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	claims := GetClaims(r.Context())
	result, err := h.Engine.Receive(r.Context(), req, claims.Username)
	if err != nil {
		engineError(w, err)
		return
	}

	slog.Info("assets received", "user", claims.Username, "location", req.LocationID,
		"received", len(result.Received), "failed", len(result.Failed))

	status := http.StatusCreated
	if len(result.Received) == 0 {
		status = http.StatusUnprocessableEntity
	}
	jsonResponse(w, status, result)
}

// operation decodes the optional request body, runs op and writes the
// resulting asset.
func operation[T any](w http.ResponseWriter, r *http.Request, name string,
	op func(r *http.Request, id string, req T, actor string) (*model.Asset, error)) {
	var req T
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	claims := GetClaims(r.Context())
	asset, err := op(r, r.PathValue("id"), req, claims.Username)
	if err != nil {
		engineError(w, err)
		return
	}

	slog.Info("asset "+name, "user", claims.Username, "asset", asset.ID, "serial", asset.SerialNo,
		"status", asset.Status, "version", asset.Version)
	jsonResponse(w, http.StatusOK, asset)
}

// Transfer handles POST /api/assets/{id}/transfer.
func (h *AssetsHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	operation(w, r, "transferred", func(r *http.Request, id string, req lifecycle.TransferRequest, actor string) (*model.Asset, error) {
		return h.Engine.Transfer(r.Context(), id, req, actor)
	})
}

// Reserve handles POST /api/assets/{id}/reserve.
func (h *AssetsHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	operation(w, r, "reserved", func(r *http.Request, id string, req lifecycle.NotesRequest, actor string) (*model.Asset, error) {
		return h.Engine.Reserve(r.Context(), id, req, actor)
	})
}

// Unreserve handles POST /api/assets/{id}/unreserve.
func (h *AssetsHandler) Unreserve(w http.ResponseWriter, r *http.Request) {
	operation(w, r, "unreserved", func(r *http.Request, id string, req lifecycle.NotesRequest, actor string) (*model.Asset, error) {
		return h.Engine.Unreserve(r.Context(), id, req, actor)
	})
}

// Deploy handles POST /api/assets/{id}/deploy.
func (h *AssetsHandler) Deploy(w http.ResponseWriter, r *http.Request) {
	operation(w, r, "deployed", func(r *http.Request, id string, req lifecycle.DeployRequest, actor string) (*model.Asset, error) {
		return h.Engine.Deploy(r.Context(), id, req, actor)
	})
}

// Return handles POST /api/assets/{id}/return.
func (h *AssetsHandler) Return(w http.ResponseWriter, r *http.Request) {
	operation(w, r, "returned", func(r *http.Request, id string, req lifecycle.ReturnRequest, actor string) (*model.Asset, error) {
		return h.Engine.Return(r.Context(), id, req, actor)
	})
}

// MarkDefective handles POST /api/assets/{id}/defective.
func (h *AssetsHandler) MarkDefective(w http.ResponseWriter, r *http.Request) {
	operation(w, r, "marked defective", func(r *http.Request, id string, req lifecycle.LocationRequest, actor string) (*model.Asset, error) {
		return h.Engine.MarkDefective(r.Context(), id, req, actor)
	})
}

// Repair handles POST /api/assets/{id}/repair.
func (h *AssetsHandler) Repair(w http.ResponseWriter, r *http.Request) {
	operation(w, r, "repaired", func(r *http.Request, id string, req lifecycle.LocationRequest, actor string) (*model.Asset, error) {
		return h.Engine.Repair(r.Context(), id, req, actor)
	})
}

// Scrap handles POST /api/assets/{id}/scrap.
func (h *AssetsHandler) Scrap(w http.ResponseWriter, r *http.Request) {
	operation(w, r, "scrapped", func(r *http.Request, id string, req lifecycle.NotesRequest, actor string) (*model.Asset, error) {
		return h.Engine.Scrap(r.Context(), id, req, actor)
	})
}

// Adjust handles PUT /api/assets/{id}/status.
func (h *AssetsHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	operation(w, r, "adjusted", func(r *http.Request, id string, req lifecycle.AdjustRequest, actor string) (*model.Asset, error) {
		return h.Engine.Adjust(r.Context(), id, req, actor)
	})
}
