package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/sledilnik/internal/model"
	"github.com/erazemk/sledilnik/internal/store"
)

// StockHandler serves asset counts per model, location and status.
type StockHandler struct {
	DB *sql.DB
}

// List handles GET /api/stock.
func (h *StockHandler) List(w http.ResponseWriter, r *http.Request) {
	var filter store.StockFilter
	var err error
	if filter.ModelID, err = queryInt(r, "model_id"); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid model_id")
		return
	}
	if filter.LocationID, err = queryInt(r, "location_id"); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid location_id")
		return
	}
	filter.IncludeScrapped, _ = strconv.ParseBool(r.URL.Query().Get("include_scrapped"))

	levels, err := store.ListStock(r.Context(), h.DB, filter)
	if err != nil {
		slog.Error("failed to list stock", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list stock")
		return
	}
	if levels == nil {
		levels = []model.StockLevel{}
	}
	jsonResponse(w, http.StatusOK, levels)
}
