package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/sledilnik/internal/model"
	"github.com/erazemk/sledilnik/internal/store"
)

// MovementsHandler serves the movement ledger across assets.
type MovementsHandler struct {
	DB *sql.DB
}

// List handles GET /api/movements.
func (h *MovementsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.MovementFilter{
		AssetID:     q.Get("asset_id"),
		Type:        q.Get("type"),
		PerformedBy: q.Get("performed_by"),
	}

	var err error
	if filter.TicketID, err = queryInt(r, "ticket_id"); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid ticket_id")
		return
	}
	if filter.LocationID, err = queryInt(r, "location_id"); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid location_id")
		return
	}

	limit, _ := strconv.Atoi(q.Get("limit"))
	movements, err := store.ListMovements(r.Context(), h.DB, filter, limit)
	if err != nil {
		slog.Error("failed to list movements", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list movements")
		return
	}
	if movements == nil {
		movements = []model.Movement{}
	}
	jsonResponse(w, http.StatusOK, movements)
}
