package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"

	"github.com/erazemk/sledilnik/internal/model"
	"github.com/erazemk/sledilnik/internal/store"
)

// TicketsHandler handles customer sites and service tickets.
type TicketsHandler struct {
	DB *sql.DB
}

type createSiteRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

type createTicketRequest struct {
	Code   string `json:"code"`
	SiteID *int64 `json:"site_id"`
}

// ListSites handles GET /api/sites.
func (h *TicketsHandler) ListSites(w http.ResponseWriter, r *http.Request) {
	sites, err := store.ListSites(r.Context(), h.DB)
	if err != nil {
		slog.Error("failed to list sites", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list sites")
		return
	}
	if sites == nil {
		sites = []model.Site{}
	}
	jsonResponse(w, http.StatusOK, sites)
}

// CreateSite handles POST /api/sites.
func (h *TicketsHandler) CreateSite(w http.ResponseWriter, r *http.Request) {
	var req createSiteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		jsonError(w, http.StatusBadRequest, "name required")
		return
	}

	site, err := store.CreateSite(r.Context(), h.DB, req.Name, strings.TrimSpace(req.Address))
	if err != nil {
		slog.Error("failed to create site", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to create site")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("site created", "user", claims.Username, "site", req.Name)
	jsonResponse(w, http.StatusCreated, site)
}

// List handles GET /api/tickets.
func (h *TicketsHandler) List(w http.ResponseWriter, r *http.Request) {
	siteID, err := queryInt(r, "site_id")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid site_id")
		return
	}

	tickets, err := store.ListTickets(r.Context(), h.DB, siteID)
	if err != nil {
		slog.Error("failed to list tickets", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list tickets")
		return
	}
	if tickets == nil {
		tickets = []model.Ticket{}
	}
	jsonResponse(w, http.StatusOK, tickets)
}

// Create handles POST /api/tickets.
func (h *TicketsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTicketRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Code = strings.TrimSpace(req.Code)
	if req.Code == "" {
		jsonError(w, http.StatusBadRequest, "code required")
		return
	}

	if req.SiteID != nil {
		site, err := store.GetSite(r.Context(), h.DB, *req.SiteID)
		if err != nil {
			slog.Error("failed to get site", "error", err)
			jsonError(w, http.StatusInternalServerError, "failed to create ticket")
			return
		}
		if site == nil {
			jsonError(w, http.StatusBadRequest, "site not found")
			return
		}
	}

	ticket, err := store.CreateTicket(r.Context(), h.DB, req.Code, req.SiteID)
	if store.IsUniqueViolation(err) {
		jsonError(w, http.StatusConflict, "ticket code already exists")
		return
	}
	if err != nil {
		slog.Error("failed to create ticket", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to create ticket")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("ticket created", "user", claims.Username, "ticket", req.Code)
	jsonResponse(w, http.StatusCreated, ticket)
}

// Get handles GET /api/tickets/{id}.
func (h *TicketsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid ticket id")
		return
	}

	ticket, err := store.GetTicket(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get ticket", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get ticket")
		return
	}
	if ticket == nil {
		jsonError(w, http.StatusNotFound, "ticket not found")
		return
	}

	jsonResponse(w, http.StatusOK, ticket)
}

// Assets handles GET /api/tickets/{id}/assets: the units currently deployed
// for the ticket.
func (h *TicketsHandler) Assets(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid ticket id")
		return
	}
	listAssets(w, r, h.DB, store.AssetFilter{TicketID: id})
}
