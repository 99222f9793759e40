package api

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/erazemk/sledilnik/internal/lifecycle"
	"github.com/erazemk/sledilnik/internal/model"
)

// NewRouter creates the API router with all endpoints registered. Tokens are
// issued with tokenTTL; zero uses the auth package default.
func NewRouter(db *sql.DB, jwtSecret string, tokenTTL time.Duration) http.Handler {
	mux := http.NewServeMux()

	engine := lifecycle.New(db)

	authHandler := &AuthHandler{DB: db, JWTSecret: jwtSecret, TokenTTL: tokenTTL}
	usersHandler := &UsersHandler{DB: db}
	locationsHandler := &LocationsHandler{DB: db}
	modelsHandler := &ModelsHandler{DB: db}
	ticketsHandler := &TicketsHandler{DB: db}
	assetsHandler := &AssetsHandler{DB: db, Engine: engine}
	movementsHandler := &MovementsHandler{DB: db}
	stockHandler := &StockHandler{DB: db}

	authMW := AuthMiddleware(jwtSecret, db)
	requireAdmin := RequireRole(model.RoleAdmin)
	requireManager := RequireRole(model.RoleManager)
	requireTechnician := RequireRole(model.RoleTechnician)

	// Public: login.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	// Authenticated routes.
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))

	// Users (admin only).
	mux.Handle("GET /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.List))))
	mux.Handle("POST /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.Create))))
	mux.Handle("GET /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Get))))
	mux.Handle("PUT /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Update))))
	mux.Handle("PUT /api/users/{id}/password", authMW(requireAdmin(http.HandlerFunc(usersHandler.ResetPassword))))
	mux.Handle("DELETE /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Delete))))
	mux.Handle("GET /api/users/{id}/movements", authMW(requireAdmin(http.HandlerFunc(usersHandler.Movements))))

	// Equipment models: read (all roles), write (manager+).
	mux.Handle("GET /api/models", authMW(http.HandlerFunc(modelsHandler.List)))
	mux.Handle("POST /api/models", authMW(requireManager(http.HandlerFunc(modelsHandler.Create))))
	mux.Handle("GET /api/models/{id}", authMW(http.HandlerFunc(modelsHandler.Get)))
	mux.Handle("PUT /api/models/{id}", authMW(requireManager(http.HandlerFunc(modelsHandler.Update))))
	mux.Handle("DELETE /api/models/{id}", authMW(requireManager(http.HandlerFunc(modelsHandler.Delete))))
	mux.Handle("PUT /api/models/{id}/photo", authMW(requireManager(http.HandlerFunc(modelsHandler.UploadPhoto))))
	mux.Handle("GET /api/models/{id}/photo", authMW(http.HandlerFunc(modelsHandler.GetPhoto)))

	// Locations: read (all roles), write (manager+).
	mux.Handle("GET /api/locations", authMW(http.HandlerFunc(locationsHandler.List)))
	mux.Handle("POST /api/locations", authMW(requireManager(http.HandlerFunc(locationsHandler.Create))))
	mux.Handle("GET /api/locations/{id}", authMW(http.HandlerFunc(locationsHandler.Get)))
	mux.Handle("PUT /api/locations/{id}", authMW(requireManager(http.HandlerFunc(locationsHandler.Update))))
	mux.Handle("DELETE /api/locations/{id}", authMW(requireManager(http.HandlerFunc(locationsHandler.Delete))))
	mux.Handle("GET /api/locations/{id}/assets", authMW(http.HandlerFunc(locationsHandler.Assets)))

	// Sites and tickets: read (all roles), write (manager+).
	mux.Handle("GET /api/sites", authMW(http.HandlerFunc(ticketsHandler.ListSites)))
	mux.Handle("POST /api/sites", authMW(requireManager(http.HandlerFunc(ticketsHandler.CreateSite))))
	mux.Handle("GET /api/tickets", authMW(http.HandlerFunc(ticketsHandler.List)))
	mux.Handle("POST /api/tickets", authMW(requireManager(http.HandlerFunc(ticketsHandler.Create))))
	mux.Handle("GET /api/tickets/{id}", authMW(http.HandlerFunc(ticketsHandler.Get)))
	mux.Handle("GET /api/tickets/{id}/assets", authMW(http.HandlerFunc(ticketsHandler.Assets)))

	// Assets: read (all roles).
	mux.Handle("GET /api/assets", authMW(http.HandlerFunc(assetsHandler.List)))
	mux.Handle("GET /api/assets/{id}", authMW(http.HandlerFunc(assetsHandler.Get)))
	mux.Handle("GET /api/serials/{serial}", authMW(http.HandlerFunc(assetsHandler.GetBySerial)))
	mux.Handle("GET /api/assets/{id}/movements", authMW(http.HandlerFunc(assetsHandler.Movements)))
	mux.Handle("GET /api/assets/{id}/verify", authMW(http.HandlerFunc(assetsHandler.Verify)))
	mux.Handle("GET /api/movements", authMW(http.HandlerFunc(movementsHandler.List)))
	mux.Handle("GET /api/stock", authMW(http.HandlerFunc(stockHandler.List)))

	// Asset lifecycle: field work (technician+), stock control (manager+).
	mux.Handle("POST /api/assets/receive", authMW(requireManager(http.HandlerFunc(assetsHandler.Receive))))
	mux.Handle("POST /api/assets/{id}/transfer", authMW(requireTechnician(http.HandlerFunc(assetsHandler.Transfer))))
	mux.Handle("POST /api/assets/{id}/reserve", authMW(requireTechnician(http.HandlerFunc(assetsHandler.Reserve))))
	mux.Handle("POST /api/assets/{id}/unreserve", authMW(requireTechnician(http.HandlerFunc(assetsHandler.Unreserve))))
	mux.Handle("POST /api/assets/{id}/deploy", authMW(requireTechnician(http.HandlerFunc(assetsHandler.Deploy))))
	mux.Handle("POST /api/assets/{id}/return", authMW(requireTechnician(http.HandlerFunc(assetsHandler.Return))))
	mux.Handle("POST /api/assets/{id}/defective", authMW(requireTechnician(http.HandlerFunc(assetsHandler.MarkDefective))))
	mux.Handle("POST /api/assets/{id}/repair", authMW(requireManager(http.HandlerFunc(assetsHandler.Repair))))
	mux.Handle("POST /api/assets/{id}/scrap", authMW(requireManager(http.HandlerFunc(assetsHandler.Scrap))))
	mux.Handle("PUT /api/assets/{id}/status", authMW(requireManager(http.HandlerFunc(assetsHandler.Adjust))))

	return mux
}
