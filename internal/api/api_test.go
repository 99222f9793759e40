package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/erazemk/sledilnik/internal/auth"
	"github.com/erazemk/sledilnik/internal/db"
	"github.com/erazemk/sledilnik/internal/lifecycle"
	"github.com/erazemk/sledilnik/internal/model"
	"github.com/erazemk/sledilnik/internal/store"
	"golang.org/x/crypto/bcrypt"
)

const testJWTSecret = "test-secret"

func setupTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	database := db.NewTestDB(t)
	router := NewRouter(database, testJWTSecret, 0)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	// Create admin user.
	ctx := context.Background()
	hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	store.CreateUser(ctx, database, "admin", string(hash), model.RoleAdmin)

	// Get token.
	body, _ := json.Marshal(map[string]string{"username": "admin", "password": "password"})
	resp, err := http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed: %d", resp.StatusCode)
	}

	var loginResp loginResponse
	json.NewDecoder(resp.Body).Decode(&loginResp)
	if loginResp.Token == "" {
		t.Fatal("empty token from login")
	}

	return server, loginResp.Token
}

func authRequest(method, url, token string, body any) (*http.Request, error) {
	var bodyReader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(data)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// call sends an authenticated request, checks the status and decodes the
// response into out when out is not nil.
func call(t *testing.T, method, url, token string, body any, wantStatus int, out any) {
	t.Helper()
	req, err := authRequest(method, url, token, body)
	if err != nil {
		t.Fatalf("building %s %s: %v", method, url, err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		var errBody map[string]any
		json.NewDecoder(resp.Body).Decode(&errBody)
		t.Fatalf("%s %s: expected %d, got %d (%v)", method, url, wantStatus, resp.StatusCode, errBody)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding %s %s: %v", method, url, err)
		}
	}
}

type catalog struct {
	warehouse model.Location
	van       model.Location
	router    model.EquipmentModel
	ticket    model.Ticket
}

func setupCatalog(t *testing.T, url, token string) catalog {
	t.Helper()
	var c catalog
	call(t, "POST", url+"/api/locations", token, map[string]string{"name": "Main", "type": "warehouse"}, http.StatusCreated, &c.warehouse)
	call(t, "POST", url+"/api/locations", token, map[string]string{"name": "Van 1", "type": "vehicle"}, http.StatusCreated, &c.van)
	call(t, "POST", url+"/api/models", token, map[string]any{"name": "Router X1", "manufacturer": "Acme"}, http.StatusCreated, &c.router)

	var site model.Site
	call(t, "POST", url+"/api/sites", token, map[string]string{"name": "Customer A", "address": "Main St 1"}, http.StatusCreated, &site)
	call(t, "POST", url+"/api/tickets", token, map[string]any{"code": "T-100", "site_id": site.ID}, http.StatusCreated, &c.ticket)
	return c
}

func receive(t *testing.T, url, token string, c catalog, serials ...string) lifecycle.ReceiveResult {
	t.Helper()
	items := make([]map[string]any, len(serials))
	for i, s := range serials {
		items[i] = map[string]any{"model_id": c.router.ID, "serial_no": s}
	}
	var result lifecycle.ReceiveResult
	req, _ := authRequest("POST", url+"/api/assets/receive", token, map[string]any{
		"location_id": c.warehouse.ID,
		"items":       items,
	})
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	defer resp.Body.Close()
	json.NewDecoder(resp.Body).Decode(&result)
	return result
}

func TestLoginEndpoint(t *testing.T) {
	server, _ := setupTestServer(t)

	// Test invalid credentials.
	body, _ := json.Marshal(map[string]string{"username": "admin", "password": "wrong"})
	resp, _ := http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad password, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestLogoutRevokesToken(t *testing.T) {
	server, token := setupTestServer(t)

	call(t, "GET", server.URL+"/api/locations", token, nil, http.StatusOK, nil)
	call(t, "POST", server.URL+"/api/auth/logout", token, nil, http.StatusOK, nil)
	call(t, "GET", server.URL+"/api/locations", token, nil, http.StatusUnauthorized, nil)
}

func TestCatalogAPIFlow(t *testing.T) {
	server, token := setupTestServer(t)
	c := setupCatalog(t, server.URL, token)

	var vehicles []model.Location
	call(t, "GET", server.URL+"/api/locations?type=vehicle", token, nil, http.StatusOK, &vehicles)
	if len(vehicles) != 1 || vehicles[0].ID != c.van.ID {
		t.Errorf("expected only the van, got %+v", vehicles)
	}

	call(t, "POST", server.URL+"/api/locations", token, map[string]string{"name": "Shed", "type": "garage"}, http.StatusBadRequest, nil)
	call(t, "POST", server.URL+"/api/tickets", token, map[string]any{"code": "T-100"}, http.StatusConflict, nil)
	call(t, "GET", server.URL+"/api/models/9999", token, nil, http.StatusNotFound, nil)

	var models []model.EquipmentModel
	call(t, "GET", server.URL+"/api/models?serial_tracked=true", token, nil, http.StatusOK, &models)
	if len(models) != 1 || !models[0].SerialTracked {
		t.Errorf("expected one serial-tracked model, got %+v", models)
	}
}

func TestAssetLifecycleAPI(t *testing.T) {
	server, token := setupTestServer(t)
	c := setupCatalog(t, server.URL, token)

	result := receive(t, server.URL, token, c, "sn-001", "SN-002")
	if len(result.Received) != 2 || len(result.Failed) != 0 {
		t.Fatalf("expected 2 received, got %+v", result)
	}
	asset := result.Received[0]
	if asset.SerialNo != "SN-001" || asset.Status != model.AssetStatusInStock {
		t.Fatalf("unexpected received asset %+v", asset)
	}

	base := server.URL + "/api/assets/" + asset.ID

	var moved model.Asset
	call(t, "POST", base+"/transfer", token, map[string]any{"location_id": c.van.ID}, http.StatusOK, &moved)
	if *moved.LocationID != c.van.ID || moved.Version != 2 {
		t.Errorf("unexpected asset after transfer %+v", moved)
	}

	var deployed model.Asset
	call(t, "POST", base+"/deploy", token, map[string]any{"ticket_id": c.ticket.ID}, http.StatusOK, &deployed)
	if deployed.Status != model.AssetStatusDeployed || deployed.LocationID != nil || *deployed.TicketID != c.ticket.ID {
		t.Errorf("unexpected asset after deploy %+v", deployed)
	}

	var onTicket assetPage
	call(t, "GET", fmt.Sprintf("%s/api/tickets/%d/assets", server.URL, c.ticket.ID), token, nil, http.StatusOK, &onTicket)
	if onTicket.Total != 1 || onTicket.Assets[0].ID != asset.ID {
		t.Errorf("expected the deployed asset on the ticket, got %+v", onTicket)
	}

	var returned model.Asset
	call(t, "POST", base+"/return", token, map[string]any{"location_id": c.warehouse.ID}, http.StatusOK, &returned)
	if returned.Status != model.AssetStatusReturned || returned.TicketID != nil {
		t.Errorf("unexpected asset after return %+v", returned)
	}

	var movements []model.Movement
	call(t, "GET", base+"/movements", token, nil, http.StatusOK, &movements)
	if len(movements) != 4 {
		t.Fatalf("expected 4 movements, got %d", len(movements))
	}
	if movements[0].Type != model.MovementReturn || movements[3].Type != model.MovementReceive {
		t.Errorf("expected newest first, got %s ... %s", movements[0].Type, movements[3].Type)
	}

	var v lifecycle.Verification
	call(t, "GET", base+"/verify", token, nil, http.StatusOK, &v)
	if !v.Consistent || v.Movements != 4 {
		t.Errorf("expected a consistent ledger of 4, got %+v", v)
	}

	var bySerial model.Asset
	call(t, "GET", server.URL+"/api/serials/sn-001", token, nil, http.StatusOK, &bySerial)
	if bySerial.ID != asset.ID {
		t.Errorf("serial lookup returned %s, expected %s", bySerial.ID, asset.ID)
	}
	call(t, "GET", server.URL+"/api/serials/NOPE", token, nil, http.StatusNotFound, nil)
}

func TestEngineErrorsMapToStatus(t *testing.T) {
	server, token := setupTestServer(t)
	c := setupCatalog(t, server.URL, token)
	asset := receive(t, server.URL, token, c, "SN-1").Received[0]
	base := server.URL + "/api/assets/" + asset.ID

	var e engineErrorResponse
	call(t, "POST", base+"/return", token, map[string]any{"location_id": c.warehouse.ID}, http.StatusConflict, &e)
	if e.Kind != lifecycle.KindInvalidTransition || e.Status != model.AssetStatusInStock || e.Operation != "return" {
		t.Errorf("unexpected invalid transition body %+v", e)
	}

	call(t, "POST", server.URL+"/api/assets/nope/reserve", token, nil, http.StatusNotFound, &e)
	if e.Kind != lifecycle.KindNotFound {
		t.Errorf("expected not_found kind, got %s", e.Kind)
	}

	call(t, "POST", base+"/deploy", token, map[string]any{}, http.StatusBadRequest, &e)
	if e.Kind != lifecycle.KindValidation {
		t.Errorf("expected validation kind, got %s", e.Kind)
	}

	call(t, "PUT", base+"/status", token, map[string]any{"status": "scrapped"}, http.StatusBadRequest, nil)

	// Reserve with an empty body is allowed.
	call(t, "POST", base+"/reserve", token, nil, http.StatusOK, nil)
}

func TestReceiveReportsFailuresPerItem(t *testing.T) {
	server, token := setupTestServer(t)
	c := setupCatalog(t, server.URL, token)

	receive(t, server.URL, token, c, "DUP")
	result := receive(t, server.URL, token, c, "DUP", "NEW", "")
	if len(result.Received) != 1 || result.Received[0].SerialNo != "NEW" {
		t.Fatalf("expected only NEW to be received, got %+v", result.Received)
	}
	if len(result.Failed) != 2 {
		t.Fatalf("expected 2 failures, got %+v", result.Failed)
	}
	if result.Failed[0].Index != 0 || result.Failed[0].Kind != lifecycle.KindDuplicateSerial {
		t.Errorf("unexpected first failure %+v", result.Failed[0])
	}
	if result.Failed[1].Index != 2 || result.Failed[1].Kind != lifecycle.KindValidation {
		t.Errorf("unexpected second failure %+v", result.Failed[1])
	}

	req, _ := authRequest("POST", server.URL+"/api/assets/receive", token, map[string]any{
		"location_id": c.warehouse.ID,
		"items":       []map[string]any{{"model_id": c.router.ID, "serial_no": "DUP"}},
	})
	resp, _ := http.DefaultClient.Do(req)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 when nothing was received, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestStockAndListing(t *testing.T) {
	server, token := setupTestServer(t)
	c := setupCatalog(t, server.URL, token)
	result := receive(t, server.URL, token, c, "A1", "A2", "A3")
	call(t, "POST", server.URL+"/api/assets/"+result.Received[0].ID+"/scrap", token, nil, http.StatusOK, nil)

	var levels []model.StockLevel
	call(t, "GET", server.URL+"/api/stock", token, nil, http.StatusOK, &levels)
	if len(levels) != 1 || levels[0].Count != 2 || levels[0].Status != model.AssetStatusInStock {
		t.Errorf("expected 2 in stock, got %+v", levels)
	}

	call(t, "GET", server.URL+"/api/stock?include_scrapped=true", token, nil, http.StatusOK, &levels)
	if len(levels) != 2 {
		t.Errorf("expected scrapped row too, got %+v", levels)
	}

	var page assetPage
	call(t, "GET", server.URL+"/api/assets?status=in_stock&limit=1", token, nil, http.StatusOK, &page)
	if page.Total != 2 || len(page.Assets) != 1 {
		t.Errorf("expected total 2 with one row, got %+v", page)
	}
	call(t, "GET", server.URL+"/api/assets?status=lost", token, nil, http.StatusBadRequest, nil)

	var movements []model.Movement
	call(t, "GET", server.URL+"/api/movements?type=scrap", token, nil, http.StatusOK, &movements)
	if len(movements) != 1 || movements[0].AssetID != result.Received[0].ID {
		t.Errorf("expected one scrap movement, got %+v", movements)
	}

	call(t, "DELETE", fmt.Sprintf("%s/api/locations/%d", server.URL, c.warehouse.ID), token, nil, http.StatusConflict, nil)
	call(t, "DELETE", fmt.Sprintf("%s/api/locations/%d", server.URL, c.van.ID), token, nil, http.StatusOK, nil)
}

func TestUnauthenticatedAccess(t *testing.T) {
	database := db.NewTestDB(t)
	router := NewRouter(database, testJWTSecret, 0)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	resp, _ := http.Get(server.URL + "/api/assets")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for unauthenticated request, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestRoleBasedAccess(t *testing.T) {
	server, adminToken := setupTestServer(t)
	c := setupCatalog(t, server.URL, adminToken)
	asset := receive(t, server.URL, adminToken, c, "R1").Received[0]

	techToken, _ := auth.GenerateToken(testJWTSecret, 0, 2, "tech1", model.RoleTechnician)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"technician cannot receive", "POST", "/api/assets/receive",
			map[string]any{"location_id": c.warehouse.ID, "items": []map[string]any{{"model_id": c.router.ID, "serial_no": "R2"}}},
			http.StatusForbidden},
		{"technician cannot scrap", "POST", "/api/assets/" + asset.ID + "/scrap", nil, http.StatusForbidden},
		{"technician cannot adjust", "PUT", "/api/assets/" + asset.ID + "/status",
			map[string]any{"status": "defective", "notes": "x"}, http.StatusForbidden},
		{"technician cannot manage users", "GET", "/api/users", nil, http.StatusForbidden},
		{"technician cannot create models", "POST", "/api/models", map[string]any{"name": "X"}, http.StatusForbidden},
		{"technician can transfer", "POST", "/api/assets/" + asset.ID + "/transfer",
			map[string]any{"location_id": c.van.ID}, http.StatusOK},
		{"technician can deploy", "POST", "/api/assets/" + asset.ID + "/deploy",
			map[string]any{"ticket_id": c.ticket.ID}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call(t, tt.method, server.URL+tt.path, techToken, tt.body, tt.want, nil)
		})
	}

	var movements []model.Movement
	call(t, "GET", server.URL+"/api/assets/"+asset.ID+"/movements?limit=1", adminToken, nil, http.StatusOK, &movements)
	if len(movements) != 1 || movements[0].PerformedBy != "tech1" {
		t.Errorf("expected the deploy by tech1, got %+v", movements)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := RecoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/assets", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 after panic, got %d", rec.Code)
	}
}

func TestUsersAPIFlow(t *testing.T) {
	server, token := setupTestServer(t)

	var tech model.User
	call(t, "POST", server.URL+"/api/users", token, map[string]string{
		"username": "tech2", "password": "field-password", "role": model.RoleTechnician,
	}, http.StatusCreated, &tech)
	call(t, "POST", server.URL+"/api/users", token, map[string]string{
		"username": "tech2", "password": "field-password", "role": model.RoleTechnician,
	}, http.StatusConflict, nil)
	call(t, "POST", server.URL+"/api/users", token, map[string]string{
		"username": "tech3", "password": "field-password", "role": "user",
	}, http.StatusBadRequest, nil)

	body, _ := json.Marshal(map[string]string{"username": "tech2", "password": "field-password"})
	resp, err := http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	var login loginResponse
	json.NewDecoder(resp.Body).Decode(&login)
	resp.Body.Close()
	if login.Role != model.RoleTechnician {
		t.Fatalf("expected technician login, got %+v", login)
	}

	call(t, "GET", server.URL+"/api/assets", login.Token, nil, http.StatusOK, nil)

	var trail []model.Movement
	call(t, "GET", fmt.Sprintf("%s/api/users/%d/movements", server.URL, tech.ID), token, nil, http.StatusOK, &trail)
	if len(trail) != 0 {
		t.Errorf("new user should have no movements, got %d", len(trail))
	}

	var admins []model.User
	call(t, "GET", server.URL+"/api/users?role=admin", token, nil, http.StatusOK, &admins)
	if len(admins) != 1 {
		t.Fatalf("expected one admin, got %+v", admins)
	}
	call(t, "PUT", fmt.Sprintf("%s/api/users/%d", server.URL, admins[0].ID), token,
		map[string]string{"role": model.RoleManager}, http.StatusConflict, nil)

	call(t, "DELETE", fmt.Sprintf("%s/api/users/%d", server.URL, tech.ID), token, nil, http.StatusOK, nil)
	call(t, "DELETE", fmt.Sprintf("%s/api/users/%d", server.URL, tech.ID), token, nil, http.StatusNotFound, nil)
	call(t, "PUT", fmt.Sprintf("%s/api/users/%d/password", server.URL, tech.ID), token,
		map[string]string{"password": "another-password"}, http.StatusNotFound, nil)
}
