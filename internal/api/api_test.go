package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/agrisense/agrisense/internal/anomaly"
	"github.com/agrisense/agrisense/internal/ingest"
	"github.com/agrisense/agrisense/internal/models"
	"github.com/agrisense/agrisense/internal/storage"
)

type memoryReadingRepo struct {
	records []*storage.ReadingRecord
}

func (r *memoryReadingRepo) InsertBatch(ctx context.Context, records []*storage.ReadingRecord) error {
	r.records = append(r.records, records...)
	return nil
}

func (r *memoryReadingRepo) Query(ctx context.Context, filter *storage.ReadingFilter) ([]*storage.ReadingRecord, error) {
	var result []*storage.ReadingRecord
	for _, rec := range r.records {
		if filter.PlotID != "" && rec.PlotID != filter.PlotID {
			continue
		}
		result = append(result, rec)
	}
	return result, nil
}

func (r *memoryReadingRepo) Count(ctx context.Context, filter *storage.ReadingFilter) (int64, error) {
	return int64(len(r.records)), nil
}

func (r *memoryReadingRepo) Latest(ctx context.Context, plotID string) ([]*storage.ReadingRecord, error) {
	return r.records, nil
}

func (r *memoryReadingRepo) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

// testServer creates an API server backed by a temp SQLite file and an
// in-memory reading repository.
func testServer(t *testing.T) (*Server, storage.Storage) {
	t.Helper()

	store := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "agrisense-test.db"))
	if err := store.Open(); err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate storage: %v", err)
	}

	readingRepo := &memoryReadingRepo{}
	buffer := storage.NewReadingBuffer(readingRepo, &storage.ReadingBufferConfig{
		BatchSize:     1,
		FlushInterval: time.Hour,
	})
	t.Cleanup(func() { buffer.Close() })

	detector := anomaly.NewDetector(nil, nil)
	t.Cleanup(detector.Close)

	processor := ingest.NewProcessor(buffer, detector, nil)

	cfg := &Config{
		Address:          ":0",
		JWTSecret:        []byte("test-jwt-secret-32-bytes-long!!"),
		AccessTokenTTL:   15 * time.Minute,
		RefreshTokenTTL:  24 * time.Hour,
		RateLimitPerIP:   100,
		RateLimitPerUser: 100,
		LockoutThreshold: 5,
		LockoutDuration:  30 * time.Minute,
		Verbose:          false,
	}

	srv, err := New(cfg, store, readingRepo, processor)
	if err != nil {
		t.Fatalf("create server: %v", err)
	}

	return srv, store
}

// createTestUser creates a user in the database for testing
func createTestUser(t *testing.T, store storage.Storage, username, password string, role models.Role) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	now := time.Now()
	user := &models.User{
		ID:           "test-" + username,
		Username:     username,
		Email:        username + "@test.com",
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := store.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}

	return user
}

// handler returns the HTTP handler for the server
func handler(srv *Server) http.Handler {
	return srv.server.Handler
}

// login obtains an access and refresh token pair for a seeded user.
func login(t *testing.T, srv *Server, username, password string) (access, refresh string) {
	t.Helper()

	body := `{"username":"` + username + `","password":"` + password + `"}`
	req := httptest.NewRequest("POST", "/api/token/", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(srv).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data struct {
			AccessToken  string `json:"access_token"`
			RefreshToken string `json:"refresh_token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return resp.Data.AccessToken, resp.Data.RefreshToken
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := testServer(t)

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()

	handler(srv).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestObtainToken_Success(t *testing.T) {
	srv, store := testServer(t)

	createTestUser(t, store, "testuser", "TestPassword123!", models.RoleFarmer)

	body := `{"username":"testuser","password":"TestPassword123!"}`
	req := httptest.NewRequest("POST", "/api/token/", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler(srv).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d; body: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp struct {
		Data struct {
			AccessToken  string `json:"access_token"`
			RefreshToken string `json:"refresh_token"`
			ExpiresIn    int    `json:"expires_in"`
			TokenType    string `json:"token_type"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if resp.Data.AccessToken == "" {
		t.Error("expected non-empty access_token")
	}
	if resp.Data.RefreshToken == "" {
		t.Error("expected non-empty refresh_token")
	}
	if resp.Data.TokenType != "Bearer" {
		t.Errorf("token_type = %q, want Bearer", resp.Data.TokenType)
	}
}

func TestObtainToken_InvalidCredentials(t *testing.T) {
	srv, store := testServer(t)

	createTestUser(t, store, "testuser", "TestPassword123!", models.RoleFarmer)

	body := `{"username":"testuser","password":"wrongpassword"}`
	req := httptest.NewRequest("POST", "/api/token/", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler(srv).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestObtainToken_UserNotFound(t *testing.T) {
	srv, _ := testServer(t)

	body := `{"username":"nonexistent","password":"password"}`
	req := httptest.NewRequest("POST", "/api/token/", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler(srv).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRefresh_Success(t *testing.T) {
	srv, store := testServer(t)

	createTestUser(t, store, "testuser", "TestPassword123!", models.RoleFarmer)
	_, refreshToken := login(t, srv, "testuser", "TestPassword123!")

	body := `{"refresh_token":"` + refreshToken + `"}`
	req := httptest.NewRequest("POST", "/api/token/refresh/", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(srv).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d; body: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
}

func TestProtectedEndpoint_NoToken(t *testing.T) {
	srv, _ := testServer(t)

	req := httptest.NewRequest("GET", "/api/users/me", nil)
	rec := httptest.NewRecorder()

	handler(srv).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestProtectedEndpoint_WithToken(t *testing.T) {
	srv, store := testServer(t)

	createTestUser(t, store, "testuser", "TestPassword123!", models.RoleFarmer)
	accessToken, _ := login(t, srv, "testuser", "TestPassword123!")

	req := httptest.NewRequest("GET", "/api/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	rec := httptest.NewRecorder()

	handler(srv).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d; body: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
}

func TestAdminEndpoint_NonAdmin(t *testing.T) {
	srv, store := testServer(t)

	createTestUser(t, store, "farmer", "TestPassword123!", models.RoleFarmer)
	accessToken, _ := login(t, srv, "farmer", "TestPassword123!")

	req := httptest.NewRequest("GET", "/api/users/", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	rec := httptest.NewRecorder()

	handler(srv).ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestAlertFlow_ResolveAsFarmerForbidden(t *testing.T) {
	srv, store := testServer(t)

	createTestUser(t, store, "farmer", "TestPassword123!", models.RoleFarmer)
	accessToken, _ := login(t, srv, "farmer", "TestPassword123!")

	plot := models.NewPlot("north-field", "wheat")
	plot.ID = "plot-1"
	if err := store.Plots().Create(context.Background(), plot); err != nil {
		t.Fatalf("create plot: %v", err)
	}

	alert := models.NewAlert("plot-1", models.SensorMoisture, models.AnomalyRapidDrop, models.SeverityHigh, 12.5, 0.85, "moisture dropping")
	alert.ID = "alert-1"
	if err := store.Alerts().Create(context.Background(), alert); err != nil {
		t.Fatalf("create alert: %v", err)
	}

	req := httptest.NewRequest("POST", "/api/alerts/alert-1/resolve/", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	rec := httptest.NewRecorder()
	handler(srv).ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestAlertFlow_ResolveAsOperator(t *testing.T) {
	srv, store := testServer(t)

	createTestUser(t, store, "operator", "TestPassword123!", models.RoleOperator)
	accessToken, _ := login(t, srv, "operator", "TestPassword123!")

	plot := models.NewPlot("north-field", "wheat")
	plot.ID = "plot-1"
	if err := store.Plots().Create(context.Background(), plot); err != nil {
		t.Fatalf("create plot: %v", err)
	}

	alert := models.NewAlert("plot-1", models.SensorMoisture, models.AnomalyRapidDrop, models.SeverityHigh, 12.5, 0.85, "moisture dropping")
	alert.ID = "alert-1"
	if err := store.Alerts().Create(context.Background(), alert); err != nil {
		t.Fatalf("create alert: %v", err)
	}

	req := httptest.NewRequest("POST", "/api/alerts/alert-1/resolve/", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	rec := httptest.NewRecorder()
	handler(srv).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	// Active list no longer contains the alert.
	listReq := httptest.NewRequest("GET", "/api/alerts/?resolved=false", nil)
	listReq.Header.Set("Authorization", "Bearer "+accessToken)
	listRec := httptest.NewRecorder()
	handler(srv).ServeHTTP(listRec, listReq)

	var listResp struct {
		Data []*models.Alert `json:"data"`
	}
	if err := json.NewDecoder(listRec.Body).Decode(&listResp); err != nil {
		t.Fatalf("decode list response: %v", err)
	}
	for _, a := range listResp.Data {
		if a.ID == "alert-1" {
			t.Error("resolved alert still listed as active")
		}
	}
}

func TestSensorReadingFlow(t *testing.T) {
	srv, store := testServer(t)

	createTestUser(t, store, "operator", "TestPassword123!", models.RoleOperator)
	accessToken, _ := login(t, srv, "operator", "TestPassword123!")

	body := `{"plot":"plot-1","sensor_type":"moisture","value":44.5,"source":"dev-1"}`
	req := httptest.NewRequest("POST", "/api/sensor-readings/", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)
	rec := httptest.NewRecorder()
	handler(srv).ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d; body: %s", rec.Code, http.StatusAccepted, rec.Body.String())
	}

	listReq := httptest.NewRequest("GET", "/api/sensor-readings/?plot=plot-1&range=24h", nil)
	listReq.Header.Set("Authorization", "Bearer "+accessToken)
	listRec := httptest.NewRecorder()
	handler(srv).ServeHTTP(listRec, listReq)

	if listRec.Code != http.StatusOK {
		t.Fatalf("list status = %d; body: %s", listRec.Code, listRec.Body.String())
	}

	var listResp struct {
		Data []*models.SensorReading `json:"data"`
	}
	if err := json.NewDecoder(listRec.Body).Decode(&listResp); err != nil {
		t.Fatalf("decode list response: %v", err)
	}
	if len(listResp.Data) != 1 {
		t.Fatalf("readings = %d, want 1", len(listResp.Data))
	}
	if listResp.Data[0].Value != 44.5 {
		t.Errorf("value = %v, want 44.5", listResp.Data[0].Value)
	}
}

func TestLogout(t *testing.T) {
	srv, store := testServer(t)

	createTestUser(t, store, "testuser", "TestPassword123!", models.RoleFarmer)
	accessToken, refreshToken := login(t, srv, "testuser", "TestPassword123!")

	logoutBody := `{"refresh_token":"` + refreshToken + `"}`
	logoutReq := httptest.NewRequest("POST", "/api/token/logout/", bytes.NewBufferString(logoutBody))
	logoutReq.Header.Set("Content-Type", "application/json")
	logoutReq.Header.Set("Authorization", "Bearer "+accessToken)
	logoutRec := httptest.NewRecorder()

	handler(srv).ServeHTTP(logoutRec, logoutReq)

	if logoutRec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", logoutRec.Code, http.StatusNoContent)
	}

	// Refresh with the revoked token must fail.
	refreshBody := `{"refresh_token":"` + refreshToken + `"}`
	refreshReq := httptest.NewRequest("POST", "/api/token/refresh/", bytes.NewBufferString(refreshBody))
	refreshReq.Header.Set("Content-Type", "application/json")
	refreshRec := httptest.NewRecorder()
	handler(srv).ServeHTTP(refreshRec, refreshReq)

	if refreshRec.Code != http.StatusUnauthorized {
		t.Errorf("refresh after logout: status = %d, want %d", refreshRec.Code, http.StatusUnauthorized)
	}
}
