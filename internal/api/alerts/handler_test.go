package alerts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/agrisense/agrisense/internal/models"
	"github.com/agrisense/agrisense/internal/storage"
)

// Mock repositories

type mockAlertRepository struct {
	alerts       []*models.Alert
	getByIDError error
	listError    error
	resolveError error
	lastFilter   *storage.AlertFilter
	resolveCalls int
}

func (m *mockAlertRepository) Create(ctx context.Context, alert *models.Alert) error {
	m.alerts = append(m.alerts, alert)
	return nil
}

func (m *mockAlertRepository) GetByID(ctx context.Context, id string) (*models.Alert, error) {
	if m.getByIDError != nil {
		return nil, m.getByIDError
	}
	for _, a := range m.alerts {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, nil
}

func (m *mockAlertRepository) List(ctx context.Context, filter *storage.AlertFilter) ([]*models.Alert, error) {
	if m.listError != nil {
		return nil, m.listError
	}
	m.lastFilter = filter
	var result []*models.Alert
	for _, a := range m.alerts {
		if filter.Resolved != nil && a.Resolved != *filter.Resolved {
			continue
		}
		if filter.PlotID != "" && a.PlotID != filter.PlotID {
			continue
		}
		result = append(result, a)
	}
	return result, nil
}

func (m *mockAlertRepository) Resolve(ctx context.Context, id string) error {
	m.resolveCalls++
	if m.resolveError != nil {
		return m.resolveError
	}
	for _, a := range m.alerts {
		if a.ID == id {
			if !a.Resolved {
				a.Resolved = true
				now := time.Now()
				a.ResolvedAt = &now
			}
			return nil
		}
	}
	return storage.ErrAlertNotFound
}

func (m *mockAlertRepository) CountUnresolved(ctx context.Context) (int64, error) {
	var n int64
	for _, a := range m.alerts {
		if !a.Resolved {
			n++
		}
	}
	return n, nil
}

type mockStorage struct {
	alertRepo *mockAlertRepository
}

func (m *mockStorage) Open() error                                      { return nil }
func (m *mockStorage) Close() error                                     { return nil }
func (m *mockStorage) Migrate() error                                   { return nil }
func (m *mockStorage) EnsureAdminUser() error                           { return nil }
func (m *mockStorage) Users() storage.UserRepository                    { return nil }
func (m *mockStorage) Plots() storage.PlotRepository                    { return nil }
func (m *mockStorage) Alerts() storage.AlertRepository                  { return m.alertRepo }
func (m *mockStorage) Recommendations() storage.RecommendationRepository { return nil }
func (m *mockStorage) Tokens() storage.TokenRepository                  { return nil }

func newMockStorage() (*mockStorage, *mockAlertRepository) {
	alertRepo := &mockAlertRepository{}
	return &mockStorage{alertRepo: alertRepo}, alertRepo
}

func seedAlert(id string, resolved bool) *models.Alert {
	a := models.NewAlert("plot-1", models.SensorMoisture, models.AnomalyRapidDrop, models.SeverityHigh, 12.5, 0.85, "moisture dropping fast")
	a.ID = id
	a.PlotName = "north-field"
	a.Resolved = resolved
	if resolved {
		now := time.Now()
		a.ResolvedAt = &now
	}
	return a
}

func requestWithID(method, target, id string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestList_Empty(t *testing.T) {
	mockStore, _ := newMockStorage()
	handler := NewHandler(mockStore)

	req := httptest.NewRequest("GET", "/api/alerts", nil)
	rec := httptest.NewRecorder()

	handler.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp struct {
		Data []*models.Alert `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Data) != 0 {
		t.Errorf("items count = %d, want 0", len(resp.Data))
	}
}

func TestList_ResolvedFilter(t *testing.T) {
	mockStore, mockRepo := newMockStorage()
	mockRepo.alerts = []*models.Alert{
		seedAlert("alert-1", false),
		seedAlert("alert-2", true),
		seedAlert("alert-3", false),
	}

	handler := NewHandler(mockStore)

	// Active alerts
	req := httptest.NewRequest("GET", "/api/alerts?resolved=false", nil)
	rec := httptest.NewRecorder()
	handler.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if mockRepo.lastFilter.Resolved == nil || *mockRepo.lastFilter.Resolved {
		t.Errorf("filter.Resolved = %v, want false", mockRepo.lastFilter.Resolved)
	}

	var resp struct {
		Data []*models.Alert `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Data) != 2 {
		t.Errorf("active count = %d, want 2", len(resp.Data))
	}

	// Resolved alerts
	req = httptest.NewRequest("GET", "/api/alerts?resolved=true", nil)
	rec = httptest.NewRecorder()
	handler.List(rec, req)

	if mockRepo.lastFilter.Resolved == nil || !*mockRepo.lastFilter.Resolved {
		t.Errorf("filter.Resolved = %v, want true", mockRepo.lastFilter.Resolved)
	}
	resp.Data = nil
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Data) != 1 {
		t.Errorf("resolved count = %d, want 1", len(resp.Data))
	}
}

func TestList_NoFilterReturnsAll(t *testing.T) {
	mockStore, mockRepo := newMockStorage()
	mockRepo.alerts = []*models.Alert{
		seedAlert("alert-1", false),
		seedAlert("alert-2", true),
	}

	handler := NewHandler(mockStore)
	req := httptest.NewRequest("GET", "/api/alerts", nil)
	rec := httptest.NewRecorder()
	handler.List(rec, req)

	if mockRepo.lastFilter.Resolved != nil {
		t.Errorf("filter.Resolved = %v, want nil", mockRepo.lastFilter.Resolved)
	}

	var resp struct {
		Data []*models.Alert `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Data) != 2 {
		t.Errorf("count = %d, want 2", len(resp.Data))
	}
}

func TestList_InvalidResolved(t *testing.T) {
	mockStore, _ := newMockStorage()
	handler := NewHandler(mockStore)

	req := httptest.NewRequest("GET", "/api/alerts?resolved=maybe", nil)
	rec := httptest.NewRecorder()
	handler.List(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestGet_NotFound(t *testing.T) {
	mockStore, _ := newMockStorage()
	handler := NewHandler(mockStore)

	req := requestWithID("GET", "/api/alerts/nope", "nope")
	rec := httptest.NewRecorder()
	handler.Get(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestResolve_Success(t *testing.T) {
	mockStore, mockRepo := newMockStorage()
	mockRepo.alerts = []*models.Alert{seedAlert("alert-1", false)}

	handler := NewHandler(mockStore)
	req := requestWithID("POST", "/api/alerts/alert-1/resolve", "alert-1")
	rec := httptest.NewRecorder()
	handler.Resolve(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp struct {
		Data *models.Alert `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Data.Resolved {
		t.Error("returned alert not marked resolved")
	}
	if resp.Data.ResolvedAt == nil {
		t.Error("resolved_at not set")
	}
}

func TestResolve_Idempotent(t *testing.T) {
	mockStore, mockRepo := newMockStorage()
	alert := seedAlert("alert-1", true)
	firstResolved := *alert.ResolvedAt
	mockRepo.alerts = []*models.Alert{alert}

	handler := NewHandler(mockStore)
	req := requestWithID("POST", "/api/alerts/alert-1/resolve", "alert-1")
	rec := httptest.NewRecorder()
	handler.Resolve(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !alert.ResolvedAt.Equal(firstResolved) {
		t.Error("resolving again changed the original resolution time")
	}
}

func TestResolve_NotFound(t *testing.T) {
	mockStore, _ := newMockStorage()
	handler := NewHandler(mockStore)

	req := requestWithID("POST", "/api/alerts/ghost/resolve", "ghost")
	rec := httptest.NewRecorder()
	handler.Resolve(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}

	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error.Code != "NOT_FOUND" {
		t.Errorf("error code = %q, want NOT_FOUND", resp.Error.Code)
	}
}

func TestSummary(t *testing.T) {
	mockStore, mockRepo := newMockStorage()
	mockRepo.alerts = []*models.Alert{
		seedAlert("alert-1", false),
		seedAlert("alert-2", false),
		seedAlert("alert-3", true),
	}

	handler := NewHandler(mockStore)
	req := httptest.NewRequest("GET", "/api/alerts/summary", nil)
	rec := httptest.NewRecorder()
	handler.Summary(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp struct {
		Data map[string]int64 `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data["unresolved"] != 2 {
		t.Errorf("unresolved = %d, want 2", resp.Data["unresolved"])
	}
}
