package readings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/agrisense/agrisense/internal/anomaly"
	"github.com/agrisense/agrisense/internal/ingest"
	"github.com/agrisense/agrisense/internal/models"
	"github.com/agrisense/agrisense/internal/storage"
)

type mockReadingRepo struct {
	records    []*storage.ReadingRecord
	lastFilter *storage.ReadingFilter
	queryError error
}

func (r *mockReadingRepo) InsertBatch(ctx context.Context, records []*storage.ReadingRecord) error {
	r.records = append(r.records, records...)
	return nil
}

func (r *mockReadingRepo) Query(ctx context.Context, filter *storage.ReadingFilter) ([]*storage.ReadingRecord, error) {
	if r.queryError != nil {
		return nil, r.queryError
	}
	r.lastFilter = filter
	return r.records, nil
}

func (r *mockReadingRepo) Count(ctx context.Context, filter *storage.ReadingFilter) (int64, error) {
	return int64(len(r.records)), nil
}

func (r *mockReadingRepo) Latest(ctx context.Context, plotID string) ([]*storage.ReadingRecord, error) {
	return r.records, nil
}

func (r *mockReadingRepo) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func newTestHandler(t *testing.T, opts *ingest.ProcessorOptions) (*Handler, *mockReadingRepo) {
	t.Helper()

	repo := &mockReadingRepo{}
	buffer := storage.NewReadingBuffer(repo, &storage.ReadingBufferConfig{
		BatchSize:     1, // Flush every reading so the mock repo sees them.
		FlushInterval: time.Hour,
	})
	t.Cleanup(func() { buffer.Close() })

	detectorOpts := anomaly.DefaultDetectorOptions()
	detectorOpts.Cooldown = 0
	detector := anomaly.NewDetector(nil, detectorOpts)
	t.Cleanup(detector.Close)

	processor := ingest.NewProcessor(buffer, detector, opts)
	return NewHandler(repo, processor, 5*time.Second, 0), repo
}

func record(plotID string, sensorType models.SensorType, value float64, ts time.Time) *storage.ReadingRecord {
	return &storage.ReadingRecord{
		ID:        "r-" + plotID,
		PlotID:    plotID,
		Type:      sensorType,
		Value:     value,
		Timestamp: ts,
	}
}

func TestList_RequiresPlot(t *testing.T) {
	handler, _ := newTestHandler(t, nil)

	req := httptest.NewRequest("GET", "/api/sensor-readings", nil)
	rec := httptest.NewRecorder()
	handler.List(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestList_DefaultRange(t *testing.T) {
	handler, repo := newTestHandler(t, nil)
	repo.records = []*storage.ReadingRecord{
		record("plot-1", models.SensorMoisture, 41, time.Now().Add(-time.Hour)),
		record("plot-1", models.SensorMoisture, 43, time.Now()),
	}

	req := httptest.NewRequest("GET", "/api/sensor-readings?plot=plot-1", nil)
	rec := httptest.NewRecorder()
	handler.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	if repo.lastFilter.PlotID != "plot-1" {
		t.Errorf("filter plot = %q, want plot-1", repo.lastFilter.PlotID)
	}
	if repo.lastFilter.Descending {
		t.Error("readings should be queried oldest first")
	}

	wantStart := time.Now().Add(-24 * time.Hour)
	if diff := repo.lastFilter.Start.Sub(wantStart); diff < -time.Minute || diff > time.Minute {
		t.Errorf("filter start = %v, want ~24h ago", repo.lastFilter.Start)
	}

	var resp struct {
		Data []*models.SensorReading `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Data) != 2 {
		t.Errorf("count = %d, want 2", len(resp.Data))
	}
}

func TestList_WeekRange(t *testing.T) {
	handler, repo := newTestHandler(t, nil)

	req := httptest.NewRequest("GET", "/api/sensor-readings?plot=plot-1&range=7d", nil)
	rec := httptest.NewRecorder()
	handler.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	wantStart := time.Now().Add(-7 * 24 * time.Hour)
	if diff := repo.lastFilter.Start.Sub(wantStart); diff < -time.Minute || diff > time.Minute {
		t.Errorf("filter start = %v, want ~7d ago", repo.lastFilter.Start)
	}
}

func TestList_InvalidRange(t *testing.T) {
	handler, _ := newTestHandler(t, nil)

	for _, rangeStr := range []string{"yesterday", "-24h", "0d", "xd"} {
		req := httptest.NewRequest("GET", "/api/sensor-readings?plot=plot-1&range="+rangeStr, nil)
		rec := httptest.NewRecorder()
		handler.List(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("range %q: status = %d, want %d", rangeStr, rec.Code, http.StatusBadRequest)
		}
	}
}

func TestList_SensorTypeFilter(t *testing.T) {
	handler, repo := newTestHandler(t, nil)

	req := httptest.NewRequest("GET", "/api/sensor-readings?plot=plot-1&sensor_type=temperature", nil)
	rec := httptest.NewRecorder()
	handler.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if len(repo.lastFilter.Types) != 1 || repo.lastFilter.Types[0] != models.SensorTemperature {
		t.Errorf("filter types = %v, want [temperature]", repo.lastFilter.Types)
	}
}

func TestList_InvalidSensorType(t *testing.T) {
	handler, _ := newTestHandler(t, nil)

	req := httptest.NewRequest("GET", "/api/sensor-readings?plot=plot-1&sensor_type=pressure", nil)
	rec := httptest.NewRecorder()
	handler.List(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestLatest_RequiresPlot(t *testing.T) {
	handler, _ := newTestHandler(t, nil)

	req := httptest.NewRequest("GET", "/api/sensor-readings/latest", nil)
	rec := httptest.NewRecorder()
	handler.Latest(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestCreate_Accepted(t *testing.T) {
	handler, repo := newTestHandler(t, nil)

	body := `{"plot": "plot-1", "sensor_type": "moisture", "value": 42.5, "source": "dev-1"}`
	req := httptest.NewRequest("POST", "/api/sensor-readings", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.Create(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusAccepted, rec.Body.String())
	}
	if len(repo.records) != 1 {
		t.Fatalf("stored = %d readings, want 1", len(repo.records))
	}
	if repo.records[0].Value != 42.5 {
		t.Errorf("value = %v, want 42.5", repo.records[0].Value)
	}
}

func TestCreate_InvalidBody(t *testing.T) {
	handler, _ := newTestHandler(t, nil)

	req := httptest.NewRequest("POST", "/api/sensor-readings", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	handler.Create(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestCreate_ImpossibleValue(t *testing.T) {
	handler, repo := newTestHandler(t, nil)

	body := `{"plot": "plot-1", "sensor_type": "moisture", "value": 150}`
	req := httptest.NewRequest("POST", "/api/sensor-readings", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.Create(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if len(repo.records) != 0 {
		t.Errorf("stored = %d readings, want 0", len(repo.records))
	}
}

func TestCreate_RateLimited(t *testing.T) {
	handler, _ := newTestHandler(t, &ingest.ProcessorOptions{DeviceRate: 0.001, DeviceBurst: 1})

	body := `{"plot": "plot-1", "sensor_type": "moisture", "value": 42, "source": "dev-1"}`

	req := httptest.NewRequest("POST", "/api/sensor-readings", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.Create(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("first request: status = %d, want %d", rec.Code, http.StatusAccepted)
	}

	req = httptest.NewRequest("POST", "/api/sensor-readings", strings.NewReader(body))
	rec = httptest.NewRecorder()
	handler.Create(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("second request: status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"24h", 24 * time.Hour, false},
		{"30m", 30 * time.Minute, false},
		{"1d", 24 * time.Hour, false},
		{"7d", 7 * 24 * time.Hour, false},
		{"0d", 0, true},
		{"-1d", 0, true},
		{"", 0, true},
		{"soon", 0, true},
	}

	for _, tt := range tests {
		got, err := parseRange(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseRange(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseRange(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseRange(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
