package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/edgeorchestra/orchestrator/pkg/clock"
	"github.com/edgeorchestra/orchestrator/pkg/coordinator"
	"github.com/edgeorchestra/orchestrator/pkg/liveness"
	"github.com/edgeorchestra/orchestrator/pkg/modelstore"
	"github.com/edgeorchestra/orchestrator/pkg/protocol"
	"github.com/edgeorchestra/orchestrator/pkg/registry"
	"github.com/labstack/echo/v4"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T) (*echo.Echo, *modelstore.Store, *registry.Registry) {
	t.Helper()
	fc := clock.NewFake(time.Unix(0, 0))
	reg := registry.New(registry.NewMemStore(), fc)
	tracker := liveness.New(fc, time.Second)
	models := modelstore.New(afero.NewMemMapFs(), fc, time.Hour)
	coord := coordinator.New(coordinator.NewMemStore(), reg, tracker, models, fc, coordinator.DefaultConfig())

	r := echo.New()
	NewHandler(reg, coord, models, nil, r)
	return r, models, reg
}

func TestHealthzReturnsOK(t *testing.T) {
	r, _, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzWithNoDatabaseReturnsOK(t *testing.T) {
	r, _, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsCountsDevicesByStatus(t *testing.T) {
	r, _, reg := newTestHandler(t)

	_, err := reg.Register(context.Background(), "phone", "Pixel", "Android", protocol.Capabilities{}, protocol.Metrics{})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `edgeorchestra_devices{status="online"} 1`)
	assert.Contains(t, rec.Body.String(), "edgeorchestra_jobs_running 0")
}

func TestModelDownloadServesBlob(t *testing.T) {
	r, models, _ := newTestHandler(t)

	modelID, err := models.Put([]byte("weights"))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/models/"+modelID, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "weights", rec.Body.String())
	assert.Equal(t, modelID, rec.Header().Get("X-Model-Id"))
}

func TestModelDownloadUnknownReturnsNotFound(t *testing.T) {
	r, _, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/models/missing", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
