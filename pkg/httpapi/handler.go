// Package httpapi is the ambient HTTP surface served next to the gRPC
// port: health/readiness, a Prometheus-text /metrics endpoint, pprof,
// and the chunked-download HTTP fallback for model blobs. Not a REST
// admin API (spec.md's Non-goals exclude that); grounded on
// pkg/scheduler/http.go's raw-text /metrics handler and
// cmd/scheduler/main.go's pprof registration.
package httpapi

import (
	"fmt"
	"net/http"
	"net/http/pprof"

	"github.com/edgeorchestra/orchestrator/pkg/coordinator"
	"github.com/edgeorchestra/orchestrator/pkg/modelstore"
	"github.com/edgeorchestra/orchestrator/pkg/registry"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// NewHandler registers /healthz, /readyz, /metrics, pprof, and a plain
// HTTP fallback for model blob download on r. db may be nil (in-memory
// deployments have no database to ping).
func NewHandler(reg *registry.Registry, coord *coordinator.Coordinator, models *modelstore.Store, db *gorm.DB, r *echo.Echo) {
	r.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok\n")
	})

	r.GET("/readyz", func(c echo.Context) error {
		if db == nil {
			return c.String(http.StatusOK, "ok\n")
		}
		sqlDB, err := db.DB()
		if err != nil {
			return c.String(http.StatusServiceUnavailable, "db handle error\n")
		}
		if err := sqlDB.PingContext(c.Request().Context()); err != nil {
			return c.String(http.StatusServiceUnavailable, "db unreachable\n")
		}
		return c.String(http.StatusOK, "ok\n")
	})

	r.GET("/metrics", func(c echo.Context) error {
		devices, err := reg.List(c.Request().Context(), registry.Filter{})
		if err != nil {
			return c.String(http.StatusInternalServerError, err.Error())
		}

		byStatus := map[registry.Status]int{}
		for _, d := range devices {
			byStatus[d.Status]++
		}

		metrics := fmt.Sprintln("# TYPE edgeorchestra_devices gauge")
		metrics += fmt.Sprintln("# HELP edgeorchestra_devices Registered devices by status.")
		for _, status := range []registry.Status{registry.StatusOnline, registry.StatusOffline, registry.StatusTraining, registry.StatusError} {
			metrics += fmt.Sprintf("edgeorchestra_devices{status=%q} %d\n", status, byStatus[status])
		}

		metrics += fmt.Sprintln("# TYPE edgeorchestra_jobs_running gauge")
		metrics += fmt.Sprintln("# HELP edgeorchestra_jobs_running Training jobs with an active round state machine.")
		metrics += fmt.Sprintf("edgeorchestra_jobs_running %d\n", coord.RunningJobCount())

		return c.String(http.StatusOK, metrics)
	})

	// Fallback for devices that can't (or don't want to) speak the gRPC
	// streaming download; the gRPC ModelService.DownloadModel path is
	// still the primary one (spec.md §6).
	r.GET("/models/:id", func(c echo.Context) error {
		modelID := c.Param("id")
		stat, err := models.Stat(modelID)
		if err != nil {
			return c.String(http.StatusNotFound, err.Error())
		}
		reader, err := models.Open(modelID)
		if err != nil {
			return c.String(http.StatusNotFound, err.Error())
		}
		defer reader.Close()

		c.Response().Header().Set("X-Model-Id", stat.ModelID)
		c.Response().Header().Set("Content-Length", fmt.Sprintf("%d", stat.Size))
		return c.Stream(http.StatusOK, echo.MIMEOctetStream, reader)
	})

	r.Add(http.MethodGet, "/debug/pprof/*", echo.WrapHandler(http.HandlerFunc(pprof.Index)))
	r.GET("/debug/pprof/cmdline", echo.WrapHandler(http.HandlerFunc(pprof.Cmdline)))
	r.GET("/debug/pprof/profile", echo.WrapHandler(http.HandlerFunc(pprof.Profile)))
	r.GET("/debug/pprof/symbol", echo.WrapHandler(http.HandlerFunc(pprof.Symbol)))
	r.GET("/debug/pprof/trace", echo.WrapHandler(http.HandlerFunc(pprof.Trace)))
}
