package httpapi

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/corvidlabs/interviewsim/internal/health"
)

// processStart anchors the uptime reported by the /metrics snapshot.
var processStart = time.Now()

// registerOpsRoutes wires the operational surface: the liveness/readiness
// probes, the service health summary, and a JSON snapshot of runtime stats
// at /metrics. The OpenTelemetry Prometheus exposition format (scraped by
// Prometheus itself, not by JSON-consuming clients) is served separately at
// /metrics/prometheus to avoid colliding with the JSON /metrics contract.
func registerOpsRoutes(mux *http.ServeMux, d *Deps) {
	probes := health.NewHandler()
	if d.Store != nil {
		probes.AddProbe("store", d.Store.Ping)
	}
	probes.Register(mux)

	mux.HandleFunc("GET /health", d.healthSummary)
	mux.HandleFunc("GET /metrics", d.metricsSnapshot)
	mux.Handle("GET /metrics/prometheus", promhttp.Handler())
}

// healthSummary reports overall service health plus a per-service map:
// whether the store answers a ping, and whether a rate governor and a
// speech tracker are wired in. It always answers 200; a failed store ping
// turns the status to "degraded".
func (d *Deps) healthSummary(w http.ResponseWriter, r *http.Request) {
	services := map[string]any{}

	if d.Store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		err := d.Store.Ping(ctx)
		cancel()
		if err != nil {
			services["store"] = "unavailable"
		} else {
			services["store"] = "ok"
		}
	}
	if d.Governor != nil {
		services["rate_governor"] = "ok"
	}
	if d.Speech != nil {
		services["speech"] = "ok"
	}

	status := "ok"
	if services["store"] == "unavailable" {
		status = "degraded"
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": status, "services": services})
}

// metricsSnapshot answers the JSON /metrics endpoint: a snapshot of session
// counts, rate-governor utilization, and basic process info, as distinct
// from the Prometheus exposition format.
func (d *Deps) metricsSnapshot(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"sessions": d.Registry.Stats(),
		"system": map[string]any{
			"uptime_seconds": int64(time.Since(processStart).Seconds()),
			"goroutines":     runtime.NumGoroutine(),
			"go_version":     runtime.Version(),
		},
	}
	if d.Governor != nil {
		resp["rate_limits"] = d.Governor.Stats()
	}
	writeJSON(w, http.StatusOK, resp)
}
