// Package server exposes the monitor's HTTP control surface.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/minewatch/emergency/internal/model"
	"github.com/minewatch/emergency/internal/persistence"
	"github.com/minewatch/emergency/internal/scheduler"
)

func NewHTTPMux(sched *scheduler.Scheduler, store *persistence.Store, reg *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		status := sched.Status()
		code := http.StatusOK
		if status == model.SystemError {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":              status,
			"store_error_age_sec": store.LastErrorAge().Seconds(),
		})
	})

	// GET /snapshot - the latest full system snapshot.
	mux.HandleFunc("/snapshot", func(w http.ResponseWriter, _ *http.Request) {
		snap := sched.Snapshot()
		if snap == nil {
			http.Error(w, "no snapshot yet", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, snap)
	})

	// GET /alerts?hours=<int>   (default 24)
	mux.HandleFunc("/alerts", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, sched.Export(queryHours(r)).Alerts)
	})

	// GET /export?hours=<int>   (default 24)
	mux.HandleFunc("/export", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, sched.Export(queryHours(r)))
	})

	// GET /stats
	mux.HandleFunc("/stats", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, sched.Stats())
	})

	// GET /trends?sensor=<id> - trend summary from the in-memory history.
	mux.HandleFunc("/trends", func(w http.ResponseWriter, r *http.Request) {
		sensorID := r.URL.Query().Get("sensor")
		if sensorID == "" {
			http.Error(w, "sensor query param required", http.StatusBadRequest)
			return
		}
		trend, err := sched.Trend(sensorID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		writeJSON(w, trend)
	})

	// GET /history?sensor=<id>&hours=<int> - stored readings from Influx.
	mux.HandleFunc("/history", func(w http.ResponseWriter, r *http.Request) {
		sensorID := r.URL.Query().Get("sensor")
		if sensorID == "" {
			http.Error(w, "sensor query param required", http.StatusBadRequest)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		since := time.Now().Add(-time.Duration(queryHours(r)) * time.Hour)
		points, err := store.ReadingsSince(ctx, sensorID, since)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		writeJSON(w, points)
	})

	// POST /scenario  {"type": "...", "intensity": "..."}
	mux.HandleFunc("/scenario", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		var body struct {
			Type      string `json:"type"`
			Intensity string `json:"intensity"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		anomaly, err := sched.TriggerScenario(body.Type, body.Intensity)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, anomaly)
	})

	mux.HandleFunc("/stop", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		sched.Stop()
		writeJSON(w, map[string]string{"status": "stopping"})
	})

	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		sched.Start()
		writeJSON(w, map[string]string{"status": "starting"})
	})

	if reg != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func queryHours(r *http.Request) int {
	hours := 24
	if s := r.URL.Query().Get("hours"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			hours = n
		}
	}
	return hours
}
