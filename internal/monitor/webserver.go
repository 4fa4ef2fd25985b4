// Package monitor exposes the engine's diagnostics over HTTP: a JSON status
// endpoint, runtime config get/set, and a go-echarts chart of recent motion.
package monitor

import (
	"encoding/json"
	"net/http"

	"github.com/banshee-data/stabilize/internal/motion"
)

// WebServer serves engine diagnostics.
type WebServer struct {
	engine *motion.Engine
}

// NewWebServer creates a diagnostics server for the given engine.
func NewWebServer(engine *motion.Engine) *WebServer {
	return &WebServer{engine: engine}
}

// ServeMux returns the diagnostic route table.
func (ws *WebServer) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/stab/status", ws.handleStatus)
	mux.HandleFunc("/api/stab/config", ws.handleConfig)
	mux.HandleFunc("/debug/motion", ws.handleMotionChart)
	return mux
}

func (ws *WebServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ws.writeJSON(w, ws.engine.Status())
}

// handleConfig reads (GET) or replaces (POST) the runtime stabilization
// config. Out-of-range values are clamped by the engine, so a POST always
// succeeds once it parses.
func (ws *WebServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		ws.writeJSON(w, ws.engine.Config())
	case http.MethodPost:
		var cfg motion.StabilizationConfig
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			http.Error(w, "invalid config JSON: "+err.Error(), http.StatusBadRequest)
			return
		}
		ws.engine.SetConfig(cfg)
		ws.writeJSON(w, ws.engine.Config())
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (ws *WebServer) handleMotionChart(w http.ResponseWriter, r *http.Request) {
	samples := ws.engine.RecentSamples(256)
	if len(samples) == 0 {
		http.Error(w, "no motion samples yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := RenderMotionChart(w, samples, "Recent Motion"); err != nil {
		http.Error(w, "failed to render chart: "+err.Error(), http.StatusInternalServerError)
	}
}

func (ws *WebServer) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
