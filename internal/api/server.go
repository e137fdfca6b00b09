// Package api exposes the planner over HTTP: loop status, the latest cycle
// record, live parameter reconfiguration, and manual lane-change and
// regenerate requests.
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/drive.report/internal/config"
	"github.com/banshee-data/drive.report/internal/planner/pipeline"
	"github.com/banshee-data/drive.report/internal/planner/publish"
	"github.com/banshee-data/drive.report/internal/planner/storage/sqlite"
	"github.com/banshee-data/drive.report/internal/units"
)

// ANSI escape codes for request logging.
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

type Server struct {
	loop   *pipeline.Loop
	latest *publish.LatestStore
	cycles *sqlite.CycleStore // optional
	units  string
}

// NewServer creates the API server. cycles may be nil when persistence is
// disabled; displayUnits is the default unit for speed fields on read
// endpoints.
func NewServer(loop *pipeline.Loop, latest *publish.LatestStore, cycles *sqlite.CycleStore, displayUnits string) *Server {
	if !units.IsValid(displayUnits) {
		displayUnits = units.MPS
	}
	return &Server{loop: loop, latest: latest, cycles: cycles, units: displayUnits}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	default:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/planner/status", s.showStatus)
	mux.HandleFunc("/api/planner/latest", s.showLatest)
	mux.HandleFunc("/api/planner/trajectory", s.showTrajectory)
	mux.HandleFunc("/api/planner/params", s.handleParams)
	mux.HandleFunc("/api/planner/regenerate", s.requestRegenerate)
	mux.HandleFunc("/api/planner/target_lane", s.handleTargetLane)
	mux.HandleFunc("/api/planner/cycles", s.listCycles)
	return mux
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.writeJSON(w, s.loop.Status())
}

func (s *Server) showLatest(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	out := s.latest.Latest()
	if out == nil {
		s.writeJSONError(w, http.StatusNotFound, "No cycle emitted yet")
		return
	}
	s.writeJSON(w, out)
}

// showTrajectory returns the latest committed trajectory, with planned
// speeds converted to the requested units (query param "units", defaulting
// to the server's configured display units).
func (s *Server) showTrajectory(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	out := s.latest.Latest()
	if out == nil {
		s.writeJSONError(w, http.StatusNotFound, "No cycle emitted yet")
		return
	}

	u := s.units
	if q := r.URL.Query().Get("units"); q != "" {
		if !units.IsValid(q) {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'units' parameter")
			return
		}
		u = q
	}

	traj := make([]map[string]float64, 0, len(out.Trajectory))
	for _, p := range out.Trajectory {
		traj = append(traj, map[string]float64{
			"x": p.X, "y": p.Y, "heading": p.Heading,
			"speed": units.ConvertSpeed(p.Speed, u),
			"s":     p.S, "d": p.D,
		})
	}
	s.writeJSON(w, map[string]interface{}{
		"cycle_id":   out.CycleID,
		"units":      u,
		"trajectory": traj,
	})
}

// handleParams serves the live tuning config. GET returns the active
// config; POST merges the posted fields over it, validates the result, and
// applies it to the loop without a restart.
func (s *Server) handleParams(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch r.Method {
	case http.MethodGet:
		s.writeJSON(w, s.loop.Tuning())
	case http.MethodPost:
		var patch config.TuningConfig
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid JSON body: "+err.Error())
			return
		}
		merged := s.loop.Tuning().Merge(&patch)
		if err := merged.Validate(); err != nil {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid parameters: "+err.Error())
			return
		}
		s.loop.UpdateTuning(merged)
		s.writeJSON(w, merged)
	default:
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) requestRegenerate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.loop.RequestRegenerate()
	s.writeJSON(w, map[string]string{"status": "regenerate requested"})
}

type targetLaneRequest struct {
	LaneID *int `json:"lane_id"`
	Clear  bool `json:"clear"`
}

func (s *Server) handleTargetLane(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req targetLaneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSONError(w, http.StatusBadRequest, "Invalid JSON body: "+err.Error())
		return
	}
	switch {
	case req.Clear:
		s.loop.ClearTargetLane()
		s.writeJSON(w, map[string]string{"status": "target lane cleared"})
	case req.LaneID != nil:
		s.loop.SetTargetLane(*req.LaneID)
		s.writeJSON(w, map[string]interface{}{"status": "target lane set", "lane_id": *req.LaneID})
	default:
		s.writeJSONError(w, http.StatusBadRequest, "Provide lane_id or clear")
	}
}

func (s *Server) listCycles(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.cycles == nil {
		s.writeJSONError(w, http.StatusNotFound, "Cycle persistence is disabled")
		return
	}

	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 || parsed > 5000 {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
			return
		}
		limit = parsed
	}
	rows, err := s.cycles.ListRecent(r.Context(), limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to list cycles")
		return
	}
	s.writeJSON(w, rows)
}
