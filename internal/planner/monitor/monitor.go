// Package monitor serves debugging-only HTML charts of the planner's latest
// cycle: the plan view (reference path, committed trajectory, candidates,
// obstacles), the speed profile, and recent cycle timing. No auth; these
// endpoints exist to eyeball planner behaviour without a frontend.
package monitor

import (
	"encoding/json"
	"net/http"

	"github.com/banshee-data/drive.report/internal/planner/pipeline"
	"github.com/banshee-data/drive.report/internal/planner/publish"
	sqlite "github.com/banshee-data/drive.report/internal/planner/storage/sqlite"
)

const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// StatusSource exposes loop health to the dashboard.
type StatusSource interface {
	Status() pipeline.Status
}

// Monitor holds the read-side handles the debug handlers render from.
type Monitor struct {
	latest *publish.LatestStore
	status StatusSource
	cycles *sqlite.CycleStore // optional
}

// New creates a monitor. cycles may be nil when persistence is disabled;
// the timing chart then reports no data.
func New(latest *publish.LatestStore, status StatusSource, cycles *sqlite.CycleStore) *Monitor {
	return &Monitor{latest: latest, status: status, cycles: cycles}
}

// Register installs the debug handlers on mux.
func (m *Monitor) Register(mux *http.ServeMux) {
	mux.HandleFunc("/debug/planner", m.handleDashboard)
	mux.HandleFunc("/debug/planner/plan", m.handlePlanView)
	mux.HandleFunc("/debug/planner/speed", m.handleSpeedProfile)
	mux.HandleFunc("/debug/planner/timing", m.handleCycleTiming)
}

func (m *Monitor) writeJSONError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// handleDashboard renders a simple dashboard with iframes to the debug charts.
func (m *Monitor) handleDashboard(w http.ResponseWriter, r *http.Request) {
	st := m.status.Status()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	page := `<!DOCTYPE html>
<html><head><title>Planner Debug</title></head>
<body style="background:#111;color:#ddd;font-family:monospace">
<h2>Planner Debug</h2>
<p>mode=` + st.Mode + `</p>
<iframe src="/debug/planner/plan" width="940" height="940" frameborder="0"></iframe>
<iframe src="/debug/planner/speed" width="940" height="520" frameborder="0"></iframe>
<iframe src="/debug/planner/timing" width="940" height="520" frameborder="0"></iframe>
</body></html>`
	_, _ = w.Write([]byte(page))
}
