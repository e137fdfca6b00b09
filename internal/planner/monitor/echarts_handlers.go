package monitor

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// handlePlanView renders the latest cycle in plan view: reference path,
// committed trajectory, the next candidate, and obstacles. Axis ranges are
// forced symmetric so geometry is not distorted.
func (m *Monitor) handlePlanView(w http.ResponseWriter, r *http.Request) {
	out := m.latest.Latest()
	if out == nil {
		m.writeJSONError(w, http.StatusNotFound, "no cycle emitted yet")
		return
	}

	refData := make([]opts.ScatterData, 0, len(out.ReferencePath))
	lo, hi := boundsSeed()
	for _, wp := range out.ReferencePath {
		refData = append(refData, opts.ScatterData{Value: []interface{}{wp.X, wp.Y}})
		lo, hi = bounds(lo, hi, wp.X, wp.Y)
	}
	trajData := make([]opts.ScatterData, 0, len(out.Trajectory))
	for _, p := range out.Trajectory {
		trajData = append(trajData, opts.ScatterData{Value: []interface{}{p.X, p.Y}})
		lo, hi = bounds(lo, hi, p.X, p.Y)
	}
	candData := make([]opts.ScatterData, 0, len(out.NextCandidate))
	for _, p := range out.NextCandidate {
		candData = append(candData, opts.ScatterData{Value: []interface{}{p.X, p.Y}})
	}
	obsData := make([]opts.ScatterData, 0, len(out.Obstacles))
	for _, ob := range out.Obstacles {
		obsData = append(obsData, opts.ScatterData{Value: []interface{}{ob.X, ob.Y}})
		lo, hi = bounds(lo, hi, ob.X, ob.Y)
	}
	if lo > hi {
		lo, hi = -1, 1
	}
	pad := (hi - lo) * 0.05

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Planner Plan View", Theme: "dark", Width: "900px", Height: "900px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Planner Plan View",
			Subtitle: fmt.Sprintf("cycle=%s mode=%s lane=%d failure=%q", out.CycleID, out.Mode, out.CurrentLaneID, out.Failure),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: lo - pad, Max: hi + pad, Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: lo - pad, Max: hi + pad, Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
	)

	scatter.AddSeries("reference", refData, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 2}))
	scatter.AddSeries("trajectory", trajData, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 5}))
	scatter.AddSeries("candidate", candData, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}))
	scatter.AddSeries("obstacles", obsData, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 10}))

	renderChart(w, m, scatter)
}

// handleSpeedProfile renders planned speed against arclength for the latest
// committed trajectory.
func (m *Monitor) handleSpeedProfile(w http.ResponseWriter, r *http.Request) {
	out := m.latest.Latest()
	if out == nil || len(out.Trajectory) == 0 {
		m.writeJSONError(w, http.StatusNotFound, "no trajectory available")
		return
	}

	x := make([]string, 0, len(out.Trajectory))
	speeds := make([]opts.LineData, 0, len(out.Trajectory))
	for _, p := range out.Trajectory {
		x = append(x, fmt.Sprintf("%.1f", p.S))
		speeds = append(speeds, opts.LineData{Value: p.Speed})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Planner Speed Profile", Theme: "dark", Width: "900px", Height: "480px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Speed Profile", Subtitle: fmt.Sprintf("cycle=%s", out.CycleID)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "speed (m/s)"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "s (m)"}),
	)
	line.SetXAxis(x).AddSeries("planned speed", speeds)

	renderChart(w, m, line)
}

// handleCycleTiming renders recent cycle durations from the cycle store.
// Query params: limit (default 200, capped at 2000).
func (m *Monitor) handleCycleTiming(w http.ResponseWriter, r *http.Request) {
	if m.cycles == nil {
		m.writeJSONError(w, http.StatusNotFound, "cycle persistence is disabled")
		return
	}
	limit := 200
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 2000 {
			limit = v
		}
	}
	rows, err := m.cycles.ListRecent(r.Context(), limit)
	if err != nil {
		m.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list cycles: %v", err))
		return
	}

	// Newest first from the store; plot oldest to newest.
	x := make([]string, 0, len(rows))
	durations := make([]opts.BarData, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		id := rows[i].CycleID
		if len(id) > 8 {
			id = id[:8]
		}
		x = append(x, id)
		durations = append(durations, opts.BarData{Value: float64(rows[i].Duration.Microseconds()) / 1000.0})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Planner Cycle Timing", Theme: "dark", Width: "900px", Height: "480px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Cycle Duration (ms)", Subtitle: fmt.Sprintf("last %d cycles", len(rows))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).AddSeries("duration", durations)

	renderChart(w, m, bar)
}

type renderer interface {
	Render(w io.Writer) error
}

func renderChart(w http.ResponseWriter, m *Monitor, chart renderer) {
	var buf bytes.Buffer
	if err := chart.Render(&buf); err != nil {
		m.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func boundsSeed() (lo, hi float64) { return 1e18, -1e18 }

func bounds(lo, hi, x, y float64) (float64, float64) {
	if x < lo {
		lo = x
	}
	if y < lo {
		lo = y
	}
	if x > hi {
		hi = x
	}
	if y > hi {
		hi = y
	}
	return lo, hi
}
