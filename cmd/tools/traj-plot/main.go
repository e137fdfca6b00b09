// Package main renders recorded planning cycles to PNG: the planned path in
// the map frame and the speed profile along it. Reads the same sqlite
// database the planner records to.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/drive.report/internal/db"
	"github.com/banshee-data/drive.report/internal/planner/frenet"
	"github.com/banshee-data/drive.report/internal/planner/storage/sqlite"
	"github.com/banshee-data/drive.report/internal/units"
)

var (
	dbFile    = flag.String("db", "planner_data.db", "Path to the planner sqlite database")
	cycleID   = flag.String("cycle", "", "Cycle ID to plot (default: most recent cycle)")
	outputDir = flag.String("out", "plots", "Output directory for PNG files")
	speedUnit = flag.String("units", units.MPS, "Units for the speed profile axis (mps, mph, kmph)")
)

func main() {
	flag.Parse()

	if !units.IsValid(*speedUnit) {
		log.Fatalf("Invalid -units %q (valid: %v)", *speedUnit, units.ValidUnits)
	}

	database, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	store := sqlite.NewCycleStore(database.DB)
	ctx := context.Background()

	id := *cycleID
	if id == "" {
		recent, err := store.ListRecent(ctx, 1)
		if err != nil {
			log.Fatalf("Failed to list cycles: %v", err)
		}
		if len(recent) == 0 {
			log.Fatal("Database contains no recorded cycles")
		}
		id = recent[0].CycleID
	}

	row, err := store.GetCycle(ctx, id)
	if err != nil {
		log.Fatalf("Failed to load cycle %s: %v", id, err)
	}
	traj, err := store.Trajectory(ctx, id)
	if err != nil {
		log.Fatalf("Failed to load trajectory for cycle %s: %v", id, err)
	}
	if len(traj) == 0 {
		log.Fatalf("Cycle %s has no trajectory (mode=%s failure=%q)", id, row.Mode, row.Failure)
	}

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("Failed to create output dir: %v", err)
	}

	pathFile := filepath.Join(*outputDir, fmt.Sprintf("cycle_%s_path.png", shortID(id)))
	if err := plotPath(row, traj, pathFile); err != nil {
		log.Fatalf("Failed to render path plot: %v", err)
	}
	speedFile := filepath.Join(*outputDir, fmt.Sprintf("cycle_%s_speed.png", shortID(id)))
	if err := plotSpeed(traj, *speedUnit, speedFile); err != nil {
		log.Fatalf("Failed to render speed plot: %v", err)
	}

	log.Printf("Cycle %s: %d points, mode=%s", id, len(traj), row.Mode)
	log.Printf("Wrote %s and %s", pathFile, speedFile)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// plotPath renders the planned path in the map frame with equal axis
// scaling so geometry is not distorted.
func plotPath(row *sqlite.CycleRow, traj []frenet.TrajectoryPoint, file string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Planned path (cycle %s, lane %d)", shortID(row.CycleID), row.CurrentLaneID)
	p.X.Label.Text = "X (m)"
	p.Y.Label.Text = "Y (m)"

	pts := make(plotter.XYs, len(traj))
	for i, tp := range traj {
		pts[i] = plotter.XY{X: tp.X, Y: tp.Y}
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Width = vg.Points(1.5)
	p.Add(line)
	p.Legend.Add("trajectory", line)

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return err
	}
	scatter.Radius = vg.Points(1.5)
	p.Add(scatter)

	// Equalize the axis ranges around the path midpoint.
	xSpan := p.X.Max - p.X.Min
	ySpan := p.Y.Max - p.Y.Min
	if xSpan > ySpan {
		mid := (p.Y.Max + p.Y.Min) / 2
		p.Y.Min = mid - xSpan/2
		p.Y.Max = mid + xSpan/2
	} else {
		mid := (p.X.Max + p.X.Min) / 2
		p.X.Min = mid - ySpan/2
		p.X.Max = mid + ySpan/2
	}

	p.Legend.Top = true
	return p.Save(8*vg.Inch, 8*vg.Inch, file)
}

// plotSpeed renders the planned speed against arclength.
func plotSpeed(traj []frenet.TrajectoryPoint, unit, file string) error {
	p := plot.New()
	p.Title.Text = "Planned speed profile"
	p.X.Label.Text = "s (m)"
	p.Y.Label.Text = fmt.Sprintf("Speed (%s)", unit)

	pts := make(plotter.XYs, len(traj))
	for i, tp := range traj {
		pts[i] = plotter.XY{X: tp.S, Y: units.ConvertSpeed(tp.Speed, unit)}
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Width = vg.Points(1.5)
	p.Add(line)

	return p.Save(14*vg.Inch, 6*vg.Inch, file)
}
