// Package main runs the planning loop closed-loop against a kinematic
// bicycle model on a synthetic road. Useful for tuning: it reports tracking
// error and failure counts without any vehicle or bag data.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"time"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/drive.report/internal/config"
	"github.com/banshee-data/drive.report/internal/db"
	"github.com/banshee-data/drive.report/internal/planner/frenet"
	"github.com/banshee-data/drive.report/internal/planner/ingest"
	"github.com/banshee-data/drive.report/internal/planner/lane"
	"github.com/banshee-data/drive.report/internal/planner/pipeline"
	"github.com/banshee-data/drive.report/internal/planner/publish"
	"github.com/banshee-data/drive.report/internal/planner/storage/sqlite"
	"github.com/banshee-data/drive.report/internal/planner/vehicle"
)

var (
	configPath   = flag.String("config", "", "Path to a tuning config JSON file (default: built-in defaults)")
	duration     = flag.Float64("duration", 30, "Simulated run length in seconds")
	roadLength   = flag.Float64("road", 400, "Road length in metres")
	curveAmp     = flag.Float64("curve", 8, "Amplitude of the road's sine curvature in metres (0 for straight)")
	obstacleAt   = flag.Float64("obstacle", 0, "Place a stopped obstacle this many metres down the road (0 disables)")
	laneChangeAt = flag.Float64("lane-change", 0, "Request a left lane change after this many seconds (0 disables)")
	dbFile       = flag.String("db", "", "Record cycles to this sqlite database (empty disables)")
	verbose      = flag.Bool("verbose", false, "Enable diagnostic logging")
)

const laneWidth = 3.5

// road returns the centerline Y and heading of lane 2 at longitudinal x.
func road(x float64) (y, heading float64) {
	if *curveAmp == 0 {
		return 0, 0
	}
	k := 2 * math.Pi / *roadLength
	y = *curveAmp * math.Sin(k*x)
	heading = math.Atan(*curveAmp * k * math.Cos(k*x))
	return
}

func buildLane() *lane.Lane {
	n := int(*roadLength/2) + 1
	l := &lane.Lane{Waypoints: make([]lane.Waypoint, n)}
	for i := range l.Waypoints {
		x := float64(i) * 2
		y, _ := road(x)
		l.Waypoints[i] = lane.Waypoint{
			X: x, Y: y,
			LaneID: 2, LaneWidth: laneWidth, LeftWidth: laneWidth, RightWidth: laneWidth,
		}
	}
	return l
}

// bicycle is the simulated plant: a kinematic bicycle integrated at the
// cycle interval.
type bicycle struct {
	x, y, yaw, speed float64
	wheelbase        float64
}

func (b *bicycle) step(accel, steer, dt float64) {
	b.x += b.speed * math.Cos(b.yaw) * dt
	b.y += b.speed * math.Sin(b.yaw) * dt
	if b.speed > 0.1 {
		b.yaw += b.speed / b.wheelbase * math.Tan(steer) * dt
	}
	b.speed += accel * dt
	if b.speed < 0 {
		b.speed = 0
	}
}

func main() {
	flag.Parse()

	tuning := loadTuning()
	interval := tuning.GetCycleInterval()
	dt := interval.Seconds()

	writers := pipeline.LogWriters{Ops: os.Stdout}
	if *verbose {
		writers.Diag = os.Stdout
	}
	pipeline.SetLogWriters(writers)

	inputs := ingest.NewStore(tuning.GetWheelbase(), nil)
	latest := publish.NewLatestStore()

	cfg := pipeline.Config{
		Tuning: tuning,
		Inputs: inputs,
		Planner: &frenet.OffsetSampler{
			CruiseSpeed:  tuning.GetCruiseSpeed(),
			VehicleWidth: tuning.GetVehicleWidth(),
		},
		Publisher: latest,
	}
	if *dbFile != "" {
		database, err := db.NewDB(*dbFile)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		defer database.Close()
		if err := database.MigrateUp("migrations"); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		cfg.Recorder = sqlite.NewCycleStore(database.DB)
	}
	loop, err := pipeline.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create planning loop: %v", err)
	}

	inputs.UpdateLane(buildLane())
	if *obstacleAt > 0 {
		y, heading := road(*obstacleAt)
		inputs.UpdateObstacles([]frenet.Obstacle{{
			X: *obstacleAt, Y: y, Heading: heading,
			Length: 4.5, Width: 1.9,
		}}, "")
	}

	plant := &bicycle{speed: tuning.GetCruiseSpeed() / 2, wheelbase: tuning.GetWheelbase()}
	_, plant.yaw = road(0)

	ctx := context.Background()
	now := time.Unix(1700000000, 0)
	cycles := int(*duration / dt)

	var crossTrackSum, crossTrackMax float64
	laneChangeRequested := false

	for i := 0; i < cycles; i++ {
		elapsed := float64(i) * dt
		if *laneChangeAt > 0 && !laneChangeRequested && elapsed >= *laneChangeAt {
			loop.SetTargetLane(1)
			laneChangeRequested = true
			log.Printf("t=%.1fs: requested lane change to lane 1", elapsed)
		}

		inputs.UpdateOdometry(vehicle.NewState(plant.x, plant.y, plant.yaw, plant.speed, 0, now.UnixNano()))
		now = now.Add(interval)
		out := loop.Tick(ctx, now)

		if out.Command.Stop {
			plant.step(-tuning.GetMaxDeceleration(), 0, dt)
		} else {
			plant.step(out.Command.Acceleration, out.Command.SteeringAngle, dt)
		}

		centerY, _ := road(plant.x)
		offset := math.Abs(plant.y - centerY)
		if !laneChangeRequested {
			crossTrackSum += offset
			if offset > crossTrackMax {
				crossTrackMax = offset
			}
		}

		if plant.x > *roadLength-30 {
			cycles = i + 1
			break
		}
	}

	status := loop.Status()
	fmt.Printf("simulated %d cycles (%.1fs)\n", status.Cycles, float64(cycles)*dt)
	fmt.Printf("final position: x=%.1fm y=%.2fm speed=%.2fm/s\n", plant.x, plant.y, plant.speed)
	if n := cycles; n > 0 {
		fmt.Printf("cross-track error: mean=%.3fm max=%.3fm\n", crossTrackSum/float64(n), crossTrackMax)
	}
	fmt.Printf("failures: %d (mode=%s)\n", status.Failures, status.Mode)
	if laneChangeRequested {
		fmt.Printf("finished in lane %d\n", status.CurrentLaneID)
	}
}

func loadTuning() *config.TuningConfig {
	if *configPath != "" {
		cfg, err := config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load tuning config: %v", err)
		}
		return cfg
	}
	cfg, err := config.LoadTuningConfig(config.DefaultConfigPath)
	if err != nil {
		log.Fatalf("Failed to load tuning config: %v", err)
	}
	return cfg
}
