// Package sqlite persists planning-cycle records for offline analysis and
// the plotting tools. One row per cycle plus the committed trajectory
// waypoints; candidate sets are not persisted, they are too large at 10Hz.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/drive.report/internal/planner/frenet"
	"github.com/banshee-data/drive.report/internal/planner/publish"
)

// CycleStore provides persistence for per-cycle planner output.
type CycleStore struct {
	db *sql.DB
}

// NewCycleStore creates a CycleStore backed by the given database.
func NewCycleStore(db *sql.DB) *CycleStore {
	return &CycleStore{db: db}
}

// RecordCycle persists one cycle record with its committed trajectory. If
// the record carries no cycle id, a UUID is generated.
func (s *CycleStore) RecordCycle(ctx context.Context, out publish.Outputs) error {
	if out.CycleID == "" {
		out.CycleID = uuid.New().String()
	}

	return retryOnBusy(func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin cycle tx: %w", err)
		}
		defer tx.Rollback()

		stop := 0
		if out.Command.Stop {
			stop = 1
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO planner_cycles (
				cycle_id, started_at, duration_ns, mode, failure,
				current_lane_id, target_lane_id, corridor_left, corridor_right,
				acceleration, steering_angle, stop, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			out.CycleID, out.StartedAt.UnixNano(), int64(out.Duration), out.Mode, out.Failure,
			out.CurrentLaneID, out.TargetLaneID, out.Corridor.Left, out.Corridor.Right,
			out.Command.Acceleration, out.Command.SteeringAngle, stop, time.Now().UnixNano(),
		); err != nil {
			return fmt.Errorf("insert cycle: %w", err)
		}

		for i, p := range out.Trajectory {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO planner_waypoints (
					cycle_id, idx, x, y, heading, curvature, speed, s, d, t_offset
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				out.CycleID, i, p.X, p.Y, p.Heading, p.Curvature, p.Speed, p.S, p.D, p.TOffset,
			); err != nil {
				return fmt.Errorf("insert waypoint %d: %w", i, err)
			}
		}

		return tx.Commit()
	})
}

// CycleRow is the persisted summary of one cycle.
type CycleRow struct {
	CycleID       string        `json:"cycle_id"`
	StartedAt     int64         `json:"started_at"`
	Duration      time.Duration `json:"duration_ns"`
	Mode          string        `json:"mode"`
	Failure       string        `json:"failure"`
	CurrentLaneID int           `json:"current_lane_id"`
	TargetLaneID  int           `json:"target_lane_id"`
	CorridorLeft  float64       `json:"corridor_left"`
	CorridorRight float64       `json:"corridor_right"`
	Acceleration  float64       `json:"acceleration"`
	SteeringAngle float64       `json:"steering_angle"`
	Stop          bool          `json:"stop"`
}

const cycleColumns = `cycle_id, started_at, duration_ns, mode, failure,
	current_lane_id, target_lane_id, corridor_left, corridor_right,
	acceleration, steering_angle, stop`

// GetCycle returns a single cycle by id.
func (s *CycleStore) GetCycle(ctx context.Context, cycleID string) (*CycleRow, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+cycleColumns+` FROM planner_cycles WHERE cycle_id = ?`, cycleID)
	c, err := scanCycle(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("cycle %s not found", cycleID)
		}
		return nil, fmt.Errorf("scan cycle: %w", err)
	}
	return c, nil
}

// ListRecent returns up to limit cycles, newest first.
func (s *CycleStore) ListRecent(ctx context.Context, limit int) ([]*CycleRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+cycleColumns+` FROM planner_cycles ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query cycles: %w", err)
	}
	defer rows.Close()

	var cycles []*CycleRow
	for rows.Next() {
		c, err := scanCycle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cycle: %w", err)
		}
		cycles = append(cycles, c)
	}
	return cycles, rows.Err()
}

// Trajectory returns the committed trajectory persisted with a cycle, in
// waypoint order.
func (s *CycleStore) Trajectory(ctx context.Context, cycleID string) ([]frenet.TrajectoryPoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT x, y, heading, curvature, speed, s, d, t_offset
		FROM planner_waypoints WHERE cycle_id = ? ORDER BY idx`, cycleID)
	if err != nil {
		return nil, fmt.Errorf("query waypoints: %w", err)
	}
	defer rows.Close()

	var pts []frenet.TrajectoryPoint
	for rows.Next() {
		var p frenet.TrajectoryPoint
		if err := rows.Scan(&p.X, &p.Y, &p.Heading, &p.Curvature, &p.Speed, &p.S, &p.D, &p.TOffset); err != nil {
			return nil, fmt.Errorf("scan waypoint: %w", err)
		}
		pts = append(pts, p)
	}
	return pts, rows.Err()
}

// PruneBefore deletes cycles started before the cutoff, returning the count
// removed. Waypoints cascade.
func (s *CycleStore) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var removed int64
	err := retryOnBusy(func() error {
		res, err := s.db.ExecContext(ctx,
			`DELETE FROM planner_cycles WHERE started_at < ?`, cutoff.UnixNano())
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	return removed, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCycle(row scanner) (*CycleRow, error) {
	var c CycleRow
	var stop int
	var duration int64
	if err := row.Scan(
		&c.CycleID, &c.StartedAt, &duration, &c.Mode, &c.Failure,
		&c.CurrentLaneID, &c.TargetLaneID, &c.CorridorLeft, &c.CorridorRight,
		&c.Acceleration, &c.SteeringAngle, &stop,
	); err != nil {
		return nil, err
	}
	c.Duration = time.Duration(duration)
	c.Stop = stop != 0
	return &c, nil
}
