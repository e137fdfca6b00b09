// Package ingest absorbs the three asynchronous input streams — reference
// lane, vehicle odometry, and obstacle detections — into atomically swapped
// snapshots. Writers replace whole values, last writer wins; the planning
// loop calls Collect once per cycle and never sees a partially updated
// input.
package ingest

import (
	"sync/atomic"
	"time"

	"github.com/banshee-data/drive.report/internal/monitoring"
	"github.com/banshee-data/drive.report/internal/planner/frenet"
	"github.com/banshee-data/drive.report/internal/planner/lane"
	"github.com/banshee-data/drive.report/internal/planner/vehicle"
)

// Odometry is one pose/velocity update with the front-axle pose already
// derived, so cycle code never re-projects it.
type Odometry struct {
	State     vehicle.State
	FrontAxle vehicle.State
	Seq       uint64
}

// LaneUpdate is one reference-path update. Seq increments on every swap so
// the loop can tell when to refit the reference spline.
type LaneUpdate struct {
	Lane *lane.Lane
	Seq  uint64
}

// ObstacleSet is the latest obstacle list, already transformed into the
// planning frame.
type ObstacleSet struct {
	Obstacles []frenet.Obstacle
	Frame     string
	Received  time.Time
}

// Snapshot is what one planning cycle reads: the latest value of each
// stream, frozen together at Collect time.
type Snapshot struct {
	Lane      LaneUpdate
	Odom      Odometry
	Obstacles ObstacleSet
}

// Store holds the latest value of each input stream behind atomic pointers.
// Safe for any number of concurrent writers and readers.
type Store struct {
	wheelbase float64

	lane      atomic.Pointer[LaneUpdate]
	odom      atomic.Pointer[Odometry]
	obstacles atomic.Pointer[ObstacleSet]

	laneSeq atomic.Uint64
	odomSeq atomic.Uint64

	transforms TransformLookup
}

// NewStore creates an empty store. wheelbase is used to derive the front
// axle from each odometry update; transforms may be nil when all obstacle
// input already arrives in the planning frame.
func NewStore(wheelbase float64, transforms TransformLookup) *Store {
	s := &Store{wheelbase: wheelbase, transforms: transforms}
	s.obstacles.Store(&ObstacleSet{})
	return s
}

// UpdateLane replaces the reference lane wholesale.
func (s *Store) UpdateLane(l *lane.Lane) {
	u := &LaneUpdate{Lane: l, Seq: s.laneSeq.Add(1)}
	s.lane.Store(u)
}

// UpdateOdometry records a new pose/velocity sample and derives the
// front-axle pose. Returns the sample's sequence number; the scheduler uses
// it to tell fresh poses from stale ones.
func (s *Store) UpdateOdometry(st vehicle.State) uint64 {
	o := &Odometry{
		State:     st,
		FrontAxle: st.FrontAxle(s.wheelbase),
		Seq:       s.odomSeq.Add(1),
	}
	s.odom.Store(o)
	return o.Seq
}

// UpdateObstacles transforms the detections into the planning frame and
// swaps in the new set. On a transform failure the previous set is kept and
// the update is dropped, so the loop never plans against half-transformed
// obstacles.
func (s *Store) UpdateObstacles(obs []frenet.Obstacle, frame string) {
	transformed := obs
	if frame != "" {
		if s.transforms == nil {
			monitoring.Logf("ingest: dropping obstacle update in frame %q, no transform provider", frame)
			return
		}
		tf, err := s.transforms.Lookup(frame)
		if err != nil {
			monitoring.Logf("ingest: dropping obstacle update, transform %q unavailable: %v", frame, err)
			return
		}
		transformed = make([]frenet.Obstacle, len(obs))
		for i, o := range obs {
			transformed[i] = tf.Apply(o)
		}
	}
	s.obstacles.Store(&ObstacleSet{Obstacles: transformed, Frame: frame, Received: time.Now()})
}

// OdometrySeq returns the sequence number of the latest odometry sample, or
// zero before the first sample.
func (s *Store) OdometrySeq() uint64 { return s.odomSeq.Load() }

// Collect freezes the latest value of each stream into one snapshot. Fields
// for streams that have never produced are zero values; the caller checks
// Lane.Lane and Odom.Seq before planning.
func (s *Store) Collect() Snapshot {
	var snap Snapshot
	if l := s.lane.Load(); l != nil {
		snap.Lane = *l
	}
	if o := s.odom.Load(); o != nil {
		snap.Odom = *o
	}
	if ob := s.obstacles.Load(); ob != nil {
		snap.Obstacles = *ob
	}
	return snap
}
