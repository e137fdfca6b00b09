package ingest

import (
	"fmt"
	"math"
	"sync"

	"github.com/banshee-data/drive.report/internal/planner/frenet"
	"github.com/banshee-data/drive.report/internal/units"
)

// Transform is a planar rigid transform from a source frame into the
// planning frame.
type Transform struct {
	X   float64
	Y   float64
	Yaw float64
}

// Apply maps an obstacle from the transform's source frame into the
// planning frame, rotating pose and velocity and offsetting position.
func (t Transform) Apply(o frenet.Obstacle) frenet.Obstacle {
	sin, cos := math.Sincos(t.Yaw)
	out := o
	out.X = t.X + o.X*cos - o.Y*sin
	out.Y = t.Y + o.X*sin + o.Y*cos
	out.Heading = units.WrapAngle(o.Heading + t.Yaw)
	out.VX = o.VX*cos - o.VY*sin
	out.VY = o.VX*sin + o.VY*cos
	return out
}

// TransformLookup resolves the transform from a named frame into the
// planning frame.
type TransformLookup interface {
	Lookup(frame string) (Transform, error)
}

// StaticTransforms is a TransformLookup backed by a fixed table. Suitable
// for rigidly mounted sensors whose extrinsics are known at startup.
type StaticTransforms struct {
	mu     sync.RWMutex
	frames map[string]Transform
}

// NewStaticTransforms creates an empty table.
func NewStaticTransforms() *StaticTransforms {
	return &StaticTransforms{frames: make(map[string]Transform)}
}

// Set registers or replaces the transform for a frame.
func (s *StaticTransforms) Set(frame string, tf Transform) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames[frame] = tf
}

// Lookup returns the transform for a frame, or an error when the frame is
// unknown.
func (s *StaticTransforms) Lookup(frame string) (Transform, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tf, ok := s.frames[frame]
	if !ok {
		return Transform{}, fmt.Errorf("unknown frame %q", frame)
	}
	return tf, nil
}
