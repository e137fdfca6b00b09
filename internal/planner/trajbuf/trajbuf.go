// Package trajbuf maintains the rolling output trajectory the vehicle
// actually tracks. Selected candidate segments are appended each cycle with
// waypoint-spacing guarantees; waypoints behind the vehicle are trimmed.
// Points are never reordered, so controllers can index the buffer stably
// within a cycle.
package trajbuf

import (
	"math"

	"github.com/banshee-data/drive.report/internal/planner/frenet"
)

// Limits bounds the buffer: total size in waypoints and separation between
// consecutive waypoints in metres of reference arclength.
type Limits struct {
	MaxSize       int
	MinSize       int
	MaxSeparation float64
	MinSeparation float64
}

// Buffer is the rolling output trajectory. Not safe for concurrent use; the
// planning loop owns it and publishes copies.
type Buffer struct {
	points []frenet.TrajectoryPoint
	limits Limits
}

// New creates an empty buffer with the given limits.
func New(limits Limits) *Buffer {
	return &Buffer{limits: limits}
}

// SetLimits applies updated limits; they take effect from the next append.
func (b *Buffer) SetLimits(limits Limits) { b.limits = limits }

// Len returns the number of committed waypoints.
func (b *Buffer) Len() int { return len(b.points) }

// Empty reports whether no waypoints are committed.
func (b *Buffer) Empty() bool { return len(b.points) == 0 }

// Clear drops all committed waypoints. Used by the fail-safe path so the
// next cycle is forced to regenerate.
func (b *Buffer) Clear() { b.points = b.points[:0] }

// Points returns a copy of the committed trajectory for publishing.
func (b *Buffer) Points() []frenet.TrajectoryPoint {
	out := make([]frenet.TrajectoryPoint, len(b.points))
	copy(out, b.points)
	return out
}

// PointAt returns the waypoint at index i; callers must bounds-check with Len.
func (b *Buffer) PointAt(i int) frenet.TrajectoryPoint { return b.points[i] }

// Append concatenates a selected candidate segment onto the buffer.
//
// Appending starts at the first sample whose arclength exceeds the last
// committed waypoint's arclength by at least the minimum separation; closer
// samples are skipped. When the gap to the next accepted sample exceeds the
// maximum separation — the candidate's native sampling being coarser than the
// output invariant allows — intermediate waypoints are interpolated so the
// committed spacing never exceeds it. Appending stops once the buffer reaches
// its maximum size; the remainder of the segment is discarded.
func (b *Buffer) Append(next []frenet.TrajectoryPoint) {
	for _, p := range next {
		if b.full() {
			return
		}
		if len(b.points) == 0 {
			b.points = append(b.points, p)
			continue
		}
		last := b.points[len(b.points)-1]
		gap := p.S - last.S
		if gap < b.limits.MinSeparation {
			continue
		}
		if b.limits.MaxSeparation > 0 && gap > b.limits.MaxSeparation {
			steps := int(math.Ceil(gap / b.limits.MaxSeparation))
			// Splitting must not push the sub-gaps under the minimum
			// separation either.
			if b.limits.MinSeparation > 0 {
				if most := int(gap / b.limits.MinSeparation); steps > most {
					steps = most
				}
				if steps < 1 {
					steps = 1
				}
			}
			for k := 1; k < steps; k++ {
				if b.full() {
					return
				}
				frac := float64(k) / float64(steps)
				b.points = append(b.points, lerpPoint(last, p, frac))
			}
		}
		if b.full() {
			return
		}
		b.points = append(b.points, p)
	}
}

func (b *Buffer) full() bool {
	return b.limits.MaxSize > 0 && len(b.points) >= b.limits.MaxSize
}

// TrimBehind drops waypoints behind the vehicle while the buffer exceeds its
// maximum size. nearestIdx is the buffer index closest to the vehicle; only
// waypoints before it are eligible, and at least MinSize waypoints are always
// retained. Returns the vehicle's index after trimming.
func (b *Buffer) TrimBehind(nearestIdx int) int {
	if nearestIdx < 0 {
		return nearestIdx
	}
	for len(b.points) > b.limits.MaxSize && nearestIdx > 0 && len(b.points) > b.limits.MinSize {
		b.points = b.points[1:]
		nearestIdx--
	}
	return nearestIdx
}

// NearestIndex returns the index of the committed waypoint closest to (x, y),
// or -1 on an empty buffer.
func (b *Buffer) NearestIndex(x, y float64) int {
	best := -1
	bestDist := math.MaxFloat64
	for i, p := range b.points {
		d := math.Hypot(p.X-x, p.Y-y)
		if d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

// Consumed reports whether fewer than `lookahead` waypoints remain ahead of
// nearestIdx, meaning the committed trajectory is about to run out and the
// next cycle must regenerate from the vehicle pose.
func (b *Buffer) Consumed(nearestIdx, lookahead int) bool {
	if len(b.points) == 0 {
		return true
	}
	return len(b.points)-1-nearestIdx < lookahead
}

// TargetSpeedAt reads the planned speed a few waypoints ahead of the
// vehicle, clamped to the last waypoint. The longitudinal controller tracks
// this value.
func (b *Buffer) TargetSpeedAt(nearestIdx, lookahead int) float64 {
	if len(b.points) == 0 {
		return 0
	}
	i := nearestIdx + lookahead
	if i > len(b.points)-1 {
		i = len(b.points) - 1
	}
	if i < 0 {
		i = 0
	}
	return b.points[i].Speed
}

func lerpPoint(a, p frenet.TrajectoryPoint, frac float64) frenet.TrajectoryPoint {
	out := a
	out.X = a.X + frac*(p.X-a.X)
	out.Y = a.Y + frac*(p.Y-a.Y)
	out.Heading = a.Heading + frac*wrapAngle(p.Heading-a.Heading)
	out.Curvature = a.Curvature + frac*(p.Curvature-a.Curvature)
	out.Speed = a.Speed + frac*(p.Speed-a.Speed)
	out.S = a.S + frac*(p.S-a.S)
	out.D = a.D + frac*(p.D-a.D)
	out.TOffset = a.TOffset + frac*(p.TOffset-a.TOffset)
	return out
}

func wrapAngle(rad float64) float64 {
	for rad > math.Pi {
		rad -= 2 * math.Pi
	}
	for rad <= -math.Pi {
		rad += 2 * math.Pi
	}
	return rad
}
