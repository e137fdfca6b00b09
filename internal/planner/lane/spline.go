package lane

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/interp"
)

// RefSpline is the smoothed reference curve fitted over a local lane window
// and resampled at uniform arclength spacing. All Frenet-frame conversions
// read this curve. It is rebuilt whenever the lane window changes and is
// immutable afterwards.
type RefSpline struct {
	s   []float64  // cumulative arclength at each resampled point
	pts []Waypoint // resampled geometry plus carried-over lane metadata
}

// FitRefSpline fits natural cubic splines x(t), y(t) over the lane window's
// waypoints (parameterised by chord length) and resamples the curve at the
// given arclength resolution. Heading comes from the spline derivatives and
// curvature from the heading rate over arclength. Lane metadata (lane id,
// widths) is carried from the nearest source waypoint of each sample.
func FitRefSpline(l *Lane, resolution float64) (*RefSpline, error) {
	if resolution <= 0 {
		return nil, fmt.Errorf("lane: spline resolution must be positive, got %f", resolution)
	}
	wps := dedupeWaypoints(l.Waypoints)
	if len(wps) < 2 {
		return nil, fmt.Errorf("lane: need at least 2 distinct waypoints to fit a spline, got %d", len(wps))
	}

	// Chord-length parameterisation; strictly increasing by construction
	// after dedupe.
	t := make([]float64, len(wps))
	xs := make([]float64, len(wps))
	ys := make([]float64, len(wps))
	for i, wp := range wps {
		if i > 0 {
			prev := wps[i-1]
			t[i] = t[i-1] + math.Hypot(wp.X-prev.X, wp.Y-prev.Y)
		}
		xs[i] = wp.X
		ys[i] = wp.Y
	}

	var sx, sy interp.NaturalCubic
	if err := sx.Fit(t, xs); err != nil {
		return nil, fmt.Errorf("lane: fitting x spline: %w", err)
	}
	if err := sy.Fit(t, ys); err != nil {
		return nil, fmt.Errorf("lane: fitting y spline: %w", err)
	}

	total := t[len(t)-1]
	n := int(total/resolution) + 1
	if n < 2 {
		n = 2
	}

	spline := &RefSpline{
		s:   make([]float64, 0, n+1),
		pts: make([]Waypoint, 0, n+1),
	}

	arc := 0.0
	srcIdx := 0
	var prevX, prevY float64
	for i := 0; ; i++ {
		ti := float64(i) * resolution
		if ti > total {
			ti = total
		}
		x := sx.Predict(ti)
		y := sy.Predict(ti)
		dx := sx.PredictDerivative(ti)
		dy := sy.PredictDerivative(ti)

		if i > 0 {
			arc += math.Hypot(x-prevX, y-prevY)
		}
		prevX, prevY = x, y

		// Advance the metadata cursor monotonically along the source
		// waypoints; chord parameter and source spacing line up closely
		// enough for lane ids and widths.
		for srcIdx < len(t)-1 && t[srcIdx+1] <= ti {
			srcIdx++
		}
		meta := wps[srcIdx]

		spline.s = append(spline.s, arc)
		spline.pts = append(spline.pts, Waypoint{
			X:          x,
			Y:          y,
			Heading:    math.Atan2(dy, dx),
			LaneID:     meta.LaneID,
			LaneWidth:  meta.LaneWidth,
			LeftWidth:  meta.LeftWidth,
			RightWidth: meta.RightWidth,
		})

		if ti >= total {
			break
		}
	}

	// Curvature from the heading rate between neighbouring samples.
	for i := range spline.pts {
		spline.pts[i].Curvature = spline.curvatureAt(i)
	}

	return spline, nil
}

// dedupeWaypoints drops consecutive waypoints closer than 1mm so the chord
// parameterisation stays strictly increasing.
func dedupeWaypoints(wps []Waypoint) []Waypoint {
	const minSpacing = 1e-3
	out := make([]Waypoint, 0, len(wps))
	for _, wp := range wps {
		if len(out) > 0 {
			prev := out[len(out)-1]
			if math.Hypot(wp.X-prev.X, wp.Y-prev.Y) < minSpacing {
				continue
			}
		}
		out = append(out, wp)
	}
	return out
}

func (r *RefSpline) curvatureAt(i int) float64 {
	lo, hi := i-1, i+1
	if lo < 0 {
		lo = 0
	}
	if hi > len(r.pts)-1 {
		hi = len(r.pts) - 1
	}
	ds := r.s[hi] - r.s[lo]
	if ds <= 0 {
		return 0
	}
	dh := wrapAngle(r.pts[hi].Heading - r.pts[lo].Heading)
	return dh / ds
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

// Length returns the total arclength of the spline.
func (r *RefSpline) Length() float64 {
	if len(r.s) == 0 {
		return 0
	}
	return r.s[len(r.s)-1]
}

// Points returns a copy of the resampled spline points for publishing.
func (r *RefSpline) Points() []Waypoint {
	out := make([]Waypoint, len(r.pts))
	copy(out, r.pts)
	return out
}

// At evaluates the spline at arclength s, clamped to [0, Length], linearly
// interpolating pose between the two neighbouring samples.
func (r *RefSpline) At(s float64) Waypoint {
	if len(r.pts) == 1 {
		return r.pts[0]
	}
	if s <= 0 {
		return r.pts[0]
	}
	if s >= r.Length() {
		return r.pts[len(r.pts)-1]
	}

	// Samples are uniformly spaced in arclength to within resampling error;
	// binary search keeps this exact regardless.
	lo, hi := 0, len(r.s)-1
	for hi-lo > 1 {
		mid := (lo + hi) / 2
		if r.s[mid] <= s {
			lo = mid
		} else {
			hi = mid
		}
	}

	span := r.s[hi] - r.s[lo]
	frac := 0.0
	if span > 0 {
		frac = (s - r.s[lo]) / span
	}
	a, b := r.pts[lo], r.pts[hi]
	out := a
	out.X = a.X + frac*(b.X-a.X)
	out.Y = a.Y + frac*(b.Y-a.Y)
	out.Heading = a.Heading + frac*wrapAngle(b.Heading-a.Heading)
	out.Curvature = a.Curvature + frac*(b.Curvature-a.Curvature)
	return out
}

// Project computes the Frenet coordinates (s, d) of point (x, y): arclength
// of the closest spline point and the signed lateral offset from it, positive
// to the left of the travel direction.
func (r *RefSpline) Project(x, y float64) (s, d float64) {
	if len(r.pts) == 0 {
		return 0, 0
	}

	best := 0
	bestDist := math.MaxFloat64
	for i, p := range r.pts {
		dist := math.Hypot(p.X-x, p.Y-y)
		if dist < bestDist {
			bestDist = dist
			best = i
		}
	}

	// Refine by projecting onto the segment around the nearest sample.
	segStart := best
	if segStart == len(r.pts)-1 {
		segStart--
	}
	if segStart < 0 {
		p := r.pts[0]
		return 0, crossTrack(p, x, y)
	}

	a, b := r.pts[segStart], r.pts[segStart+1]
	abx, aby := b.X-a.X, b.Y-a.Y
	segLenSq := abx*abx + aby*aby
	frac := 0.0
	if segLenSq > 0 {
		frac = ((x-a.X)*abx + (y-a.Y)*aby) / segLenSq
		if frac < 0 {
			frac = 0
		} else if frac > 1 {
			frac = 1
		}
	}

	s = r.s[segStart] + frac*(r.s[segStart+1]-r.s[segStart])
	ref := r.At(s)
	return s, crossTrack(ref, x, y)
}

// crossTrack is the signed lateral offset of (x, y) from the waypoint's pose,
// positive left of the heading.
func crossTrack(wp Waypoint, x, y float64) float64 {
	tx, ty := math.Cos(wp.Heading), math.Sin(wp.Heading)
	return tx*(y-wp.Y) - ty*(x-wp.X)
}
