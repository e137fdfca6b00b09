package lane

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// straightLane builds a lane along +X with 1m waypoint spacing.
func straightLane(n int) *Lane {
	l := &Lane{Waypoints: make([]Waypoint, n)}
	for i := range l.Waypoints {
		l.Waypoints[i] = Waypoint{
			X:         float64(i),
			Y:         0,
			Heading:   0,
			LaneID:    2,
			LaneWidth: 3.5,
			LeftWidth: 3.5,
		}
	}
	return l
}

func TestNearestIndex(t *testing.T) {
	t.Parallel()

	l := straightLane(10)
	assert.Equal(t, 4, l.NearestIndex(4.3, 1.0))
	assert.Equal(t, 0, l.NearestIndex(-5, 0))
	assert.Equal(t, 9, l.NearestIndex(100, 0))
	assert.Equal(t, -1, (&Lane{}).NearestIndex(0, 0))
}

func TestWindow(t *testing.T) {
	t.Parallel()

	t.Run("selects behind and ahead spans", func(t *testing.T) {
		t.Parallel()
		l := straightLane(50)
		w, err := l.Window(25, 0, 3, 10, 2)
		require.NoError(t, err)

		assert.Equal(t, 22.0, w.Waypoints[0].X)
		assert.Equal(t, 35.0, w.Waypoints[len(w.Waypoints)-1].X)
	})

	t.Run("clips at lane ends", func(t *testing.T) {
		t.Parallel()
		l := straightLane(10)
		w, err := l.Window(1, 0, 100, 100, 2)
		require.NoError(t, err)
		assert.Len(t, w.Waypoints, 10)
	})

	t.Run("off-map vehicle rejected", func(t *testing.T) {
		t.Parallel()
		l := straightLane(10)
		_, err := l.Window(5, 60, 3, 10, 2)
		assert.ErrorIs(t, err, ErrOffMap)
	})

	t.Run("too few waypoints rejected", func(t *testing.T) {
		t.Parallel()
		l := straightLane(3)
		_, err := l.Window(1, 0, 0.1, 0.1, 5)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrOffMap)
	})

	t.Run("empty lane rejected", func(t *testing.T) {
		t.Parallel()
		_, err := (&Lane{}).Window(0, 0, 5, 5, 2)
		assert.Error(t, err)
	})

	t.Run("window is a copy", func(t *testing.T) {
		t.Parallel()
		l := straightLane(10)
		w, err := l.Window(5, 0, 2, 2, 2)
		require.NoError(t, err)
		w.Waypoints[0].X = -999
		assert.NotEqual(t, -999.0, l.Waypoints[3].X)
	})
}

func TestFitRefSplineStraight(t *testing.T) {
	t.Parallel()

	l := straightLane(20)
	sp, err := FitRefSpline(l, 0.5)
	require.NoError(t, err)

	assert.InDelta(t, 19.0, sp.Length(), 0.05)

	// Every resampled point should sit on the X axis with zero heading.
	for _, p := range sp.Points() {
		assert.InDelta(t, 0.0, p.Y, 1e-6)
		assert.InDelta(t, 0.0, p.Heading, 1e-6)
		assert.InDelta(t, 0.0, p.Curvature, 1e-6)
		assert.Equal(t, 2, p.LaneID)
		assert.Equal(t, 3.5, p.LaneWidth)
	}
}

func TestFitRefSplineArc(t *testing.T) {
	t.Parallel()

	// Quarter circle of radius 20: curvature should come out near 1/20.
	const radius = 20.0
	l := &Lane{}
	for i := 0; i <= 30; i++ {
		theta := float64(i) / 30 * math.Pi / 2
		l.Waypoints = append(l.Waypoints, Waypoint{
			X:         radius * math.Sin(theta),
			Y:         radius * (1 - math.Cos(theta)),
			LaneID:    1,
			LaneWidth: 3.0,
		})
	}

	sp, err := FitRefSpline(l, 0.5)
	require.NoError(t, err)

	arcLen := radius * math.Pi / 2
	assert.InDelta(t, arcLen, sp.Length(), arcLen*0.01)

	// Sample curvature away from the endpoints where the natural boundary
	// conditions flatten the fit.
	mid := sp.At(sp.Length() / 2)
	assert.InDelta(t, 1.0/radius, mid.Curvature, 0.01)
}

func TestFitRefSplineErrors(t *testing.T) {
	t.Parallel()

	_, err := FitRefSpline(straightLane(10), 0)
	assert.Error(t, err)

	_, err = FitRefSpline(&Lane{Waypoints: []Waypoint{{X: 1, Y: 1}}}, 0.5)
	assert.Error(t, err)

	// Duplicate points collapse to fewer than two distinct waypoints.
	dup := &Lane{Waypoints: []Waypoint{{X: 1, Y: 1}, {X: 1, Y: 1}}}
	_, err = FitRefSpline(dup, 0.5)
	assert.Error(t, err)
}

func TestProject(t *testing.T) {
	t.Parallel()

	l := straightLane(20)
	sp, err := FitRefSpline(l, 0.5)
	require.NoError(t, err)

	t.Run("point left of path has positive offset", func(t *testing.T) {
		t.Parallel()
		s, d := sp.Project(5, 1.2)
		assert.InDelta(t, 5.0, s, 0.05)
		assert.InDelta(t, 1.2, d, 1e-6)
	})

	t.Run("point right of path has negative offset", func(t *testing.T) {
		t.Parallel()
		_, d := sp.Project(8, -0.7)
		assert.InDelta(t, -0.7, d, 1e-6)
	})

	t.Run("point before start clamps to zero arclength", func(t *testing.T) {
		t.Parallel()
		s, _ := sp.Project(-3, 0)
		assert.InDelta(t, 0.0, s, 1e-9)
	})

	t.Run("at evaluates clamped", func(t *testing.T) {
		t.Parallel()
		end := sp.At(1e9)
		assert.InDelta(t, 19.0, end.X, 0.1)
		start := sp.At(-5)
		assert.InDelta(t, 0.0, start.X, 1e-9)
	})
}
