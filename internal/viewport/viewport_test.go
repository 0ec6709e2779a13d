package viewport

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubelane/kubelane/internal/types"
)

var anchor = time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)

func newTestViewport(preset string) *Viewport {
	return New(clockwork.NewFakeClockAt(anchor), preset)
}

func TestNew_PresetSelection(t *testing.T) {
	v := newTestViewport("4h")
	assert.Equal(t, 4*time.Hour, v.WindowDuration())
	assert.True(t, v.ReferenceNow().Equal(anchor))

	// Unknown presets fall back to the 1h default.
	v = newTestViewport("9h")
	assert.Equal(t, time.Hour, v.WindowDuration())
}

func TestZoom_ClampsAtLadderEnds(t *testing.T) {
	v := newTestViewport("15m")
	v.ZoomIn()
	assert.Equal(t, 15*time.Minute, v.WindowDuration(), "zoom-in at smallest window is a no-op")

	v = newTestViewport("7d")
	v.ZoomOut()
	assert.Equal(t, 7*24*time.Hour, v.WindowDuration(), "zoom-out at largest window is a no-op")
}

func TestZoom_OneStepAtATime(t *testing.T) {
	v := newTestViewport("1h")
	v.ZoomOut()
	assert.Equal(t, 2*time.Hour, v.WindowDuration())
	v.ZoomIn()
	v.ZoomIn()
	assert.Equal(t, 30*time.Minute, v.WindowDuration())
}

func TestPan_ClampsAtNow(t *testing.T) {
	v := newTestViewport("1h")

	// Scroll half a window into the past.
	v.Pan(500, 1000)
	assert.Equal(t, 30*time.Minute, v.PanOffset())
	_, end := v.VisibleWindow()
	assert.True(t, end.Equal(anchor.Add(-30*time.Minute)))

	// Scrolling forward past now clamps to zero.
	v.Pan(-2000, 1000)
	assert.Equal(t, time.Duration(0), v.PanOffset())
	_, end = v.VisibleWindow()
	assert.True(t, end.Equal(anchor))
}

func TestPan_ZeroWidthIgnored(t *testing.T) {
	v := newTestViewport("1h")
	v.Pan(500, 0)
	assert.Equal(t, time.Duration(0), v.PanOffset())
}

func TestVisibleWindow(t *testing.T) {
	v := newTestViewport("2h")
	start, end := v.VisibleWindow()
	assert.True(t, end.Equal(anchor))
	assert.True(t, start.Equal(anchor.Add(-2*time.Hour)))
}

func TestAxisTicks_DensityAcrossLadder(t *testing.T) {
	for _, preset := range presetLabels {
		t.Run(preset, func(t *testing.T) {
			v := newTestViewport(preset)
			ticks := v.AxisTicks()
			require.NotEmpty(t, ticks)
			assert.GreaterOrEqual(t, len(ticks), 6, "too few ticks at %s", preset)
			assert.LessOrEqual(t, len(ticks), 13, "too many ticks at %s", preset)

			start, end := v.VisibleWindow()
			interval := tickIntervals[v.Zoom()]
			for i, tick := range ticks {
				assert.False(t, tick.Before(start), "tick outside window")
				assert.False(t, tick.After(end), "tick outside window")
				assert.True(t, tick.Equal(tick.Truncate(interval)), "tick not aligned to %s", interval)
				if i > 0 {
					assert.Equal(t, interval, tick.Sub(ticks[i-1]))
				}
			}
		})
	}
}

func TestTimeToX(t *testing.T) {
	v := newTestViewport("1h")

	assert.Equal(t, 100.0, v.TimeToX(anchor))
	assert.Equal(t, 0.0, v.TimeToX(anchor.Add(-time.Hour)))
	assert.InDelta(t, 50.0, v.TimeToX(anchor.Add(-30*time.Minute)), 0.001)

	// Out-of-window timestamps clamp to the edges.
	assert.Equal(t, 0.0, v.TimeToX(anchor.Add(-2*time.Hour)))
	assert.Equal(t, 100.0, v.TimeToX(anchor.Add(time.Hour)))
}

func TestLaneVisible(t *testing.T) {
	v := newTestViewport("1h")

	inside := []types.TimelineEvent{{Timestamp: anchor.Add(-10 * time.Minute)}}
	outside := []types.TimelineEvent{{Timestamp: anchor.Add(-3 * time.Hour)}}

	assert.True(t, v.LaneVisible(inside))
	assert.False(t, v.LaneVisible(outside))
	assert.False(t, v.LaneVisible(nil))

	// Zooming out widens the window and the lane reappears.
	v.ZoomOut()
	v.ZoomOut()
	assert.True(t, v.LaneVisible(outside))
}

func TestRestore_RoundTrip(t *testing.T) {
	v := newTestViewport("2h")
	v.Pan(250, 1000)
	snap := v.Snapshot()

	restored := Restore(snap.ReferenceNow, snap.ZoomLevel, snap.PanOffsetMs)
	assert.Equal(t, v.WindowDuration(), restored.WindowDuration())
	assert.Equal(t, v.PanOffset(), restored.PanOffset())

	s1, e1 := v.VisibleWindow()
	s2, e2 := restored.VisibleWindow()
	assert.True(t, s1.Equal(s2))
	assert.True(t, e1.Equal(e2))
}

func TestRestore_ClampsInvalidState(t *testing.T) {
	v := Restore(anchor, 99, -5000)
	assert.Equal(t, 7*24*time.Hour, v.WindowDuration())
	assert.Equal(t, time.Duration(0), v.PanOffset())

	v = Restore(anchor, -3, 0)
	assert.Equal(t, 15*time.Minute, v.WindowDuration())
}

func TestSnapshot_Fields(t *testing.T) {
	v := newTestViewport("1h")
	snap := v.Snapshot()
	assert.Equal(t, 2, snap.ZoomLevel)
	assert.Equal(t, "1h", snap.ZoomLabel)
	assert.True(t, snap.VisibleEnd.Equal(anchor))
	assert.True(t, snap.VisibleStart.Equal(anchor.Add(-time.Hour)))
	assert.NotEmpty(t, snap.AxisTicks)
	assert.Zero(t, snap.PanOffsetMs)
}
