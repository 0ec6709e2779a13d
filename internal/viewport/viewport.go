// Package viewport maintains the zoomable, pannable time window and its
// axis ticks. The window is a pure function of (referenceNow, zoom
// level, pan offset); referenceNow is captured once per session from an
// injected clock so the window does not silently drift forward on every
// re-render.
package viewport

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/kubelane/kubelane/internal/types"
)

// ZoomLevel indexes the fixed zoom ladder.
type ZoomLevel int

// zoomLadder is the discrete set of allowed window durations. Zoom
// moves one step at a time so axis tick density stays predictable.
var zoomLadder = []time.Duration{
	15 * time.Minute,
	30 * time.Minute,
	1 * time.Hour,
	2 * time.Hour,
	4 * time.Hour,
	8 * time.Hour,
	12 * time.Hour,
	24 * time.Hour,
	48 * time.Hour,
	72 * time.Hour,
	7 * 24 * time.Hour,
}

// tickIntervals maps each zoom level to an axis tick interval sized so
// 6-12 ticks render regardless of window length.
var tickIntervals = []time.Duration{
	2 * time.Minute,
	5 * time.Minute,
	10 * time.Minute,
	15 * time.Minute,
	30 * time.Minute,
	1 * time.Hour,
	2 * time.Hour,
	3 * time.Hour,
	6 * time.Hour,
	12 * time.Hour,
	24 * time.Hour,
}

// presetLabels maps time-range presets to ladder entries.
var presetLabels = []string{"15m", "30m", "1h", "2h", "4h", "8h", "12h", "1d", "2d", "3d", "7d"}

const defaultZoom = ZoomLevel(2) // 1h

// Viewport is the zoom/pan state machine.
type Viewport struct {
	zoom         ZoomLevel
	panOffset    time.Duration
	referenceNow time.Time
}

// New captures referenceNow once from the clock and starts at the
// ladder entry for the given preset; unknown presets fall back to the
// 1h default rather than erroring.
func New(clock clockwork.Clock, preset string) *Viewport {
	return &Viewport{
		zoom:         zoomForPreset(preset),
		referenceNow: clock.Now(),
	}
}

func zoomForPreset(preset string) ZoomLevel {
	for i, label := range presetLabels {
		if label == preset {
			return ZoomLevel(i)
		}
	}
	return defaultZoom
}

// Restore rebuilds a viewport from a previously serialized state, for
// stateless callers that carry zoom/pan across requests.
func Restore(referenceNow time.Time, zoom int, panOffsetMs int64) *Viewport {
	v := &Viewport{referenceNow: referenceNow}
	v.zoom = clampZoom(ZoomLevel(zoom))
	v.panOffset = time.Duration(panOffsetMs) * time.Millisecond
	if v.panOffset < 0 {
		v.panOffset = 0
	}
	return v
}

func clampZoom(z ZoomLevel) ZoomLevel {
	if z < 0 {
		return 0
	}
	if int(z) >= len(zoomLadder) {
		return ZoomLevel(len(zoomLadder) - 1)
	}
	return z
}

// Zoom returns the current ladder index.
func (v *Viewport) Zoom() ZoomLevel { return v.zoom }

// WindowDuration returns the current window length.
func (v *Viewport) WindowDuration() time.Duration { return zoomLadder[v.zoom] }

// PanOffset returns how far the window is scrolled back from now.
func (v *Viewport) PanOffset() time.Duration { return v.panOffset }

// ReferenceNow returns the session time anchor.
func (v *Viewport) ReferenceNow() time.Time { return v.referenceNow }

// ZoomIn moves one step down the ladder. No-op at the smallest window.
func (v *Viewport) ZoomIn() {
	if v.zoom > 0 {
		v.zoom--
	}
}

// ZoomOut moves one step up the ladder. No-op at the largest window.
func (v *Viewport) ZoomOut() {
	if int(v.zoom) < len(zoomLadder)-1 {
		v.zoom++
	}
}

// Pan converts a pixel delta to a time delta using the current window
// and viewport width, then scrolls by it. The offset clamps at zero so
// the window can never scroll past "now".
func (v *Viewport) Pan(deltaPixels, viewportWidthPixels float64) {
	if viewportWidthPixels <= 0 {
		return
	}
	windowMs := float64(zoomLadder[v.zoom] / time.Millisecond)
	deltaMs := deltaPixels * windowMs / viewportWidthPixels
	v.panOffset += time.Duration(deltaMs * float64(time.Millisecond))
	if v.panOffset < 0 {
		v.panOffset = 0
	}
}

// VisibleWindow derives the current window bounds.
func (v *Viewport) VisibleWindow() (start, end time.Time) {
	end = v.referenceNow.Add(-v.panOffset)
	start = end.Add(-zoomLadder[v.zoom])
	return start, end
}

// AxisTicks returns tick timestamps aligned to the zoom level's tick
// interval, inside the visible window.
func (v *Viewport) AxisTicks() []time.Time {
	start, end := v.VisibleWindow()
	interval := tickIntervals[v.zoom]
	first := start.Truncate(interval)
	if first.Before(start) {
		first = first.Add(interval)
	}
	var ticks []time.Time
	for t := first; !t.After(end); t = t.Add(interval) {
		ticks = append(ticks, t)
	}
	return ticks
}

// TimeToX maps a timestamp into [0,100] percentage coordinates within
// the visible window for layout.
func (v *Viewport) TimeToX(ts time.Time) float64 {
	start, end := v.VisibleWindow()
	span := end.Sub(start)
	if span <= 0 {
		return 0
	}
	x := float64(ts.Sub(start)) / float64(span) * 100
	if x < 0 {
		return 0
	}
	if x > 100 {
		return 100
	}
	return x
}

// LaneVisible reports whether any of the lane's events (own or
// descendant) fall inside the visible window. Lanes with no activity in
// view are skipped but reappear on zoom-out.
func (v *Viewport) LaneVisible(allEvents []types.TimelineEvent) bool {
	start, end := v.VisibleWindow()
	for _, ev := range allEvents {
		if !ev.Timestamp.Before(start) && !ev.Timestamp.After(end) {
			return true
		}
	}
	return false
}

// Snapshot is the plain-data viewport state handed to the renderer.
type Snapshot struct {
	VisibleStart time.Time   `json:"visibleStart"`
	VisibleEnd   time.Time   `json:"visibleEnd"`
	AxisTicks    []time.Time `json:"axisTicks"`
	ZoomLevel    int         `json:"zoomLevel"`
	ZoomLabel    string      `json:"zoomLabel"`
	PanOffsetMs  int64       `json:"panOffsetMs"`
	ReferenceNow time.Time   `json:"referenceNow"`
}

// Snapshot captures the current state as plain data.
func (v *Viewport) Snapshot() Snapshot {
	start, end := v.VisibleWindow()
	return Snapshot{
		VisibleStart: start,
		VisibleEnd:   end,
		AxisTicks:    v.AxisTicks(),
		ZoomLevel:    int(v.zoom),
		ZoomLabel:    presetLabels[v.zoom],
		PanOffsetMs:  v.panOffset.Milliseconds(),
		ReferenceNow: v.referenceNow,
	}
}
