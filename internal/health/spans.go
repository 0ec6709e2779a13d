// Package health reconstructs contiguous health-state intervals for a
// lane from its sorted change events.
package health

import (
	"sort"
	"time"

	"github.com/kubelane/kubelane/internal/classify"
	"github.com/kubelane/kubelane/internal/types"
)

// Span is a time interval during which a resource's inferred health is
// constant. Spans returned for one lane and window never overlap, are
// ordered ascending, and their union covers [windowStart, now].
type Span struct {
	Start  time.Time         `json:"start"`
	End    time.Time         `json:"end"`
	Health types.HealthState `json:"health"`
}

// Result is the reconstructed span set plus creation metadata used by
// the renderer to draw a truncation indicator instead of implying the
// resource appeared mid-window.
type Result struct {
	Spans               []Span     `json:"spans"`
	CreatedAt           *time.Time `json:"createdAt,omitempty"`
	CreatedBeforeWindow bool       `json:"createdBeforeWindow"`
}

// BuildSpans walks the lane's change events and derives health spans
// over [windowStart, now]. Spans beginning before windowStart are
// clipped, not dropped, so continuity at the window boundary is
// preserved. Zero qualifying events yield an empty span list; the
// renderer shows a neutral background.
func BuildSpans(changeEvents []types.TimelineEvent, windowStart, now time.Time, allEventsForMetadata []types.TimelineEvent) Result {
	res := Result{}
	res.CreatedAt = creationTime(allEventsForMetadata)
	if res.CreatedAt != nil && res.CreatedAt.Before(windowStart) {
		res.CreatedBeforeWindow = true
	}

	qualifying := make([]types.TimelineEvent, 0, len(changeEvents))
	for _, ev := range changeEvents {
		if ev.Category != types.CategoryChange || !ev.HasValidTimestamp() {
			continue
		}
		if ev.Timestamp.After(now) {
			continue
		}
		qualifying = append(qualifying, ev)
	}
	if len(qualifying) == 0 {
		return res
	}
	sort.SliceStable(qualifying, func(i, j int) bool {
		return qualifying[i].Timestamp.Before(qualifying[j].Timestamp)
	})

	// Walk forward building raw spans from unknown onward; transitions
	// close the open span and start the next.
	type open struct {
		start  time.Time
		health types.HealthState
	}
	first := qualifying[0].Timestamp
	start := first
	if windowStart.Before(first) {
		// The region before the first event is unknown unless the
		// resource predates the window, in which case the truncation
		// flag already tells the renderer what happened.
		start = windowStart
	}
	cur := open{start: start, health: types.HealthUnknown}

	var raw []Span
	for _, ev := range qualifying {
		h := impliedHealth(ev)
		if h == cur.health {
			continue
		}
		if ev.Timestamp.After(cur.start) {
			raw = append(raw, Span{Start: cur.start, End: ev.Timestamp, Health: cur.health})
			cur = open{start: ev.Timestamp, health: h}
		} else {
			// Same instant as the span start: the later event wins.
			cur.health = h
		}
	}
	if now.After(cur.start) {
		raw = append(raw, Span{Start: cur.start, End: now, Health: cur.health})
	}

	// Clip to the visible window.
	for _, span := range raw {
		if !span.End.After(windowStart) {
			continue
		}
		if span.Start.Before(windowStart) {
			span.Start = windowStart
		}
		res.Spans = append(res.Spans, span)
	}
	return res
}

// impliedHealth derives the health an event puts the resource into:
// the event's own health state when present, unhealthy when the event
// is problematic, healthy otherwise.
func impliedHealth(ev types.TimelineEvent) types.HealthState {
	if ev.HealthState != "" {
		return ev.HealthState
	}
	if classify.IsProblematic(ev) {
		return types.HealthUnhealthy
	}
	return types.HealthHealthy
}

// creationTime recovers the resource creation timestamp from event
// metadata rather than from the change stream.
func creationTime(events []types.TimelineEvent) *time.Time {
	for _, ev := range events {
		if ev.CreatedAt != nil {
			created := *ev.CreatedAt
			return &created
		}
	}
	return nil
}
