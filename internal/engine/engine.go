// Package engine composes the classifier, hierarchy builder, health
// span reconstructor, ranker and viewport into display-ready plain
// data. Every derived structure is a pure function of (batch, topology,
// flags, viewport); the committed rank order and the viewport's
// referenceNow anchor are the only state carried across recomputations.
package engine

import (
	"sync"
	"time"

	"github.com/kubelane/kubelane/internal/classify"
	"github.com/kubelane/kubelane/internal/health"
	"github.com/kubelane/kubelane/internal/hierarchy"
	"github.com/kubelane/kubelane/internal/rank"
	"github.com/kubelane/kubelane/internal/state"
	"github.com/kubelane/kubelane/internal/types"
	"github.com/kubelane/kubelane/internal/viewport"
)

// LaneView is one rendered lane: identity, rank, spans for the current
// window, own events, and children. Plain data, no framework types.
type LaneView struct {
	ID                  string                    `json:"id"`
	Kind                string                    `json:"kind"`
	Namespace           string                    `json:"namespace"`
	Name                string                    `json:"name"`
	IsWorkload          bool                      `json:"isWorkload"`
	Synthetic           bool                      `json:"synthetic,omitempty"`
	Score               int                       `json:"score"`
	ScoreBreakdown      *hierarchy.ScoreBreakdown `json:"scoreBreakdown,omitempty"`
	Spans               []health.Span             `json:"spans"`
	CreatedAt           *time.Time                `json:"createdAt,omitempty"`
	CreatedBeforeWindow bool                      `json:"createdBeforeWindow,omitempty"`
	Events              []types.TimelineEvent     `json:"events"`
	Children            []*LaneView               `json:"children,omitempty"`
}

// TimelineView is the complete snapshot handed to the rendering layer.
type TimelineView struct {
	Lanes        []*LaneView       `json:"lanes"`
	Viewport     viewport.Snapshot `json:"viewport"`
	RoutineCount int               `json:"routineCount"`
	TotalEvents  int               `json:"totalEvents"`
}

type snapKey struct {
	batchID     uint64
	topoVersion string
	flags       types.Flags
}

// Engine memoizes the derived lane forest keyed on batch identity,
// topology identity and flags, so a re-render every few seconds does
// not redo hierarchy assembly when nothing changed.
type Engine struct {
	mu          sync.Mutex
	ranker      *rank.Ranker
	ranked      bool
	memoKey     snapKey
	memoValid   bool
	memoRoots   []*hierarchy.Lane
	memoRoutine int
	memoLastNow time.Time
}

func New() *Engine {
	return &Engine{ranker: rank.NewRanker()}
}

// Snapshot derives the full timeline view. It never fails: malformed
// events are filtered, empty input degrades to an empty view.
func (e *Engine) Snapshot(batch state.Batch, topo *types.Topology, topoVersion string, flags types.Flags, vp *viewport.Viewport) *TimelineView {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, windowEnd := vp.VisibleWindow()

	key := snapKey{batchID: batch.ID, topoVersion: topoVersion, flags: flags}
	if !e.memoValid || e.memoKey != key {
		events, routine := filterRoutine(batch.Events, flags.ShowRoutine)
		e.memoRoots = hierarchy.Build(events, topo, flags.GroupByApp)
		e.memoRoutine = routine
		e.memoKey = key
		e.memoValid = true
	}
	e.memoLastNow = windowEnd

	// The first snapshot of a non-empty lane set establishes the
	// committed order; afterwards scores refresh for display but only an
	// explicit Rerank resorts, so lanes do not jump around as live data
	// arrives. Empty polls before ingestion starts must not use up the
	// initial commit.
	if !e.ranked {
		e.ranker.Commit(e.memoRoots, windowEnd)
		e.ranked = len(e.memoRoots) > 0
	} else {
		for _, lane := range e.memoRoots {
			breakdown := rank.Score(lane, windowEnd)
			lane.Score = breakdown.Total
			lane.ScoreBreakdown = &breakdown
		}
	}

	ordered := e.ranker.Apply(e.memoRoots)

	view := &TimelineView{
		Viewport:     vp.Snapshot(),
		RoutineCount: e.memoRoutine,
		TotalEvents:  len(batch.Events),
	}
	for _, lane := range ordered {
		if !vp.LaneVisible(lane.AllEvents) {
			continue
		}
		view.Lanes = append(view.Lanes, e.laneView(lane, vp))
	}
	return view
}

// Rerank commits a new lane order from the current scores. This is the
// only user-triggered mutation in the engine; it is idempotent and
// yields the same order given the same inputs.
func (e *Engine) Rerank() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.memoValid {
		return
	}
	e.ranker.Commit(e.memoRoots, e.memoLastNow)
}

func (e *Engine) laneView(lane *hierarchy.Lane, vp *viewport.Viewport) *LaneView {
	windowStart, windowEnd := vp.VisibleWindow()
	spans := health.BuildSpans(lane.Events, windowStart, windowEnd, lane.AllEvents)

	if lane.ScoreBreakdown == nil {
		breakdown := rank.Score(lane, windowEnd)
		lane.Score = breakdown.Total
		lane.ScoreBreakdown = &breakdown
	}

	view := &LaneView{
		ID:                  lane.ID,
		Kind:                lane.Kind,
		Namespace:           lane.Namespace,
		Name:                lane.Name,
		IsWorkload:          lane.IsWorkload,
		Synthetic:           lane.Synthetic,
		Score:               lane.Score,
		ScoreBreakdown:      lane.ScoreBreakdown,
		Spans:               spans.Spans,
		CreatedAt:           spans.CreatedAt,
		CreatedBeforeWindow: spans.CreatedBeforeWindow,
		Events:              lane.Events,
	}
	for _, child := range lane.Children {
		if !vp.LaneVisible(child.AllEvents) {
			continue
		}
		view.Children = append(view.Children, e.laneView(child, vp))
	}
	return view
}

// filterRoutine drops routine events unless showRoutine is set and
// reports how many were suppressed for the "show N routine" toggle.
func filterRoutine(events []types.TimelineEvent, showRoutine bool) ([]types.TimelineEvent, int) {
	routine := 0
	for _, ev := range events {
		if classify.IsRoutine(ev) {
			routine++
		}
	}
	if showRoutine || routine == 0 {
		return events, routine
	}
	kept := make([]types.TimelineEvent, 0, len(events)-routine)
	for _, ev := range events {
		if classify.IsRoutine(ev) {
			continue
		}
		kept = append(kept, ev)
	}
	return kept, routine
}
