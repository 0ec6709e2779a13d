package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/kubelane/kubelane/internal/formatting"
	"github.com/kubelane/kubelane/internal/hierarchy"
	"github.com/kubelane/kubelane/internal/rank"
	"github.com/kubelane/kubelane/internal/types"
	"github.com/kubelane/kubelane/internal/viewport"
)

// GET /api/v1/timeline?zoom=2&panMs=0&refNow=2026-01-02T15:04:05Z&groupByApp=true&showRoutine=false&preset=1h
//
// The client owns viewport state: refNow is captured once per UI
// session and echoed back on every request so the window never drifts
// between re-renders.
func (api *APIServer) handleTimeline(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	flags := types.Flags{
		GroupByApp:      q.Get("groupByApp") == "true",
		ShowRoutine:     q.Get("showRoutine") == "true",
		TimeRangePreset: q.Get("preset"),
	}

	vp := api.viewportFromQuery(r)
	view := api.engine.Snapshot(api.store.Batch(), api.topo, api.topoVersion, flags, vp)
	api.respondJSON(w, view)
}

// GET /api/v1/lane?kind=Pod&namespace=default&name=web-1&groupByApp=false
func (api *APIServer) handleLane(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ref := types.ResourceRef{
		Kind:      q.Get("kind"),
		Namespace: q.Get("namespace"),
		Name:      q.Get("name"),
	}
	if ref.Kind == "" || ref.Name == "" {
		http.Error(w, "kind and name are required", http.StatusBadRequest)
		return
	}

	batch := api.store.Batch()
	roots := hierarchy.Build(batch.Events, api.topo, q.Get("groupByApp") == "true")
	for _, lane := range hierarchy.Flatten(roots) {
		if lane.ID != ref.Key() {
			continue
		}
		breakdown := rank.Score(lane, api.clock.Now())
		formatted := make([]string, 0, len(lane.Events))
		for _, ev := range lane.Events {
			formatted = append(formatted, formatting.FormatEvent(ev))
		}
		api.respondJSON(w, map[string]interface{}{
			"summary":        formatting.LaneSummary(lane),
			"scoreBreakdown": breakdown,
			"events":         formatted,
		})
		return
	}
	http.Error(w, "lane not found", http.StatusNotFound)
}

// GET /api/v1/events?kind=Pod&namespace=default&name=web-1&since=2026-01-02T00:00:00Z
func (api *APIServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ref := types.ResourceRef{
		Kind:      q.Get("kind"),
		Namespace: q.Get("namespace"),
		Name:      q.Get("name"),
	}
	if ref.Kind == "" || ref.Name == "" {
		http.Error(w, "kind and name are required", http.StatusBadRequest)
		return
	}

	events := api.store.ByRef(ref)
	if since, ok := types.ParseTimestamp(q.Get("since")); ok {
		filtered := events[:0]
		for _, ev := range events {
			if !ev.Timestamp.Before(since) {
				filtered = append(filtered, ev)
			}
		}
		events = filtered
	}
	api.respondJSON(w, events)
}

// POST /api/v1/rerank
//
// The explicit resort. Every other endpoint reuses the committed lane
// order so the view stays stable between polls.
func (api *APIServer) handleRerank(w http.ResponseWriter, r *http.Request) {
	api.engine.Rerank()
	api.respondJSON(w, map[string]string{"status": "reranked"})
}

func (api *APIServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	api.respondJSON(w, map[string]string{"status": "ok"})
}

func (api *APIServer) handleReady(w http.ResponseWriter, r *http.Request) {
	api.respondJSON(w, map[string]interface{}{
		"status": "ready",
		"events": api.store.EventCount(),
	})
}

// viewportFromQuery reconstructs the caller's viewport. Missing or
// malformed parameters degrade to defaults instead of erroring.
func (api *APIServer) viewportFromQuery(r *http.Request) *viewport.Viewport {
	q := r.URL.Query()

	refNow, ok := types.ParseTimestamp(q.Get("refNow"))
	if !ok {
		refNow = api.clock.Now()
	}

	zoomStr := q.Get("zoom")
	if zoomStr == "" {
		preset := q.Get("preset")
		if preset == "" {
			preset = api.defaultPreset
		}
		vp := viewport.New(api.clock, preset)
		return viewport.Restore(refNow, int(vp.Zoom()), parsePanMs(q.Get("panMs")))
	}
	zoom, err := strconv.Atoi(zoomStr)
	if err != nil {
		zoom = 2 // 1h ladder entry
	}
	return viewport.Restore(refNow, zoom, parsePanMs(q.Get("panMs")))
}

func parsePanMs(s string) int64 {
	if s == "" {
		return 0
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ms < 0 {
		return 0
	}
	return ms
}

func (api *APIServer) respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		api.logger.Warn("failed to encode response", "error", err)
	}
}
