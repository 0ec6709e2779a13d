package hierarchy

import (
	"sort"
	"strings"
	"time"

	"github.com/kubelane/kubelane/internal/classify"
	"github.com/kubelane/kubelane/internal/types"
)

// Lane is a single resource's event track in the timeline, together
// with the lanes of its resolved children.
type Lane struct {
	ID         string                `json:"id"` // ResourceRef key, or app:<value> for synthetic group lanes
	Kind       string                `json:"kind"`
	Namespace  string                `json:"namespace"`
	Name       string                `json:"name"`
	IsWorkload bool                  `json:"isWorkload"`
	Synthetic  bool                  `json:"synthetic,omitempty"` // display-only app grouping, not an ownership fact
	Events     []types.TimelineEvent `json:"events"`
	Children   []*Lane               `json:"children,omitempty"`
	AllEvents  []types.TimelineEvent `json:"allEvents"`
	Labels     map[string]string     `json:"-"`
	CreatedAt  *time.Time            `json:"createdAt,omitempty"`

	// Filled in by the ranker.
	Score          int             `json:"score"`
	ScoreBreakdown *ScoreBreakdown `json:"scoreBreakdown,omitempty"`
}

// ScoreBreakdown itemizes the interestingness score contributions.
type ScoreBreakdown struct {
	Kind            int `json:"kind"`
	Recency5m       int `json:"recency5m"`
	Recency30m      int `json:"recency30m"`
	Problems        int `json:"problems"`
	Variety         int `json:"variety"`
	AddDelete       int `json:"addDelete"`
	ChildrenBonus   int `json:"childrenBonus"`
	EmptyPenalty    int `json:"emptyPenalty"`
	SystemNamespace int `json:"systemNamespacePenalty"`
	Noise           int `json:"noisePenalty"`
	Total           int `json:"total"`
}

// Ref returns the lane's resource identity. Synthetic group lanes have
// no real resource behind them.
func (l *Lane) Ref() types.ResourceRef {
	return types.ResourceRef{Kind: l.Kind, Namespace: l.Namespace, Name: l.Name}
}

var workloadKinds = map[string]bool{
	"Deployment":  true,
	"StatefulSet": true,
	"DaemonSet":   true,
	"ReplicaSet":  true,
	"Pod":         true,
	"Job":         true,
	"CronJob":     true,
	"Rollout":     true,
}

// appLabelKeys are checked in order when grouping lanes by app.
var appLabelKeys = []string{"app.kubernetes.io/name", "app"}

// Build reconstructs the lane forest from a flat event batch.
//
// Ownership precedence is explicit and total: owner reference >
// topology edge > label grouping > orphan. Label grouping (groupByApp)
// is a display-only heuristic and never an ownership fact.
//
// Events with malformed timestamps are dropped; a lane whose parent
// cannot be resolved stays top-level.
func Build(events []types.TimelineEvent, topo *types.Topology, groupByApp bool) []*Lane {
	lanes, order := partition(events)
	if len(order) == 0 {
		return nil
	}

	parents := resolveParents(lanes, order, topo)

	var roots []*Lane
	attached := map[string]bool{}
	for _, key := range order {
		lane := lanes[key]
		parentKey, ok := parents[key]
		if !ok {
			roots = append(roots, lane)
			continue
		}
		parent := lanes[parentKey]
		if parent == nil || parentKey == key {
			// Orphan: the referenced parent is absent from this batch.
			roots = append(roots, lane)
			continue
		}
		if !attached[key] {
			parent.Children = append(parent.Children, lane)
			attached[key] = true
		}
	}

	if groupByApp {
		roots = groupRootsByApp(roots)
	}

	for _, root := range roots {
		fillAllEvents(root, map[string]bool{})
	}
	return roots
}

// partition groups events into candidate lanes keyed by ResourceRef,
// preserving first-seen order for stable output.
func partition(events []types.TimelineEvent) (map[string]*Lane, []string) {
	lanes := map[string]*Lane{}
	var order []string
	for _, ev := range events {
		if !ev.HasValidTimestamp() {
			continue
		}
		key := ev.Ref().Key()
		lane, ok := lanes[key]
		if !ok {
			lane = &Lane{
				ID:         key,
				Kind:       ev.Kind,
				Namespace:  ev.Namespace,
				Name:       ev.Name,
				IsWorkload: workloadKinds[ev.Kind],
			}
			lanes[key] = lane
			order = append(order, key)
		}
		lane.Events = append(lane.Events, ev)
		if lane.CreatedAt == nil && ev.CreatedAt != nil {
			created := *ev.CreatedAt
			lane.CreatedAt = &created
		}
		for k, v := range ev.Labels {
			if lane.Labels == nil {
				lane.Labels = map[string]string{}
			}
			lane.Labels[k] = v
		}
	}
	for _, lane := range lanes {
		sortEventsAscending(lane.Events)
	}
	return lanes, order
}

// resolveParents maps each lane key to its parent lane key. Owner
// references win over topology edges; lanes without either signal are
// absent from the result.
func resolveParents(lanes map[string]*Lane, order []string, topo *types.Topology) map[string]string {
	parents := map[string]string{}
	for _, key := range order {
		lane := lanes[key]
		if owner := consistentOwner(lane); owner != nil {
			ref := *owner
			if ref.Namespace == "" {
				ref.Namespace = lane.Namespace
			}
			parents[key] = ref.Key()
			continue
		}
		if parentKey := topologyParent(lane, lanes, order, topo); parentKey != "" {
			parents[key] = parentKey
		}
	}
	breakCycles(parents, order)
	return parents
}

// breakCycles drops the parent edge of the first lane (in input order)
// on each ownership cycle so every lane stays reachable from a root.
func breakCycles(parents map[string]string, order []string) {
	for _, key := range order {
		seen := map[string]bool{key: true}
		cur := key
		for {
			parent, ok := parents[cur]
			if !ok {
				break
			}
			if seen[parent] {
				if parent == key {
					delete(parents, key)
				}
				break
			}
			seen[parent] = true
			cur = parent
		}
	}
}

// consistentOwner returns the lane's owner reference when the lane's
// events agree on one. Conflicting owners disqualify the signal.
func consistentOwner(lane *Lane) *types.ResourceRef {
	var owner *types.ResourceRef
	for _, ev := range lane.Events {
		if ev.Owner == nil {
			continue
		}
		if owner == nil {
			o := *ev.Owner
			owner = &o
			continue
		}
		if owner.Kind != ev.Owner.Kind || owner.Name != ev.Owner.Name {
			return nil
		}
	}
	return owner
}

// topologyParent attempts the fallback kind-level match: an edge whose
// target kind equals the lane's kind nominates the source kind as a
// plausible parent. An edge marked SkipIfKindVisible collapses onto that
// kind when a same-namespace lane of it is present, so intermediate
// hops (ReplicaSet between Deployment and Pod) do not strand children
// whose middle lane never emitted an event. Candidates are
// same-namespace lanes of the nominated kind; a name-prefix match wins,
// otherwise only an unambiguous single candidate is accepted.
func topologyParent(lane *Lane, lanes map[string]*Lane, order []string, topo *types.Topology) string {
	if topo == nil {
		return ""
	}
	parentKinds := map[string]bool{}
	for _, edge := range topo.Edges {
		if topo.KindOf(edge.Target) != lane.Kind {
			continue
		}
		kind := topo.KindOf(edge.Source)
		if edge.SkipIfKindVisible != "" && kindVisible(lanes, order, edge.SkipIfKindVisible, lane.Namespace) {
			kind = edge.SkipIfKindVisible
		}
		if kind != "" {
			parentKinds[kind] = true
		}
	}
	if len(parentKinds) == 0 {
		return ""
	}

	var candidates []string
	for _, key := range order {
		candidate := lanes[key]
		if key == lane.ID || candidate.Namespace != lane.Namespace {
			continue
		}
		if !parentKinds[candidate.Kind] {
			continue
		}
		if strings.HasPrefix(lane.Name, candidate.Name+"-") {
			return key
		}
		candidates = append(candidates, key)
	}
	if len(candidates) == 1 {
		return candidates[0]
	}
	return ""
}

func kindVisible(lanes map[string]*Lane, order []string, kind, namespace string) bool {
	for _, key := range order {
		candidate := lanes[key]
		if candidate.Kind == kind && candidate.Namespace == namespace {
			return true
		}
	}
	return false
}

// groupRootsByApp merges top-level lanes sharing an app label value
// under one synthetic parent lane per value. Groups of one stay as-is.
func groupRootsByApp(roots []*Lane) []*Lane {
	byApp := map[string][]*Lane{}
	var appOrder []string
	for _, root := range roots {
		app := appLabel(root.Labels)
		if app == "" {
			continue
		}
		if _, seen := byApp[app]; !seen {
			appOrder = append(appOrder, app)
		}
		byApp[app] = append(byApp[app], root)
	}

	grouped := map[string]bool{}
	synthetic := map[string]*Lane{}
	for _, app := range appOrder {
		members := byApp[app]
		if len(members) < 2 {
			continue
		}
		lane := &Lane{
			ID:        "app:" + app,
			Kind:      "Application",
			Namespace: members[0].Namespace,
			Name:      app,
			Synthetic: true,
			Children:  members,
		}
		synthetic[app] = lane
		for _, m := range members {
			grouped[m.ID] = true
		}
	}
	if len(synthetic) == 0 {
		return roots
	}

	var out []*Lane
	emitted := map[string]bool{}
	for _, root := range roots {
		app := appLabel(root.Labels)
		if lane, ok := synthetic[app]; ok && grouped[root.ID] {
			if !emitted[app] {
				out = append(out, lane)
				emitted[app] = true
			}
			continue
		}
		out = append(out, root)
	}
	return out
}

func appLabel(labels map[string]string) string {
	for _, key := range appLabelKeys {
		if v := labels[key]; v != "" {
			return v
		}
	}
	return ""
}

// fillAllEvents computes the lane's own-plus-descendant event list. The
// visited set guards against ownership cycles, which should not occur
// in valid data but must not recurse forever when they do.
func fillAllEvents(lane *Lane, visited map[string]bool) []types.TimelineEvent {
	if visited[lane.ID] {
		return nil
	}
	visited[lane.ID] = true

	all := make([]types.TimelineEvent, len(lane.Events))
	copy(all, lane.Events)
	for _, child := range lane.Children {
		all = append(all, fillAllEvents(child, visited)...)
	}
	sortEventsAscending(all)
	lane.AllEvents = all
	return all
}

// sortEventsAscending orders events by timestamp; at equal timestamps
// the more severe event sorts later so it paints on top.
func sortEventsAscending(events []types.TimelineEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Timestamp.Equal(events[j].Timestamp) {
			return classify.SeverityRank(events[i]) < classify.SeverityRank(events[j])
		}
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
}

// Flatten returns the forest in depth-first order, one entry per lane.
func Flatten(roots []*Lane) []*Lane {
	var out []*Lane
	var walk func(*Lane)
	seen := map[string]bool{}
	walk = func(lane *Lane) {
		if seen[lane.ID] {
			return
		}
		seen[lane.ID] = true
		out = append(out, lane)
		for _, child := range lane.Children {
			walk(child)
		}
	}
	for _, root := range roots {
		walk(root)
	}
	return out
}
