// Package rank scores lanes by a fixed weighted heuristic and orders
// them for prioritized display. Scoring is pure; the committed order is
// the only state the ranker keeps, so resorting happens exclusively on
// an explicit commit and never as a hidden side effect of rendering.
package rank

import (
	"sort"
	"time"

	"github.com/kubelane/kubelane/internal/classify"
	"github.com/kubelane/kubelane/internal/hierarchy"
	"github.com/kubelane/kubelane/internal/types"
)

// Kind priority tiers. Controllers and GitOps objects surface first,
// config objects last.
var kindPriority = map[string]int{
	"Deployment":    55,
	"StatefulSet":   52,
	"DaemonSet":     52,
	"Rollout":       52,
	"Application":   50,
	"Kustomization": 50,
	"HelmRelease":   50,

	"Service":       45,
	"Ingress":       45,
	"Gateway":       45,
	"HTTPRoute":     45,
	"NetworkPolicy": 45,

	"Job":      40,
	"CronJob":  40,
	"Workflow": 40,

	"Pod": 30,

	"HorizontalPodAutoscaler": 25,

	"ReplicaSet": 20,

	"ConfigMap": 10,
	"Secret":    10,
}

const defaultKindPriority = 15

var systemNamespaces = map[string]bool{
	"kube-system":     true,
	"kube-public":     true,
	"kube-node-lease": true,
}

// Score computes the lane's interestingness breakdown relative to the
// given reference time. Caps bound every factor so no single signal
// dominates indefinitely.
func Score(lane *hierarchy.Lane, now time.Time) hierarchy.ScoreBreakdown {
	b := hierarchy.ScoreBreakdown{}

	if p, ok := kindPriority[lane.Kind]; ok {
		b.Kind = p
	} else {
		b.Kind = defaultKindPriority
	}

	var recent5, recent30, problems int
	var adds, deletes, updates int
	opTypes := map[types.Operation]bool{}
	for _, ev := range lane.Events {
		age := now.Sub(ev.Timestamp)
		if age >= 0 && age <= 5*time.Minute {
			recent5++
		} else if age > 5*time.Minute && age <= 30*time.Minute {
			recent30++
		}
		if classify.IsProblematic(ev) {
			problems++
		}
		switch ev.Operation {
		case types.OperationAdd:
			adds++
		case types.OperationDelete:
			deletes++
		case types.OperationUpdate:
			updates++
		}
		if ev.Operation != "" {
			opTypes[ev.Operation] = true
		}
	}

	b.Recency5m = capAt(recent5*30, 150)
	b.Recency30m = capAt(recent30*10, 50)
	b.Problems = capAt(problems*40, 200)
	b.Variety = capAt(len(opTypes)*10, 30)
	b.AddDelete = capAt(adds*15, 45) + capAt(deletes*20, 60)

	if len(lane.Children) > 0 {
		b.ChildrenBonus = 10
	}
	if len(lane.Events) == 0 {
		b.EmptyPenalty = -30
	}
	if systemNamespaces[lane.Namespace] {
		b.SystemNamespace = -30
	}
	// Repetitive low-information churn: many updates with only one
	// distinct operation type observed.
	if updates > 10 && len(opTypes) == 1 {
		b.Noise = -capAt(updates, 40)
	}

	b.Total = b.Kind + b.Recency5m + b.Recency30m + b.Problems + b.Variety +
		b.AddDelete + b.ChildrenBonus + b.EmptyPenalty + b.SystemNamespace + b.Noise
	return b
}

func capAt(v, max int) int {
	if v > max {
		return max
	}
	return v
}

// Ranker holds the committed lane order. Scores are computed purely by
// Score; Commit is the single, deliberately-invoked resort. Between
// commits Apply reuses the committed order so the display never
// flickers on re-render.
type Ranker struct {
	position map[string]int
	epochKey map[string]int
	nextKey  int
}

func NewRanker() *Ranker {
	return &Ranker{
		position: map[string]int{},
		epochKey: map[string]int{},
	}
}

// Commit scores the top-level lanes, sorts them descending by total
// (ties broken by a stable insertion-order key captured once per
// lane), records the new order, and returns the sorted slice. Given
// identical inputs, Commit is idempotent.
func (r *Ranker) Commit(lanes []*hierarchy.Lane, now time.Time) []*hierarchy.Lane {
	for _, lane := range lanes {
		if _, ok := r.epochKey[lane.ID]; !ok {
			r.epochKey[lane.ID] = r.nextKey
			r.nextKey++
		}
		breakdown := Score(lane, now)
		lane.Score = breakdown.Total
		lane.ScoreBreakdown = &breakdown
	}

	sorted := make([]*hierarchy.Lane, len(lanes))
	copy(sorted, lanes)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return r.epochKey[sorted[i].ID] < r.epochKey[sorted[j].ID]
	})

	r.position = make(map[string]int, len(sorted))
	for i, lane := range sorted {
		r.position[lane.ID] = i
	}
	return sorted
}

// Apply orders lanes by the last committed order without rescoring.
// Lanes unseen at commit time keep their input order after the known
// ones, so new arrivals append rather than reshuffle the view.
func (r *Ranker) Apply(lanes []*hierarchy.Lane) []*hierarchy.Lane {
	if len(r.position) == 0 {
		return r.commitOrderless(lanes)
	}
	sorted := make([]*hierarchy.Lane, len(lanes))
	copy(sorted, lanes)
	known := len(r.position)
	rankOf := func(id string) int {
		if pos, ok := r.position[id]; ok {
			return pos
		}
		return known // unseen lanes sort after all committed ones, stably
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return rankOf(sorted[i].ID) < rankOf(sorted[j].ID)
	})
	return sorted
}

func (r *Ranker) commitOrderless(lanes []*hierarchy.Lane) []*hierarchy.Lane {
	out := make([]*hierarchy.Lane, len(lanes))
	copy(out, lanes)
	return out
}
