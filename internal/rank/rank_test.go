package rank

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubelane/kubelane/internal/hierarchy"
	"github.com/kubelane/kubelane/internal/types"
)

var now = time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)

func lane(kind, ns, name string, events ...types.TimelineEvent) *hierarchy.Lane {
	ref := types.ResourceRef{Kind: kind, Namespace: ns, Name: name}
	return &hierarchy.Lane{
		ID:        ref.Key(),
		Kind:      kind,
		Namespace: ns,
		Name:      name,
		Events:    events,
	}
}

func eventAt(age time.Duration, op types.Operation, reason string) types.TimelineEvent {
	return types.TimelineEvent{
		Timestamp: now.Add(-age),
		Category:  types.CategoryChange,
		Operation: op,
		Reason:    reason,
	}
}

func TestScore_KindPriorities(t *testing.T) {
	deployment := Score(lane("Deployment", "default", "web"), now)
	pod := Score(lane("Pod", "default", "web-1"), now)
	configMap := Score(lane("ConfigMap", "default", "settings"), now)
	unknown := Score(lane("FooBar", "default", "x"), now)

	assert.Equal(t, 55, deployment.Kind)
	assert.Equal(t, 30, pod.Kind)
	assert.Equal(t, 10, configMap.Kind)
	assert.Equal(t, 15, unknown.Kind)
}

func TestScore_RecencyCaps(t *testing.T) {
	var events []types.TimelineEvent
	for i := 0; i < 20; i++ {
		events = append(events, eventAt(time.Minute, types.OperationUpdate, ""))
	}
	b := Score(lane("Pod", "default", "busy", events...), now)
	assert.Equal(t, 150, b.Recency5m, "recency-5m capped at 150")

	var old []types.TimelineEvent
	for i := 0; i < 20; i++ {
		old = append(old, eventAt(10*time.Minute, types.OperationUpdate, ""))
	}
	b = Score(lane("Pod", "default", "older", old...), now)
	assert.Equal(t, 50, b.Recency30m, "recency-30m capped at 50")
}

func TestScore_ProblemsCapped(t *testing.T) {
	var events []types.TimelineEvent
	for i := 0; i < 10; i++ {
		events = append(events, eventAt(time.Minute, types.OperationUpdate, "CrashLoopBackOff"))
	}
	b := Score(lane("Pod", "default", "crashy", events...), now)
	assert.Equal(t, 200, b.Problems, "problems capped at 200")
}

func TestScore_StructuralSignals(t *testing.T) {
	parent := lane("Deployment", "default", "web")
	parent.Children = []*hierarchy.Lane{lane("Pod", "default", "web-1")}
	b := Score(parent, now)
	assert.Equal(t, 10, b.ChildrenBonus)
	assert.Equal(t, -30, b.EmptyPenalty, "zero own events is a pure-container penalty")

	system := Score(lane("Pod", "kube-system", "kube-proxy-x", eventAt(time.Minute, types.OperationUpdate, "")), now)
	assert.Equal(t, -30, system.SystemNamespace)
}

func TestScore_NoisyConfigMapRanksLow(t *testing.T) {
	// 15 updates, one operation type, zero problems: noise penalty plus
	// the low kind priority should sink it.
	var churn []types.TimelineEvent
	for i := 0; i < 15; i++ {
		churn = append(churn, eventAt(time.Duration(i+16)*time.Minute, types.OperationUpdate, ""))
	}
	noisy := lane("ConfigMap", "default", "churny", churn...)

	interesting := lane("Deployment", "default", "web",
		eventAt(time.Minute, types.OperationAdd, ""),
		eventAt(2*time.Minute, types.OperationUpdate, "CrashLoopBackOff"),
	)

	ranker := NewRanker()
	ordered := ranker.Commit([]*hierarchy.Lane{noisy, interesting}, now)
	require.Len(t, ordered, 2)
	assert.Equal(t, "Deployment/default/web", ordered[0].ID)
	assert.Equal(t, "ConfigMap/default/churny", ordered[1].ID)

	assert.Equal(t, -15, noisy.ScoreBreakdown.Noise)
	assert.Equal(t, 10, noisy.ScoreBreakdown.Kind)
	assert.Equal(t, 0, noisy.ScoreBreakdown.Problems)
}

func TestScore_NoNoisePenaltyWithVariety(t *testing.T) {
	var events []types.TimelineEvent
	for i := 0; i < 15; i++ {
		events = append(events, eventAt(time.Minute, types.OperationUpdate, ""))
	}
	events = append(events, eventAt(time.Minute, types.OperationAdd, ""))
	b := Score(lane("ConfigMap", "default", "mixed", events...), now)
	assert.Equal(t, 0, b.Noise, "two operation types observed, churn is informative")
}

func TestScore_TotalIsSumOfFactors(t *testing.T) {
	l := lane("Pod", "kube-system", "p",
		eventAt(time.Minute, types.OperationAdd, ""),
		eventAt(2*time.Minute, types.OperationUpdate, "OOMKilled"),
	)
	b := Score(l, now)
	sum := b.Kind + b.Recency5m + b.Recency30m + b.Problems + b.Variety +
		b.AddDelete + b.ChildrenBonus + b.EmptyPenalty + b.SystemNamespace + b.Noise
	assert.Equal(t, sum, b.Total)
}

func TestRanker_StableOrderBetweenCommits(t *testing.T) {
	a := lane("Deployment", "default", "a", eventAt(time.Minute, types.OperationUpdate, ""))
	b := lane("Deployment", "default", "b", eventAt(time.Minute, types.OperationUpdate, ""))
	c := lane("Deployment", "default", "c", eventAt(time.Minute, types.OperationUpdate, ""))

	ranker := NewRanker()
	committed := ranker.Commit([]*hierarchy.Lane{a, b, c}, now)

	// Equal scores: insertion order breaks the tie.
	require.Equal(t, []string{a.ID, b.ID, c.ID}, ids(committed))

	// Apply with shuffled input preserves the committed order.
	applied := ranker.Apply([]*hierarchy.Lane{c, a, b})
	assert.Equal(t, []string{a.ID, b.ID, c.ID}, ids(applied))
}

func TestRanker_CommitIdempotent(t *testing.T) {
	a := lane("Deployment", "default", "a", eventAt(time.Minute, types.OperationUpdate, "CrashLoopBackOff"))
	b := lane("Pod", "default", "b", eventAt(time.Minute, types.OperationUpdate, ""))

	ranker := NewRanker()
	first := ids(ranker.Commit([]*hierarchy.Lane{a, b}, now))
	second := ids(ranker.Commit([]*hierarchy.Lane{a, b}, now))
	assert.Equal(t, first, second, "re-ranking identical inputs must not reorder")
}

func TestRanker_NewLanesAppendWithoutReshuffle(t *testing.T) {
	a := lane("Deployment", "default", "a", eventAt(time.Minute, types.OperationUpdate, ""))
	b := lane("Pod", "default", "b", eventAt(time.Minute, types.OperationUpdate, ""))

	ranker := NewRanker()
	ranker.Commit([]*hierarchy.Lane{a, b}, now)

	// A high-scoring newcomer must not jump the committed order until
	// the next explicit commit.
	hot := lane("Deployment", "default", "hot",
		eventAt(time.Second, types.OperationUpdate, "CrashLoopBackOff"),
		eventAt(2*time.Second, types.OperationUpdate, "OOMKilled"),
	)
	applied := ranker.Apply([]*hierarchy.Lane{hot, a, b})
	assert.Equal(t, []string{a.ID, b.ID, hot.ID}, ids(applied))

	recommitted := ranker.Commit([]*hierarchy.Lane{hot, a, b}, now)
	assert.Equal(t, hot.ID, recommitted[0].ID, "explicit commit surfaces the newcomer")
}

func ids(lanes []*hierarchy.Lane) []string {
	out := make([]string, len(lanes))
	for i, l := range lanes {
		out[i] = l.ID
	}
	return out
}
