package types

import (
	"testing"
	"time"
)

func TestParseTimestamp(t *testing.T) {
	cases := []struct {
		name  string
		input string
		ok    bool
	}{
		{"rfc3339", "2026-01-02T15:04:05Z", true},
		{"rfc3339 with offset", "2026-01-02T15:04:05+02:00", true},
		{"rfc3339 nano", "2026-01-02T15:04:05.123456789Z", true},
		{"empty", "", false},
		{"garbage", "not-a-timestamp", false},
		{"date only", "2026-01-02", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts, ok := ParseTimestamp(tc.input)
			if ok != tc.ok {
				t.Fatalf("ParseTimestamp(%q) ok = %v, want %v", tc.input, ok, tc.ok)
			}
			if ok && ts.IsZero() {
				t.Errorf("ParseTimestamp(%q) returned zero time with ok=true", tc.input)
			}
		})
	}
}

func TestResourceRefKey(t *testing.T) {
	a := ResourceRef{Kind: "Pod", Namespace: "default", Name: "web-1"}
	b := ResourceRef{Kind: "Pod", Namespace: "default", Name: "web-1"}
	if a.Key() != b.Key() {
		t.Errorf("equal refs produced different keys: %q vs %q", a.Key(), b.Key())
	}
	if a != b {
		t.Error("expected value equality for identical refs")
	}

	c := ResourceRef{Kind: "Pod", Namespace: "other", Name: "web-1"}
	if a.Key() == c.Key() {
		t.Errorf("different namespaces produced the same key: %q", a.Key())
	}
}

func TestTopologyKindOf(t *testing.T) {
	topo := &Topology{
		Nodes: []TopologyNode{{ID: "deploy-1", Kind: "Deployment"}},
	}
	if got := topo.KindOf("deploy-1"); got != "Deployment" {
		t.Errorf("KindOf(deploy-1) = %q, want Deployment", got)
	}
	if got := topo.KindOf("missing"); got != "" {
		t.Errorf("KindOf(missing) = %q, want empty (lookup miss is no relationship)", got)
	}
	var nilTopo *Topology
	if got := nilTopo.KindOf("anything"); got != "" {
		t.Errorf("nil topology KindOf = %q, want empty", got)
	}
}

func TestHasValidTimestamp(t *testing.T) {
	valid := TimelineEvent{Timestamp: time.Now()}
	if !valid.HasValidTimestamp() {
		t.Error("expected valid timestamp")
	}
	if (TimelineEvent{}).HasValidTimestamp() {
		t.Error("zero timestamp should be invalid")
	}
}
