package types

import (
	"fmt"
	"time"
)

// EventCategory describes where a timeline event came from.
type EventCategory string

const (
	CategoryChange         EventCategory = "change"
	CategoryPlatformNotice EventCategory = "platform-notice"
	CategoryInferred       EventCategory = "inferred"
)

// Operation is the change operation reported by the event source.
type Operation string

const (
	OperationAdd    Operation = "add"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// HealthState is the normalized health of a resource at a point in time.
type HealthState string

const (
	HealthHealthy   HealthState = "healthy"
	HealthDegraded  HealthState = "degraded"
	HealthUnhealthy HealthState = "unhealthy"
	HealthUnknown   HealthState = "unknown"
)

// ResourceRef identifies a resource by kind, namespace and name.
// Equality is by value.
type ResourceRef struct {
	Kind      string `json:"kind"`
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
}

// Key returns the stable identity key used to index lanes.
func (r ResourceRef) Key() string {
	return r.Kind + "/" + r.Namespace + "/" + r.Name
}

func (r ResourceRef) String() string {
	if r.Namespace == "" {
		return fmt.Sprintf("%s/%s", r.Kind, r.Name)
	}
	return fmt.Sprintf("%s/%s/%s", r.Kind, r.Namespace, r.Name)
}

// TimelineEvent is a single change or platform notice for one resource.
// Events are immutable after ingestion; derived structures are always
// recomputed from the latest batch, never patched in place.
type TimelineEvent struct {
	ID          string            `json:"id"`
	Kind        string            `json:"kind"`
	Namespace   string            `json:"namespace"`
	Name        string            `json:"name"`
	Timestamp   time.Time         `json:"timestamp"`
	Category    EventCategory     `json:"category"`
	Operation   Operation         `json:"operation,omitempty"`
	Reason      string            `json:"reason,omitempty"`
	Message     string            `json:"message,omitempty"`
	Severity    string            `json:"severity,omitempty"` // platform notice severity: Normal or Warning
	HealthState HealthState       `json:"healthState,omitempty"`
	Owner       *ResourceRef      `json:"owner,omitempty"`
	DiffSummary string            `json:"diffSummary,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
	CreatedAt   *time.Time        `json:"createdAt,omitempty"` // resource creation time recovered from metadata
}

// Ref returns the identity of the resource the event belongs to.
func (e TimelineEvent) Ref() ResourceRef {
	return ResourceRef{Kind: e.Kind, Namespace: e.Namespace, Name: e.Name}
}

// HasValidTimestamp reports whether the event can participate in
// ordering-sensitive computations. Malformed timestamps are filtered,
// never treated as errors.
func (e TimelineEvent) HasValidTimestamp() bool {
	return !e.Timestamp.IsZero()
}

// ParseTimestamp parses an ISO-8601 wire timestamp. The second return
// value is false for malformed input; callers drop such events from
// ordering-sensitive computations instead of failing.
func ParseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// TopologyNode is a node in the optional topology graph supplied by the
// event source.
type TopologyNode struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
}

// TopologyEdge connects two topology nodes. Edges are consulted only as
// a fallback ownership signal when explicit owner references are absent.
type TopologyEdge struct {
	Source            string `json:"source"`
	Target            string `json:"target"`
	SkipIfKindVisible string `json:"skipIfKindVisible,omitempty"`
}

// Topology is the optional resource relationship graph.
type Topology struct {
	Nodes []TopologyNode `json:"nodes"`
	Edges []TopologyEdge `json:"edges"`
}

// KindOf resolves a topology node id to its kind. Lookup misses are
// treated as "no relationship found".
func (t *Topology) KindOf(id string) string {
	if t == nil {
		return ""
	}
	for _, n := range t.Nodes {
		if n.ID == id {
			return n.Kind
		}
	}
	return ""
}

// Flags are the display options that influence derivation.
type Flags struct {
	GroupByApp      bool   `json:"groupByApp"`
	ShowRoutine     bool   `json:"showRoutine"`
	TimeRangePreset string `json:"timeRangePreset,omitempty"`
}
