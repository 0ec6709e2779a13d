package formatting

import (
	"fmt"
	"strings"
	"time"

	"github.com/kubelane/kubelane/internal/classify"
	"github.com/kubelane/kubelane/internal/health"
	"github.com/kubelane/kubelane/internal/hierarchy"
	"github.com/kubelane/kubelane/internal/types"
)

// FormatEvent renders a one-line human-readable summary of an event for
// the detail panel.
func FormatEvent(ev types.TimelineEvent) string {
	var b strings.Builder
	b.WriteString(ev.Timestamp.Format(time.RFC3339))
	b.WriteString("  ")
	b.WriteString(ev.Ref().String())
	if ev.Operation != "" {
		fmt.Fprintf(&b, " %s", ev.Operation)
	}
	if ev.Reason != "" {
		fmt.Fprintf(&b, " [%s]", ev.Reason)
	}
	if classify.IsCritical(ev) {
		if icon, ok := classify.Icon(ev.Reason); ok {
			fmt.Fprintf(&b, " (%s)", icon)
		}
	}
	if ev.Message != "" {
		b.WriteString(": ")
		b.WriteString(ev.Message)
	}
	return b.String()
}

// FormatSpan describes one health interval.
func FormatSpan(span health.Span) string {
	return fmt.Sprintf("%s from %s to %s (%s)",
		span.Health,
		span.Start.Format(time.RFC3339),
		span.End.Format(time.RFC3339),
		formatDuration(span.End.Sub(span.Start)))
}

// LaneSummary aggregates counts used by the lane detail endpoint.
func LaneSummary(lane *hierarchy.Lane) map[string]interface{} {
	summary := map[string]interface{}{
		"id":        lane.ID,
		"kind":      lane.Kind,
		"events":    len(lane.Events),
		"allEvents": len(lane.AllEvents),
		"children":  len(lane.Children),
		"problems":  0,
		"critical":  0,
		"score":     lane.Score,
	}
	for _, ev := range lane.Events {
		if classify.IsProblematic(ev) {
			summary["problems"] = summary["problems"].(int) + 1
		}
		if classify.IsCritical(ev) {
			summary["critical"] = summary["critical"].(int) + 1
		}
	}
	return summary
}

// formatDuration trims a duration to the largest two sensible units.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
	return fmt.Sprintf("%dd%dh", int(d.Hours())/24, int(d.Hours())%24)
}
