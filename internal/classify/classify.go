package classify

import (
	"strings"

	"github.com/kubelane/kubelane/internal/types"
)

// Classification is the semantic tagging of a single event.
type Classification struct {
	Category      types.EventCategory `json:"category"`
	IsProblematic bool                `json:"isProblematic"`
	IsCritical    bool                `json:"isCritical"`
	IsRoutine     bool                `json:"isRoutine"`
}

// IconCategory groups critical reasons for iconography.
type IconCategory string

const (
	IconMemory           IconCategory = "memory"
	IconCrash            IconCategory = "crash"
	IconImagePull        IconCategory = "image-pull"
	IconContainerRuntime IconCategory = "container-runtime"
	IconScheduling       IconCategory = "scheduling"
	IconResourcePressure IconCategory = "resource-pressure"
	IconRollout          IconCategory = "rollout"
	IconScaling          IconCategory = "scaling"
	IconStorage          IconCategory = "storage"
	IconJobTimeout       IconCategory = "job-timeout"
	IconFailure          IconCategory = "failure"
)

// criticalReasonIcons maps the reasons that get dedicated iconography.
// Membership here also marks an event critical.
var criticalReasonIcons = map[string]IconCategory{
	"OOMKilled":  IconMemory,
	"OOMKilling": IconMemory,

	"CrashLoopBackOff": IconCrash,
	"BackOff":          IconCrash,

	"ImagePullBackOff": IconImagePull,
	"ErrImagePull":     IconImagePull,
	"InvalidImageName": IconImagePull,

	"CreateContainerError":       IconContainerRuntime,
	"CreateContainerConfigError": IconContainerRuntime,
	"RunContainerError":          IconContainerRuntime,
	"ContainerCannotRun":         IconContainerRuntime,

	"FailedScheduling":   IconScheduling,
	"NodeNotReady":       IconScheduling,
	"NodeNotSchedulable": IconScheduling,
	"Preempted":          IconScheduling,

	"Evicted":               IconResourcePressure,
	"NodeHasDiskPressure":   IconResourcePressure,
	"NodeHasMemoryPressure": IconResourcePressure,
	"FreeDiskSpaceFailed":   IconResourcePressure,

	"ProgressDeadlineExceeded": IconRollout,
	"FailedCreate":             IconRollout,
	"ReplicaSetCreateError":    IconRollout,

	"FailedGetResourceMetric":      IconScaling,
	"FailedComputeMetricsReplicas": IconScaling,
	"FailedRescale":                IconScaling,

	"FailedMount":        IconStorage,
	"FailedAttachVolume": IconStorage,
	"ProvisioningFailed": IconStorage,

	"DeadlineExceeded":     IconJobTimeout,
	"BackoffLimitExceeded": IconJobTimeout,

	"Failed":     IconFailure,
	"FailedSync": IconFailure,
	"Error":      IconFailure,
}

// problematicReasons marks events problematic even without a Warning
// severity. Every critical reason is problematic; this set adds the
// reasons that are concerning but get no dedicated icon.
var problematicReasons = map[string]bool{
	"Unhealthy":        true,
	"FailedKillPod":    true,
	"NetworkNotReady":  true,
	"FailedValidation": true,
	"InspectFailed":    true,
}

// routineKinds produce high-frequency, low-information update events
// suppressed from default views.
var routineKinds = map[string]bool{
	"Lease":         true,
	"Endpoints":     true,
	"EndpointSlice": true,
	"Event":         true,
}

// Classify tags a single event. Pure function, no side effects.
func Classify(ev types.TimelineEvent) Classification {
	return Classification{
		Category:      ev.Category,
		IsProblematic: IsProblematic(ev),
		IsCritical:    IsCritical(ev),
		IsRoutine:     IsRoutine(ev),
	}
}

// IsProblematic reports whether the event indicates trouble: a Warning
// platform severity or a reason from the fixed problematic set.
func IsProblematic(ev types.TimelineEvent) bool {
	if strings.EqualFold(ev.Severity, "Warning") {
		return true
	}
	if ev.Reason == "" {
		return false
	}
	if _, ok := criticalReasonIcons[ev.Reason]; ok {
		return true
	}
	return problematicReasons[ev.Reason]
}

// IsCritical reports whether the event's reason maps to a dedicated
// icon category.
func IsCritical(ev types.TimelineEvent) bool {
	_, ok := criticalReasonIcons[ev.Reason]
	return ok
}

// Icon returns the icon category for a reason, if it has one.
func Icon(reason string) (IconCategory, bool) {
	icon, ok := criticalReasonIcons[reason]
	return icon, ok
}

// IsRoutine reports whether the event is known noise: updates to noisy
// kinds, or names following leader-election/lock conventions. Routine
// events are excluded from default views but counted for the optional
// "show N routine" toggle.
func IsRoutine(ev types.TimelineEvent) bool {
	if routineKinds[ev.Kind] && ev.Operation == types.OperationUpdate {
		return true
	}
	return isLeaderElectionName(ev.Name)
}

func isLeaderElectionName(name string) bool {
	if name == "" {
		return false
	}
	if strings.HasSuffix(name, "-lock") || strings.HasSuffix(name, "-leader") {
		return true
	}
	return strings.Contains(name, "leader-election")
}

// SeverityRank orders events that share a timestamp so that the most
// severe paints last (on top) in the renderer: benign < problematic <
// critical.
func SeverityRank(ev types.TimelineEvent) int {
	switch {
	case IsCritical(ev):
		return 2
	case IsProblematic(ev):
		return 1
	default:
		return 0
	}
}
