// Package kubernetes turns live cluster activity into timeline events:
// object adds/updates/deletes become change events, core/v1 Events
// become platform notices. It is the external event source the engine
// consumes; the engine itself never touches the cluster.
package kubernetes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/u2takey/go-utils/filesystem/homedir"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/informers"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/cache"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/kubelane/kubelane/internal/state"
	"github.com/kubelane/kubelane/internal/types"
)

// Config wires the watcher's collaborators.
type Config struct {
	Clientset kubernetes.Interface
	Store     state.EventStore
	Logger    *slog.Logger
	Clock     clockwork.Clock
	Namespace string // empty watches all namespaces
}

func (c *Config) Validate() error {
	if c.Clientset == nil {
		return errors.New("clientset is required")
	}
	if c.Store == nil {
		return errors.New("event store is required")
	}
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Clock == nil {
		return errors.New("clock is required")
	}
	return nil
}

// LoadRESTConfig builds a client config from the given kubeconfig path,
// falling back to ~/.kube/config and then to in-cluster config.
func LoadRESTConfig(kubeconfig string) (*rest.Config, error) {
	if kubeconfig == "" {
		if home := homedir.HomeDir(); home != "" {
			kubeconfig = filepath.Join(home, ".kube", "config")
		}
	}
	cfg, err := clientcmd.BuildConfigFromFlags("", kubeconfig)
	if err == nil {
		return cfg, nil
	}
	if inCluster, inErr := rest.InClusterConfig(); inErr == nil {
		return inCluster, nil
	}
	return nil, fmt.Errorf("failed to build kubeconfig: %w", err)
}

// Watcher ingests cluster changes into the event store via shared
// informers.
type Watcher struct {
	clientset kubernetes.Interface
	store     state.EventStore
	logger    *slog.Logger
	clock     clockwork.Clock
	factory   informers.SharedInformerFactory
}

func NewWatcher(cfg Config) (*Watcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts := []informers.SharedInformerOption{}
	if cfg.Namespace != "" {
		opts = append(opts, informers.WithNamespace(cfg.Namespace))
	}
	return &Watcher{
		clientset: cfg.Clientset,
		store:     cfg.Store,
		logger:    cfg.Logger,
		clock:     cfg.Clock,
		factory:   informers.NewSharedInformerFactoryWithOptions(cfg.Clientset, 0, opts...),
	}, nil
}

// Start registers the informer handlers and blocks until the caches
// sync or the context is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	changeInformers := []cache.SharedIndexInformer{
		w.factory.Core().V1().Pods().Informer(),
		w.factory.Apps().V1().Deployments().Informer(),
		w.factory.Apps().V1().ReplicaSets().Informer(),
		w.factory.Apps().V1().StatefulSets().Informer(),
		w.factory.Apps().V1().DaemonSets().Informer(),
		w.factory.Core().V1().Services().Informer(),
		w.factory.Core().V1().ConfigMaps().Informer(),
	}
	for _, informer := range changeInformers {
		if _, err := informer.AddEventHandler(cache.ResourceEventHandlerFuncs{
			AddFunc:    func(obj interface{}) { w.recordChange(obj, types.OperationAdd) },
			UpdateFunc: func(_, obj interface{}) { w.recordChange(obj, types.OperationUpdate) },
			DeleteFunc: func(obj interface{}) { w.recordChange(obj, types.OperationDelete) },
		}); err != nil {
			return fmt.Errorf("failed to add change handler: %w", err)
		}
	}

	eventInformer := w.factory.Core().V1().Events().Informer()
	if _, err := eventInformer.AddEventHandler(cache.ResourceEventHandlerFuncs{
		AddFunc:    func(obj interface{}) { w.recordNotice(obj) },
		UpdateFunc: func(_, obj interface{}) { w.recordNotice(obj) },
	}); err != nil {
		return fmt.Errorf("failed to add event handler: %w", err)
	}

	w.factory.Start(ctx.Done())
	for informerType, synced := range w.factory.WaitForCacheSync(ctx.Done()) {
		if !synced {
			return fmt.Errorf("cache sync failed for %v", informerType)
		}
	}
	w.logger.Info("watcher started, informer caches synced")
	return nil
}

// recordChange converts an object change into a change event. Unknown
// types fall through the generic metadata path with unknown health.
func (w *Watcher) recordChange(obj interface{}, op types.Operation) {
	if tombstone, ok := obj.(cache.DeletedFinalStateUnknown); ok {
		obj = tombstone.Obj
	}
	meta, ok := objectMeta(obj)
	if !ok {
		return
	}

	ev := types.TimelineEvent{
		ID:          uuid.NewString(),
		Kind:        kindOf(obj),
		Namespace:   meta.Namespace,
		Name:        meta.Name,
		Timestamp:   w.clock.Now(),
		Category:    types.CategoryChange,
		Operation:   op,
		HealthState: extractHealth(obj),
		Labels:      meta.Labels,
	}
	if !meta.CreationTimestamp.IsZero() {
		created := meta.CreationTimestamp.Time
		ev.CreatedAt = &created
	}
	if owner := controllerOwner(meta); owner != nil {
		ev.Owner = owner
	}
	ev.DiffSummary = diffSummary(obj, op)

	if err := w.store.Append(ev); err != nil {
		w.logger.Warn("failed to store change event", "resource", ev.Ref().String(), "error", err)
		return
	}
	eventsIngested.WithLabelValues(string(types.CategoryChange)).Inc()
}

// recordNotice converts a core/v1 Event into a platform notice for the
// involved object's lane.
func (w *Watcher) recordNotice(obj interface{}) {
	kubeEvent, ok := obj.(*corev1.Event)
	if !ok {
		return
	}
	ts := kubeEvent.LastTimestamp.Time
	if ts.IsZero() {
		ts = kubeEvent.EventTime.Time
	}
	if ts.IsZero() {
		ts = w.clock.Now()
	}

	ev := types.TimelineEvent{
		ID:        uuid.NewString(),
		Kind:      kubeEvent.InvolvedObject.Kind,
		Namespace: kubeEvent.InvolvedObject.Namespace,
		Name:      kubeEvent.InvolvedObject.Name,
		Timestamp: ts,
		Category:  types.CategoryPlatformNotice,
		Reason:    kubeEvent.Reason,
		Message:   kubeEvent.Message,
		Severity:  kubeEvent.Type,
	}
	if err := w.store.Append(ev); err != nil {
		w.logger.Warn("failed to store platform notice", "resource", ev.Ref().String(), "error", err)
		return
	}
	eventsIngested.WithLabelValues(string(types.CategoryPlatformNotice)).Inc()
}

// Topology returns the kind-level relationship graph used as the
// fallback ownership signal, and a version string for memoization.
func (w *Watcher) Topology() (*types.Topology, string) {
	return KindTopology(), "kind-edges-v1"
}

// KindTopology is the static kind-level ownership graph of the watched
// resource types.
func KindTopology() *types.Topology {
	kinds := []string{"Deployment", "ReplicaSet", "Pod", "StatefulSet", "DaemonSet", "Job", "CronJob", "Service", "ConfigMap"}
	topo := &types.Topology{}
	for _, k := range kinds {
		topo.Nodes = append(topo.Nodes, types.TopologyNode{ID: k, Kind: k})
	}
	topo.Edges = []types.TopologyEdge{
		{Source: "Deployment", Target: "ReplicaSet"},
		{Source: "ReplicaSet", Target: "Pod", SkipIfKindVisible: "Deployment"},
		{Source: "StatefulSet", Target: "Pod"},
		{Source: "DaemonSet", Target: "Pod"},
		{Source: "CronJob", Target: "Job"},
		{Source: "Job", Target: "Pod"},
	}
	return topo
}

func objectMeta(obj interface{}) (metav1.ObjectMeta, bool) {
	switch o := obj.(type) {
	case *corev1.Pod:
		return o.ObjectMeta, true
	case *appsv1.Deployment:
		return o.ObjectMeta, true
	case *appsv1.ReplicaSet:
		return o.ObjectMeta, true
	case *appsv1.StatefulSet:
		return o.ObjectMeta, true
	case *appsv1.DaemonSet:
		return o.ObjectMeta, true
	case *corev1.Service:
		return o.ObjectMeta, true
	case *corev1.ConfigMap:
		return o.ObjectMeta, true
	default:
		return metav1.ObjectMeta{}, false
	}
}

func kindOf(obj interface{}) string {
	switch obj.(type) {
	case *corev1.Pod:
		return "Pod"
	case *appsv1.Deployment:
		return "Deployment"
	case *appsv1.ReplicaSet:
		return "ReplicaSet"
	case *appsv1.StatefulSet:
		return "StatefulSet"
	case *appsv1.DaemonSet:
		return "DaemonSet"
	case *corev1.Service:
		return "Service"
	case *corev1.ConfigMap:
		return "ConfigMap"
	default:
		return ""
	}
}

// extractHealth derives a normalized health state per known kind; the
// generic fallback reports no health rather than guessing.
func extractHealth(obj interface{}) types.HealthState {
	switch o := obj.(type) {
	case *corev1.Pod:
		return podHealth(o)
	case *appsv1.Deployment:
		return replicaHealth(o.Status.ReadyReplicas, desiredReplicas(o.Spec.Replicas))
	case *appsv1.ReplicaSet:
		return replicaHealth(o.Status.ReadyReplicas, desiredReplicas(o.Spec.Replicas))
	case *appsv1.StatefulSet:
		return replicaHealth(o.Status.ReadyReplicas, desiredReplicas(o.Spec.Replicas))
	case *appsv1.DaemonSet:
		return replicaHealth(o.Status.NumberReady, o.Status.DesiredNumberScheduled)
	default:
		return ""
	}
}

func podHealth(pod *corev1.Pod) types.HealthState {
	switch pod.Status.Phase {
	case corev1.PodFailed:
		return types.HealthUnhealthy
	case corev1.PodPending:
		return types.HealthDegraded
	case corev1.PodSucceeded:
		return types.HealthHealthy
	case corev1.PodRunning:
		for _, cs := range pod.Status.ContainerStatuses {
			if cs.State.Waiting != nil {
				return types.HealthUnhealthy
			}
			if !cs.Ready {
				return types.HealthDegraded
			}
		}
		return types.HealthHealthy
	default:
		return types.HealthUnknown
	}
}

func replicaHealth(ready, desired int32) types.HealthState {
	switch {
	case desired == 0:
		return types.HealthHealthy
	case ready == 0:
		return types.HealthUnhealthy
	case ready < desired:
		return types.HealthDegraded
	default:
		return types.HealthHealthy
	}
}

func desiredReplicas(replicas *int32) int32 {
	if replicas == nil {
		return 1
	}
	return *replicas
}

func controllerOwner(meta metav1.ObjectMeta) *types.ResourceRef {
	for _, ref := range meta.OwnerReferences {
		if ref.Controller != nil && *ref.Controller {
			return &types.ResourceRef{Kind: ref.Kind, Namespace: meta.Namespace, Name: ref.Name}
		}
	}
	if len(meta.OwnerReferences) > 0 {
		ref := meta.OwnerReferences[0]
		return &types.ResourceRef{Kind: ref.Kind, Namespace: meta.Namespace, Name: ref.Name}
	}
	return nil
}

// diffSummary is a short human-readable hint of what changed; it is
// display text only and never parsed.
func diffSummary(obj interface{}, op types.Operation) string {
	if op != types.OperationUpdate {
		return ""
	}
	switch o := obj.(type) {
	case *corev1.Pod:
		return fmt.Sprintf("phase=%s restarts=%d", o.Status.Phase, totalRestarts(o))
	case *appsv1.Deployment:
		return fmt.Sprintf("ready=%d/%d", o.Status.ReadyReplicas, desiredReplicas(o.Spec.Replicas))
	case *appsv1.ReplicaSet:
		return fmt.Sprintf("ready=%d/%d", o.Status.ReadyReplicas, desiredReplicas(o.Spec.Replicas))
	case *appsv1.StatefulSet:
		return fmt.Sprintf("ready=%d/%d", o.Status.ReadyReplicas, desiredReplicas(o.Spec.Replicas))
	case *appsv1.DaemonSet:
		return fmt.Sprintf("ready=%d/%d", o.Status.NumberReady, o.Status.DesiredNumberScheduled)
	default:
		return ""
	}
}

func totalRestarts(pod *corev1.Pod) int32 {
	var total int32
	for _, cs := range pod.Status.ContainerStatuses {
		total += cs.RestartCount
	}
	return total
}
