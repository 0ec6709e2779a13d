package kubernetes

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var eventsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "kubelane_events_ingested_total",
	Help: "Timeline events ingested from the cluster, by category.",
}, []string{"category"})
