// Package metrics registers the service's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	StoreOps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "freshershub", Name: "store_operations_total", Help: "Store operations by store, operation and outcome",
	}, []string{"store", "op", "outcome"})

	FanoutRows = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "freshershub", Name: "notification_rows_total", Help: "Notification rows attempted by fan-out",
	}, []string{"outcome"})

	RealtimeEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "freshershub", Name: "realtime_events_total", Help: "Change events received by table",
	}, []string{"table"})

	SagaSteps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "freshershub", Name: "saga_steps_total", Help: "Multi-step mutation steps by step and status",
	}, []string{"step", "status"})

	CacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "freshershub", Name: "cache_lookups_total", Help: "Unread-count cache lookups by result",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(StoreOps, FanoutRows, RealtimeEvents, SagaSteps, CacheLookups)
}

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }

// Op records one store operation.
func Op(store, op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	StoreOps.WithLabelValues(store, op, outcome).Inc()
}
