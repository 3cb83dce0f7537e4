// FILE: lixenwraith/conftree/metrics.go
package conftree

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	lockFallbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "conftree",
		Name:      "lock_fallbacks_total",
		Help:      "Node accesses whose non-blocking attempt failed and fell back to a blocking lock.",
	}, []string{"mode"})

	guardRejections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "conftree",
		Name:      "guard_rejections_total",
		Help:      "Operations rejected because the calling goroutine already holds a tree lock.",
	}, []string{"state"})

	replacements = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "conftree",
		Name:      "replacements_total",
		Help:      "Atomic content replacements, by source kind.",
	}, []string{"source"})

	reloads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "conftree",
		Name:      "reloads_total",
		Help:      "File reloads triggered by the watcher, by result.",
	}, []string{"result"})
)

// Collectors returns all metric collectors of the package.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{lockFallbacks, guardRejections, replacements, reloads}
}

// RegisterMetrics registers the package collectors with reg.
// Collectors already registered with reg are skipped.
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range Collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}
