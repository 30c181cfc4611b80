package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type PrecompiledMetrics struct {
	executions *prometheus.CounterVec
}

var (
	precompiledOnce     sync.Once
	precompiledRegistry *PrecompiledMetrics
)

// Precompiled returns the process-wide precompile execution metrics,
// registering them on first use.
func Precompiled() *PrecompiledMetrics {
	precompiledOnce.Do(func() {
		precompiledRegistry = &PrecompiledMetrics{
			executions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "precompiled_executions_total",
				Help: "Count of precompiled contract executions by contract family and result code.",
			}, []string{"contract", "code"}),
		}
		prometheus.MustRegister(precompiledRegistry.executions)
	})
	return precompiledRegistry
}

// ObserveExecution records one execution outcome.
func (m *PrecompiledMetrics) ObserveExecution(contract, code string) {
	if m == nil {
		return
	}
	m.executions.WithLabelValues(contract, code).Inc()
}
