package lifecycle

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tphakala/sentinel/internal/errors"
)

// Metrics counts lifecycle operations. A nil *Metrics records nothing.
type Metrics struct {
	operations *prometheus.CounterVec
}

// NewMetrics registers the lifecycle collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		// Labels: resource, operation (create, edit, delete, reset, ...),
		// outcome (success or the error category)
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sentinel",
			Subsystem: "lifecycle",
			Name:      "operations_total",
			Help:      "Total entity lifecycle operations by outcome",
		}, []string{"resource", "operation", "outcome"}),
	}
}

// Observe records one operation.
func (m *Metrics) Observe(resource, operation string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = string(errors.CategoryOf(err))
	}
	m.operations.WithLabelValues(resource, operation, outcome).Inc()
}
