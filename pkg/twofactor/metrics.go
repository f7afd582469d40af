package twofactor

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts operation outcomes. A nil *Metrics records nothing.
type Metrics struct {
	operations         *prometheus.CounterVec
	decryptionFailures prometheus.Counter
}

// NewMetrics registers the two-factor collectors with reg. Collectors already
// registered by an earlier call are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "twofactor_operations_total",
		Help: "Two-factor operations by operation and outcome.",
	}, []string{"operation", "outcome"})
	decryption := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "twofactor_decryption_failures_total",
		Help: "Stored two-factor secrets or backup codes that failed to decrypt.",
	})

	var err error
	if operations, err = register(reg, operations); err != nil {
		return nil, err
	}
	if decryption, err = register(reg, decryption); err != nil {
		return nil, err
	}
	return &Metrics{operations: operations, decryptionFailures: decryption}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *Metrics) observe(operation Event, err error) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(string(operation), ErrorCode(err)).Inc()
	if errors.Is(err, ErrDecryption) {
		m.decryptionFailures.Inc()
	}
}
