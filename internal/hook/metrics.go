package hook

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	calls    *prometheus.CounterVec
	faults   *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	calls, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sdiscuss_hook_calls_total",
		Help: "Hook invocations by kind and extension.",
	}, []string{"kind", "extension"}))
	if err != nil {
		return nil, err
	}
	faults, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sdiscuss_hook_faults_total",
		Help: "Hook invocations that ended in an extension fault.",
	}, []string{"kind", "extension"}))
	if err != nil {
		return nil, err
	}
	duration, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sdiscuss_hook_duration_seconds",
		Help:    "Time spent in a single hook invocation.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
	}, []string{"kind"}))
	if err != nil {
		return nil, err
	}
	return &metrics{calls: calls, faults: faults, duration: duration}, nil
}

// register adds c to reg, returning the already registered collector when
// an identical one exists (several dispatchers in one process share them).
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		var zero T
		return zero, err
	}
	return c, nil
}

func (m *metrics) observe(kind Kind, ext string, d time.Duration, fault bool) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(string(kind), ext).Inc()
	m.duration.WithLabelValues(string(kind)).Observe(d.Seconds())
	if fault {
		m.faults.WithLabelValues(string(kind), ext).Inc()
	}
}
