package metrics

import "github.com/prometheus/client_golang/prometheus"

// Option customises a Manager built with NewManager.
type Option func(*Manager)

// WithNamespace overrides the "vnclub" namespace.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithSubsystem overrides the "rewards" subsystem.
func WithSubsystem(subsystem string) Option {
	return func(m *Manager) {
		if subsystem != "" {
			m.subsystem = subsystem
		}
	}
}

// WithMetricPrefix prepends prefix to every metric name after the subsystem.
func WithMetricPrefix(prefix string) Option {
	return func(m *Manager) {
		if prefix != "" {
			m.metricPrefix = prefix
		}
	}
}

// WithLatencyBuckets sets the millisecond buckets shared by the ledger,
// metadata fetch, leaderboard and HTTP histograms.
func WithLatencyBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.latencyBuckets = buckets
		}
	}
}

// WithReconcileBuckets sets the millisecond buckets of the tick duration histogram.
func WithReconcileBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.reconcileBuckets = buckets
		}
	}
}

// WithConstLabels attaches labels such as a deployment name to every metric.
func WithConstLabels(labels map[string]string) Option {
	return func(m *Manager) {
		if labels != nil {
			m.constLabels = labels
		}
	}
}

// WithRegistry registers metrics on registry instead of the default registerer.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}
