package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Gauge wraps prometheus.Gauge
type Gauge struct {
	gauge prometheus.Gauge
}

// NewGauge creates and registers a gauge with constant labels. Registering
// the same name and labels twice returns the existing collector.
func NewGauge(name, help string, labels map[string]string) *Gauge {
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        name,
		Help:        help,
		ConstLabels: labels,
	})
	if err := prometheus.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return &Gauge{gauge: existing}
			}
		}
		// Keep the unregistered gauge so callers never see nil.
	}
	return &Gauge{gauge: gauge}
}

// Set sets the gauge to the given value
func (g *Gauge) Set(v float64) {
	g.gauge.Set(v)
}

// RegisterBuildInfo exposes timecode_build_info{labels} = 1.
func RegisterBuildInfo(labels map[string]string) *Gauge {
	g := NewGauge("timecode_build_info", "Build information of the running binary", labels)
	g.Set(1)
	return g
}
