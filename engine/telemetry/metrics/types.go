// Package metrics holds the concrete, backend-specific metrics providers
// (Prometheus, OTel) that the engine facade selects between at construction
// time. The provider contract itself is owned by the internal metrics
// package; this package aliases it so these providers can be handed
// directly to internal consumers (the event bus) and to the fleet metrics
// adapter without an adapter layer.
package metrics

import intmetrics "github.com/99souls/atrwac/engine/internal/telemetry/metrics"

type Provider = intmetrics.Provider
type Counter = intmetrics.Counter
type Gauge = intmetrics.Gauge
type Histogram = intmetrics.Histogram
type Timer = intmetrics.Timer

type CommonOpts = intmetrics.CommonOpts
type CounterOpts = intmetrics.CounterOpts
type GaugeOpts = intmetrics.GaugeOpts
type HistogramOpts = intmetrics.HistogramOpts

// Local noop fallbacks used when a backend-specific instrument registration
// fails (name collision, invalid metric name); they satisfy the aliased
// interfaces above by method set, same as intmetrics' own noop types.
type noopCounter struct{}
type noopGauge struct{}
type noopHistogram struct{}

func (noopCounter) Inc(float64, ...string)   {}
func (noopGauge) Set(float64, ...string)     {}
func (noopGauge) Add(float64, ...string)     {}
func (noopHistogram) Observe(float64, ...string) {}
