package metrics

// Noop satisfies Sink by discarding everything. It is the default sink a
// Cache is constructed with when no WithMetricsSink option is supplied.
type Noop struct{}

func (Noop) IncrementCounter(string, float64)     {}
func (Noop) RecordTimer(string, int64)            {}
func (Noop) RegisterGauge(string, func() float64) {}

var _ Sink = Noop{}
