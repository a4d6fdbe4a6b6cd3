package metrics

import (
	"fmt"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
	"rtb-engine/internal/models"
	"rtb-engine/internal/ranging"
	"time"
)

// Collector bundles the Prometheus metrics of the ranging engine and
// implements ranging.Recorder.
type Collector struct {
	gatherer prometheus.Gatherer

	SessionsStarted  *prometheus.CounterVec
	SessionsFinished *prometheus.CounterVec
	Confirms         *prometheus.CounterVec
	Samples          *prometheus.CounterVec
	FramesDiscarded  *prometheus.CounterVec
	Reductions       prometheus.Histogram
	Active           prometheus.Gauge
}

// NewCollector registers the ranging metrics against reg, defaulting to the
// global Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	started, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rtb_sessions_started_total",
		Help: "Ranging sessions started, labeled by role.",
	}, []string{"role"}), "rtb_sessions_started_total")
	if err != nil {
		return nil, err
	}

	finished, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rtb_sessions_finished_total",
		Help: "Ranging sessions finished, labeled by role and terminal state.",
	}, []string{"role", "state"}), "rtb_sessions_finished_total")
	if err != nil {
		return nil, err
	}

	confirms, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rtb_confirms_total",
		Help: "Confirmations issued, labeled by primitive and status.",
	}, []string{"primitive", "status"}), "rtb_confirms_total")
	if err != nil {
		return nil, err
	}

	samples, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rtb_pmu_samples_total",
		Help: "PMU samples offered to an aggregator, labeled by verdict.",
	}, []string{"verdict"}), "rtb_pmu_samples_total")
	if err != nil {
		return nil, err
	}

	discarded, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rtb_frames_discarded_total",
		Help: "Radio events discarded without a matching session, labeled by reason.",
	}, []string{"reason"}), "rtb_frames_discarded_total")
	if err != nil {
		return nil, err
	}

	reductions, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "rtb_reduction_duration_seconds",
		Help:    "Time spent reducing PMU samples to a distance.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	}), "rtb_reduction_duration_seconds")
	if err != nil {
		return nil, err
	}

	active, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rtb_active_sessions",
		Help: "Ranging sessions currently in progress.",
	}), "rtb_active_sessions")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:         gatherer,
		SessionsStarted:  started,
		SessionsFinished: finished,
		Confirms:         confirms,
		Samples:          samples,
		FramesDiscarded:  discarded,
		Reductions:       reductions,
		Active:           active,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func (c *Collector) SessionStarted(role models.Role) {
	if c == nil {
		return
	}
	c.SessionsStarted.WithLabelValues(string(role)).Inc()
}

func (c *Collector) SessionFinished(role models.Role, state ranging.State) {
	if c == nil {
		return
	}
	c.SessionsFinished.WithLabelValues(string(role), state.String()).Inc()
}

func (c *Collector) Confirmed(primitive ranging.Primitive, status models.Status) {
	if c == nil {
		return
	}
	c.Confirms.WithLabelValues(string(primitive), status.String()).Inc()
}

func (c *Collector) SampleVerdict(verdict ranging.Verdict) {
	if c == nil {
		return
	}
	c.Samples.WithLabelValues(verdict.String()).Inc()
}

func (c *Collector) FrameDiscarded(reason string) {
	if c == nil {
		return
	}
	c.FramesDiscarded.WithLabelValues(reason).Inc()
}

func (c *Collector) ReductionDuration(d time.Duration) {
	if c == nil {
		return
	}
	c.Reductions.Observe(d.Seconds())
}

func (c *Collector) ActiveSessions(n int) {
	if c == nil {
		return
	}
	c.Active.Set(float64(n))
}

var _ ranging.Recorder = (*Collector)(nil)

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, histogram prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(histogram); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return histogram, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
