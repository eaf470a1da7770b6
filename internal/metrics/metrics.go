// Package metrics exposes engine counters to Prometheus.
package metrics

import (
	"strconv"
	"time"

	"temperaturebox/internal/models"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tempbox"

var allStatuses = []models.Status{
	models.StatusIdle,
	models.StatusStarting,
	models.StatusRunning,
	models.StatusStopped,
	models.StatusDone,
}

// Engine implements the scheduler's observer with Prometheus collectors.
type Engine struct {
	deviceErrors *prometheus.CounterVec
	samples      *prometheus.CounterVec
	logErrors    *prometheus.CounterVec
	boxStatus    *prometheus.GaugeVec
	tickDuration prometheus.Histogram
}

// New builds the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Engine, error) {
	e := &Engine{
		deviceErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_errors_total",
			Help:      "Failed instrument conversations by box and error kind.",
		}, []string{"box", "kind"}),
		samples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_total",
			Help:      "Successful instrument samples by box.",
		}, []string{"box"}),
		logErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "log_errors_total",
			Help:      "Failed run file writes by box.",
		}, []string{"box"}),
		boxStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "box_status",
			Help:      "1 for the current status of each box, 0 otherwise.",
		}, []string{"box", "status"}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Time spent evaluating every box once.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
	}

	for _, c := range []prometheus.Collector{e.deviceErrors, e.samples, e.logErrors, e.boxStatus, e.tickDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func boxLabel(box int) string { return strconv.Itoa(box) }

func (e *Engine) DeviceError(box int, kind string) {
	e.deviceErrors.WithLabelValues(boxLabel(box), kind).Inc()
}

func (e *Engine) Sampled(box int) {
	e.samples.WithLabelValues(boxLabel(box)).Inc()
}

func (e *Engine) LogError(box int) {
	e.logErrors.WithLabelValues(boxLabel(box)).Inc()
}

// BoxStatus flags the current status of a box and clears the others.
func (e *Engine) BoxStatus(box int, status models.Status) {
	label := boxLabel(box)
	for _, s := range allStatuses {
		v := 0.0
		if s == status {
			v = 1
		}
		e.boxStatus.WithLabelValues(label, s.String()).Set(v)
	}
}

func (e *Engine) TickDuration(d time.Duration) {
	e.tickDuration.Observe(d.Seconds())
}
