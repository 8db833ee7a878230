package middleware

import (
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	imap "github.com/meszmate/imap-mailbox"
)

// Metrics holds the Prometheus collectors for transport commands.
type Metrics struct {
	commands *prometheus.CounterVec
	duration *prometheus.HistogramVec
	active   prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		commands: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "imap_mailbox_commands_total",
				Help: "IMAP commands sent, by command and result.",
			},
			[]string{
				"command",
				"status", // ok, no, bad, error
			},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "imap_mailbox_command_duration_seconds",
				Help:    "IMAP command round trip duration in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.100, 0.5, 1, 5, 10, 20},
			},
			[]string{"command"},
		),
		active: factory.NewGauge(prometheus.GaugeOpts{
			Name: "imap_mailbox_commands_active",
			Help: "IMAP commands awaiting a response.",
		}),
	}
}

// MetricsMiddleware returns a middleware that records command metrics.
func MetricsMiddleware(m *Metrics) Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(call *Call) error {
			m.active.Inc()
			defer m.active.Dec()
			start := time.Now()
			err := next.Handle(call)
			m.duration.WithLabelValues(call.Name).Observe(time.Since(start).Seconds())
			m.commands.WithLabelValues(call.Name, status(err)).Inc()
			return err
		})
	}
}

func status(err error) string {
	if err == nil {
		return "ok"
	}
	var imapErr *imap.IMAPError
	if errors.As(err, &imapErr) {
		return strings.ToLower(string(imapErr.Type))
	}
	return "error"
}
