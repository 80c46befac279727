package charts

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tchayre/logsti/internal/models"
)

// Metrics exposes the status and priority groupings as gauges.
type Metrics struct {
	byStatus   *prometheus.GaugeVec
	byPriority *prometheus.GaugeVec
	total      prometheus.Gauge
}

// NewMetrics creates the gauges and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		byStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "logsti_tickets_by_status",
			Help: "Number of tickets per status",
		}, []string{"status"}),
		byPriority: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "logsti_tickets_by_priority",
			Help: "Number of tickets per priority",
		}, []string{"priority"}),
		total: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "logsti_tickets_total",
			Help: "Number of tickets",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.byStatus, m.byPriority, m.total)
	}
	return m
}

// Observe replaces the gauge values with res. Every known status and
// priority is reported, with zero when absent.
func (m *Metrics) Observe(res Result) {
	m.byStatus.Reset()
	m.byPriority.Reset()
	for _, s := range models.TicketStatuses {
		m.byStatus.WithLabelValues(string(s)).Set(0)
	}
	for _, p := range models.TicketPriorities {
		m.byPriority.WithLabelValues(string(p)).Set(0)
	}
	total := 0
	for _, b := range res.ByStatus {
		m.byStatus.WithLabelValues(b.Label).Set(float64(b.Count))
		total += b.Count
	}
	for _, b := range res.ByPriority {
		m.byPriority.WithLabelValues(b.Label).Set(float64(b.Count))
	}
	m.total.Set(float64(total))
}
