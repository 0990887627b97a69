package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	buysTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gridladder_buys_total",
			Help: "Executed buys",
		},
	)

	sellsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gridladder_sells_total",
			Help: "Executed sells",
		},
	)

	ladderResetsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gridladder_ladder_resets_total",
			Help: "Ladder regenerations triggered by sells",
		},
	)

	rejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gridladder_rejections_total",
			Help: "Rejected operations by reason",
		},
		[]string{"op", "reason"},
	)

	cursorGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gridladder_cursor",
			Help: "Index of the earliest open rung",
		},
	)
)

func init() {
	prometheus.MustRegister(buysTotal, sellsTotal, ladderResetsTotal, rejectionsTotal, cursorGauge)
}

// RecordBuy counts an executed buy and updates the cursor gauge.
func RecordBuy(cursor int) {
	buysTotal.Inc()
	cursorGauge.Set(float64(cursor))
}

// RecordSell counts an executed sell and an eventual ladder reset.
func RecordSell(reset bool) {
	sellsTotal.Inc()
	if reset {
		ladderResetsTotal.Inc()
		cursorGauge.Set(0)
	}
}

// RecordRejection counts a failed operation by reason label.
func RecordRejection(op, reason string) {
	rejectionsTotal.WithLabelValues(op, reason).Inc()
}

// Handler serves the Prometheus text exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
