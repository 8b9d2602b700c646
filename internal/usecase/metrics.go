package usecase

import "github.com/prometheus/client_golang/prometheus"

// Prometheus metrics updated by the engine. Served by the web server at
// /metrics in text exposition format.
var (
	mtxLivePrice = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_price_usd",
			Help: "Latest known mark price",
		},
	)

	mtxCountdowns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_exit_countdowns_total",
			Help: "Exit countdown transitions",
		},
		[]string{"result"}, // armed|cancelled|executed
	)

	mtxExits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_exits_total",
			Help: "Executed index exits by kind",
		},
		[]string{"kind"}, // sl|target|general
	)

	mtxTriggerOrders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_trigger_orders_total",
			Help: "Trigger order lifecycle events",
		},
		[]string{"event"}, // added|executed|failed|expired|cancelled
	)

	mtxGatewayErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_gateway_errors_total",
			Help: "Venue gateway call failures",
		},
		[]string{"op"},
	)
)

func init() {
	prometheus.MustRegister(
		mtxLivePrice,
		mtxCountdowns,
		mtxExits,
		mtxTriggerOrders,
		mtxGatewayErrors,
	)
}
