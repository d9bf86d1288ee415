package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	ExchangesStarted   prometheus.Counter
	ExchangesCompleted prometheus.Counter
	ExchangesFailed    prometheus.Counter
	ChunksRelayed      prometheus.Counter
	ActiveConnections  prometheus.Gauge
}

var (
	once   sync.Once
	global *Metrics
)

func Global() *Metrics {
	once.Do(func() {
		global = &Metrics{
			ExchangesStarted: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "alpaca",
				Name:      "exchanges_started_total",
				Help:      "Total message exchanges started",
			}),
			ExchangesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "alpaca",
				Name:      "exchanges_completed_total",
				Help:      "Total message exchanges completed and persisted",
			}),
			ExchangesFailed: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "alpaca",
				Name:      "exchanges_failed_total",
				Help:      "Total message exchanges that ended in an error event",
			}),
			ChunksRelayed: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "alpaca",
				Name:      "chunks_relayed_total",
				Help:      "Total response chunks relayed to clients",
			}),
			ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "alpaca",
				Name:      "ws_connections_active",
				Help:      "Currently open websocket connections",
			}),
		}
		prometheus.MustRegister(
			global.ExchangesStarted,
			global.ExchangesCompleted,
			global.ExchangesFailed,
			global.ChunksRelayed,
			global.ActiveConnections,
		)
	})
	return global
}
