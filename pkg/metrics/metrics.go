// Package metrics exposes Prometheus instrumentation for the marketplace.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	OrdersSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketd_orders_submitted_total",
		Help: "Orders accepted by the matching engine.",
	})

	OrdersRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketd_orders_rejected_total",
		Help: "Orders rejected before entering the book, by reason.",
	}, []string{"reason"})

	OrdersCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketd_orders_cancelled_total",
		Help: "Orders cancelled by investors.",
	})

	TradesSettled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketd_trades_settled_total",
		Help: "Trades matched and settled.",
	})

	SharesTraded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketd_shares_traded_total",
		Help: "Total shares transferred by settlement.",
	})

	VolumeCents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketd_volume_cents_total",
		Help: "Settled notional volume in currency minor units.",
	})
)

// Serve starts the Prometheus scrape endpoint on its own listener.
func Serve(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		_ = http.ListenAndServe(addr, mux)
	}()
}
