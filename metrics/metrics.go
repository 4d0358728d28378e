/*
Package metrics exposes Prometheus instrumentation for the rewards core.

Counters are registered with promauto on the default registry and served
by the API's /metrics endpoint. They observe the two hot invariants of
the ledger: optimistic-lock retries and voucher code collisions, both
expected to stay near zero in healthy operation.
*/
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ActionsTotal counts core actions by name and outcome ("ok",
	// "client_error", "conflict", "error").
	ActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rewards",
		Name:      "actions_total",
		Help:      "Core ledger and workflow actions by outcome.",
	}, []string{"action", "outcome"})

	// LedgerRetries counts optimistic-lock conflicts that triggered an
	// internal retry of a balance mutation.
	LedgerRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rewards",
		Name:      "ledger_lock_retries_total",
		Help:      "Optimistic version conflicts retried by the balance ledger.",
	})

	// VoucherCollisions counts voucher code redraws caused by a collision
	// with an already-reserved code.
	VoucherCollisions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rewards",
		Name:      "voucher_code_collisions_total",
		Help:      "Voucher code collisions that forced a redraw.",
	})

	// PointsGranted tracks the running sum of positive point deltas.
	PointsGranted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rewards",
		Name:      "points_granted_total",
		Help:      "Points credited to accounts, by record kind.",
	}, []string{"kind"})
)

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Outcome maps an error to the label used by ActionsTotal.
func Outcome(err error, isClient func(error) bool, isRetryable func(error) bool) string {
	switch {
	case err == nil:
		return "ok"
	case isClient(err):
		return "client_error"
	case isRetryable(err):
		return "conflict"
	default:
		return "error"
	}
}
