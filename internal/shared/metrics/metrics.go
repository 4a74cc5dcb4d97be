package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "credits",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "credits",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "route"},
	)

	ledgerEntries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "credits",
			Subsystem: "ledger",
			Name:      "entries_total",
			Help:      "Ledger entries written, by type.",
		},
		[]string{"type"},
	)

	insufficientCredits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "credits",
			Subsystem: "ledger",
			Name:      "insufficient_credits_total",
			Help:      "Spends rejected for insufficient balance.",
		},
	)

	txConflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "credits",
			Subsystem: "store",
			Name:      "tx_conflicts_total",
			Help:      "Transactions retried after losing a compare-and-set.",
		},
		[]string{"op"},
	)

	retriesExhausted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "credits",
			Subsystem: "store",
			Name:      "tx_retries_exhausted_total",
			Help:      "Transactions that gave up after the retry budget.",
		},
		[]string{"op"},
	)

	levelUps = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "credits",
			Subsystem: "gamification",
			Name:      "level_ups_total",
			Help:      "Level-ups converted into credits.",
		},
	)

	missionsCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "credits",
			Subsystem: "gamification",
			Name:      "missions_completed_total",
			Help:      "Weekly missions completed, by kind.",
		},
		[]string{"kind"},
	)

	resetAccounts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "credits",
			Subsystem: "reset_job",
			Name:      "accounts_total",
			Help:      "Accounts processed by the monthly reset, by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		httpRequests,
		httpDuration,
		ledgerEntries,
		insufficientCredits,
		txConflicts,
		retriesExhausted,
		levelUps,
		missionsCompleted,
		resetAccounts,
	)
}

// Handler exposes the registry in the Prometheus text format
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency per matched route
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		route := c.Route().Path
		httpRequests.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()
		httpDuration.WithLabelValues(c.Method(), route).Observe(time.Since(start).Seconds())
		return err
	}
}

// RecordLedgerEntry counts a committed ledger entry
func RecordLedgerEntry(entryType string) {
	ledgerEntries.WithLabelValues(entryType).Inc()
}

// RecordInsufficientCredits counts a rejected spend
func RecordInsufficientCredits() {
	insufficientCredits.Inc()
}

// RecordConflict counts a retried transaction
func RecordConflict(op string) {
	txConflicts.WithLabelValues(op).Inc()
}

// RecordRetriesExhausted counts a transaction that ran out of retries
func RecordRetriesExhausted(op string) {
	retriesExhausted.WithLabelValues(op).Inc()
}

// RecordLevelUp counts a converted level-up
func RecordLevelUp() {
	levelUps.Inc()
}

// RecordMissionCompleted counts a completed mission
func RecordMissionCompleted(kind string) {
	missionsCompleted.WithLabelValues(kind).Inc()
}

// RecordResetOutcome counts one account processed by the reset job
func RecordResetOutcome(outcome string) {
	resetAccounts.WithLabelValues(outcome).Inc()
}
