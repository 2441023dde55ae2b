package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/credit-ledger/internal/domain"
)

// Collector owns a private registry so tests can build as many as they like.
type Collector struct {
	registry           *prometheus.Registry
	ledgerEntries      *prometheus.CounterVec
	ledgerAmount       *prometheus.CounterVec
	allocations        prometheus.Counter
	unallocatedAmount  prometheus.Counter
	balanceDrift       *prometheus.CounterVec
	statements         *prometheus.CounterVec
	accountTransitions *prometheus.CounterVec
	eventsDispatched   *prometheus.CounterVec
}

func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		ledgerEntries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_entries_total",
			Help: "Ledger entries written, by transaction type",
		}, []string{"type"}),
		ledgerAmount: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_entry_amount_total",
			Help: "Absolute monetary amount written to the ledger, by transaction type",
		}, []string{"type"}),
		allocations: factory.NewCounter(prometheus.CounterOpts{
			Name: "payment_allocations_total",
			Help: "Payment allocation rows created",
		}),
		unallocatedAmount: factory.NewCounter(prometheus.CounterOpts{
			Name: "payment_unallocated_amount_total",
			Help: "Payment amount left unallocated after FIFO allocation (overpayments)",
		}),
		balanceDrift: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_balance_drift_total",
			Help: "Accounts whose stored balance disagreed with the replayed ledger",
		}, []string{"fixed"}),
		statements: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "statements_generated_total",
			Help: "Statement generation attempts by outcome",
		}, []string{"outcome"}),
		accountTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "account_transitions_total",
			Help: "Account lifecycle transitions by target status",
		}, []string{"status"}),
		eventsDispatched: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "account_events_dispatched_total",
			Help: "Outbox events by dispatch outcome",
		}, []string{"outcome"}),
	}
}

func (c *Collector) LedgerEntry(t domain.TransactionType, amount decimal.Decimal) {
	c.ledgerEntries.WithLabelValues(string(t)).Inc()
	c.ledgerAmount.WithLabelValues(string(t)).Add(amount.Abs().InexactFloat64())
}

func (c *Collector) PaymentAllocated(allocations int, unallocated decimal.Decimal) {
	c.allocations.Add(float64(allocations))
	if unallocated.IsPositive() {
		c.unallocatedAmount.Add(unallocated.InexactFloat64())
	}
}

func (c *Collector) BalanceDrift(fixed bool) {
	label := "false"
	if fixed {
		label = "true"
	}
	c.balanceDrift.WithLabelValues(label).Inc()
}

func (c *Collector) StatementGenerated(ok bool) {
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	c.statements.WithLabelValues(outcome).Inc()
}

func (c *Collector) AccountTransition(to domain.AccountStatus) {
	c.accountTransitions.WithLabelValues(string(to)).Inc()
}

func (c *Collector) EventDispatched(ok bool) {
	outcome := "dispatched"
	if !ok {
		outcome = "failed"
	}
	c.eventsDispatched.WithLabelValues(outcome).Inc()
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
