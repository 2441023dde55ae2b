package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/credit-ledger/internal/domain"
)

func scrape(t *testing.T, c *Collector) string {
	t.Helper()

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestCollector_Counters(t *testing.T) {
	c := NewCollector()

	c.LedgerEntry(domain.TransactionTypeCharge, decimal.RequireFromString("500.00"))
	c.LedgerEntry(domain.TransactionTypeAdjustment, decimal.RequireFromString("-25.50"))
	c.PaymentAllocated(2, decimal.RequireFromString("300"))
	c.PaymentAllocated(1, decimal.Zero)
	c.BalanceDrift(true)
	c.StatementGenerated(false)
	c.AccountTransition(domain.AccountStatusActive)
	c.EventDispatched(true)

	out := scrape(t, c)
	assert.Contains(t, out, `ledger_entries_total{type="charge"} 1`)
	assert.Contains(t, out, `ledger_entry_amount_total{type="adjustment"} 25.5`)
	assert.Contains(t, out, `payment_allocations_total 3`)
	assert.Contains(t, out, `payment_unallocated_amount_total 300`)
	assert.Contains(t, out, `ledger_balance_drift_total{fixed="true"} 1`)
	assert.Contains(t, out, `statements_generated_total{outcome="failure"} 1`)
	assert.Contains(t, out, `account_transitions_total{status="active"} 1`)
	assert.Contains(t, out, `account_events_dispatched_total{outcome="dispatched"} 1`)
}

func TestCollector_RegistriesAreIndependent(t *testing.T) {
	a := NewCollector()
	b := NewCollector()
	a.BalanceDrift(false)

	assert.Contains(t, scrape(t, a), `ledger_balance_drift_total{fixed="false"} 1`)
	assert.NotContains(t, scrape(t, b), `ledger_balance_drift_total{fixed="false"}`)
}
