package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/josh-kwaku/credit-ledger/internal/domain"
)

func SeedBusiness(t *testing.T, db *sql.DB, name, prefix string) *domain.Business {
	t.Helper()

	b := &domain.Business{
		ID:            uuid.New(),
		Name:          name,
		AccountPrefix: prefix,
		CreatedAt:     time.Now().UTC(),
	}
	_, err := db.Exec(
		`INSERT INTO businesses (id, name, account_prefix, created_at) VALUES ($1, $2, $3, $4)`,
		b.ID, b.Name, b.AccountPrefix, b.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed business %s: %v", name, err)
	}
	return b
}

func SeedCustomer(t *testing.T, db *sql.DB, businessID uuid.UUID, name string) *domain.Customer {
	t.Helper()

	c := &domain.Customer{
		ID:         uuid.New(),
		BusinessID: businessID,
		Name:       name,
		CreatedAt:  time.Now().UTC(),
	}
	_, err := db.Exec(
		`INSERT INTO customers (id, business_id, name, created_at) VALUES ($1, $2, $3, $4)`,
		c.ID, c.BusinessID, c.Name, c.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed customer %s: %v", name, err)
	}
	return c
}

func SeedUser(t *testing.T, db *sql.DB, email, name string) *domain.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	u := &domain.User{
		ID:        uuid.New(),
		Email:     email,
		Name:      name,
		Status:    domain.UserStatusActive,
		CreatedAt: time.Now().UTC(),
	}
	_, err = db.Exec(
		`INSERT INTO users (id, email, name, password_hash, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.Email, u.Name, string(hash), u.Status, u.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed user %s: %v", email, err)
	}
	return u
}

// AccountFixture describes a customer account inserted directly, bypassing
// the lifecycle service.
type AccountFixture struct {
	BusinessID       uuid.UUID
	CustomerID       uuid.UUID
	Number           string
	Status           domain.AccountStatus
	CreditLimit      string
	PaymentTermsDays int
	OpenedAt         *time.Time
}

func SeedAccount(t *testing.T, db *sql.DB, f AccountFixture) *domain.CustomerAccount {
	t.Helper()

	now := time.Now().UTC()
	if f.Status == "" {
		f.Status = domain.AccountStatusActive
	}
	if f.CreditLimit == "" {
		f.CreditLimit = "5000"
	}
	if f.Number == "" {
		f.Number = "ACC-TEST-" + uuid.NewString()[:8]
	}
	if f.OpenedAt == nil && f.Status == domain.AccountStatusActive {
		f.OpenedAt = &now
	}

	a := &domain.CustomerAccount{
		ID:               uuid.New(),
		AccountNumber:    f.Number,
		CustomerID:       f.CustomerID,
		BusinessID:       f.BusinessID,
		Status:           f.Status,
		CreditLimit:      decimal.RequireFromString(f.CreditLimit),
		CurrentBalance:   decimal.Zero,
		PaymentTermsDays: f.PaymentTermsDays,
		OpenedAt:         f.OpenedAt,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	_, err := db.Exec(
		`INSERT INTO customer_accounts (
			id, account_number, customer_id, business_id, status, credit_limit,
			current_balance, payment_terms_days, opened_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		a.ID, a.AccountNumber, a.CustomerID, a.BusinessID, a.Status, a.CreditLimit,
		a.CurrentBalance, a.PaymentTermsDays, a.OpenedAt, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("seed account %s: %v", f.Number, err)
	}
	return a
}

func GetAccountBalance(t *testing.T, db *sql.DB, accountID uuid.UUID) decimal.Decimal {
	t.Helper()

	var balance decimal.Decimal
	err := db.QueryRow(`SELECT current_balance FROM customer_accounts WHERE id = $1`, accountID).Scan(&balance)
	if err != nil {
		t.Fatalf("get account balance %s: %v", accountID, err)
	}
	return balance
}

// SetAccountBalance overwrites the stored balance to simulate drift.
func SetAccountBalance(t *testing.T, db *sql.DB, accountID uuid.UUID, balance string) {
	t.Helper()

	_, err := db.Exec(`UPDATE customer_accounts SET current_balance = $1 WHERE id = $2`, balance, accountID)
	if err != nil {
		t.Fatalf("set account balance %s: %v", accountID, err)
	}
}

// BackdateTransaction moves a ledger entry, and any allocations made against
// it, into the past. A nil dueDate leaves the stored due date alone.
func BackdateTransaction(t *testing.T, db *sql.DB, txnID uuid.UUID, createdAt time.Time, dueDate *time.Time) {
	t.Helper()

	_, err := db.Exec(
		`UPDATE account_transactions SET created_at = $1, due_date = COALESCE($2, due_date) WHERE id = $3`,
		createdAt, dueDate, txnID,
	)
	if err != nil {
		t.Fatalf("backdate transaction %s: %v", txnID, err)
	}
}

func BackdateAllocations(t *testing.T, db *sql.DB, paymentID uuid.UUID, createdAt time.Time) {
	t.Helper()

	_, err := db.Exec(`UPDATE payment_allocations SET created_at = $1 WHERE payment_id = $2`, createdAt, paymentID)
	if err != nil {
		t.Fatalf("backdate allocations for %s: %v", paymentID, err)
	}
}

func CountTransactions(t *testing.T, db *sql.DB, accountID uuid.UUID) int {
	t.Helper()

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM account_transactions WHERE account_id = $1`, accountID).Scan(&count)
	if err != nil {
		t.Fatalf("count transactions for %s: %v", accountID, err)
	}
	return count
}

func CountEvents(t *testing.T, db *sql.DB, accountID uuid.UUID, eventType domain.AccountEventType) int {
	t.Helper()

	var count int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM account_events WHERE account_id = $1 AND event_type = $2`,
		accountID, eventType,
	).Scan(&count)
	if err != nil {
		t.Fatalf("count %s events for %s: %v", eventType, accountID, err)
	}
	return count
}
