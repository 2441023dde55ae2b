package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/credit-ledger/internal/config"
	"github.com/josh-kwaku/credit-ledger/internal/domain"
	"github.com/josh-kwaku/credit-ledger/internal/metrics"
	"github.com/josh-kwaku/credit-ledger/internal/repository"
	"github.com/josh-kwaku/credit-ledger/internal/testutil"
)

func setupAccountService(t *testing.T, db *sql.DB) *AccountService {
	t.Helper()
	return NewAccountService(
		repository.NewAccountRepository(db),
		repository.NewDirectoryRepository(db),
		repository.NewEventRepository(db),
		metrics.NewCollector(),
		db,
		&config.Config{DefaultPaymentTermsDays: 30},
	)
}

func TestCreateAccount_SequentialNumbers(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupAccountService(t, db)
	ctx := context.Background()

	b := testutil.SeedBusiness(t, db, "Corner Hardware", "chw")
	c1 := testutil.SeedCustomer(t, db, b.ID, "Ama Mensah")
	c2 := testutil.SeedCustomer(t, db, b.ID, "Kofi Boateng")

	a1, err := svc.CreateAccount(ctx, CreateAccountRequest{
		CustomerID:  c1.ID,
		BusinessID:  b.ID,
		CreditLimit: decimal.NewFromInt(1000),
	})
	require.NoError(t, err)
	assert.Equal(t, "ACC-CHW-00001", a1.AccountNumber)
	assert.Equal(t, domain.AccountStatusPending, a1.Status)
	assert.True(t, a1.CurrentBalance.IsZero())
	assert.Equal(t, 30, a1.PaymentTermsDays)
	assert.Equal(t, "Ama Mensah", a1.Name)

	terms := 14
	a2, err := svc.CreateAccount(ctx, CreateAccountRequest{
		CustomerID:       c2.ID,
		BusinessID:       b.ID,
		Name:             "Boateng Builders",
		CreditLimit:      decimal.NewFromInt(500),
		PaymentTermsDays: &terms,
	})
	require.NoError(t, err)
	assert.Equal(t, "ACC-CHW-00002", a2.AccountNumber)
	assert.Equal(t, 14, a2.PaymentTermsDays)

	_, err = svc.CreateAccount(ctx, CreateAccountRequest{CustomerID: c1.ID, BusinessID: b.ID})
	assert.ErrorIs(t, err, domain.ErrAccountExists)

	assert.Equal(t, 1, testutil.CountEvents(t, db, a1.ID, domain.AccountEventCreated))
}

func TestCreateAccount_RetriesTakenNumber(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupAccountService(t, db)

	b := testutil.SeedBusiness(t, db, "Corner Hardware", "CHW")
	squatter := testutil.SeedCustomer(t, db, b.ID, "Imported")
	testutil.SeedAccount(t, db, testutil.AccountFixture{
		BusinessID: b.ID,
		CustomerID: squatter.ID,
		Number:     "ACC-CHW-00002",
	})
	c := testutil.SeedCustomer(t, db, b.ID, "New Customer")

	a, err := svc.CreateAccount(context.Background(), CreateAccountRequest{CustomerID: c.ID, BusinessID: b.ID})
	require.NoError(t, err)
	assert.Equal(t, "ACC-CHW-00003", a.AccountNumber)
}

func TestCreateAccount_Validation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupAccountService(t, db)
	ctx := context.Background()

	b := testutil.SeedBusiness(t, db, "Corner Hardware", "CHW")
	other := testutil.SeedBusiness(t, db, "Other", "OTH")
	c := testutil.SeedCustomer(t, db, b.ID, "Ama Mensah")

	_, err := svc.CreateAccount(ctx, CreateAccountRequest{CustomerID: c.ID, BusinessID: other.ID})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = svc.CreateAccount(ctx, CreateAccountRequest{CustomerID: c.ID, BusinessID: b.ID, CreditLimit: decimal.NewFromInt(-1)})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	pin := "12ab"
	_, err = svc.CreateAccount(ctx, CreateAccountRequest{CustomerID: c.ID, BusinessID: b.ID, PIN: &pin})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestAccountLifecycle(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupAccountService(t, db)
	ctx := context.Background()

	b := testutil.SeedBusiness(t, db, "Corner Hardware", "CHW")
	c := testutil.SeedCustomer(t, db, b.ID, "Ama Mensah")
	a, err := svc.CreateAccount(ctx, CreateAccountRequest{CustomerID: c.ID, BusinessID: b.ID, CreditLimit: decimal.NewFromInt(100)})
	require.NoError(t, err)

	_, err = svc.SuspendAccount(ctx, a.ID, "not yet active", nil)
	require.ErrorIs(t, err, domain.ErrInvalidState)

	active, err := svc.ActivateAccount(ctx, a.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.AccountStatusActive, active.Status)
	require.NotNil(t, active.OpenedAt)

	_, err = svc.ActivateAccount(ctx, a.ID, nil)
	require.ErrorIs(t, err, domain.ErrInvalidState)

	suspended, err := svc.SuspendAccount(ctx, a.ID, "missed three payments", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.AccountStatusSuspended, suspended.Status)
	assert.NotNil(t, suspended.SuspendedAt)
	assert.Contains(t, suspended.Notes, "missed three payments")

	reactivated, err := svc.ActivateAccount(ctx, a.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, reactivated.SuspendedAt)

	testutil.SetAccountBalance(t, db, a.ID, "10.00")
	_, err = svc.CloseAccount(ctx, a.ID, "customer request", nil)
	require.ErrorIs(t, err, domain.ErrOutstandingBalance)

	testutil.SetAccountBalance(t, db, a.ID, "0")
	closed, err := svc.CloseAccount(ctx, a.ID, "customer request", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.AccountStatusClosed, closed.Status)
	assert.NotNil(t, closed.ClosedAt)

	_, err = svc.ActivateAccount(ctx, a.ID, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	_, err = svc.CloseAccount(ctx, a.ID, "again", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	stored, err := svc.GetAccount(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AccountStatusClosed, stored.Status)

	assert.Equal(t, 2, testutil.CountEvents(t, db, a.ID, domain.AccountEventActivated))
	assert.Equal(t, 1, testutil.CountEvents(t, db, a.ID, domain.AccountEventSuspended))
	assert.Equal(t, 1, testutil.CountEvents(t, db, a.ID, domain.AccountEventClosed))
}

func TestCloseAccount_FromPending(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupAccountService(t, db)

	b := testutil.SeedBusiness(t, db, "Corner Hardware", "CHW")
	c := testutil.SeedCustomer(t, db, b.ID, "Ama Mensah")
	a := testutil.SeedAccount(t, db, testutil.AccountFixture{BusinessID: b.ID, CustomerID: c.ID, Status: domain.AccountStatusPending})

	closed, err := svc.CloseAccount(context.Background(), a.ID, "", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.AccountStatusClosed, closed.Status)
}

func TestUpdateAccount_AndVerifyPIN(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupAccountService(t, db)
	ctx := context.Background()

	b := testutil.SeedBusiness(t, db, "Corner Hardware", "CHW")
	c := testutil.SeedCustomer(t, db, b.ID, "Ama Mensah")
	a := testutil.SeedAccount(t, db, testutil.AccountFixture{BusinessID: b.ID, CustomerID: c.ID, Status: domain.AccountStatusClosed})

	err := svc.VerifyPIN(ctx, a.ID, "1234")
	require.ErrorIs(t, err, domain.ErrInvalidPIN)

	pin := "482913"
	limit := decimal.RequireFromString("2500.505")
	updated, err := svc.UpdateAccount(ctx, UpdateAccountRequest{AccountID: a.ID, PIN: &pin, CreditLimit: &limit})
	require.NoError(t, err)
	require.NotNil(t, updated.PINHash)
	assert.NotEqual(t, pin, *updated.PINHash)
	assert.Equal(t, "2500.51", updated.CreditLimit.StringFixed(2))

	require.NoError(t, svc.VerifyPIN(ctx, a.ID, "482913"))
	assert.ErrorIs(t, svc.VerifyPIN(ctx, a.ID, "000000"), domain.ErrInvalidPIN)

	bad := "12"
	_, err = svc.UpdateAccount(ctx, UpdateAccountRequest{AccountID: a.ID, PIN: &bad})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)

	assert.Equal(t, 1, testutil.CountEvents(t, db, a.ID, domain.AccountEventUpdated))
}

func TestListAccounts_FiltersByStatus(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupAccountService(t, db)
	ctx := context.Background()

	b := testutil.SeedBusiness(t, db, "Harbour Supplies", "hbs")
	other := testutil.SeedBusiness(t, db, "Elsewhere", "els")
	testutil.SeedAccount(t, db, testutil.AccountFixture{BusinessID: b.ID, CustomerID: testutil.SeedCustomer(t, db, b.ID, "A").ID})
	testutil.SeedAccount(t, db, testutil.AccountFixture{BusinessID: b.ID, CustomerID: testutil.SeedCustomer(t, db, b.ID, "B").ID, Status: domain.AccountStatusSuspended})
	testutil.SeedAccount(t, db, testutil.AccountFixture{BusinessID: other.ID, CustomerID: testutil.SeedCustomer(t, db, other.ID, "C").ID})

	all, err := svc.ListAccounts(ctx, b.ID, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	suspended, err := svc.ListAccounts(ctx, b.ID, domain.AccountStatusSuspended)
	require.NoError(t, err)
	require.Len(t, suspended, 1)
	assert.Equal(t, domain.AccountStatusSuspended, suspended[0].Status)

	_, err = svc.ListAccounts(ctx, b.ID, "frozen")
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}
