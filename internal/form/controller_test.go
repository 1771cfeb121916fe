package form

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/punchamoorthee/voucherdesk/internal/domain"
	"github.com/punchamoorthee/voucherdesk/internal/gateway"
	"github.com/punchamoorthee/voucherdesk/internal/ledger"
	"github.com/punchamoorthee/voucherdesk/internal/session"
	"github.com/punchamoorthee/voucherdesk/internal/voucher"
)

var today = time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fakeAuth struct{}

func (fakeAuth) SessionCheck(context.Context) (domain.User, bool, error) {
	return domain.User{ID: "5", Username: "clerk"}, true, nil
}

func (fakeAuth) Login(context.Context, domain.Credentials) (domain.User, error) {
	return domain.User{ID: "5", Username: "clerk"}, nil
}

func (fakeAuth) Logout(context.Context) error { return nil }

type fakeBackend struct {
	mu         sync.Mutex
	lookups    map[domain.LookupKind][]domain.LookupRecord
	lookupErrs map[domain.LookupKind]error
	records    map[string]domain.Record
	submitErr  error
	lookupHits int
	endpoints  []string
	bodies     []any
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		lookups: map[domain.LookupKind][]domain.LookupRecord{
			domain.LookupAccounts: {
				{ID: "1101", Name: "Cash in hand"},
				{ID: "2101", Name: "Trade payables"},
				{ID: "5100", Name: "Rent expense"},
			},
			domain.LookupSuppliers: {{ID: "3", Name: "Landlord Ltd"}},
		},
		lookupErrs: map[domain.LookupKind]error{},
		records: map[string]domain.Record{
			"77": {
				Master: domain.Master{ID: "77", TransDate: "2026-09-30", Description: "Rent", PartyID: "3", CashAccount: "1101", Total: domain.NewAmount(dec("500"))},
				Details: []domain.Detail{
					{ID: "1", Code: "5100", Debit: domain.NewAmount(dec("300"))},
					{ID: "2", Code: "2101", Debit: domain.NewAmount(dec("200"))},
					{ID: "3", Code: "1101", Credit: domain.NewAmount(dec("500"))},
				},
			},
		},
	}
}

func (f *fakeBackend) Lookup(_ context.Context, kind domain.LookupKind) ([]domain.LookupRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookupHits++
	if err := f.lookupErrs[kind]; err != nil {
		return nil, err
	}
	return f.lookups[kind], nil
}

func (f *fakeBackend) ReadVoucher(_ context.Context, _ string, id string) (domain.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	if !ok {
		return domain.Record{}, &gateway.ServerError{Status: 404, Message: "Voucher not found"}
	}
	return rec, nil
}

func (f *fakeBackend) submit(endpoint string, payload any) (domain.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.endpoints = append(f.endpoints, endpoint)
	f.bodies = append(f.bodies, payload)
	if f.submitErr != nil {
		return domain.Result{}, f.submitErr
	}
	return domain.Result{ID: "31", Message: "Saved"}, nil
}

func (f *fakeBackend) CreateVoucher(_ context.Context, endpoint string, payload any) (domain.Result, error) {
	return f.submit(endpoint, payload)
}

func (f *fakeBackend) UpdateVoucher(_ context.Context, endpoint string, payload any) (domain.Result, error) {
	return f.submit(endpoint, payload)
}

func (f *fakeBackend) ListVouchers(context.Context, string) ([]json.RawMessage, error) {
	return []json.RawMessage{json.RawMessage(`{"id":31}`)}, nil
}

func newController(t *testing.T, backend Backend, signIn bool) *Controller {
	t.Helper()
	holder := session.NewHolder(fakeAuth{}, nil)
	if signIn {
		_, err := holder.Login(context.Background(), "clerk", "secret")
		require.NoError(t, err)
	}
	c := NewController(backend, holder, nil)
	c.now = func() time.Time { return today }
	return c
}

func balancedJournal(t *testing.T, c *Controller) *voucher.Draft {
	t.Helper()
	d, err := c.Open(context.Background(), voucher.Journal, "")
	require.NoError(t, err)
	d.Header.Description = "October rent"
	_, ok := d.Rows.AddRow("5100", "Rent expense", ledger.Debit, dec("100"))
	require.True(t, ok)
	_, ok = d.Rows.AddRow("1101", "Cash in hand", ledger.Credit, dec("100"))
	require.True(t, ok)
	return d
}

func TestOpen_RequiresSession(t *testing.T) {
	c := newController(t, newFakeBackend(), false)

	_, err := c.Open(context.Background(), voucher.Journal, "")
	assert.ErrorIs(t, err, session.ErrNotSignedIn)
}

func TestOpen_CreateLoadsLookups(t *testing.T) {
	backend := newFakeBackend()
	c := newController(t, backend, true)

	d, err := c.Open(context.Background(), voucher.Payment, "")
	require.NoError(t, err)

	assert.False(t, d.Mode.Edit())
	assert.Nil(t, d.Pending)
	assert.Equal(t, 1, d.Rows.Len())
	assert.Len(t, d.Lookups[domain.LookupAccounts], 3)
	assert.Equal(t, len(d.Config.Lookups), backend.lookupHits)
	assert.True(t, d.Header.EntryDate.Equal(time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)))
}

func TestOpen_EditHydratesWithKindFilter(t *testing.T) {
	c := newController(t, newFakeBackend(), true)

	d, err := c.Open(context.Background(), voucher.Payment, " 77 ")
	require.NoError(t, err)

	assert.Equal(t, "77", d.Mode.ExistingID)
	assert.Nil(t, d.Pending)
	require.Equal(t, 2, d.Rows.Len(), "payment edit keeps debit rows only")
	rows := d.Rows.Snapshot()
	assert.Equal(t, "Rent expense", rows[0].Particulars)
	assert.True(t, d.Header.Amount.Equal(dec("500")))
	assert.True(t, d.CanSubmit())
}

func TestOpen_UnknownVoucher(t *testing.T) {
	c := newController(t, newFakeBackend(), true)

	_, err := c.Open(context.Background(), voucher.Payment, "404")
	require.Error(t, err)
	assert.Equal(t, "Voucher not found", gateway.Message(err))
}

func TestOpen_DefersUntilAccountsLoad(t *testing.T) {
	backend := newFakeBackend()
	backend.lookupErrs[domain.LookupAccounts] = errors.New("timeout")
	c := newController(t, backend, true)
	ctx := context.Background()

	d, err := c.Open(ctx, voucher.Payment, "77")
	require.NoError(t, err)
	require.NotNil(t, d.Pending)
	assert.Equal(t, 1, d.Rows.Len())

	_, err = c.Submit(ctx, d)
	assert.ErrorIs(t, err, ErrStillLoading)
	assert.Empty(t, backend.endpoints)

	require.NoError(t, c.Resume(ctx, d), "a failed lookup is not an error")
	assert.NotNil(t, d.Pending)

	backend.mu.Lock()
	delete(backend.lookupErrs, domain.LookupAccounts)
	backend.mu.Unlock()

	require.NoError(t, c.Resume(ctx, d))
	assert.Nil(t, d.Pending)
	assert.Equal(t, 2, d.Rows.Len())
	assert.Equal(t, "77", d.Mode.ExistingID)
}

func TestSubmit_InvalidMakesNoCall(t *testing.T) {
	backend := newFakeBackend()
	c := newController(t, backend, true)

	d := balancedJournal(t, c)
	require.NoError(t, d.Rows.Set(d.Rows.Snapshot()[1].ID, ledger.Credit, dec("60")))

	_, err := c.Submit(context.Background(), d)
	assert.ErrorIs(t, err, ledger.ErrNotBalanced)
	assert.True(t, IsValidation(err))
	assert.Empty(t, backend.endpoints)
}

func TestSubmit_FailureKeepsDraft(t *testing.T) {
	backend := newFakeBackend()
	backend.submitErr = &gateway.ServerError{Status: 200, Message: "Period is closed"}
	c := newController(t, backend, true)

	d := balancedJournal(t, c)
	_, err := c.Submit(context.Background(), d)

	var se *SubmitError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "Period is closed", se.Message)
	assert.Equal(t, "October rent", d.Header.Description)
	assert.Equal(t, 2, d.Rows.Len())
}

func TestSubmit_TransportFailureUsesFallback(t *testing.T) {
	backend := newFakeBackend()
	backend.submitErr = errors.New("connection refused")
	c := newController(t, backend, true)

	_, err := c.Submit(context.Background(), balancedJournal(t, c))
	assert.EqualError(t, err, gateway.Fallback)
}

func TestSubmit_CreateResetsDraft(t *testing.T) {
	backend := newFakeBackend()
	c := newController(t, backend, true)

	d := balancedJournal(t, c)
	id := d.ID
	res, err := c.Submit(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, domain.FlexString("31"), res.ID)

	require.Equal(t, []string{"journal/create.php"}, backend.endpoints)
	body, ok := backend.bodies[0].(voucher.StructuredCreate)
	require.True(t, ok)
	assert.Equal(t, "5", body.UserID)
	assert.Equal(t, "5100##Rent expense", body.Details[0].Code)

	assert.Equal(t, id, d.ID)
	assert.Empty(t, d.Header.Description)
	assert.Equal(t, 1, d.Rows.Len())
	assert.False(t, d.Mode.Edit())
}

func TestSubmit_EditSendsUpdate(t *testing.T) {
	backend := newFakeBackend()
	c := newController(t, backend, true)
	ctx := context.Background()

	d, err := c.Open(ctx, voucher.Payment, "77")
	require.NoError(t, err)
	rows := d.Rows.Snapshot()
	require.NoError(t, d.Rows.Remove(rows[1].ID))
	d.Header.Amount = dec("300")

	_, err = c.Submit(ctx, d)
	require.NoError(t, err)

	require.Equal(t, []string{"payment/update.php"}, backend.endpoints)
	body, ok := backend.bodies[0].(voucher.Update)
	require.True(t, ok)
	assert.Equal(t, "77", body.ID)
	require.Len(t, body.Details, 1)
	assert.Equal(t, "1", body.Details[0].ID)
	assert.Equal(t, []string{"2"}, body.RemovedDetails)
	assert.False(t, d.Mode.Edit(), "a saved edit starts a fresh voucher")
}

func TestList(t *testing.T) {
	c := newController(t, newFakeBackend(), true)

	items, err := c.List(context.Background(), voucher.Journal)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	_, err = c.List(context.Background(), voucher.Kind("bogus"))
	assert.ErrorIs(t, err, voucher.ErrUnknownKind)
}
