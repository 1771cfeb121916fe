package devbackend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/punchamoorthee/voucherdesk/internal/domain"
	"github.com/punchamoorthee/voucherdesk/internal/gateway"
	"github.com/punchamoorthee/voucherdesk/internal/ledger"
	"github.com/punchamoorthee/voucherdesk/internal/service"
	"github.com/punchamoorthee/voucherdesk/internal/store"
	"github.com/punchamoorthee/voucherdesk/internal/voucher"
)

var today = time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fakeRepo struct {
	users map[string]store.UserRecord
}

func (f *fakeRepo) Lookup(_ context.Context, kind domain.LookupKind) ([]domain.LookupRecord, error) {
	if kind != domain.LookupAccounts {
		return []domain.LookupRecord{}, nil
	}
	return []domain.LookupRecord{
		{ID: "1101", Name: "Cash in hand"},
		{ID: "2101", Name: "Trade payables"},
		{ID: "5100", Name: "Rent expense"},
	}, nil
}

func (f *fakeRepo) UserByUsername(_ context.Context, username string) (store.UserRecord, error) {
	rec, ok := f.users[username]
	if !ok {
		return store.UserRecord{}, store.ErrNotFound
	}
	return rec, nil
}

func (f *fakeRepo) ReadVoucher(_ context.Context, kind string, id int64) (domain.Record, error) {
	if kind != "payment" || id != 77 {
		return domain.Record{}, store.ErrNotFound
	}
	return domain.Record{
		Master: domain.Master{ID: "77", Description: "Rent", CashAccount: "1101", Total: domain.NewAmount(dec("500"))},
		Details: []domain.Detail{
			{ID: "1", Code: "5100", Debit: domain.NewAmount(dec("500"))},
			{ID: "2", Code: "1101", Credit: domain.NewAmount(dec("500"))},
		},
	}, nil
}

func (f *fakeRepo) ListVouchers(context.Context, string) ([]domain.Master, error) {
	return []domain.Master{{ID: "77"}}, nil
}

type fakeWriter struct {
	mu      sync.Mutex
	created []service.VoucherInput
	updated []service.VoucherInput
	ids     []int64
	removed [][]int64
}

func (f *fakeWriter) Create(_ context.Context, in service.VoucherInput) (int64, error) {
	if err := in.Check(); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, in)
	return 41, nil
}

func (f *fakeWriter) Update(_ context.Context, id int64, in service.VoucherInput, removed []int64) error {
	if err := in.Check(); err != nil {
		return err
	}
	if id != 77 {
		return service.ErrVoucherNotFound
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, in)
	f.ids = append(f.ids, id)
	f.removed = append(f.removed, removed)
	return nil
}

func newServer(t *testing.T) (*gateway.Client, *fakeWriter) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &fakeRepo{users: map[string]store.UserRecord{
		"clerk": {User: domain.User{ID: "5", Username: "clerk", Name: "Desk Clerk"}, PasswordHash: string(hash)},
	}}
	writer := &fakeWriter{}
	srv := httptest.NewServer(NewServer(repo, writer, NewSessions(time.Hour), nil).Router())
	t.Cleanup(srv.Close)

	client, err := gateway.New(srv.URL+"/api", 5*time.Second, nil)
	require.NoError(t, err)
	return client, writer
}

func signIn(t *testing.T, client *gateway.Client) {
	t.Helper()
	_, err := client.Login(context.Background(), domain.Credentials{Username: "clerk", Password: "secret"})
	require.NoError(t, err)
}

func statusOf(err error) int {
	var se *gateway.ServerError
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}

func TestAuth(t *testing.T) {
	client, _ := newServer(t)
	ctx := context.Background()

	_, err := client.Lookup(ctx, domain.LookupAccounts)
	assert.Equal(t, http.StatusUnauthorized, statusOf(err))
	assert.Equal(t, "Session expired, please sign in again", gateway.Message(err))

	_, err = client.Login(ctx, domain.Credentials{Username: "clerk", Password: "wrong"})
	assert.Equal(t, "Invalid username or password", gateway.Message(err))
	_, err = client.Login(ctx, domain.Credentials{Username: "ghost", Password: "secret"})
	assert.Equal(t, "Invalid username or password", gateway.Message(err))

	signIn(t, client)
	user, ok, err := client.SessionCheck(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Desk Clerk", user.Name)

	records, err := client.Lookup(ctx, domain.LookupAccounts)
	require.NoError(t, err)
	assert.Len(t, records, 3)

	require.NoError(t, client.Logout(ctx))
	_, ok, err = client.SessionCheck(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCreate_JournalSplitsCombinedCode(t *testing.T) {
	client, writer := newServer(t)
	signIn(t, client)

	cfg, _ := voucher.ConfigFor(voucher.Journal)
	d := voucher.NewDraft(cfg, today)
	d.Header.Description = "October rent"
	d.Rows.AddRow("5100", "Rent expense", ledger.Debit, dec("100"))
	d.Rows.AddRow("1101", "Cash in hand", ledger.Credit, dec("100"))

	endpoint, body := d.Payload("5")
	res, err := client.CreateVoucher(context.Background(), endpoint, body)
	require.NoError(t, err)
	assert.Equal(t, domain.FlexString("41"), res.ID)

	require.Len(t, writer.created, 1)
	in := writer.created[0]
	assert.Equal(t, "journal", in.Kind)
	assert.Equal(t, "5", in.CreatedBy)
	require.Len(t, in.Lines, 2)
	assert.Equal(t, "5100", in.Lines[0].Code)
	assert.Equal(t, "Rent expense", in.Lines[0].Description)
	assert.True(t, in.Total.Equal(dec("100")))
	assert.Nil(t, in.Counter)
}

func TestCreate_FlatAddsCounterLine(t *testing.T) {
	client, writer := newServer(t)
	signIn(t, client)

	cfg, _ := voucher.ConfigFor(voucher.Payment)
	d := voucher.NewDraft(cfg, today)
	d.Header.Description = "Rent"
	d.Header.PartyID = "3"
	d.Header.CashAccount = "1101"
	d.Header.Amount = dec("500")
	d.Rows.AddRow("5100", "", ledger.Debit, dec("300"))
	d.Rows.AddRow("2101", "", ledger.Debit, dec("200"))

	endpoint, body := d.Payload("5")
	_, err := client.CreateVoucher(context.Background(), endpoint, body)
	require.NoError(t, err)

	in := writer.created[0]
	require.Len(t, in.Lines, 2)
	assert.True(t, in.Lines[1].Debit.Equal(dec("200")))
	assert.Equal(t, "Trade payables", in.Lines[1].Description, "names come from the account lookup")
	require.NotNil(t, in.Counter)
	assert.Equal(t, "1101", in.Counter.Code)
	assert.True(t, in.Counter.Credit.Equal(dec("500")))
}

func TestCreate_Unbalanced(t *testing.T) {
	client, writer := newServer(t)
	signIn(t, client)

	body := voucher.StructuredCreate{
		PayloadHeader: voucher.PayloadHeader{TransDate: "2026-10-17", GLDate: "2026-10-17", Description: "Off"},
		Details: []voucher.CombinedDetail{
			{Code: "5100##Rent expense", Debit: dec("100")},
			{Code: "1101##Cash in hand", Credit: dec("60")},
		},
	}
	_, err := client.CreateVoucher(context.Background(), "journal/create.php", body)
	assert.Equal(t, http.StatusUnprocessableEntity, statusOf(err))
	assert.Equal(t, "Total debit must equal total credit", gateway.Message(err))
	assert.Empty(t, writer.created)

	body.Description = " "
	_, err = client.CreateVoucher(context.Background(), "journal/create.php", body)
	assert.Equal(t, http.StatusBadRequest, statusOf(err))
	assert.Equal(t, "Description is required", gateway.Message(err))
}

func TestUpdate_EditRoundTrip(t *testing.T) {
	client, writer := newServer(t)
	signIn(t, client)
	ctx := context.Background()

	cfg, _ := voucher.ConfigFor(voucher.Payment)
	rec, err := client.ReadVoucher(ctx, cfg.Endpoints.Read, "77")
	require.NoError(t, err)

	d := voucher.NewDraft(cfg, today)
	d.Lookups[domain.LookupAccounts] = []domain.LookupRecord{{ID: "5100", Name: "Rent expense"}, {ID: "2101", Name: "Trade payables"}}
	require.NoError(t, d.Hydrate(rec, today))
	require.Equal(t, 1, d.Rows.Len(), "the cash counter line is filtered out")
	d.Header.PartyID = "3"

	rowID := d.Rows.Snapshot()[0].ID
	require.NoError(t, d.Rows.Remove(rowID))
	d.Rows.AddRow("2101", "Trade payables", ledger.Debit, dec("450"))
	d.Header.Amount = dec("450")
	require.NoError(t, d.Validate())

	endpoint, body := d.Payload("5")
	_, err = client.UpdateVoucher(ctx, endpoint, body)
	require.NoError(t, err)

	require.Len(t, writer.updated, 1)
	assert.Equal(t, int64(77), writer.ids[0])
	assert.Equal(t, []int64{1}, writer.removed[0])
	in := writer.updated[0]
	require.Len(t, in.Lines, 1)
	assert.Zero(t, in.Lines[0].ID)
	assert.True(t, in.Counter.Credit.Equal(dec("450")))
}

func TestRead_NotFound(t *testing.T) {
	client, _ := newServer(t)
	signIn(t, client)

	_, err := client.ReadVoucher(context.Background(), "payment/read.php", "78")
	assert.Equal(t, http.StatusNotFound, statusOf(err))
	assert.Equal(t, "Voucher not found", gateway.Message(err))

	_, err = client.ReadVoucher(context.Background(), "invoice/read.php", "1")
	assert.Equal(t, "Unknown voucher type", gateway.Message(err))
}

func TestList(t *testing.T) {
	client, _ := newServer(t)
	signIn(t, client)

	items, err := client.ListVouchers(context.Background(), "payment/list.php")
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestSessions_Expire(t *testing.T) {
	s := NewSessions(time.Minute)
	now := today
	s.now = func() time.Time { return now }

	rec := httptest.NewRecorder()
	s.Start(rec, domain.User{ID: "5"})
	cookie := rec.Result().Cookies()[0]

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(cookie)
	_, ok := s.User(req)
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok = s.User(req)
	assert.False(t, ok)
}
