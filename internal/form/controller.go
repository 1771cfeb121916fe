package form

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/punchamoorthee/voucherdesk/internal/domain"
	"github.com/punchamoorthee/voucherdesk/internal/gateway"
	"github.com/punchamoorthee/voucherdesk/internal/ledger"
	"github.com/punchamoorthee/voucherdesk/internal/session"
	"github.com/punchamoorthee/voucherdesk/internal/voucher"
)

// ErrStillLoading is returned when an edit draft is waiting on its account lookup.
var ErrStillLoading = ledger.ValidationError{Field: "rows", Msg: "voucher is still loading, try again shortly"}

// Backend is the accounting API as seen by the form.
type Backend interface {
	Lookup(ctx context.Context, kind domain.LookupKind) ([]domain.LookupRecord, error)
	ReadVoucher(ctx context.Context, endpoint, id string) (domain.Record, error)
	CreateVoucher(ctx context.Context, endpoint string, payload any) (domain.Result, error)
	UpdateVoucher(ctx context.Context, endpoint string, payload any) (domain.Result, error)
	ListVouchers(ctx context.Context, endpoint string) ([]json.RawMessage, error)
}

// SubmitError is a failed create or update. Message is safe to show the user.
type SubmitError struct {
	Message string
	Err     error
}

func (e *SubmitError) Error() string { return e.Message }
func (e *SubmitError) Unwrap() error { return e.Err }

// Controller bridges drafts to the backend.
type Controller struct {
	backend Backend
	session *session.Holder
	log     *zap.Logger
	now     func() time.Time
}

func NewController(backend Backend, sess *session.Holder, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{backend: backend, session: sess, log: log, now: time.Now}
}

// Open prepares a draft. With an existing id the voucher is read alongside
// the lookups and mapped once the account list is available; until then the
// draft stays Pending.
func (c *Controller) Open(ctx context.Context, kind voucher.Kind, existingID string) (*voucher.Draft, error) {
	if _, err := c.session.Require(); err != nil {
		return nil, err
	}
	cfg, err := voucher.ConfigFor(kind)
	if err != nil {
		return nil, err
	}
	d := voucher.NewDraft(cfg, c.now())
	existingID = strings.TrimSpace(existingID)

	lists := make([][]domain.LookupRecord, len(cfg.Lookups))
	var rec domain.Record

	g, gctx := errgroup.WithContext(ctx)
	for i, lk := range cfg.Lookups {
		g.Go(func() error {
			lists[i] = c.lookup(gctx, lk)
			return nil
		})
	}
	if existingID != "" {
		g.Go(func() error {
			r, err := c.backend.ReadVoucher(gctx, cfg.Endpoints.Read, existingID)
			if err != nil {
				return fmt.Errorf("read %s %s: %w", cfg.Kind, existingID, err)
			}
			rec = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, lk := range cfg.Lookups {
		d.Lookups[lk] = lists[i]
	}
	if existingID == "" {
		return d, nil
	}

	d.Mode.ExistingID = existingID
	d.Pending = &rec
	if err := c.gate(d); err != nil {
		return nil, err
	}
	return d, nil
}

// Resume reloads any empty lookups of a draft and, for a pending edit,
// maps the fetched voucher once accounts are present.
func (c *Controller) Resume(ctx context.Context, d *voucher.Draft) error {
	if _, err := c.session.Require(); err != nil {
		return err
	}
	var missing []domain.LookupKind
	for _, kind := range d.Config.Lookups {
		if len(d.Lookups[kind]) == 0 {
			missing = append(missing, kind)
		}
	}

	lists := make([][]domain.LookupRecord, len(missing))
	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range missing {
		g.Go(func() error {
			lists[i] = c.lookup(gctx, kind)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, kind := range missing {
		d.Lookups[kind] = lists[i]
	}
	return c.gate(d)
}

// gate maps a pending record when the account list is loaded and an
// existing id is present; otherwise it leaves the draft as is.
func (c *Controller) gate(d *voucher.Draft) error {
	if d.Pending == nil || !d.Mode.Edit() || len(d.Lookups[domain.LookupAccounts]) == 0 {
		return nil
	}
	return d.Hydrate(*d.Pending, c.now())
}

func (c *Controller) lookup(ctx context.Context, kind domain.LookupKind) []domain.LookupRecord {
	records, err := c.backend.Lookup(ctx, kind)
	if err != nil {
		c.log.Warn("lookup unavailable", zap.String("lookup", string(kind)), zap.Error(err))
		return nil
	}
	return records
}

// Submit validates the draft locally and sends it. On success the draft is
// reset to an empty Create-mode voucher; on failure it is left untouched.
func (c *Controller) Submit(ctx context.Context, d *voucher.Draft) (domain.Result, error) {
	user, err := c.session.Require()
	if err != nil {
		return domain.Result{}, err
	}
	if d.Pending != nil {
		return domain.Result{}, ErrStillLoading
	}
	if err := d.Validate(); err != nil {
		return domain.Result{}, err
	}

	endpoint, body := d.Payload(user.ID.String())
	var res domain.Result
	if d.Mode.Edit() {
		res, err = c.backend.UpdateVoucher(ctx, endpoint, body)
	} else {
		res, err = c.backend.CreateVoucher(ctx, endpoint, body)
	}
	if err != nil {
		c.log.Error("voucher submit failed",
			zap.String("kind", string(d.Kind())),
			zap.String("mode", d.Mode.String()),
			zap.String("draft", d.ID),
			zap.Error(err))
		return domain.Result{}, &SubmitError{Message: gateway.Message(err), Err: err}
	}

	c.log.Info("voucher submitted",
		zap.String("kind", string(d.Kind())),
		zap.String("mode", d.Mode.String()),
		zap.String("voucher_id", res.ID.String()))
	d.Reset(c.now())
	return res, nil
}

// Lookup passes a lookup list through for display.
func (c *Controller) Lookup(ctx context.Context, kind domain.LookupKind) ([]domain.LookupRecord, error) {
	if _, err := c.session.Require(); err != nil {
		return nil, err
	}
	return c.backend.Lookup(ctx, kind)
}

// List returns previously submitted vouchers of a kind.
func (c *Controller) List(ctx context.Context, kind voucher.Kind) ([]json.RawMessage, error) {
	if _, err := c.session.Require(); err != nil {
		return nil, err
	}
	cfg, err := voucher.ConfigFor(kind)
	if err != nil {
		return nil, err
	}
	return c.backend.ListVouchers(ctx, cfg.Endpoints.List)
}

// IsValidation reports whether err is a local validation failure.
func IsValidation(err error) bool {
	var verr ledger.ValidationError
	return errors.As(err, &verr)
}
