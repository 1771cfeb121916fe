package voucher

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/voucherdesk/internal/domain"
	"github.com/punchamoorthee/voucherdesk/internal/ledger"
)

// DateLayout is the wire format of trans and GL dates.
const DateLayout = "2006-01-02"

var ErrAmountRequired = ledger.ValidationError{Field: "amount", Msg: "amount is required"}

// Header holds the non-row fields of a voucher.
type Header struct {
	EntryDate   time.Time       `json:"entry_date" validate:"required"`
	GLDate      time.Time       `json:"gl_date" validate:"required"`
	Description string          `json:"description" validate:"required"`
	PartyID     string          `json:"party_id" validate:"required"`
	CashAccount string          `json:"cash_account" validate:"required"`
	Project     string          `json:"project"`
	DocCount    int             `json:"doc_count" validate:"gte=0"`
	Amount      decimal.Decimal `json:"amount"`
}

var fieldLabels = map[string]struct{ json, label string }{
	"EntryDate":   {"entry_date", "entry date"},
	"GLDate":      {"gl_date", "GL date"},
	"Description": {"description", "description"},
	"PartyID":     {"party_id", "counterparty"},
	"CashAccount": {"cash_account", "cash account"},
	"DocCount":    {"doc_count", "supporting documents count"},
}

var validate = validator.New()

// Mode is Create, or Edit of an existing voucher.
type Mode struct {
	ExistingID string `json:"existing_id,omitempty"`
}

func (m Mode) Edit() bool { return m.ExistingID != "" }

func (m Mode) String() string {
	if m.Edit() {
		return "edit"
	}
	return "create"
}

// Draft is a voucher being entered or edited.
type Draft struct {
	ID      string
	Config  Config
	Mode    Mode
	Header  Header
	Rows    *ledger.Rows
	Lookups map[domain.LookupKind][]domain.LookupRecord
	// Pending holds a fetched record waiting for the account lookup.
	Pending *domain.Record
}

// NewDraft starts an empty Create-mode draft dated today.
func NewDraft(cfg Config, today time.Time) *Draft {
	day := truncateDay(today)
	return &Draft{
		ID:      uuid.NewString(),
		Config:  cfg,
		Header:  Header{EntryDate: day, GLDate: day},
		Rows:    ledger.New(),
		Lookups: make(map[domain.LookupKind][]domain.LookupRecord),
	}
}

// Kind is shorthand for d.Config.Kind.
func (d *Draft) Kind() Kind { return d.Config.Kind }

// Reset replaces the draft with a fresh Create-mode one of the same kind,
// keeping its id and lookups.
func (d *Draft) Reset(today time.Time) {
	lookups := d.Lookups
	id := d.ID
	*d = *NewDraft(d.Config, today)
	d.ID = id
	d.Lookups = lookups
}

// Particulars returns the account name for a code from the loaded lookup.
func (d *Draft) Particulars(accountCode string) (string, bool) {
	rec, ok := domain.FindLookup(d.Lookups[domain.LookupAccounts], accountCode)
	if !ok {
		return "", false
	}
	return rec.Name, true
}

// Totals returns the debit and credit totals including the implicit
// counter-posting of single-sided vouchers.
func (d *Draft) Totals() (debit, credit decimal.Decimal) {
	debit, credit = d.Rows.DebitTotal(), d.Rows.CreditTotal()
	if !d.Config.SingleSided() {
		return debit, credit
	}
	if d.Config.Side == ledger.Debit {
		credit = credit.Add(d.Header.Amount)
	} else {
		debit = debit.Add(d.Header.Amount)
	}
	return debit, credit
}

// IsBalanced compares the totals exactly.
func (d *Draft) IsBalanced() bool {
	debit, credit := d.Totals()
	return debit.Equal(credit)
}

// Validate reports the first reason the draft cannot be submitted, in the
// order header, rows, balance.
func (d *Draft) Validate() error {
	if err := d.validateHeader(); err != nil {
		return err
	}
	if err := d.Rows.ValidateEntries(); err != nil {
		return err
	}
	if d.Config.SingleSided() {
		opposite := d.Config.Side.Opposite()
		for _, row := range d.Rows.Snapshot() {
			if err := d.CheckSide(opposite, row.Amount(opposite)); err != nil {
				return err
			}
		}
	}
	if !d.IsBalanced() {
		return ledger.ErrNotBalanced
	}
	return nil
}

// CheckSide rejects a non-zero amount on the counter side of a single-sided
// voucher. That side belongs to the header amount and the flat payload has no
// column for it.
func (d *Draft) CheckSide(side ledger.Side, amount decimal.Decimal) error {
	if !d.Config.SingleSided() || side == d.Config.Side || amount.IsZero() {
		return nil
	}
	return ledger.ValidationError{
		Field: "rows",
		Msg:   fmt.Sprintf("%s only takes %s amounts", d.Config.Title, d.Config.Side),
	}
}

// CanSubmit is Validate as a predicate.
func (d *Draft) CanSubmit() bool {
	return d.Validate() == nil
}

func (d *Draft) validateHeader() error {
	h := d.Header
	h.Description = strings.TrimSpace(h.Description)
	h.PartyID = strings.TrimSpace(h.PartyID)
	h.CashAccount = strings.TrimSpace(h.CashAccount)

	fields := append([]string{"DocCount"}, d.Config.Required...)
	if err := validate.StructPartial(h, fields...); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fieldError(verrs[0])
		}
		return err
	}
	if d.Config.SingleSided() && !h.Amount.IsPositive() {
		return ErrAmountRequired
	}
	return nil
}

func fieldError(fe validator.FieldError) ledger.ValidationError {
	name := fe.StructField()
	label, ok := fieldLabels[name]
	if !ok {
		label.json, label.label = strings.ToLower(name), strings.ToLower(name)
	}
	switch fe.Tag() {
	case "required":
		return ledger.ValidationError{Field: label.json, Msg: label.label + " is required"}
	default:
		return ledger.ValidationError{Field: label.json, Msg: label.label + " is invalid"}
	}
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
