package ledger

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrRowNotFound    = errors.New("row not found")
	ErrNegativeAmount = errors.New("amount must not be negative")
	ErrBothSides      = errors.New("row carries both a debit and a credit")
	ErrInvalidSide    = errors.New("side must be debit or credit")
)

// Validation failures returned by Validate.
var (
	ErrNoRows       = ValidationError{Field: "rows", Msg: "at least one ledger row is required"}
	ErrMissingAcct  = ValidationError{Field: "account_code", Msg: "every row needs an account"}
	ErrMissingLabel = ValidationError{Field: "particulars", Msg: "every row needs particulars"}
	ErrNotBalanced  = ValidationError{Field: "rows", Msg: "total debit must equal total credit"}
)

// ValidationError is a local, user-facing validation failure.
type ValidationError struct {
	Field string
	Msg   string
}

func (e ValidationError) Error() string { return e.Msg }

// Rows is the ordered posting list of a voucher being edited.
type Rows struct {
	rows    []Row
	removed []string
	newID   func() string
}

// New returns a list holding a single placeholder row.
func New() *Rows {
	r := &Rows{newID: uuid.NewString}
	r.rows = []Row{{ID: r.newID()}}
	return r
}

// AddRow appends a posting. A blank account code is ignored. When the list
// holds nothing but the placeholder row, the new row takes its place.
func (r *Rows) AddRow(accountCode, particulars string, side Side, amount decimal.Decimal) (string, bool) {
	if strings.TrimSpace(accountCode) == "" {
		return "", false
	}
	if amount.IsNegative() {
		amount = decimal.Zero
	}
	row := Row{ID: r.newID(), AccountCode: accountCode, Particulars: particulars}
	if side.Valid() {
		row.set(side, amount)
	}

	if len(r.rows) == 1 && r.rows[0].placeholder() {
		r.rows[0] = row
		return row.ID, true
	}
	r.rows = append(r.rows, row)
	return row.ID, true
}

// SetDebit writes the debit column, clearing the credit when amount is non-zero.
func (r *Rows) SetDebit(id string, amount decimal.Decimal) error {
	return r.setAmount(id, Debit, amount)
}

// SetCredit writes the credit column, clearing the debit when amount is non-zero.
func (r *Rows) SetCredit(id string, amount decimal.Decimal) error {
	return r.setAmount(id, Credit, amount)
}

// Set dispatches to SetDebit or SetCredit.
func (r *Rows) Set(id string, side Side, amount decimal.Decimal) error {
	if !side.Valid() {
		return ErrInvalidSide
	}
	return r.setAmount(id, side, amount)
}

func (r *Rows) setAmount(id string, side Side, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrNegativeAmount
	}
	i := r.index(id)
	if i < 0 {
		return ErrRowNotFound
	}
	r.rows[i].set(side, amount)
	return nil
}

// SetAccount re-points a row at another account.
func (r *Rows) SetAccount(id, accountCode, particulars string) error {
	i := r.index(id)
	if i < 0 {
		return ErrRowNotFound
	}
	r.rows[i].AccountCode = accountCode
	r.rows[i].Particulars = particulars
	return nil
}

// Remove deletes a row. Server rows are remembered in Removed.
func (r *Rows) Remove(id string) error {
	i := r.index(id)
	if i < 0 {
		return ErrRowNotFound
	}
	if r.rows[i].Remote {
		r.removed = append(r.removed, r.rows[i].ID)
	}
	r.rows = append(r.rows[:i], r.rows[i+1:]...)
	return nil
}

// Load replaces the list with rows fetched from the server.
func (r *Rows) Load(rows []Row) error {
	loaded := make([]Row, 0, len(rows))
	for _, row := range rows {
		if !row.Debit.IsZero() && !row.Credit.IsZero() {
			return ErrBothSides
		}
		if row.Debit.IsNegative() || row.Credit.IsNegative() {
			return ErrNegativeAmount
		}
		if row.ID == "" {
			row.ID = r.newID()
			row.Remote = false
		}
		loaded = append(loaded, row)
	}
	r.rows = loaded
	r.removed = nil
	return nil
}

// Get returns a copy of one row.
func (r *Rows) Get(id string) (Row, bool) {
	i := r.index(id)
	if i < 0 {
		return Row{}, false
	}
	return r.rows[i], true
}

// Len is the number of rows, placeholder included.
func (r *Rows) Len() int { return len(r.rows) }

// Snapshot returns a copy of the rows in insertion order.
func (r *Rows) Snapshot() []Row {
	out := make([]Row, len(r.rows))
	copy(out, r.rows)
	return out
}

// Removed lists server row ids deleted since the last Load.
func (r *Rows) Removed() []string {
	out := make([]string, len(r.removed))
	copy(out, r.removed)
	return out
}

func (r *Rows) DebitTotal() decimal.Decimal  { return r.Total(Debit) }
func (r *Rows) CreditTotal() decimal.Decimal { return r.Total(Credit) }

// Total sums one column.
func (r *Rows) Total(side Side) decimal.Decimal {
	total := decimal.Zero
	for _, row := range r.rows {
		total = total.Add(row.Amount(side))
	}
	return total
}

// IsBalanced compares the totals exactly; amounts are fixed-point.
func (r *Rows) IsBalanced() bool {
	return r.DebitTotal().Equal(r.CreditTotal())
}

// ValidateEntries checks the per-row rules without the balance rule.
func (r *Rows) ValidateEntries() error {
	if len(r.rows) == 0 {
		return ErrNoRows
	}
	for _, row := range r.rows {
		if strings.TrimSpace(row.AccountCode) == "" {
			return ErrMissingAcct
		}
		if strings.TrimSpace(row.Particulars) == "" {
			return ErrMissingLabel
		}
	}
	return nil
}

// Validate reports the first reason the rows cannot be submitted.
func (r *Rows) Validate() error {
	if err := r.ValidateEntries(); err != nil {
		return err
	}
	if !r.IsBalanced() {
		return ErrNotBalanced
	}
	return nil
}

// CanSubmit is Validate as a predicate.
func (r *Rows) CanSubmit() bool {
	return r.Validate() == nil
}

func (r *Rows) index(id string) int {
	for i := range r.rows {
		if r.rows[i].ID == id {
			return i
		}
	}
	return -1
}
