package ledger

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Side selects which amount column of a posting is written.
type Side string

const (
	Debit  Side = "debit"
	Credit Side = "credit"
)

// Valid reports whether s names one of the two columns.
func (s Side) Valid() bool {
	return s == Debit || s == Credit
}

// Opposite returns the other column.
func (s Side) Opposite() Side {
	if s == Debit {
		return Credit
	}
	return Debit
}

// State is the debit/credit state of a single row.
type State int

const (
	Empty State = iota
	DebitSet
	CreditSet
)

func (s State) String() string {
	switch s {
	case DebitSet:
		return "debit"
	case CreditSet:
		return "credit"
	default:
		return "empty"
	}
}

// Row is one posting line of a voucher.
// At most one of Debit and Credit is non-zero.
type Row struct {
	ID          string          `json:"id"`
	AccountCode string          `json:"account_code"`
	Particulars string          `json:"particulars"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	// Remote is set for rows whose id was assigned by the server.
	Remote bool `json:"remote"`
}

// State derives the row's position in the Empty/DebitSet/CreditSet machine.
func (r Row) State() State {
	switch {
	case !r.Debit.IsZero():
		return DebitSet
	case !r.Credit.IsZero():
		return CreditSet
	default:
		return Empty
	}
}

// Amount returns the value held on the given side.
func (r Row) Amount(side Side) decimal.Decimal {
	if side == Credit {
		return r.Credit
	}
	return r.Debit
}

func (r Row) placeholder() bool {
	return !r.Remote && strings.TrimSpace(r.AccountCode) == "" && r.Debit.IsZero() && r.Credit.IsZero()
}

func (r *Row) set(side Side, amount decimal.Decimal) {
	if side == Credit {
		r.Credit = amount
		if !amount.IsZero() {
			r.Debit = decimal.Zero
		}
		return
	}
	r.Debit = amount
	if !amount.IsZero() {
		r.Credit = decimal.Zero
	}
}

// ParseAmount reads a user or server supplied amount. Plain and exponent
// notation parse as is; otherwise thousands separators and surrounding text
// are dropped, and anything that still does not parse is zero.
func ParseAmount(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	if d, err := decimal.NewFromString(s); err == nil {
		return d
	}
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = strings.TrimSpace(strings.TrimPrefix(s, "-"))
	}

	var b strings.Builder
	b.Grow(len(s) + 1)
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	clean := b.String()
	if clean == "" {
		return decimal.Zero
	}
	if neg {
		clean = "-" + clean
	}

	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero
	}
	return d
}
