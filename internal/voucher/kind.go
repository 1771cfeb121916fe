package voucher

import (
	"errors"
	"fmt"

	"github.com/punchamoorthee/voucherdesk/internal/domain"
	"github.com/punchamoorthee/voucherdesk/internal/ledger"
)

var ErrUnknownKind = errors.New("unknown voucher kind")

// Kind identifies a voucher type.
type Kind string

const (
	Journal      Kind = "journal"
	Payment      Kind = "payment"
	Receive      Kind = "receive"
	CashTransfer Kind = "cash_transfer"
)

// Shape selects the create payload layout.
type Shape int

const (
	// Structured sends details[] with the combined "code##particulars" string.
	Structured Shape = iota
	// Flat sends parallel account_code[] and amount[] arrays.
	Flat
)

// Endpoints are paths relative to the backend base URL.
type Endpoints struct {
	Create string
	Update string
	Read   string
	List   string
}

// Config parameterizes the single generic voucher form.
type Config struct {
	Kind      Kind
	Title     string
	Endpoints Endpoints
	// Required lists Header field names that must be filled in.
	Required []string
	// Keep filters detail rows when an existing voucher is opened for edit.
	Keep  func(domain.Detail) bool
	Shape Shape
	// Side is the column the user edits on single-sided vouchers. The
	// header Amount posts to the cash account on the opposite side.
	// Journals leave it empty and balance their own rows.
	Side ledger.Side
	// PartyLookup is the list the counterparty is chosen from.
	PartyLookup domain.LookupKind
	Lookups     []domain.LookupKind
}

// SingleSided reports whether the header amount is an implicit counter-posting.
func (c Config) SingleSided() bool { return c.Side.Valid() }

func keepAll(domain.Detail) bool { return true }

func keepDebit(d domain.Detail) bool { return d.Debit.IsPositive() }

func keepCredit(d domain.Detail) bool { return d.Credit.IsPositive() }

func endpoints(base string) Endpoints {
	return Endpoints{
		Create: base + "/create.php",
		Update: base + "/update.php",
		Read:   base + "/read.php",
		List:   base + "/list.php",
	}
}

var configs = map[Kind]Config{
	Journal: {
		Kind:        Journal,
		Title:       "Journal Voucher",
		Endpoints:   endpoints("journal"),
		Required:    []string{"EntryDate", "GLDate", "Description"},
		Keep:        keepAll,
		Shape:       Structured,
		PartyLookup: domain.LookupCustomers,
		Lookups: []domain.LookupKind{
			domain.LookupAccounts, domain.LookupCustomers, domain.LookupSuppliers, domain.LookupProjects,
		},
	},
	Payment: {
		Kind:        Payment,
		Title:       "Payment Voucher",
		Endpoints:   endpoints("payment"),
		Required:    []string{"EntryDate", "GLDate", "Description", "PartyID", "CashAccount"},
		Keep:        keepDebit,
		Shape:       Flat,
		Side:        ledger.Debit,
		PartyLookup: domain.LookupSuppliers,
		Lookups: []domain.LookupKind{
			domain.LookupAccounts, domain.LookupSuppliers, domain.LookupContractors,
			domain.LookupPaymentCodes, domain.LookupProjects,
		},
	},
	Receive: {
		Kind:        Receive,
		Title:       "Receive Voucher",
		Endpoints:   endpoints("receive"),
		Required:    []string{"EntryDate", "GLDate", "Description", "PartyID", "CashAccount"},
		Keep:        keepCredit,
		Shape:       Flat,
		Side:        ledger.Credit,
		PartyLookup: domain.LookupCustomers,
		Lookups: []domain.LookupKind{
			domain.LookupAccounts, domain.LookupCustomers, domain.LookupPaymentCodes, domain.LookupProjects,
		},
	},
	CashTransfer: {
		Kind:      CashTransfer,
		Title:     "Cash Transfer",
		Endpoints: endpoints("cash_transfer"),
		Required:  []string{"EntryDate", "GLDate", "Description", "CashAccount"},
		Keep:      keepDebit,
		Shape:     Flat,
		Side:      ledger.Debit,
		Lookups: []domain.LookupKind{
			domain.LookupAccounts, domain.LookupPaymentCodes,
		},
	},
}

// Kinds lists the supported voucher types in display order.
var Kinds = []Kind{Journal, Payment, Receive, CashTransfer}

// ConfigFor returns the form config of a kind.
func ConfigFor(k Kind) (Config, error) {
	cfg, ok := configs[k]
	if !ok {
		return Config{}, fmt.Errorf("%w %q", ErrUnknownKind, k)
	}
	return cfg, nil
}
