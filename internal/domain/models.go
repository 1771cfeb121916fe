package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/voucherdesk/internal/ledger"
)

// LookupKind names one of the backend's read-only lookup lists.
type LookupKind string

const (
	LookupAccounts     LookupKind = "accounts"
	LookupCustomers    LookupKind = "customers"
	LookupSuppliers    LookupKind = "suppliers"
	LookupPaymentCodes LookupKind = "payment_codes"
	LookupContractors  LookupKind = "contractors"
	LookupProjects     LookupKind = "projects"
)

// LookupKinds lists every lookup the backend serves.
var LookupKinds = []LookupKind{
	LookupAccounts, LookupCustomers, LookupSuppliers,
	LookupPaymentCodes, LookupContractors, LookupProjects,
}

// Valid reports whether k is a known lookup.
func (k LookupKind) Valid() bool {
	for _, known := range LookupKinds {
		if k == known {
			return true
		}
	}
	return false
}

// FlexString decodes a JSON string or number into a string. The PHP
// backend is not consistent about quoting ids.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string { return string(f) }

// Amount is a lenient decimal: strings, numbers, empty strings and null
// all decode, and anything unreadable is zero.
type Amount struct {
	decimal.Decimal
}

func NewAmount(d decimal.Decimal) Amount { return Amount{Decimal: d} }

func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		a.Decimal = decimal.Zero
		return nil
	}
	raw := string(b)
	if b[0] == '"' {
		if s, err := strconv.Unquote(raw); err == nil {
			raw = s
		}
	}
	a.Decimal = ledger.ParseAmount(raw)
	return nil
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return a.Decimal.MarshalJSON()
}

// LookupRecord is one {id, name} entry of a lookup list.
type LookupRecord struct {
	ID   FlexString `json:"id"`
	Name string     `json:"name"`
}

// FindLookup returns the record whose id matches.
func FindLookup(records []LookupRecord, id string) (LookupRecord, bool) {
	id = strings.TrimSpace(id)
	for _, rec := range records {
		if string(rec.ID) == id {
			return rec, true
		}
	}
	return LookupRecord{}, false
}

// Envelope is the backend's common response wrapper.
type Envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Master is the header of a stored voucher.
type Master struct {
	ID          FlexString `json:"id"`
	TransDate   string     `json:"trans_date"`
	GLDate      string     `json:"gl_date"`
	Description string     `json:"description"`
	PartyID     FlexString `json:"party_id"`
	CashAccount FlexString `json:"cash_account"`
	Project     FlexString `json:"project"`
	DocCount    int        `json:"doc_count"`
	Total       Amount     `json:"total"`
}

// Detail is one stored posting line.
type Detail struct {
	ID          FlexString `json:"id"`
	Code        FlexString `json:"code"`
	Description string     `json:"description"`
	Debit       Amount     `json:"debit"`
	Credit      Amount     `json:"credit"`
}

// Record is the voucher-read response body.
type Record struct {
	Master  Master   `json:"master"`
	Details []Detail `json:"details"`
}

// Result is what create and update return.
type Result struct {
	ID      FlexString `json:"id"`
	Message string     `json:"message,omitempty"`
}

// User is the identity reported by the session endpoints.
type User struct {
	ID       FlexString `json:"id"`
	Username string     `json:"username"`
	Name     string     `json:"name"`
	Role     string     `json:"role,omitempty"`
}

// Credentials is the login request body.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
