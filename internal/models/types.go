package models

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/voucherdesk/internal/domain"
)

// LoginRequest is the body of POST /session.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SessionView reports who is signed in.
type SessionView struct {
	Authenticated bool         `json:"authenticated"`
	User          *domain.User `json:"user,omitempty"`
}

// OpenDraftRequest starts a draft. A voucher id opens an existing voucher for edit.
type OpenDraftRequest struct {
	Kind      string `json:"kind"`
	VoucherID string `json:"voucher_id,omitempty"`
}

// HeaderRequest is a partial header update; nil fields are left alone.
type HeaderRequest struct {
	EntryDate   *string        `json:"entry_date"`
	GLDate      *string        `json:"gl_date"`
	Description *string        `json:"description"`
	PartyID     *string        `json:"party_id"`
	CashAccount *string        `json:"cash_account"`
	Project     *string        `json:"project"`
	DocCount    *int           `json:"doc_count"`
	Amount      *domain.Amount `json:"amount"`
}

// RowRequest adds a posting or re-points one at another account.
type RowRequest struct {
	AccountCode string        `json:"account_code"`
	Particulars string        `json:"particulars"`
	Side        string        `json:"side,omitempty"`
	Amount      domain.Amount `json:"amount"`
}

// AmountRequest sets the debit or credit of a row.
type AmountRequest struct {
	Amount domain.Amount `json:"amount"`
}

// HeaderView is the header of a draft as shown to the operator.
type HeaderView struct {
	EntryDate   string          `json:"entry_date"`
	GLDate      string          `json:"gl_date"`
	Description string          `json:"description"`
	PartyID     string          `json:"party_id"`
	CashAccount string          `json:"cash_account"`
	Project     string          `json:"project"`
	DocCount    int             `json:"doc_count"`
	Amount      decimal.Decimal `json:"amount"`
}

// RowView is one posting line.
type RowView struct {
	ID          string          `json:"id"`
	AccountCode string          `json:"account_code"`
	Particulars string          `json:"particulars"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	State       string          `json:"state"`
	Remote      bool            `json:"remote"`
}

// DraftView is the full state of a draft with its derived totals.
type DraftView struct {
	ID          string                                      `json:"id"`
	Kind        string                                      `json:"kind"`
	Title       string                                      `json:"title"`
	Mode        string                                      `json:"mode"`
	ExistingID  string                                      `json:"existing_id,omitempty"`
	Pending     bool                                        `json:"pending"`
	Header      HeaderView                                  `json:"header"`
	Rows        []RowView                                   `json:"rows"`
	DebitTotal  decimal.Decimal                             `json:"debit_total"`
	CreditTotal decimal.Decimal                             `json:"credit_total"`
	Balanced    bool                                        `json:"balanced"`
	CanSubmit   bool                                        `json:"can_submit"`
	Reason      string                                      `json:"reason,omitempty"`
	Lookups     map[domain.LookupKind][]domain.LookupRecord `json:"lookups,omitempty"`
}

// SubmitResponse carries the backend result and the reset draft.
type SubmitResponse struct {
	Result domain.Result `json:"result"`
	Draft  DraftView     `json:"draft"`
}

// Page is one page of a voucher list.
type Page struct {
	Items   []json.RawMessage `json:"items"`
	Page    int               `json:"page"`
	PerPage int               `json:"per_page"`
	Total   int               `json:"total"`
}

// ErrorResponse is the body of every failed call.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}
