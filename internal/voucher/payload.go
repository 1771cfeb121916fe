package voucher

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/voucherdesk/internal/ledger"
)

// CodeSeparator joins account code and particulars in journal create details.
const CodeSeparator = "##"

// PayloadHeader is shared by every create and update body.
type PayloadHeader struct {
	TransDate   string `json:"trans_date"`
	GLDate      string `json:"gl_date"`
	Description string `json:"description"`
	PartyID     string `json:"party_id,omitempty"`
	CashAccount string `json:"cash_account,omitempty"`
	Project     string `json:"project,omitempty"`
	DocCount    int    `json:"doc_count"`
	UserID      string `json:"user_id,omitempty"`
}

// StructuredCreate is the journal create body.
type StructuredCreate struct {
	PayloadHeader
	Details []CombinedDetail `json:"details"`
}

// CombinedDetail carries "<code>##<particulars>" in Code.
type CombinedDetail struct {
	Code   string          `json:"code"`
	Debit  decimal.Decimal `json:"debit"`
	Credit decimal.Decimal `json:"credit"`
}

// FlatCreate is the payment, receive and cash-transfer create body.
type FlatCreate struct {
	PayloadHeader
	Total       decimal.Decimal   `json:"total"`
	AccountCode []string          `json:"account_code"`
	Amount      []decimal.Decimal `json:"amount"`
}

// Update is the body of every update call.
type Update struct {
	ID string `json:"id"`
	PayloadHeader
	Total          decimal.Decimal `json:"total"`
	Details        []UpdateDetail  `json:"details"`
	RemovedDetails []string        `json:"removed_details,omitempty"`
}

// UpdateDetail is one row of an update. ID is empty for rows added in the form.
type UpdateDetail struct {
	ID          string          `json:"id,omitempty"`
	Code        string          `json:"code"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Description string          `json:"description"`
}

// CombineCode builds the journal create code field.
func CombineCode(code, particulars string) string {
	return code + CodeSeparator + particulars
}

// SplitCode reverses CombineCode. A value without the separator is all code.
func SplitCode(combined string) (code, particulars string) {
	code, particulars, _ = strings.Cut(combined, CodeSeparator)
	return strings.TrimSpace(code), strings.TrimSpace(particulars)
}

func (d *Draft) payloadHeader(userID string) PayloadHeader {
	h := d.Header
	return PayloadHeader{
		TransDate:   h.EntryDate.Format(DateLayout),
		GLDate:      h.GLDate.Format(DateLayout),
		Description: strings.TrimSpace(h.Description),
		PartyID:     strings.TrimSpace(h.PartyID),
		CashAccount: strings.TrimSpace(h.CashAccount),
		Project:     strings.TrimSpace(h.Project),
		DocCount:    h.DocCount,
		UserID:      userID,
	}
}

// CreatePayload builds the create body in the kind's shape.
func (d *Draft) CreatePayload(userID string) any {
	rows := d.Rows.Snapshot()
	if d.Config.Shape == Structured {
		body := StructuredCreate{
			PayloadHeader: d.payloadHeader(userID),
			Details:       make([]CombinedDetail, 0, len(rows)),
		}
		for _, row := range rows {
			body.Details = append(body.Details, CombinedDetail{
				Code:   CombineCode(row.AccountCode, row.Particulars),
				Debit:  row.Debit,
				Credit: row.Credit,
			})
		}
		return body
	}

	side := d.Config.Side
	if !side.Valid() {
		side = ledger.Debit
	}
	body := FlatCreate{
		PayloadHeader: d.payloadHeader(userID),
		Total:         d.Header.Amount,
		AccountCode:   make([]string, 0, len(rows)),
		Amount:        make([]decimal.Decimal, 0, len(rows)),
	}
	for _, row := range rows {
		body.AccountCode = append(body.AccountCode, row.AccountCode)
		body.Amount = append(body.Amount, row.Amount(side))
	}
	return body
}

// UpdatePayload builds the update body. Server rows keep their ids so the
// backend updates them in place.
func (d *Draft) UpdatePayload(userID string) Update {
	rows := d.Rows.Snapshot()
	body := Update{
		ID:             d.Mode.ExistingID,
		PayloadHeader:  d.payloadHeader(userID),
		Details:        make([]UpdateDetail, 0, len(rows)),
		RemovedDetails: d.Rows.Removed(),
	}
	if d.Config.SingleSided() {
		body.Total = d.Header.Amount
	} else {
		body.Total = d.Rows.DebitTotal()
	}
	for _, row := range rows {
		det := UpdateDetail{
			Code:        row.AccountCode,
			Debit:       row.Debit,
			Credit:      row.Credit,
			Description: row.Particulars,
		}
		if row.Remote {
			det.ID = row.ID
		}
		body.Details = append(body.Details, det)
	}
	return body
}

// Payload picks the endpoint and body for the draft's mode.
func (d *Draft) Payload(userID string) (endpoint string, body any) {
	if d.Mode.Edit() {
		return d.Config.Endpoints.Update, d.UpdatePayload(userID)
	}
	return d.Config.Endpoints.Create, d.CreatePayload(userID)
}
