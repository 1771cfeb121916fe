package voucher

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/voucherdesk/internal/domain"
	"github.com/punchamoorthee/voucherdesk/internal/ledger"
)

var dateLayouts = []string{DateLayout, "2006-01-02 15:04:05", time.RFC3339, "02/01/2006"}

// ParseDate reads a backend date. Empty or unreadable values fall back to today.
func ParseDate(s string, today time.Time) time.Time {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "0000-00-00") {
		return truncateDay(today)
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, today.Location()); err == nil {
			return truncateDay(t)
		}
	}
	return truncateDay(today)
}

// MapDetails filters fetched detail rows with the kind's edit predicate and
// turns them into ledger rows, resolving particulars from the account list.
func MapDetails(cfg Config, details []domain.Detail, accounts []domain.LookupRecord) []ledger.Row {
	keep := cfg.Keep
	if keep == nil {
		keep = keepAll
	}
	rows := make([]ledger.Row, 0, len(details))
	for _, det := range details {
		if !keep(det) {
			continue
		}
		code := det.Code.String()
		particulars := strings.TrimSpace(det.Description)
		if rec, ok := domain.FindLookup(accounts, code); ok {
			particulars = rec.Name
		}
		rows = append(rows, ledger.Row{
			ID:          det.ID.String(),
			AccountCode: code,
			Particulars: particulars,
			Debit:       det.Debit.Decimal,
			Credit:      det.Credit.Decimal,
			Remote:      det.ID != "",
		})
	}
	return rows
}

// Hydrate fills the draft from a fetched voucher. The account lookup must
// already be loaded into d.Lookups.
func (d *Draft) Hydrate(rec domain.Record, today time.Time) error {
	rows := MapDetails(d.Config, rec.Details, d.Lookups[domain.LookupAccounts])
	fresh := ledger.New()
	if err := fresh.Load(rows); err != nil {
		return fmt.Errorf("voucher %s: %w", rec.Master.ID, err)
	}

	m := rec.Master
	d.Header = Header{
		EntryDate:   ParseDate(m.TransDate, today),
		GLDate:      ParseDate(m.GLDate, today),
		Description: m.Description,
		PartyID:     m.PartyID.String(),
		CashAccount: m.CashAccount.String(),
		Project:     m.Project.String(),
		DocCount:    m.DocCount,
		Amount:      m.Total.Decimal,
	}
	if d.Config.SingleSided() && !d.Header.Amount.IsPositive() {
		d.Header.Amount = fresh.Total(d.Config.Side)
	}
	if !d.Config.SingleSided() {
		d.Header.Amount = decimal.Zero
	}
	if id := m.ID.String(); id != "" {
		d.Mode.ExistingID = id
	}
	d.Rows = fresh
	d.Pending = nil
	return nil
}
