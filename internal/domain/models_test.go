package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_DecodesLoosePHPShapes(t *testing.T) {
	body := `{
		"master": {"id": 42, "trans_date": "2026-03-01", "gl_date": "", "description": "Rent",
		           "party_id": "7", "cash_account": 1101, "doc_count": 2, "total": "1,500.00"},
		"details": [
			{"id": "901", "code": 5100, "description": "Rent expense", "debit": "1500.00", "credit": null},
			{"id": 902, "code": "1101", "description": "Cash", "debit": "", "credit": 1500}
		]
	}`

	var rec Record
	require.NoError(t, json.Unmarshal([]byte(body), &rec))

	assert.Equal(t, FlexString("42"), rec.Master.ID)
	assert.Equal(t, FlexString("1101"), rec.Master.CashAccount)
	assert.Equal(t, "1500", rec.Master.Total.String())
	require.Len(t, rec.Details, 2)
	assert.Equal(t, FlexString("5100"), rec.Details[0].Code)
	assert.True(t, rec.Details[0].Credit.IsZero())
	assert.True(t, rec.Details[1].Debit.IsZero())
	assert.Equal(t, "1500", rec.Details[1].Credit.String())
}

func TestAmount_GarbageIsZero(t *testing.T) {
	var a Amount
	require.NoError(t, json.Unmarshal([]byte(`"n/a"`), &a))
	assert.True(t, a.IsZero())
}

func TestLookupKind_Valid(t *testing.T) {
	assert.True(t, LookupAccounts.Valid())
	assert.True(t, LookupKind("projects").Valid())
	assert.False(t, LookupKind("invoices").Valid())
}

func TestFindLookup(t *testing.T) {
	records := []LookupRecord{{ID: "1001", Name: "Cash"}, {ID: "2001", Name: "Payables"}}

	rec, ok := FindLookup(records, " 2001 ")
	require.True(t, ok)
	assert.Equal(t, "Payables", rec.Name)

	_, ok = FindLookup(records, "9999")
	assert.False(t, ok)
}
