package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCheck(t *testing.T) {
	journal := VoucherInput{Lines: []Line{
		{Code: "5100", Debit: dec("100")},
		{Code: "1101", Credit: dec("100")},
	}}
	assert.NoError(t, journal.Check())

	payment := VoucherInput{
		Lines:   []Line{{Code: "5100", Debit: dec("300")}, {Code: "2101", Debit: dec("200")}},
		Counter: &Line{Code: "1101", Credit: dec("500")},
	}
	assert.NoError(t, payment.Check())

	payment.Counter.Credit = dec("450")
	assert.ErrorIs(t, payment.Check(), ErrUnbalanced)

	assert.ErrorIs(t, VoucherInput{}.Check(), ErrNoLines)

	both := VoucherInput{Lines: []Line{{Code: "5100", Debit: dec("1"), Credit: dec("1")}}}
	assert.ErrorIs(t, both.Check(), ErrInvalidLine)

	blank := VoucherInput{Lines: []Line{{Code: " ", Debit: dec("0")}}}
	assert.ErrorIs(t, blank.Check(), ErrInvalidLine)
}

func TestCheck_DoesNotMutateLines(t *testing.T) {
	lines := make([]Line, 1, 4)
	lines[0] = Line{Code: "5100", Debit: dec("10")}
	in := VoucherInput{Lines: lines, Counter: &Line{Code: "1101", Credit: dec("10")}}

	assert.NoError(t, in.Check())
	assert.Len(t, in.Lines, 1)
	assert.Equal(t, "", lines[:2][1].Code)
}

func TestMapPgError(t *testing.T) {
	unique := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	assert.ErrorIs(t, mapPgError(unique), ErrConflict)

	serial := &pgconn.PgError{Code: "40001"}
	assert.ErrorIs(t, mapPgError(serial), ErrConflict)

	other := errors.New("connection reset")
	assert.Equal(t, other, mapPgError(other))
}
