package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	ErrVoucherNotFound = errors.New("voucher not found")
	ErrDetailNotFound  = errors.New("detail line does not belong to this voucher")
	ErrNoLines         = errors.New("at least one detail line is required")
	ErrInvalidLine     = errors.New("every line needs an account code and a single non-negative amount")
	ErrUnbalanced      = errors.New("total debit must equal total credit")
	ErrConflict        = errors.New("voucher was changed concurrently")
)

// Line is one stored posting. ID is zero for lines not yet stored.
type Line struct {
	ID          int64
	Code        string
	Description string
	Debit       decimal.Decimal
	Credit      decimal.Decimal
}

// VoucherInput is a voucher as written by create and update.
type VoucherInput struct {
	Kind        string
	TransDate   time.Time
	GLDate      time.Time
	Description string
	PartyID     string
	CashAccount string
	Project     string
	DocCount    int
	Total       decimal.Decimal
	CreatedBy   string
	Lines       []Line
	// Counter is the implicit cash posting of single-sided vouchers. It
	// replaces any previously stored counter line on update.
	Counter *Line
}

// Check enforces the stored-voucher rules: lines are well formed and,
// counter line included, debits equal credits.
func (in VoucherInput) Check() error {
	if len(in.Lines) == 0 {
		return ErrNoLines
	}
	debit, credit := decimal.Zero, decimal.Zero
	for _, l := range in.all() {
		if strings.TrimSpace(l.Code) == "" || l.Debit.IsNegative() || l.Credit.IsNegative() {
			return ErrInvalidLine
		}
		if !l.Debit.IsZero() && !l.Credit.IsZero() {
			return ErrInvalidLine
		}
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	if !debit.Equal(credit) {
		return ErrUnbalanced
	}
	return nil
}

func (in VoucherInput) all() []Line {
	if in.Counter == nil {
		return in.Lines
	}
	return append(append([]Line{}, in.Lines...), *in.Counter)
}

type VoucherService struct {
	db *pgxpool.Pool
}

func NewVoucherService(db *pgxpool.Pool) *VoucherService {
	return &VoucherService{db: db}
}

// Create stores a voucher and its lines in one transaction.
func (s *VoucherService) Create(ctx context.Context, in VoucherInput) (int64, error) {
	if err := in.Check(); err != nil {
		return 0, err
	}
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return 0, fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO vouchers (kind, trans_date, gl_date, description, party_id, cash_account, project, doc_count, total, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`,
		in.Kind, in.TransDate, in.GLDate, in.Description, in.PartyID, in.CashAccount, in.Project, in.DocCount, in.Total, in.CreatedBy,
	).Scan(&id)
	if err != nil {
		return 0, mapPgError(fmt.Errorf("voucher insert failed: %w", err))
	}

	for i, l := range in.Lines {
		if err := insertLine(ctx, tx, id, i+1, l, false); err != nil {
			return 0, err
		}
	}
	if in.Counter != nil {
		if err := insertLine(ctx, tx, id, len(in.Lines)+1, *in.Counter, true); err != nil {
			return 0, err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, mapPgError(fmt.Errorf("tx commit failed: %w", err))
	}
	return id, nil
}

// Update rewrites a voucher. Lines with an id are updated in place, lines
// without one are inserted and removed ids are deleted.
func (s *VoucherService) Update(ctx context.Context, id int64, in VoucherInput, removed []int64) error {
	if err := in.Check(); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	var locked int64
	err = tx.QueryRow(ctx, "SELECT id FROM vouchers WHERE id = $1 AND kind = $2 FOR UPDATE", id, in.Kind).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrVoucherNotFound
	}
	if err != nil {
		return mapPgError(fmt.Errorf("lock acquisition failed: %w", err))
	}

	_, err = tx.Exec(ctx,
		`UPDATE vouchers SET trans_date = $1, gl_date = $2, description = $3, party_id = $4, cash_account = $5,
		 project = $6, doc_count = $7, total = $8, updated_at = now() WHERE id = $9`,
		in.TransDate, in.GLDate, in.Description, in.PartyID, in.CashAccount, in.Project, in.DocCount, in.Total, id,
	)
	if err != nil {
		return mapPgError(fmt.Errorf("voucher update failed: %w", err))
	}

	if len(removed) > 0 {
		if _, err := tx.Exec(ctx, "DELETE FROM voucher_details WHERE voucher_id = $1 AND id = ANY($2)", id, removed); err != nil {
			return mapPgError(fmt.Errorf("detail delete failed: %w", err))
		}
	}
	if in.Counter != nil {
		if _, err := tx.Exec(ctx, "DELETE FROM voucher_details WHERE voucher_id = $1 AND counter", id); err != nil {
			return mapPgError(fmt.Errorf("counter delete failed: %w", err))
		}
	}

	for i, l := range in.Lines {
		if l.ID == 0 {
			if err := insertLine(ctx, tx, id, i+1, l, false); err != nil {
				return err
			}
			continue
		}
		tag, err := tx.Exec(ctx,
			`UPDATE voucher_details SET line_no = $1, code = $2, description = $3, debit = $4, credit = $5
			 WHERE id = $6 AND voucher_id = $7`,
			i+1, l.Code, l.Description, l.Debit, l.Credit, l.ID, id,
		)
		if err != nil {
			return mapPgError(fmt.Errorf("detail update failed: %w", err))
		}
		if tag.RowsAffected() == 0 {
			return ErrDetailNotFound
		}
	}
	if in.Counter != nil {
		if err := insertLine(ctx, tx, id, len(in.Lines)+1, *in.Counter, true); err != nil {
			return err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return mapPgError(fmt.Errorf("tx commit failed: %w", err))
	}
	return nil
}

func insertLine(ctx context.Context, tx pgx.Tx, voucherID int64, lineNo int, l Line, counter bool) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO voucher_details (voucher_id, line_no, code, description, debit, credit, counter)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		voucherID, lineNo, l.Code, l.Description, l.Debit, l.Credit, counter,
	)
	if err != nil {
		return mapPgError(fmt.Errorf("detail insert failed: %w", err))
	}
	return nil
}

// mapPgError turns unique violations and serialization failures into ErrConflict.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == "23505" || pgErr.Code == "40001") {
		return ErrConflict
	}
	return err
}
