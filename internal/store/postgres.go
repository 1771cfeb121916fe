package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/voucherdesk/internal/domain"
)

var ErrNotFound = errors.New("not found")

const dateLayout = "2006-01-02"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS lookups (
		kind TEXT NOT NULL,
		id   TEXT NOT NULL,
		name TEXT NOT NULL,
		PRIMARY KEY (kind, id)
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGSERIAL PRIMARY KEY,
		username      TEXT NOT NULL UNIQUE,
		name          TEXT NOT NULL DEFAULT '',
		role          TEXT NOT NULL DEFAULT 'clerk',
		password_hash TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS vouchers (
		id           BIGSERIAL PRIMARY KEY,
		kind         TEXT NOT NULL,
		trans_date   DATE NOT NULL,
		gl_date      DATE NOT NULL,
		description  TEXT NOT NULL,
		party_id     TEXT NOT NULL DEFAULT '',
		cash_account TEXT NOT NULL DEFAULT '',
		project      TEXT NOT NULL DEFAULT '',
		doc_count    INT NOT NULL DEFAULT 0,
		total        NUMERIC(18,2) NOT NULL DEFAULT 0,
		created_by   TEXT NOT NULL DEFAULT '',
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS voucher_details (
		id          BIGSERIAL PRIMARY KEY,
		voucher_id  BIGINT NOT NULL REFERENCES vouchers(id) ON DELETE CASCADE,
		line_no     INT NOT NULL,
		code        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		debit       NUMERIC(18,2) NOT NULL DEFAULT 0,
		credit      NUMERIC(18,2) NOT NULL DEFAULT 0,
		counter     BOOLEAN NOT NULL DEFAULT false,
		CHECK (debit = 0 OR credit = 0)
	)`,
	`CREATE INDEX IF NOT EXISTS voucher_details_voucher_idx ON voucher_details (voucher_id, line_no)`,
}

type Store struct {
	Db *pgxpool.Pool
}

func NewStore(connString string) (*Store, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &Store{Db: pool}, nil
}

func (s *Store) Close() {
	s.Db.Close()
}

// Migrate creates the tables the development backend needs.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.Db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Lookup returns one lookup list ordered by id.
func (s *Store) Lookup(ctx context.Context, kind domain.LookupKind) ([]domain.LookupRecord, error) {
	rows, err := s.Db.Query(ctx, "SELECT id, name FROM lookups WHERE kind = $1 ORDER BY id", string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []domain.LookupRecord{}
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		records = append(records, domain.LookupRecord{ID: domain.FlexString(id), Name: name})
	}
	return records, rows.Err()
}

// UserRecord is a user row with its password hash.
type UserRecord struct {
	User         domain.User
	PasswordHash string
}

// UserByUsername retrieves a user for login.
func (s *Store) UserByUsername(ctx context.Context, username string) (UserRecord, error) {
	var rec UserRecord
	var id int64
	err := s.Db.QueryRow(ctx,
		"SELECT id, username, name, role, password_hash FROM users WHERE username = $1",
		username).Scan(&id, &rec.User.Username, &rec.User.Name, &rec.User.Role, &rec.PasswordHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return UserRecord{}, ErrNotFound
	}
	if err != nil {
		return UserRecord{}, err
	}
	rec.User.ID = domain.FlexString(strconv.FormatInt(id, 10))
	return rec, nil
}

const masterColumns = "id, trans_date, gl_date, description, party_id, cash_account, project, doc_count, total"

func scanMaster(row pgx.Row) (domain.Master, error) {
	var (
		m         domain.Master
		id        int64
		trans, gl time.Time
		party     string
		cash      string
		project   string
		total     decimal.Decimal
	)
	if err := row.Scan(&id, &trans, &gl, &m.Description, &party, &cash, &project, &m.DocCount, &total); err != nil {
		return domain.Master{}, err
	}
	m.ID = domain.FlexString(strconv.FormatInt(id, 10))
	m.TransDate = trans.Format(dateLayout)
	m.GLDate = gl.Format(dateLayout)
	m.PartyID = domain.FlexString(party)
	m.CashAccount = domain.FlexString(cash)
	m.Project = domain.FlexString(project)
	m.Total = domain.NewAmount(total)
	return m, nil
}

// ReadVoucher retrieves a voucher of a kind with its detail lines.
func (s *Store) ReadVoucher(ctx context.Context, kind string, id int64) (domain.Record, error) {
	m, err := scanMaster(s.Db.QueryRow(ctx,
		"SELECT "+masterColumns+" FROM vouchers WHERE id = $1 AND kind = $2", id, kind))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Record{}, ErrNotFound
	}
	if err != nil {
		return domain.Record{}, err
	}

	rows, err := s.Db.Query(ctx,
		"SELECT id, code, description, debit, credit FROM voucher_details WHERE voucher_id = $1 ORDER BY line_no, id",
		id)
	if err != nil {
		return domain.Record{}, err
	}
	defer rows.Close()

	rec := domain.Record{Master: m, Details: []domain.Detail{}}
	for rows.Next() {
		var (
			detailID      int64
			det           domain.Detail
			code          string
			debit, credit decimal.Decimal
		)
		if err := rows.Scan(&detailID, &code, &det.Description, &debit, &credit); err != nil {
			return domain.Record{}, err
		}
		det.ID = domain.FlexString(strconv.FormatInt(detailID, 10))
		det.Code = domain.FlexString(code)
		det.Debit = domain.NewAmount(debit)
		det.Credit = domain.NewAmount(credit)
		rec.Details = append(rec.Details, det)
	}
	return rec, rows.Err()
}

// ListVouchers returns voucher headers of a kind, newest first.
func (s *Store) ListVouchers(ctx context.Context, kind string) ([]domain.Master, error) {
	rows, err := s.Db.Query(ctx,
		"SELECT "+masterColumns+" FROM vouchers WHERE kind = $1 ORDER BY trans_date DESC, id DESC", kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	masters := []domain.Master{}
	for rows.Next() {
		m, err := scanMaster(rows)
		if err != nil {
			return nil, err
		}
		masters = append(masters, m)
	}
	return masters, rows.Err()
}
