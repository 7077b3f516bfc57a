// Package store persists Cases and Travellers in Postgres and enforces
// idempotency via a unique constraint on idempotency_key.
package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a lookup finds no matching row.
var ErrNotFound = errors.New("store: not found")

type Store struct {
	db *sql.DB
}

// Case mirrors the cases table.
type Case struct {
	ID              string
	TraceID         string
	IdempotencyKey  string
	MessageID       string
	ThreadID        string
	OriginalSubject string
	To              string
	ReceivedAt      time.Time
	Route           string
	IntentOK        bool
	Direction       string
	Scope           string
	Plan            string
	CoverageLimit   string
	Days            int
	StartDate       sql.NullString
	EndDate         sql.NullString
	SportsCoverage  bool
	MissingFields   []string

	PremiumBase    decimal.Decimal
	Subtotal       decimal.Decimal
	GroupDiscount  decimal.Decimal
	Net            decimal.Decimal
	Tax            decimal.Decimal
	Fees           decimal.Decimal
	Total          decimal.Decimal
	Currency       string

	EmailStoredURL    sql.NullString
	AttachmentURLs    []string
	PolicyPDFURL      sql.NullString
	AuditJSONURL      sql.NullString
	KBVersion         string
	LatencyMS         int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Traveller mirrors the travellers table, one-to-many with Case.
type Traveller struct {
	ID             string
	CaseID         string
	FullName       string
	PassportNumber string
	DateOfBirth    sql.NullString
	AgeAtTravel    sql.NullInt64
	IsSenior       bool
	MRZData        []byte // raw JSON of the parsed MRZ record, for audit
}

// Open opens the Postgres connection pool via the pgx stdlib driver.
func Open(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("missing database dsn")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return &Store{db: db}, nil
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// FindByIdempotencyKey returns the existing case for key, if any.
func (s *Store) FindByIdempotencyKey(ctx context.Context, key string) (Case, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, trace_id, idempotency_key, message_id, route
		FROM cases
		WHERE idempotency_key = $1
	`, key)

	var c Case
	err := row.Scan(&c.ID, &c.TraceID, &c.IdempotencyKey, &c.MessageID, &c.Route)
	if err == sql.ErrNoRows {
		return Case{}, false, nil
	}
	if err != nil {
		return Case{}, false, err
	}
	return c, true, nil
}

// InsertCase inserts a new case row within the ordering contract: it must
// run before any Traveller insert for the same case, in the same
// transaction or an earlier committed one. Returns ("", created=false,
// nil) without error if a concurrent insert already won the idempotency
// race; the caller should re-read the winning row.
func (s *Store) InsertCase(ctx context.Context, tx *sql.Tx, c Case) (string, bool, error) {
	id := c.ID
	if id == "" {
		id = uuid.NewString()
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO cases (
			id, trace_id, idempotency_key, message_id, thread_id, original_subject, "to",
			received_at, route, intent_ok, direction, scope, plan, coverage_limit, days,
			start_date, end_date, sports_coverage, missing_fields,
			premium_base, subtotal, group_discount, net, tax, fees, total, currency,
			kb_version, latency_ms, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19,
			$20, $21, $22, $23, $24, $25, $26, $27,
			$28, $29, now(), now()
		)
		ON CONFLICT (idempotency_key) DO NOTHING
	`,
		id, c.TraceID, c.IdempotencyKey, c.MessageID, c.ThreadID, c.OriginalSubject, c.To,
		c.ReceivedAt, c.Route, c.IntentOK, c.Direction, c.Scope, c.Plan, c.CoverageLimit, c.Days,
		c.StartDate, c.EndDate, c.SportsCoverage, c.MissingFields,
		c.PremiumBase, c.Subtotal, c.GroupDiscount, c.Net, c.Tax, c.Fees, c.Total, c.Currency,
		c.KBVersion, c.LatencyMS,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return "", false, nil
		}
		return "", false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return "", false, err
	}
	if affected == 0 {
		return "", false, nil
	}
	return id, true, nil
}

// InsertTraveller inserts one traveller row linked to caseID.
func (s *Store) InsertTraveller(ctx context.Context, tx *sql.Tx, caseID string, t Traveller) error {
	id := t.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO travellers (
			id, case_id, full_name, passport_number, date_of_birth, age_at_travel, is_senior, mrz_data
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, id, caseID, t.FullName, t.PassportNumber, t.DateOfBirth, t.AgeAtTravel, t.IsSenior, t.MRZData)
	return err
}

// GetCase loads a case by ID.
func (s *Store) GetCase(ctx context.Context, id string) (Case, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, trace_id, idempotency_key, message_id, thread_id, original_subject, "to",
			received_at, route, intent_ok, direction, scope, plan, coverage_limit, days,
			start_date, end_date, sports_coverage,
			premium_base, subtotal, group_discount, net, tax, fees, total, currency,
			kb_version, latency_ms, created_at, updated_at
		FROM cases WHERE id = $1
	`, id)

	var c Case
	err := row.Scan(
		&c.ID, &c.TraceID, &c.IdempotencyKey, &c.MessageID, &c.ThreadID, &c.OriginalSubject, &c.To,
		&c.ReceivedAt, &c.Route, &c.IntentOK, &c.Direction, &c.Scope, &c.Plan, &c.CoverageLimit, &c.Days,
		&c.StartDate, &c.EndDate, &c.SportsCoverage,
		&c.PremiumBase, &c.Subtotal, &c.GroupDiscount, &c.Net, &c.Tax, &c.Fees, &c.Total, &c.Currency,
		&c.KBVersion, &c.LatencyMS, &c.CreatedAt, &c.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return Case{}, ErrNotFound
	}
	if err != nil {
		return Case{}, err
	}
	return c, nil
}

// ListTravellers returns every traveller linked to caseID, ordered by
// traveller ID. IDs are random UUIDs, so this is not insertion order.
func (s *Store) ListTravellers(ctx context.Context, caseID string) ([]Traveller, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, case_id, full_name, passport_number, date_of_birth, age_at_travel, is_senior
		FROM travellers WHERE case_id = $1 ORDER BY id
	`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Traveller
	for rows.Next() {
		var t Traveller
		if err := rows.Scan(&t.ID, &t.CaseID, &t.FullName, &t.PassportNumber, &t.DateOfBirth, &t.AgeAtTravel, &t.IsSenior); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// SetPolicyArtifacts records the issuance stub's output on a case.
func (s *Store) SetPolicyArtifacts(ctx context.Context, caseID, policyPDFURL, auditJSONURL string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE cases SET policy_pdf_url = $2, audit_json_url = $3, updated_at = now()
		WHERE id = $1
	`, caseID, policyPDFURL, auditJSONURL)
	return err
}

// WithTx runs fn inside a database transaction, committing on success and
// rolling back on any error (including a panic, which is re-raised after
// rollback).
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
		if err != nil {
			tx.Rollback()
			return
		}
		err = tx.Commit()
	}()
	err = fn(tx)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
