/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces (grant.Store, pin.Store).

KEY TABLES:
  grants:           One row per principal; balance and per-quarter usage
  withdrawals:      Committed withdrawal records, immutable except status
  pin_credentials:  PIN hash, failed-attempt counter, lock timestamp

ATOMIC PATHS:
  Two operations carry the engine's race defenses and run inside a
  single database transaction with the connection opened in
  _txlock=immediate mode (the write lock is taken at BEGIN, so the
  read-validate-write sequence is serialized):

  CommitWithdrawal  re-reads the grant row, re-validates through
                    grant.PrepareCommit, inserts the withdrawal and
                    updates balance/usage. All or nothing.

  RecordFailure     increments the failed-attempt counter and sets the
                    lock timestamp in the same transaction, so parallel
                    wrong attempts cannot both observe attempts=2 and
                    skip the lockout.

WAL MODE:
  Opened with WAL for better concurrency and crash recovery. Use
  ":memory:" for tests.

SEE ALSO:
  - grant/store.go: the commit contract this package implements
  - store/memory:   in-memory implementation with the same semantics
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/unseaf/grant-engine/grant"
	"github.com/unseaf/grant-engine/pin"
)

// Store implements grant.Store and pin.Store using SQLite.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps :memory: databases coherent and removes
	// SQLITE_BUSY from the write paths.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Grants: one row per principal
	CREATE TABLE IF NOT EXISTS grants (
		principal_id TEXT PRIMARY KEY,
		total_amount TEXT NOT NULL,
		start_date TEXT NOT NULL,
		current_balance TEXT NOT NULL,
		q1_used TEXT NOT NULL DEFAULT '0',
		q2_used TEXT NOT NULL DEFAULT '0',
		q3_used TEXT NOT NULL DEFAULT '0',
		q4_used TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Withdrawals: immutable once committed, except status
	CREATE TABLE IF NOT EXISTS withdrawals (
		id TEXT PRIMARY KEY,
		principal_id TEXT NOT NULL,
		transaction_number TEXT UNIQUE NOT NULL,
		amount TEXT NOT NULL,
		method TEXT NOT NULL,
		method_details TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		fee TEXT NOT NULL,
		net_amount TEXT NOT NULL,
		quarter_period TEXT NOT NULL,
		quarter_limit TEXT NOT NULL,
		quarter_used_before TEXT NOT NULL,
		quarter_remaining_after TEXT NOT NULL,
		expected_completion TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_withdrawals_principal
		ON withdrawals(principal_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_withdrawals_status
		ON withdrawals(status);

	-- PIN credentials: durable lockout state
	CREATE TABLE IF NOT EXISTS pin_credentials (
		principal_id TEXT PRIMARY KEY,
		pin_hash TEXT NOT NULL,
		failed_attempts INTEGER NOT NULL DEFAULT 0,
		locked_until TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// GRANT STORE (grant.Store interface)
// =============================================================================

const selectGrant = `
	SELECT principal_id, total_amount, start_date, current_balance,
	       q1_used, q2_used, q3_used, q4_used
	FROM grants WHERE principal_id = ?
`

// Grant returns the principal's grant row.
func (s *Store) Grant(ctx context.Context, principalID string) (*grant.Grant, error) {
	return scanGrant(s.db.QueryRowContext(ctx, selectGrant, principalID))
}

// SaveGrant creates or replaces a grant row.
func (s *Store) SaveGrant(ctx context.Context, g grant.Grant) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO grants
			(principal_id, total_amount, start_date, current_balance,
			 q1_used, q2_used, q3_used, q4_used, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(principal_id) DO UPDATE SET
			total_amount = excluded.total_amount,
			start_date = excluded.start_date,
			current_balance = excluded.current_balance,
			q1_used = excluded.q1_used,
			q2_used = excluded.q2_used,
			q3_used = excluded.q3_used,
			q4_used = excluded.q4_used,
			updated_at = excluded.updated_at`,
		g.PrincipalID,
		g.TotalAmount.String(),
		g.StartDate.String(),
		g.CurrentBalance.String(),
		g.UsageByQuarter[0].String(),
		g.UsageByQuarter[1].String(),
		g.UsageByQuarter[2].String(),
		g.UsageByQuarter[3].String(),
		now, now,
	)
	if err != nil {
		return &grant.PersistenceError{Op: "save grant", Err: err}
	}
	return nil
}

// CommitWithdrawal applies a withdrawal atomically: re-read, re-validate,
// insert record, update balance/usage, all inside one transaction.
func (s *Store) CommitWithdrawal(ctx context.Context, principalID string, req *grant.WithdrawalRequest, now grant.Date) (*grant.WithdrawalRequest, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &grant.PersistenceError{Op: "begin commit", Err: err}
	}
	defer tx.Rollback()

	g, err := scanGrant(tx.QueryRowContext(ctx, selectGrant, principalID))
	if err != nil {
		return nil, err
	}

	// Authoritative validation against the freshly read row.
	if err := grant.PrepareCommit(g, req, now); err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO withdrawals
			(id, principal_id, transaction_number, amount, method, method_details,
			 status, fee, net_amount, quarter_period, quarter_limit,
			 quarter_used_before, quarter_remaining_after, expected_completion, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID,
		req.PrincipalID,
		req.TransactionNumber,
		req.Amount.String(),
		string(req.Method),
		string(req.MethodDetails),
		string(req.Status),
		req.Fee.String(),
		req.NetAmount.String(),
		req.QuarterPeriod,
		req.QuarterLimit.String(),
		req.QuarterUsedBefore.String(),
		req.QuarterRemainingAfter.String(),
		req.ExpectedCompletion.String(),
		req.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return nil, &grant.PersistenceError{Op: "insert withdrawal", Err: err}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE grants
		SET current_balance = ?, q1_used = ?, q2_used = ?, q3_used = ?, q4_used = ?, updated_at = ?
		WHERE principal_id = ?`,
		g.CurrentBalance.String(),
		g.UsageByQuarter[0].String(),
		g.UsageByQuarter[1].String(),
		g.UsageByQuarter[2].String(),
		g.UsageByQuarter[3].String(),
		time.Now().UTC().Format(time.RFC3339),
		principalID,
	)
	if err != nil {
		return nil, &grant.PersistenceError{Op: "update grant", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return nil, &grant.PersistenceError{Op: "commit withdrawal", Err: err}
	}
	return req, nil
}

// Withdrawals returns the principal's withdrawal history, newest first.
func (s *Store) Withdrawals(ctx context.Context, principalID string) ([]grant.WithdrawalRequest, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, principal_id, transaction_number, amount, method, method_details,
		       status, fee, net_amount, quarter_period, quarter_limit,
		       quarter_used_before, quarter_remaining_after, expected_completion, created_at
		FROM withdrawals
		WHERE principal_id = ?
		ORDER BY created_at DESC, rowid DESC`,
		principalID,
	)
	if err != nil {
		return nil, &grant.PersistenceError{Op: "list withdrawals", Err: err}
	}
	defer rows.Close()

	var result []grant.WithdrawalRequest
	for rows.Next() {
		var (
			w                                             grant.WithdrawalRequest
			amount, fee, net, limit, usedBefore, remAfter string
			method, details, status, expected, createdAt  string
		)
		if err := rows.Scan(
			&w.ID, &w.PrincipalID, &w.TransactionNumber, &amount, &method, &details,
			&status, &fee, &net, &w.QuarterPeriod, &limit,
			&usedBefore, &remAfter, &expected, &createdAt,
		); err != nil {
			return nil, &grant.PersistenceError{Op: "scan withdrawal", Err: err}
		}
		w.Amount = mustParse(amount)
		w.Method = grant.Method(method)
		w.MethodDetails = []byte(details)
		w.Status = grant.WithdrawalStatus(status)
		w.Fee = mustParse(fee)
		w.NetAmount = mustParse(net)
		w.QuarterLimit = mustParse(limit)
		w.QuarterUsedBefore = mustParse(usedBefore)
		w.QuarterRemainingAfter = mustParse(remAfter)
		w.ExpectedCompletion = parseDate(expected)
		w.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		result = append(result, w)
	}
	if err := rows.Err(); err != nil {
		return nil, &grant.PersistenceError{Op: "read withdrawals", Err: err}
	}
	return result, nil
}

// =============================================================================
// PIN CREDENTIAL STORE (pin.Store interface)
// =============================================================================

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Credential returns the principal's PIN row, or (nil, nil) if absent.
func (s *Store) Credential(ctx context.Context, principalID string) (*pin.Credential, error) {
	return s.credential(ctx, s.db, principalID)
}

func (s *Store) credential(ctx context.Context, db querier, principalID string) (*pin.Credential, error) {
	var (
		cred        pin.Credential
		lockedUntil sql.NullString
		createdAt   string
		updatedAt   string
	)
	err := db.QueryRowContext(ctx, `
		SELECT principal_id, pin_hash, failed_attempts, locked_until, created_at, updated_at
		FROM pin_credentials WHERE principal_id = ?`,
		principalID,
	).Scan(&cred.PrincipalID, &cred.Hash, &cred.FailedAttempts, &lockedUntil, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &grant.PersistenceError{Op: "read credential", Err: err}
	}
	if lockedUntil.Valid {
		if t, err := time.Parse(time.RFC3339, lockedUntil.String); err == nil {
			cred.LockedUntil = &t
		}
	}
	cred.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	cred.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &cred, nil
}

// Upsert creates or replaces the credential, resetting attempts and lock.
func (s *Store) Upsert(ctx context.Context, cred pin.Credential) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pin_credentials
			(principal_id, pin_hash, failed_attempts, locked_until, created_at, updated_at)
		VALUES (?, ?, 0, NULL, ?, ?)
		ON CONFLICT(principal_id) DO UPDATE SET
			pin_hash = excluded.pin_hash,
			failed_attempts = 0,
			locked_until = NULL,
			updated_at = excluded.updated_at`,
		cred.PrincipalID,
		cred.Hash,
		cred.CreatedAt.Format(time.RFC3339),
		cred.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return &grant.PersistenceError{Op: "upsert credential", Err: err}
	}
	return nil
}

// RecordFailure increments the failed-attempt counter and locks the
// credential when the new count reaches threshold. Read and write happen
// in one immediate transaction, so concurrent failures serialize.
func (s *Store) RecordFailure(ctx context.Context, principalID string, threshold int, lockFor time.Duration, now time.Time) (*pin.Credential, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &grant.PersistenceError{Op: "begin failure record", Err: err}
	}
	defer tx.Rollback()

	cred, err := s.credential(ctx, tx, principalID)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, &grant.PersistenceError{Op: "record failure", Err: sql.ErrNoRows}
	}

	cred.FailedAttempts++
	if cred.FailedAttempts >= threshold {
		until := now.Add(lockFor).UTC()
		cred.LockedUntil = &until
	}

	var lockedUntil any
	if cred.LockedUntil != nil {
		lockedUntil = cred.LockedUntil.Format(time.RFC3339)
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE pin_credentials
		SET failed_attempts = ?, locked_until = ?, updated_at = ?
		WHERE principal_id = ?`,
		cred.FailedAttempts,
		lockedUntil,
		now.UTC().Format(time.RFC3339),
		principalID,
	)
	if err != nil {
		return nil, &grant.PersistenceError{Op: "record failure", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return nil, &grant.PersistenceError{Op: "record failure", Err: err}
	}
	return cred, nil
}

// ResetAttempts zeroes the counter and clears the lock.
func (s *Store) ResetAttempts(ctx context.Context, principalID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE pin_credentials
		SET failed_attempts = 0, locked_until = NULL, updated_at = ?
		WHERE principal_id = ?`,
		time.Now().UTC().Format(time.RFC3339),
		principalID,
	)
	if err != nil {
		return &grant.PersistenceError{Op: "reset attempts", Err: err}
	}
	return nil
}

// Delete removes the credential row.
func (s *Store) Delete(ctx context.Context, principalID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM pin_credentials WHERE principal_id = ?`, principalID)
	if err != nil {
		return &grant.PersistenceError{Op: "delete credential", Err: err}
	}
	return nil
}

// =============================================================================
// SCANNING HELPERS
// =============================================================================

func scanGrant(row *sql.Row) (*grant.Grant, error) {
	var (
		g                     grant.Grant
		total, start, balance string
		q1, q2, q3, q4        string
	)
	err := row.Scan(&g.PrincipalID, &total, &start, &balance, &q1, &q2, &q3, &q4)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, grant.ErrGrantNotFound
	}
	if err != nil {
		return nil, &grant.PersistenceError{Op: "read grant", Err: err}
	}
	g.TotalAmount = mustParse(total)
	g.StartDate = parseDate(start)
	g.CurrentBalance = mustParse(balance)
	g.UsageByQuarter = [4]decimal.Decimal{mustParse(q1), mustParse(q2), mustParse(q3), mustParse(q4)}
	return &g, nil
}

func mustParse(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func parseDate(s string) grant.Date {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return grant.Date{}
	}
	return grant.DateOf(t)
}
