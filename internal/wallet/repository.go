package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound indicates no wallet exists for the user yet.
	ErrNotFound = errors.New("wallet not found")

	// ErrInsufficientFunds occurs when a debit exceeds the available balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrDuplicateReference indicates a ledger entry with the same reference
	// identifier was already appended, so the posting must not repeat.
	ErrDuplicateReference = errors.New("duplicate ledger reference")
)

// Repository persists wallet balances and their append-only ledger.
type Repository interface {
	// Apply atomically adjusts the user's balance and appends the matching
	// ledger entry, creating the wallet at zero when absent.
	Apply(ctx context.Context, userID string, amount int64, entryType EntryType, cause, referenceID string) (Balance, error)
	BalanceOf(ctx context.Context, userID string) (Balance, error)
	Entries(ctx context.Context, userID string) ([]LedgerEntry, error)
}

// PostgresRepository stores wallets and ledger entries in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Apply serializes the read-modify-write of the balance row with a row-level
// lock so concurrent postings for the same user accumulate instead of
// overwriting each other. The balance update and the entry append share one
// transaction; a unique index on reference_id rejects replayed postings.
func (r *PostgresRepository) Apply(ctx context.Context, userID string, amount int64, entryType EntryType, cause, referenceID string) (Balance, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Balance{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	walletID, current, err := lockWallet(ctx, tx, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		walletID = uuid.New()
		current = 0
		if _, err := tx.Exec(ctx, `INSERT INTO user_wallets (id, user_id, balance, last_transaction_date)
            VALUES ($1, $2, 0, $3)`, walletID, userID, time.Now().UTC()); err != nil {
			return Balance{}, err
		}
	} else if err != nil {
		return Balance{}, err
	}

	updated := current
	switch entryType {
	case EntryAdd:
		updated += amount
	case EntrySubtract:
		if current < amount {
			return Balance{}, ErrInsufficientFunds
		}
		updated -= amount
	}

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx, `UPDATE user_wallets SET balance = $1, last_transaction_date = $2 WHERE id = $3`,
		updated, now, walletID); err != nil {
		return Balance{}, err
	}

	if _, err := tx.Exec(ctx, `INSERT INTO wallet_ledger_entries (id, wallet_id, amount, entry_type, entry_date, cause, reference_id)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.New(), walletID, amount, string(entryType), now, cause, referenceID); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Balance{}, ErrDuplicateReference
		}
		return Balance{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Balance{}, err
	}

	return Balance{ID: walletID.String(), UserID: userID, Amount: updated, LastTransactionDate: now}, nil
}

// BalanceOf fetches the user's wallet record.
func (r *PostgresRepository) BalanceOf(ctx context.Context, userID string) (Balance, error) {
	row := r.db.QueryRow(ctx, `SELECT id, balance, last_transaction_date FROM user_wallets WHERE user_id = $1`, userID)
	var id uuid.UUID
	var b Balance
	if err := row.Scan(&id, &b.Amount, &b.LastTransactionDate); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Balance{}, ErrNotFound
		}
		return Balance{}, err
	}
	b.ID = id.String()
	b.UserID = userID
	b.LastTransactionDate = b.LastTransactionDate.UTC()
	return b, nil
}

// Entries lists the user's ledger entries, newest first.
func (r *PostgresRepository) Entries(ctx context.Context, userID string) ([]LedgerEntry, error) {
	rows, err := r.db.Query(ctx, `SELECT e.id, e.wallet_id, e.amount, e.entry_type, e.entry_date, e.cause, e.reference_id
        FROM wallet_ledger_entries e
        INNER JOIN user_wallets w ON w.id = e.wallet_id
        WHERE w.user_id = $1
        ORDER BY e.entry_date DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []LedgerEntry
	for rows.Next() {
		var id, walletID uuid.UUID
		var entryType string
		var e LedgerEntry
		if err := rows.Scan(&id, &walletID, &e.Amount, &entryType, &e.Date, &e.Cause, &e.ReferenceID); err != nil {
			return nil, err
		}
		e.ID = id.String()
		e.WalletID = walletID.String()
		e.Type = EntryType(entryType)
		e.Date = e.Date.UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func lockWallet(ctx context.Context, tx pgx.Tx, userID string) (uuid.UUID, int64, error) {
	const query = `SELECT id, balance FROM user_wallets WHERE user_id = $1 FOR UPDATE`
	var id uuid.UUID
	var balance int64
	if err := tx.QueryRow(ctx, query, userID).Scan(&id, &balance); err != nil {
		return uuid.Nil, 0, err
	}
	return id, balance, nil
}
