package topup

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound indicates no record matches the requested sale order id.
	ErrNotFound = errors.New("topup not found")

	// ErrAlreadyFinal indicates a status change was refused because the
	// record already left Pending. Terminal states are immutable.
	ErrAlreadyFinal = errors.New("topup already finalized")
)

// Repository persists top-up records.
type Repository interface {
	Create(ctx context.Context, rec Record) (Record, error)
	GetBySaleOrderID(ctx context.Context, saleOrderID SaleOrderID) (Record, error)
	SetRefID(ctx context.Context, id, refID string) error
	MarkFailed(ctx context.Context, id string) error
	MarkSettled(ctx context.Context, id, saleReferenceID string) error
	// FailOlderThan marks Pending records created before the cutoff as
	// Failed, returning how many were swept.
	FailOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// PostgresRepository stores top-up records in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new record and assigns its identifier.
func (r *PostgresRepository) Create(ctx context.Context, rec Record) (Record, error) {
	id := uuid.New()
	rec.ID = id.String()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.Exec(ctx, `INSERT INTO wallet_topups (id, user_id, amount, status, sale_order_id, ref_id, sale_reference_id, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, rec.UserID, rec.Amount, string(rec.Status), string(rec.SaleOrderID), rec.RefID, rec.SaleReferenceID, rec.CreatedAt)
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// GetBySaleOrderID fetches the record correlated with a bank callback.
func (r *PostgresRepository) GetBySaleOrderID(ctx context.Context, saleOrderID SaleOrderID) (Record, error) {
	row := r.db.QueryRow(ctx, `SELECT id, user_id, amount, status, sale_order_id, ref_id, sale_reference_id, created_at
        FROM wallet_topups WHERE sale_order_id = $1`, string(saleOrderID))

	var id uuid.UUID
	var status, saleOrder string
	var rec Record
	if err := row.Scan(&id, &rec.UserID, &rec.Amount, &status, &saleOrder, &rec.RefID, &rec.SaleReferenceID, &rec.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	rec.ID = id.String()
	rec.Status = Status(status)
	rec.SaleOrderID = SaleOrderID(saleOrder)
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, nil
}

// SetRefID stores the gateway-issued reference token from the request phase.
func (r *PostgresRepository) SetRefID(ctx context.Context, id, refID string) error {
	recID, err := uuid.Parse(id)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `UPDATE wallet_topups SET ref_id = $1 WHERE id = $2`, refID, recID)
	return err
}

// MarkFailed transitions a Pending record to Failed. The status guard in the
// statement keeps terminal records immutable.
func (r *PostgresRepository) MarkFailed(ctx context.Context, id string) error {
	return r.finalize(ctx, id, `UPDATE wallet_topups SET status = 'Failed' WHERE id = $1 AND status = 'Pending'`)
}

// MarkSettled transitions a Pending record to Success and stores the bank's
// settlement reference.
func (r *PostgresRepository) MarkSettled(ctx context.Context, id, saleReferenceID string) error {
	recID, err := uuid.Parse(id)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, `UPDATE wallet_topups SET status = 'Success', sale_reference_id = $1
        WHERE id = $2 AND status = 'Pending'`, saleReferenceID, recID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyFinal
	}
	return nil
}

// FailOlderThan sweeps abandoned Pending records.
func (r *PostgresRepository) FailOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `UPDATE wallet_topups SET status = 'Failed'
        WHERE status = 'Pending' AND created_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresRepository) finalize(ctx context.Context, id, query string) error {
	recID, err := uuid.Parse(id)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, query, recID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyFinal
	}
	return nil
}
