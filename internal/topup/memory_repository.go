package topup

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryRepository struct {
	mu      sync.RWMutex
	records map[string]Record // keyed by record id
	bySale  map[SaleOrderID]string
}

// NewMemoryRepository constructs an in-memory repository for tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		records: make(map[string]Record),
		bySale:  make(map[SaleOrderID]string),
	}
}

func (r *memoryRepository) Create(_ context.Context, rec Record) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec.ID = uuid.NewString()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	r.records[rec.ID] = rec
	r.bySale[rec.SaleOrderID] = rec.ID
	return rec, nil
}

func (r *memoryRepository) GetBySaleOrderID(_ context.Context, saleOrderID SaleOrderID) (Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.bySale[saleOrderID]
	if !ok {
		return Record{}, ErrNotFound
	}
	return r.records[id], nil
}

func (r *memoryRepository) SetRefID(_ context.Context, id, refID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return ErrNotFound
	}
	rec.RefID = refID
	r.records[id] = rec
	return nil
}

func (r *memoryRepository) MarkFailed(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return ErrNotFound
	}
	if rec.Status != StatusPending {
		return ErrAlreadyFinal
	}
	rec.Status = StatusFailed
	r.records[id] = rec
	return nil
}

func (r *memoryRepository) MarkSettled(_ context.Context, id, saleReferenceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return ErrNotFound
	}
	if rec.Status != StatusPending {
		return ErrAlreadyFinal
	}
	rec.Status = StatusSuccess
	rec.SaleReferenceID = saleReferenceID
	r.records[id] = rec
	return nil
}

func (r *memoryRepository) FailOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var swept int64
	for id, rec := range r.records {
		if rec.Status == StatusPending && rec.CreatedAt.Before(cutoff) {
			rec.Status = StatusFailed
			r.records[id] = rec
			swept++
		}
	}
	return swept, nil
}
