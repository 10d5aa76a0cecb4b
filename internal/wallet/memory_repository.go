package wallet

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryRepository struct {
	mu       sync.RWMutex
	balances map[string]Balance      // keyed by user id
	entries  map[string][]LedgerEntry // keyed by wallet id
	refs     map[string]bool
}

// NewMemoryRepository constructs an in-memory repository for tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		balances: make(map[string]Balance),
		entries:  make(map[string][]LedgerEntry),
		refs:     make(map[string]bool),
	}
}

func (r *memoryRepository) Apply(_ context.Context, userID string, amount int64, entryType EntryType, cause, referenceID string) (Balance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.refs[referenceID] {
		return Balance{}, ErrDuplicateReference
	}

	b, ok := r.balances[userID]
	if !ok {
		b = Balance{ID: uuid.NewString(), UserID: userID}
	}

	switch entryType {
	case EntryAdd:
		b.Amount += amount
	case EntrySubtract:
		if b.Amount < amount {
			return Balance{}, ErrInsufficientFunds
		}
		b.Amount -= amount
	}

	now := time.Now().UTC()
	b.LastTransactionDate = now
	r.balances[userID] = b
	r.entries[b.ID] = append(r.entries[b.ID], LedgerEntry{
		ID:          uuid.NewString(),
		WalletID:    b.ID,
		Amount:      amount,
		Type:        entryType,
		Date:        now,
		Cause:       cause,
		ReferenceID: referenceID,
	})
	r.refs[referenceID] = true
	return b, nil
}

func (r *memoryRepository) BalanceOf(_ context.Context, userID string) (Balance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.balances[userID]
	if !ok {
		return Balance{}, ErrNotFound
	}
	return b, nil
}

func (r *memoryRepository) Entries(_ context.Context, userID string) ([]LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.balances[userID]
	if !ok {
		return nil, nil
	}
	out := make([]LedgerEntry, len(r.entries[b.ID]))
	copy(out, r.entries[b.ID])
	return out, nil
}
