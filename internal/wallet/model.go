package wallet

import "time"

// EntryType labels the direction of a ledger entry.
type EntryType string

const (
	// EntryAdd credits the wallet balance.
	EntryAdd EntryType = "Add"
	// EntrySubtract debits the wallet balance.
	EntrySubtract EntryType = "Subtract"
)

// Balance is the per-user stored value record, created lazily on first
// credit. Its amount always equals the sum of Add entries minus the sum of
// Subtract entries for the owning user.
type Balance struct {
	ID                  string
	UserID              string
	Amount              int64
	LastTransactionDate time.Time
}

// LedgerEntry is the immutable audit record of a single credit or debit.
// Entries are append-only; nothing ever edits or removes one.
type LedgerEntry struct {
	ID          string
	WalletID    string
	Amount      int64
	Type        EntryType
	Date        time.Time
	Cause       string
	ReferenceID string
}
