package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// CauseOrderPayment is the default cause label for storefront debits.
const CauseOrderPayment = "Order Payment"

// Service exposes wallet ledger operations.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService builds a wallet service instance.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Credit adds funds to the user's wallet, creating it when absent, and
// appends the matching Add ledger entry. The reference identifier
// deduplicates replayed credits for the same settlement.
func (s *Service) Credit(ctx context.Context, userID string, amount int64, referenceID, cause string) (Balance, error) {
	if amount <= 0 {
		return Balance{}, fmt.Errorf("amount must be positive")
	}
	if referenceID == "" {
		return Balance{}, fmt.Errorf("reference id is required")
	}

	balance, err := s.repo.Apply(ctx, userID, amount, EntryAdd, cause, referenceID)
	if err != nil {
		if errors.Is(err, ErrDuplicateReference) {
			return Balance{}, err
		}
		s.logger.Error("wallet credit failed",
			slog.String("user_id", userID),
			slog.Int64("amount", amount),
			slog.String("reference_id", referenceID),
			slog.Any("error", err))
		return Balance{}, err
	}

	s.logger.Info("wallet credited",
		slog.String("user_id", userID),
		slog.Int64("amount", amount),
		slog.Int64("balance", balance.Amount),
		slog.String("reference_id", referenceID))
	return balance, nil
}

// Debit subtracts funds from the user's wallet and appends the matching
// Subtract ledger entry. Used by the order domain when a purchase is paid
// from stored value.
func (s *Service) Debit(ctx context.Context, userID string, amount int64, referenceID, cause string) (Balance, error) {
	if amount <= 0 {
		return Balance{}, fmt.Errorf("amount must be positive")
	}
	if referenceID == "" {
		referenceID = uuid.NewString()
	}
	if cause == "" {
		cause = CauseOrderPayment
	}

	balance, err := s.repo.Apply(ctx, userID, amount, EntrySubtract, cause, referenceID)
	if err != nil {
		return Balance{}, err
	}

	s.logger.Info("wallet debited",
		slog.String("user_id", userID),
		slog.Int64("amount", amount),
		slog.Int64("balance", balance.Amount),
		slog.String("reference_id", referenceID))
	return balance, nil
}

// BalanceOf returns the user's balance. Users who never topped up read as a
// zero balance; the wallet row itself is only created on first posting.
func (s *Service) BalanceOf(ctx context.Context, userID string) (Balance, error) {
	balance, err := s.repo.BalanceOf(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return Balance{UserID: userID}, nil
	}
	return balance, err
}

// Entries lists the user's ledger history.
func (s *Service) Entries(ctx context.Context, userID string) ([]LedgerEntry, error) {
	return s.repo.Entries(ctx, userID)
}
