package topup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/kalapay/walletpay/internal/gateway"
	"github.com/kalapay/walletpay/internal/notification"
	"github.com/kalapay/walletpay/internal/wallet"
)

const (
	// successResCode is the bank's callback sentinel for an approved payment.
	successResCode = "0"

	// causeTopup labels ledger entries produced by settled top-ups.
	causeTopup = "Wallet Topup"

	callbackPath = "/api/wallet/payment-callback"
)

// Redirect reasons surfaced to the status page. Bank decline codes are passed
// through verbatim.
const (
	ReasonNotFound     = "not_found"
	ReasonVerify       = "verify"
	ReasonSettle       = "settle"
	ReasonWalletUpdate = "wallet_update"
	ReasonInternal     = "internal"
)

// ErrInvalidAmount rejects non-positive charge amounts before any record is created.
var ErrInvalidAmount = errors.New("amount must be a positive number")

// Gateway is the subset of the bank client the orchestrator drives.
type Gateway interface {
	RequestPayment(ctx context.Context, input gateway.PaymentInput) (gateway.RequestResult, error)
	VerifyTransaction(ctx context.Context, orderID, saleOrderID, saleReferenceID string) error
	SettleTransaction(ctx context.Context, orderID, saleOrderID, saleReferenceID string) error
}

// Service owns the top-up state machine: it creates the pending record,
// drives the gateway phases and credits the wallet exactly once per settled
// transaction.
type Service struct {
	repo     Repository
	gateway  Gateway
	wallets  *wallet.Service
	notifier notification.Notifier
	logger   *slog.Logger
	orders   *saleOrderGenerator

	callbackURL string
}

// NewService builds the orchestrator. publicBaseURL is the externally
// reachable address of this service, used to derive the bank callback URL.
func NewService(repo Repository, gw Gateway, wallets *wallet.Service, notifier notification.Notifier, publicBaseURL string, logger *slog.Logger) *Service {
	return &Service{
		repo:        repo,
		gateway:     gw,
		wallets:     wallets,
		notifier:    notifier,
		logger:      logger,
		orders:      newSaleOrderGenerator(),
		callbackURL: normalizeBaseURL(publicBaseURL) + callbackPath,
	}
}

// normalizeBaseURL strips a trailing slash and a trailing /api segment so the
// callback path is never prefixed twice.
func normalizeBaseURL(base string) string {
	base = strings.TrimSpace(base)
	base = strings.TrimSuffix(base, "/")
	base = apiSuffix.ReplaceAllString(base, "")
	return base
}

var apiSuffix = regexp.MustCompile(`(?i)/api$`)

// IntentResult is returned to the storefront after a successful charge intent.
type IntentResult struct {
	RedirectURL string
	RefID       string
	SaleOrderID SaleOrderID
}

// ChargeIntent persists a Pending record and reserves the payment with the
// bank. On success the caller redirects the payer to the bank's hosted page.
func (s *Service) ChargeIntent(ctx context.Context, userID string, amount int64) (IntentResult, error) {
	if amount <= 0 {
		return IntentResult{}, ErrInvalidAmount
	}

	saleOrderID := s.orders.Next(time.Now())
	rec, err := s.repo.Create(ctx, Record{
		UserID:      userID,
		Amount:      amount,
		Status:      StatusPending,
		SaleOrderID: saleOrderID,
	})
	if err != nil {
		return IntentResult{}, fmt.Errorf("create topup record: %w", err)
	}

	res, err := s.gateway.RequestPayment(ctx, gateway.PaymentInput{
		OrderID:        string(saleOrderID),
		Amount:         amount,
		PayerID:        userID,
		CallbackURL:    s.callbackURL,
		AdditionalData: "Topup-" + rec.ID,
	})
	if err != nil {
		s.failRecord(ctx, rec.ID, saleOrderID, "request")
		return IntentResult{}, err
	}

	if err := s.repo.SetRefID(ctx, rec.ID, res.RefID); err != nil {
		// The token is diagnostic only; the bank correlates by sale order id.
		s.logger.Error("persist topup ref id failed",
			slog.String("topup_id", rec.ID),
			slog.String("sale_order_id", string(saleOrderID)),
			slog.Any("error", err))
	}

	s.logger.Info("topup charge intent accepted",
		slog.String("topup_id", rec.ID),
		slog.String("sale_order_id", string(saleOrderID)),
		slog.Int64("amount", amount),
		slog.String("user_id", userID))

	return IntentResult{RedirectURL: res.RedirectURL, RefID: res.RefID, SaleOrderID: saleOrderID}, nil
}

// CallbackInput carries the fields the bank posts back after the hosted page.
type CallbackInput struct {
	ResCode         string
	SaleOrderID     SaleOrderID
	SaleReferenceID string
}

// CallbackOutcome is the redirect intent produced by callback handling.
// Reason is empty on success; on failure it is one of the Reason constants or
// a raw bank decline code.
type CallbackOutcome struct {
	Succeeded bool
	Reason    string
}

// HandleCallback interprets the bank's redirect and drives verify then
// settle. Every failure path is terminal for the attempt; re-delivered
// callbacks for a finalized record short-circuit without touching the ledger.
func (s *Service) HandleCallback(ctx context.Context, input CallbackInput) CallbackOutcome {
	rec, err := s.repo.GetBySaleOrderID(ctx, input.SaleOrderID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.Warn("callback for unknown sale order",
				slog.String("sale_order_id", string(input.SaleOrderID)))
			return CallbackOutcome{Reason: ReasonNotFound}
		}
		s.logger.Error("load topup by sale order failed",
			slog.String("sale_order_id", string(input.SaleOrderID)),
			slog.Any("error", err))
		return CallbackOutcome{Reason: ReasonInternal}
	}

	switch rec.Status {
	case StatusSuccess:
		s.logger.Info("callback replay for settled topup",
			slog.String("topup_id", rec.ID),
			slog.String("sale_order_id", string(input.SaleOrderID)))
		return CallbackOutcome{Succeeded: true}
	case StatusFailed:
		// The original decline code is not persisted, so a re-delivered
		// callback for a failed attempt gets the generic reason.
		return CallbackOutcome{Reason: ReasonInternal}
	}

	if input.ResCode != successResCode {
		s.logger.Info("topup declined or cancelled at bank",
			slog.String("topup_id", rec.ID),
			slog.String("sale_order_id", string(input.SaleOrderID)),
			slog.String("res_code", input.ResCode),
			slog.String("reason", gateway.ReasonFor(input.ResCode)))
		s.failRecord(ctx, rec.ID, input.SaleOrderID, "decline")
		return CallbackOutcome{Reason: input.ResCode}
	}

	orderID := string(input.SaleOrderID)
	if err := s.gateway.VerifyTransaction(ctx, orderID, orderID, input.SaleReferenceID); err != nil {
		s.logger.Error("topup verify failed",
			slog.String("topup_id", rec.ID),
			slog.String("sale_order_id", orderID),
			slog.String("sale_reference_id", input.SaleReferenceID),
			slog.Any("error", err))
		s.failRecord(ctx, rec.ID, input.SaleOrderID, "verify")
		return CallbackOutcome{Reason: ReasonVerify}
	}

	if err := s.gateway.SettleTransaction(ctx, orderID, orderID, input.SaleReferenceID); err != nil {
		s.logger.Error("topup settle failed",
			slog.String("topup_id", rec.ID),
			slog.String("sale_order_id", orderID),
			slog.String("sale_reference_id", input.SaleReferenceID),
			slog.Any("error", err))
		s.failRecord(ctx, rec.ID, input.SaleOrderID, "settle")
		return CallbackOutcome{Reason: ReasonSettle}
	}

	if err := s.repo.MarkSettled(ctx, rec.ID, input.SaleReferenceID); err != nil {
		if errors.Is(err, ErrAlreadyFinal) {
			// A concurrent callback finalized the record; defer to its outcome.
			current, ferr := s.repo.GetBySaleOrderID(ctx, input.SaleOrderID)
			if ferr == nil && current.Status == StatusSuccess {
				return CallbackOutcome{Succeeded: true}
			}
			return CallbackOutcome{Reason: ReasonInternal}
		}
		// Funds are captured but the record still reads Pending. Keep going:
		// the wallet credit is the part that matters to the user, and the
		// reference id prevents a double credit on any retry.
		s.logger.Error("mark topup settled failed",
			slog.String("topup_id", rec.ID),
			slog.String("sale_order_id", orderID),
			slog.String("sale_reference_id", input.SaleReferenceID),
			slog.Any("error", err))
		s.notifyReconciliation(ctx, rec, input, "topup record not marked settled")
	}

	referenceID := fmt.Sprintf("%s-%s", input.SaleOrderID, input.SaleReferenceID)
	if _, err := s.wallets.Credit(ctx, rec.UserID, rec.Amount, referenceID, causeTopup); err != nil {
		if errors.Is(err, wallet.ErrDuplicateReference) {
			// Already credited by an earlier delivery of this callback.
			return CallbackOutcome{Succeeded: true}
		}
		s.logger.Error("wallet credit after settle failed",
			slog.String("topup_id", rec.ID),
			slog.String("user_id", rec.UserID),
			slog.String("sale_order_id", orderID),
			slog.String("sale_reference_id", input.SaleReferenceID),
			slog.String("reference_id", referenceID),
			slog.Any("error", err))
		s.notifyReconciliation(ctx, rec, input, "settled topup missing wallet credit")
		return CallbackOutcome{Reason: ReasonWalletUpdate}
	}

	_ = s.notifier.Send(ctx, notification.Message{
		Kind:        notification.KindTopupSettled,
		Destination: rec.UserID,
		Body:        fmt.Sprintf("Wallet topup of %d settled, reference %s", rec.Amount, referenceID),
	})

	return CallbackOutcome{Succeeded: true}
}

// failRecord transitions the record to Failed, tolerating a concurrent
// finalization. Failures to persist the transition are logged, not raised:
// the caller still owes the user a definitive redirect.
func (s *Service) failRecord(ctx context.Context, id string, saleOrderID SaleOrderID, phase string) {
	if err := s.repo.MarkFailed(ctx, id); err != nil && !errors.Is(err, ErrAlreadyFinal) {
		s.logger.Error("mark topup failed",
			slog.String("topup_id", id),
			slog.String("sale_order_id", string(saleOrderID)),
			slog.String("phase", phase),
			slog.Any("error", err))
	}
}

func (s *Service) notifyReconciliation(ctx context.Context, rec Record, input CallbackInput, detail string) {
	_ = s.notifier.Send(ctx, notification.Message{
		Kind:        notification.KindReconciliationRequired,
		Destination: rec.UserID,
		Body: fmt.Sprintf("%s: topup=%s sale_order=%s sale_reference=%s amount=%d",
			detail, rec.ID, input.SaleOrderID, input.SaleReferenceID, rec.Amount),
	})
}
