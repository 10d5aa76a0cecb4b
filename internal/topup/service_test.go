package topup

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kalapay/walletpay/internal/gateway"
	"github.com/kalapay/walletpay/internal/logging"
	"github.com/kalapay/walletpay/internal/notification"
	"github.com/kalapay/walletpay/internal/wallet"
)

// scriptedGateway simulates the bank without network I/O.
type scriptedGateway struct {
	refID      string
	requestErr error
	verifyErr  error
	settleErr  error

	requestCalls int
	verifyCalls  int
	settleCalls  int
}

func (g *scriptedGateway) RequestPayment(_ context.Context, input gateway.PaymentInput) (gateway.RequestResult, error) {
	g.requestCalls++
	if g.requestErr != nil {
		return gateway.RequestResult{}, g.requestErr
	}
	return gateway.RequestResult{
		RefID:       g.refID,
		RedirectURL: "https://bank.example.com/startpay?RefId=" + g.refID,
	}, nil
}

func (g *scriptedGateway) VerifyTransaction(_ context.Context, _, _, _ string) error {
	g.verifyCalls++
	return g.verifyErr
}

func (g *scriptedGateway) SettleTransaction(_ context.Context, _, _, _ string) error {
	g.settleCalls++
	return g.settleErr
}

type fixture struct {
	repo    Repository
	gateway *scriptedGateway
	wallets *wallet.Service
	service *Service
}

func newFixture(gw *scriptedGateway) *fixture {
	logger := logging.Discard()
	repo := NewMemoryRepository()
	wallets := wallet.NewService(wallet.NewMemoryRepository(), logger)
	notifier := notification.NewLoggerNotifier(logger)
	svc := NewService(repo, gw, wallets, notifier, "https://shop.example.com/api/", logger)
	return &fixture{repo: repo, gateway: gw, wallets: wallets, service: svc}
}

func TestChargeIntentRejectsNonPositiveAmount(t *testing.T) {
	f := newFixture(&scriptedGateway{refID: "998877"})

	for _, amount := range []int64{0, -1} {
		if _, err := f.service.ChargeIntent(context.Background(), "7", amount); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("amount %d: expected ErrInvalidAmount, got %v", amount, err)
		}
	}
	if f.gateway.requestCalls != 0 {
		t.Fatal("gateway called for invalid amount")
	}
}

func TestChargeIntentHappyPath(t *testing.T) {
	f := newFixture(&scriptedGateway{refID: "998877"})
	ctx := context.Background()

	res, err := f.service.ChargeIntent(ctx, "7", 50000)
	if err != nil {
		t.Fatalf("charge intent: %v", err)
	}
	if res.RefID != "998877" {
		t.Fatalf("unexpected ref id %q", res.RefID)
	}
	if res.RedirectURL == "" {
		t.Fatal("expected redirect url")
	}

	rec, err := f.repo.GetBySaleOrderID(ctx, res.SaleOrderID)
	if err != nil {
		t.Fatalf("load record: %v", err)
	}
	if rec.Status != StatusPending {
		t.Fatalf("expected Pending, got %s", rec.Status)
	}
	if rec.RefID != "998877" {
		t.Fatalf("ref id not persisted: %q", rec.RefID)
	}
	if rec.Amount != 50000 || rec.UserID != "7" {
		t.Fatalf("record fields wrong: %+v", rec)
	}
}

func TestChargeIntentGatewayFailureMarksFailed(t *testing.T) {
	f := newFixture(&scriptedGateway{requestErr: &gateway.BankError{Code: "25"}})
	ctx := context.Background()

	_, err := f.service.ChargeIntent(ctx, "7", 50000)
	var bankErr *gateway.BankError
	if !errors.As(err, &bankErr) {
		t.Fatalf("expected bank error, got %v", err)
	}

	// The only record in the repository must be Failed.
	swept, _ := f.repo.FailOlderThan(ctx, time.Now().Add(time.Hour))
	if swept != 0 {
		t.Fatal("record was left Pending after gateway failure")
	}
}

func settledCallback(t *testing.T, f *fixture, userID string, amount int64) (SaleOrderID, CallbackOutcome) {
	t.Helper()
	ctx := context.Background()
	res, err := f.service.ChargeIntent(ctx, userID, amount)
	if err != nil {
		t.Fatalf("charge intent: %v", err)
	}
	outcome := f.service.HandleCallback(ctx, CallbackInput{
		ResCode:         "0",
		SaleOrderID:     res.SaleOrderID,
		SaleReferenceID: "REF1",
	})
	return res.SaleOrderID, outcome
}

func TestCallbackHappyPath(t *testing.T) {
	f := newFixture(&scriptedGateway{refID: "998877"})
	ctx := context.Background()

	saleOrderID, outcome := settledCallback(t, f, "7", 50000)
	if !outcome.Succeeded {
		t.Fatalf("expected success, got reason %q", outcome.Reason)
	}
	if f.gateway.verifyCalls != 1 || f.gateway.settleCalls != 1 {
		t.Fatalf("expected one verify and one settle, got %d/%d", f.gateway.verifyCalls, f.gateway.settleCalls)
	}

	rec, err := f.repo.GetBySaleOrderID(ctx, saleOrderID)
	if err != nil {
		t.Fatalf("load record: %v", err)
	}
	if rec.Status != StatusSuccess {
		t.Fatalf("expected Success, got %s", rec.Status)
	}
	if rec.SaleReferenceID != "REF1" {
		t.Fatalf("sale reference not persisted: %q", rec.SaleReferenceID)
	}

	balance, err := f.wallets.BalanceOf(ctx, "7")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Amount != 50000 {
		t.Fatalf("expected balance 50000, got %d", balance.Amount)
	}

	entries, err := f.wallets.Entries(ctx, "7")
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one ledger entry, got %d", len(entries))
	}
	wantRef := fmt.Sprintf("%s-REF1", saleOrderID)
	if entries[0].ReferenceID != wantRef {
		t.Fatalf("expected reference %q, got %q", wantRef, entries[0].ReferenceID)
	}
	if entries[0].Type != wallet.EntryAdd || entries[0].Cause != "Wallet Topup" {
		t.Fatalf("unexpected entry: %+v", entries[0])
	}
}

func TestCallbackIdempotentAfterSuccess(t *testing.T) {
	f := newFixture(&scriptedGateway{refID: "998877"})
	ctx := context.Background()

	saleOrderID, outcome := settledCallback(t, f, "7", 50000)
	if !outcome.Succeeded {
		t.Fatalf("first callback failed: %q", outcome.Reason)
	}

	replay := f.service.HandleCallback(ctx, CallbackInput{
		ResCode:         "0",
		SaleOrderID:     saleOrderID,
		SaleReferenceID: "REF1",
	})
	if !replay.Succeeded {
		t.Fatalf("replay should succeed, got reason %q", replay.Reason)
	}
	if f.gateway.verifyCalls != 1 || f.gateway.settleCalls != 1 {
		t.Fatal("replay must not hit the gateway again")
	}

	balance, _ := f.wallets.BalanceOf(ctx, "7")
	if balance.Amount != 50000 {
		t.Fatalf("replay credited the wallet twice: %d", balance.Amount)
	}
	entries, _ := f.wallets.Entries(ctx, "7")
	if len(entries) != 1 {
		t.Fatalf("expected one ledger entry after replay, got %d", len(entries))
	}
}

// recordingNotifier captures messages instead of logging them.
type recordingNotifier struct {
	messages []notification.Message
}

func (n *recordingNotifier) Send(_ context.Context, m notification.Message) error {
	n.messages = append(n.messages, m)
	return nil
}

// failingWalletRepository rejects every posting with a storage error.
type failingWalletRepository struct{}

func (failingWalletRepository) Apply(context.Context, string, int64, wallet.EntryType, string, string) (wallet.Balance, error) {
	return wallet.Balance{}, errors.New("wallet storage unavailable")
}

func (failingWalletRepository) BalanceOf(context.Context, string) (wallet.Balance, error) {
	return wallet.Balance{}, wallet.ErrNotFound
}

func (failingWalletRepository) Entries(context.Context, string) ([]wallet.LedgerEntry, error) {
	return nil, nil
}

func TestCallbackWalletCreditFailureAfterSettle(t *testing.T) {
	gw := &scriptedGateway{refID: "998877"}
	repo := NewMemoryRepository()
	wallets := wallet.NewService(failingWalletRepository{}, logging.Discard())
	notifier := &recordingNotifier{}
	svc := NewService(repo, gw, wallets, notifier, "https://shop.example.com", logging.Discard())
	ctx := context.Background()

	res, err := svc.ChargeIntent(ctx, "7", 50000)
	if err != nil {
		t.Fatalf("charge intent: %v", err)
	}

	outcome := svc.HandleCallback(ctx, CallbackInput{
		ResCode:         "0",
		SaleOrderID:     res.SaleOrderID,
		SaleReferenceID: "REF1",
	})
	if outcome.Succeeded || outcome.Reason != ReasonWalletUpdate {
		t.Fatalf("expected wallet_update failure, got %+v", outcome)
	}

	// Funds were captured at the bank, so the record stays Success even
	// though the wallet credit did not land.
	rec, err := repo.GetBySaleOrderID(ctx, res.SaleOrderID)
	if err != nil {
		t.Fatalf("load record: %v", err)
	}
	if rec.Status != StatusSuccess {
		t.Fatalf("expected Success, got %s", rec.Status)
	}
	if rec.SaleReferenceID != "REF1" {
		t.Fatalf("sale reference not persisted: %q", rec.SaleReferenceID)
	}

	var reconciliations int
	for _, m := range notifier.messages {
		if m.Kind == notification.KindReconciliationRequired {
			reconciliations++
		}
	}
	if reconciliations != 1 {
		t.Fatalf("expected one reconciliation notification, got %d", reconciliations)
	}
}

func TestCallbackReplayAfterDecline(t *testing.T) {
	f := newFixture(&scriptedGateway{refID: "998877"})
	ctx := context.Background()

	res, err := f.service.ChargeIntent(ctx, "7", 50000)
	if err != nil {
		t.Fatalf("charge intent: %v", err)
	}
	first := f.service.HandleCallback(ctx, CallbackInput{
		ResCode:     "17",
		SaleOrderID: res.SaleOrderID,
	})
	if first.Succeeded {
		t.Fatal("decline must not succeed")
	}

	replay := f.service.HandleCallback(ctx, CallbackInput{
		ResCode:         "0",
		SaleOrderID:     res.SaleOrderID,
		SaleReferenceID: "REF1",
	})
	if replay.Succeeded || replay.Reason != ReasonInternal {
		t.Fatalf("replay on failed record must answer %q, got %+v", ReasonInternal, replay)
	}
	if f.gateway.verifyCalls != 0 || f.gateway.settleCalls != 0 {
		t.Fatal("replay on failed record must not reach the gateway")
	}
	if balance, _ := f.wallets.BalanceOf(ctx, "7"); balance.Amount != 0 {
		t.Fatalf("replay on failed record credited the wallet: %d", balance.Amount)
	}
}

func TestCallbackUserDeclined(t *testing.T) {
	f := newFixture(&scriptedGateway{refID: "998877"})
	ctx := context.Background()

	res, err := f.service.ChargeIntent(ctx, "7", 50000)
	if err != nil {
		t.Fatalf("charge intent: %v", err)
	}

	outcome := f.service.HandleCallback(ctx, CallbackInput{
		ResCode:     "17",
		SaleOrderID: res.SaleOrderID,
	})
	if outcome.Succeeded {
		t.Fatal("decline must not succeed")
	}
	if outcome.Reason != "17" {
		t.Fatalf("expected reason 17, got %q", outcome.Reason)
	}
	if f.gateway.verifyCalls != 0 || f.gateway.settleCalls != 0 {
		t.Fatal("decline must not proceed to verify or settle")
	}

	rec, _ := f.repo.GetBySaleOrderID(ctx, res.SaleOrderID)
	if rec.Status != StatusFailed {
		t.Fatalf("expected Failed, got %s", rec.Status)
	}
	if balance, _ := f.wallets.BalanceOf(ctx, "7"); balance.Amount != 0 {
		t.Fatalf("wallet mutated on decline: %d", balance.Amount)
	}
}

func TestCallbackVerifyFailure(t *testing.T) {
	f := newFixture(&scriptedGateway{refID: "998877", verifyErr: &gateway.BankError{Code: "44"}})
	ctx := context.Background()

	res, _ := f.service.ChargeIntent(ctx, "7", 50000)
	outcome := f.service.HandleCallback(ctx, CallbackInput{
		ResCode:         "0",
		SaleOrderID:     res.SaleOrderID,
		SaleReferenceID: "REF1",
	})
	if outcome.Reason != ReasonVerify {
		t.Fatalf("expected verify reason, got %q", outcome.Reason)
	}
	if f.gateway.settleCalls != 0 {
		t.Fatal("settle must not run after verify failure")
	}
	rec, _ := f.repo.GetBySaleOrderID(ctx, res.SaleOrderID)
	if rec.Status != StatusFailed {
		t.Fatalf("expected Failed, got %s", rec.Status)
	}
}

func TestCallbackSettleFailure(t *testing.T) {
	f := newFixture(&scriptedGateway{refID: "998877", settleErr: &gateway.BankError{Code: "46"}})
	ctx := context.Background()

	res, _ := f.service.ChargeIntent(ctx, "7", 50000)
	outcome := f.service.HandleCallback(ctx, CallbackInput{
		ResCode:         "0",
		SaleOrderID:     res.SaleOrderID,
		SaleReferenceID: "REF1",
	})
	if outcome.Reason != ReasonSettle {
		t.Fatalf("expected settle reason, got %q", outcome.Reason)
	}

	rec, _ := f.repo.GetBySaleOrderID(ctx, res.SaleOrderID)
	if rec.Status != StatusFailed {
		t.Fatalf("expected Failed, got %s", rec.Status)
	}
	// Settle never captured funds, so the wallet must stay untouched.
	if balance, _ := f.wallets.BalanceOf(ctx, "7"); balance.Amount != 0 {
		t.Fatalf("wallet mutated on settle failure: %d", balance.Amount)
	}
}

func TestCallbackUnknownSaleOrder(t *testing.T) {
	f := newFixture(&scriptedGateway{refID: "998877"})

	outcome := f.service.HandleCallback(context.Background(), CallbackInput{
		ResCode:         "0",
		SaleOrderID:     "9999999999999999",
		SaleReferenceID: "REF1",
	})
	if outcome.Succeeded || outcome.Reason != ReasonNotFound {
		t.Fatalf("expected not_found, got %+v", outcome)
	}
	if f.gateway.verifyCalls != 0 {
		t.Fatal("unknown sale order must not reach the gateway")
	}
}

func TestStatusMonotonicity(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	rec, err := repo.Create(ctx, Record{UserID: "7", Amount: 100, Status: StatusPending, SaleOrderID: "1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := repo.MarkSettled(ctx, rec.ID, "REF1"); err != nil {
		t.Fatalf("mark settled: %v", err)
	}
	if err := repo.MarkFailed(ctx, rec.ID); !errors.Is(err, ErrAlreadyFinal) {
		t.Fatalf("Success record accepted a Failed transition: %v", err)
	}
	if err := repo.MarkSettled(ctx, rec.ID, "REF2"); !errors.Is(err, ErrAlreadyFinal) {
		t.Fatalf("Success record accepted a second settle: %v", err)
	}

	got, _ := repo.GetBySaleOrderID(ctx, "1")
	if got.Status != StatusSuccess || got.SaleReferenceID != "REF1" {
		t.Fatalf("terminal record mutated: %+v", got)
	}
}

func TestSweeperFailsOnlyStalePending(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	stale, _ := repo.Create(ctx, Record{UserID: "7", Amount: 100, Status: StatusPending, SaleOrderID: "old", CreatedAt: time.Now().Add(-3 * time.Hour)})
	fresh, _ := repo.Create(ctx, Record{UserID: "7", Amount: 100, Status: StatusPending, SaleOrderID: "new", CreatedAt: time.Now()})
	done, _ := repo.Create(ctx, Record{UserID: "7", Amount: 100, Status: StatusPending, SaleOrderID: "done", CreatedAt: time.Now().Add(-3 * time.Hour)})
	if err := repo.MarkSettled(ctx, done.ID, "REF1"); err != nil {
		t.Fatalf("mark settled: %v", err)
	}

	sweeper := NewSweeper(repo, 2*time.Hour, time.Minute, logging.Discard())
	sweeper.sweep(ctx)

	if rec, _ := repo.GetBySaleOrderID(ctx, stale.SaleOrderID); rec.Status != StatusFailed {
		t.Fatalf("stale pending not swept: %s", rec.Status)
	}
	if rec, _ := repo.GetBySaleOrderID(ctx, fresh.SaleOrderID); rec.Status != StatusPending {
		t.Fatalf("fresh pending swept: %s", rec.Status)
	}
	if rec, _ := repo.GetBySaleOrderID(ctx, done.SaleOrderID); rec.Status != StatusSuccess {
		t.Fatalf("settled record swept: %s", rec.Status)
	}
}

func TestNormalizeBaseURL(t *testing.T) {
	cases := map[string]string{
		"https://shop.example.com":      "https://shop.example.com",
		"https://shop.example.com/":     "https://shop.example.com",
		"https://shop.example.com/api":  "https://shop.example.com",
		"https://shop.example.com/api/": "https://shop.example.com",
		"https://shop.example.com/API":  "https://shop.example.com",
	}
	for in, want := range cases {
		if got := normalizeBaseURL(in); got != want {
			t.Fatalf("normalizeBaseURL(%q) = %q, want %q", in, got, want)
		}
	}
}
