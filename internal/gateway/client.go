package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/kalapay/walletpay/internal/config"
)

// ErrUnreachable reports a transport-level failure talking to the bank:
// timeout, DNS, TLS or a non-2xx HTTP status. It is distinct from a BankError,
// which is a decoded business rejection.
var ErrUnreachable = errors.New("gateway unreachable")

// settledAlreadyCode is returned by the settle phase when the transaction was
// settled by an earlier request. The bank documents it as a benign outcome.
const settledAlreadyCode = 45

// PaymentInput carries the merchant-side inputs of the request phase.
type PaymentInput struct {
	OrderID        string
	Amount         int64
	PayerID        string
	CallbackURL    string
	AdditionalData string
}

// RequestResult is the successful outcome of the request phase.
type RequestResult struct {
	RefID       string
	RedirectURL string
}

// Client performs the three protocol phases against the bank endpoint. All
// calls are blocking network I/O bounded by the configured timeout.
type Client struct {
	cfg    config.Gateway
	http   *resty.Client
	logger *slog.Logger
	now    func() time.Time
}

// NewClient builds a bank gateway client from merchant configuration.
func NewClient(cfg config.Gateway, logger *slog.Logger) *Client {
	httpClient := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "text/xml; charset=utf-8").
		SetHeader("SOAPAction", "")

	return &Client{cfg: cfg, http: httpClient, logger: logger, now: time.Now}
}

// RequestPayment posts the first protocol phase. On success the returned
// RefID identifies the reservation and RedirectURL points the payer at the
// bank's hosted payment page.
func (c *Client) RequestPayment(ctx context.Context, input PaymentInput) (RequestResult, error) {
	envelope := EncodePayRequest(PayFields{
		TerminalID:     c.cfg.TerminalID,
		Username:       c.cfg.Username,
		Password:       c.cfg.Password,
		OrderID:        input.OrderID,
		Amount:         input.Amount,
		PayerID:        input.PayerID,
		CallbackURL:    input.CallbackURL,
		AdditionalData: input.AdditionalData,
	}, c.now())

	body, err := c.post(ctx, envelope)
	if err != nil {
		return RequestResult{}, err
	}

	token, err := DecodeResponse(body)
	if err != nil {
		var bankErr *BankError
		if errors.As(err, &bankErr) {
			c.logger.Warn("payment request rejected",
				slog.String("order_id", input.OrderID),
				slog.String("code", bankErr.Code),
				slog.String("reason", ReasonFor(bankErr.Code)))
		}
		return RequestResult{}, err
	}

	c.logger.Info("payment request accepted",
		slog.String("order_id", input.OrderID),
		slog.String("ref_id", token))

	return RequestResult{
		RefID:       token,
		RedirectURL: fmt.Sprintf("%s?RefId=%s", c.cfg.PaymentPageURL, token),
	}, nil
}

// VerifyTransaction posts the second phase, confirming the reservation the
// bank reported on its callback. The bank mandates this step before settle.
func (c *Client) VerifyTransaction(ctx context.Context, orderID, saleOrderID, saleReferenceID string) error {
	envelope := EncodeVerifyRequest(c.transactionFields(orderID, saleOrderID, saleReferenceID))

	body, err := c.post(ctx, envelope)
	if err != nil {
		return err
	}

	code, err := DecodeResultCode(body)
	if err != nil {
		return err
	}
	if code != 0 {
		c.logger.Warn("verify rejected",
			slog.String("sale_order_id", saleOrderID),
			slog.Int("code", code),
			slog.String("reason", ReasonFor(strconv.Itoa(code))))
		return &BankError{Code: strconv.Itoa(code)}
	}
	return nil
}

// SettleTransaction posts the third phase, which captures the funds. Result
// code 45 means an earlier settle already captured them and is treated as
// success.
func (c *Client) SettleTransaction(ctx context.Context, orderID, saleOrderID, saleReferenceID string) error {
	envelope := EncodeSettleRequest(c.transactionFields(orderID, saleOrderID, saleReferenceID))

	body, err := c.post(ctx, envelope)
	if err != nil {
		return err
	}

	code, err := DecodeResultCode(body)
	if err != nil {
		return err
	}
	switch code {
	case 0:
		return nil
	case settledAlreadyCode:
		c.logger.Info("settle reported transaction already settled",
			slog.String("sale_order_id", saleOrderID))
		return nil
	default:
		c.logger.Warn("settle rejected",
			slog.String("sale_order_id", saleOrderID),
			slog.Int("code", code),
			slog.String("reason", ReasonFor(strconv.Itoa(code))))
		return &BankError{Code: strconv.Itoa(code)}
	}
}

func (c *Client) transactionFields(orderID, saleOrderID, saleReferenceID string) TransactionFields {
	return TransactionFields{
		TerminalID:      c.cfg.TerminalID,
		Username:        c.cfg.Username,
		Password:        c.cfg.Password,
		OrderID:         orderID,
		SaleOrderID:     saleOrderID,
		SaleReferenceID: saleReferenceID,
	}
}

func (c *Client) post(ctx context.Context, envelope string) (string, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(envelope).
		Post(c.cfg.EndpointURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("%w: http status %d", ErrUnreachable, resp.StatusCode())
	}
	return string(resp.Body()), nil
}
