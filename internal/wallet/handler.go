package wallet

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes wallet HTTP endpoints for the storefront.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type debitRequest struct {
	Amount      int64  `json:"amount"`
	ReferenceID string `json:"reference_id"`
	Cause       string `json:"cause"`
}

type balanceResponse struct {
	UserID              string `json:"user_id"`
	Balance             int64  `json:"balance"`
	LastTransactionDate string `json:"last_transaction_date,omitempty"`
}

type entryResponse struct {
	ID          string `json:"id"`
	Amount      int64  `json:"amount"`
	Type        string `json:"type"`
	Date        string `json:"date"`
	Cause       string `json:"cause"`
	ReferenceID string `json:"reference_id"`
}

// Balance returns the caller's wallet balance.
func (h *Handler) Balance(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	balance, err := h.service.BalanceOf(c.UserContext(), userID)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	resp := balanceResponse{UserID: userID, Balance: balance.Amount}
	if !balance.LastTransactionDate.IsZero() {
		resp.LastTransactionDate = balance.LastTransactionDate.Format(time.RFC3339)
	}
	return c.Status(http.StatusOK).JSON(resp)
}

// Entries returns the caller's ledger history.
func (h *Handler) Entries(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	entries, err := h.service.Entries(c.UserContext(), userID)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryResponse{
			ID:          e.ID,
			Amount:      e.Amount,
			Type:        string(e.Type),
			Date:        e.Date.Format(time.RFC3339),
			Cause:       e.Cause,
			ReferenceID: e.ReferenceID,
		})
	}
	return c.Status(http.StatusOK).JSON(out)
}

// Debit spends stored value, typically when an order is paid from the wallet.
func (h *Handler) Debit(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	var req debitRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	balance, err := h.service.Debit(c.UserContext(), userID, req.Amount, req.ReferenceID, req.Cause)
	if err != nil {
		switch {
		case errors.Is(err, ErrInsufficientFunds):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrDuplicateReference):
			return fiber.NewError(http.StatusConflict, err.Error())
		default:
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}

	return c.Status(http.StatusOK).JSON(balanceResponse{UserID: userID, Balance: balance.Amount})
}
