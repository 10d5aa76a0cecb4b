package topup

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gofiber/fiber/v2"

	"github.com/kalapay/walletpay/internal/gateway"
)

// Handler exposes the charge intent endpoint and the bank callback.
type Handler struct {
	service     *Service
	frontendURL string
}

// NewHandler builds a top-up HTTP handler. frontendURL is the storefront base
// the payer is redirected to after the bank round-trip.
func NewHandler(service *Service, frontendURL string) *Handler {
	return &Handler{service: service, frontendURL: normalizeBaseURL(frontendURL)}
}

type chargeRequest struct {
	Amount int64 `json:"amount"`
}

type chargeResponse struct {
	Success     bool   `json:"success"`
	RedirectURL string `json:"redirect_url"`
	RefID       string `json:"ref_id"`
	SaleOrderID string `json:"sale_order_id"`
}

// ChargeIntent starts a top-up attempt for the authenticated user.
func (h *Handler) ChargeIntent(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	var req chargeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	result, err := h.service.ChargeIntent(c.UserContext(), userID, req.Amount)
	if err != nil {
		var bankErr *gateway.BankError
		switch {
		case errors.Is(err, ErrInvalidAmount):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		case errors.As(err, &bankErr), errors.Is(err, gateway.ErrUnreachable):
			return fiber.NewError(http.StatusBadGateway, err.Error())
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}

	return c.Status(http.StatusOK).JSON(chargeResponse{
		Success:     true,
		RedirectURL: result.RedirectURL,
		RefID:       result.RefID,
		SaleOrderID: string(result.SaleOrderID),
	})
}

// PaymentCallback receives the bank's redirect after the hosted payment page
// and always answers with a redirect to the storefront status page. Raw bank
// payloads never surface to the payer.
func (h *Handler) PaymentCallback(c *fiber.Ctx) error {
	input := CallbackInput{
		ResCode:         formOrQuery(c, "ResCode"),
		SaleOrderID:     SaleOrderID(formOrQuery(c, "SaleOrderId")),
		SaleReferenceID: formOrQuery(c, "SaleReferenceId"),
	}

	outcome := h.service.HandleCallback(c.UserContext(), input)
	if outcome.Succeeded {
		return c.Redirect(h.frontendURL+"/wallet?status=success", http.StatusFound)
	}
	return c.Redirect(
		fmt.Sprintf("%s/wallet?status=failure&reason=%s", h.frontendURL, url.QueryEscape(outcome.Reason)),
		http.StatusFound,
	)
}

// formOrQuery reads a field from the POST body, falling back to the query
// string. Banks differ in whether the callback is a POST or a GET redirect.
func formOrQuery(c *fiber.Ctx, key string) string {
	if v := c.FormValue(key); v != "" {
		return v
	}
	return c.Query(key)
}
