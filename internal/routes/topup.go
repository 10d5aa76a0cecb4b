package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kalapay/walletpay/internal/topup"
)

// RegisterTopupRoutes wires the storefront-facing charge intent endpoint.
func RegisterTopupRoutes(r fiber.Router, h *topup.Handler) {
	r.Post("/wallet/topup", h.ChargeIntent)
}
