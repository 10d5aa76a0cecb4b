package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kalapay/walletpay/internal/wallet"
)

// RegisterWalletRoutes wires wallet balance and ledger endpoints.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler) {
	r.Get("/wallet", h.Balance)
	r.Get("/wallet/transactions", h.Entries)
	r.Post("/wallet/debit", h.Debit)
}
