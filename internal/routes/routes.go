package routes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/kalapay/walletpay/internal/config"
	"github.com/kalapay/walletpay/internal/gateway"
	"github.com/kalapay/walletpay/internal/middleware"
	"github.com/kalapay/walletpay/internal/notification"
	"github.com/kalapay/walletpay/internal/topup"
	"github.com/kalapay/walletpay/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger

	// Gateway overrides the bank client, used by tests. Nil selects the
	// real client built from Cfg.Gateway.
	Gateway topup.Gateway
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	var walletRepo wallet.Repository
	var topupRepo topup.Repository
	if d.DB != nil {
		walletRepo = wallet.NewPostgresRepository(d.DB)
		topupRepo = topup.NewPostgresRepository(d.DB)
	} else {
		walletRepo = wallet.NewMemoryRepository()
		topupRepo = topup.NewMemoryRepository()
	}

	bank := d.Gateway
	if bank == nil {
		bank = gateway.NewClient(d.Cfg.Gateway, d.Logger)
	}

	walletSvc := wallet.NewService(walletRepo, d.Logger)
	notifier := notification.NewLoggerNotifier(d.Logger)
	topupSvc := topup.NewService(topupRepo, bank, walletSvc, notifier, d.Cfg.PublicBaseURL, d.Logger)

	walletHandler := wallet.NewHandler(walletSvc)
	topupHandler := topup.NewHandler(topupSvc, d.Cfg.FrontendBaseURL)

	api := app.Group("/api")

	// The bank posts here after the hosted payment page. No identity, no
	// Idempotency-Key: replay protection lives in the orchestrator's
	// terminal-status short-circuit.
	api.All("/wallet/payment-callback", topupHandler.PaymentCallback)

	v1 := api.Group("/v1", middleware.UserContext())
	if d.Cache != nil {
		v1.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	v1.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals(middleware.LocalRequestID).(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	RegisterWalletRoutes(v1, walletHandler)
	RegisterTopupRoutes(v1, topupHandler)

	return nil
}
