package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"resellerd/internal/billing"
	"resellerd/internal/handler"
	"resellerd/internal/handler/api"
	"resellerd/internal/middleware"
	"resellerd/internal/payment"
	"resellerd/internal/pkg/telegram"
	"resellerd/internal/provision"
	"resellerd/internal/repository"
	"resellerd/internal/suspension"
)

// Deps carries the shared components the routes are built from.
type Deps struct {
	DB         *gorm.DB
	Repos      *api.Repos
	Engine     *billing.Engine
	Adapter    *provision.Adapter
	Machine    *suspension.Machine
	Reconciler *payment.Reconciler
	Starsefar  *payment.StarsefarGateway
	Tetra98    *payment.Tetra98Gateway
	Deduper    middleware.CallbackDeduper
	Notifier   *telegram.Notifier
	Logger     *zap.Logger

	APIKey      string
	CallbackURL string
}

// Setup configures all routes for the Echo server.
func Setup(e *echo.Echo, d *Deps) {
	// Global middleware
	e.Use(echomw.Recover())
	e.Use(middleware.CORS())

	gateways := map[string]payment.Gateway{
		d.Starsefar.Name(): d.Starsefar,
		d.Tetra98.Name():   d.Tetra98,
	}

	resellerHandler := api.NewResellerHandler(d.Repos, d.Machine, d.Logger)
	configHandler := api.NewConfigHandler(d.Repos, d.Engine, d.Adapter, d.Machine, d.Logger)
	paymentHandler := api.NewPaymentHandler(d.Repos, gateways, d.CallbackURL, d.Logger)

	callbackHandler := handler.NewPaymentCallbackHandler(
		d.Repos.Transaction,
		d.Repos.Setting,
		d.Starsefar,
		d.Tetra98,
		d.Reconciler,
		d.Deduper,
		d.Notifier,
		d.Logger,
	)

	// Operator API, all action-dispatched POSTs behind token auth.
	apiGroup := e.Group("/api")
	apiGroup.Use(middleware.APIAuth(d.APIKey))
	apiGroup.POST("/resellers", resellerHandler.Handle)
	apiGroup.POST("/configs", configHandler.Handle)
	apiGroup.POST("/payments", paymentHandler.Handle)
	apiGroup.POST("/payments/card/approve", callbackHandler.CardApprove)

	// Gateway callbacks are verified against the gateway itself, not the
	// token header.
	paymentGroup := e.Group("/payment")
	paymentGroup.POST("/starsefar/callback", callbackHandler.StarsefarCallback)
	paymentGroup.POST("/tetra98/callback", callbackHandler.Tetra98Callback)

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})
}

// NewRepos builds the repository bundle from a database handle.
func NewRepos(db *gorm.DB) *api.Repos {
	return &api.Repos{
		Reseller:    repository.NewResellerRepository(db),
		Config:      repository.NewConfigRepository(db),
		Ledger:      repository.NewLedgerRepository(db),
		Transaction: repository.NewTransactionRepository(db),
		Panel:       repository.NewPanelRepository(db),
		Setting:     repository.NewSettingRepository(db),
		Event:       repository.NewEventRepository(db),
	}
}
