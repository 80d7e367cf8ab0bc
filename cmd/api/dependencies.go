package api

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	authhandler "github.com/FACorreiaa/storelink-api/internal/domain/auth/handler"
	authservice "github.com/FACorreiaa/storelink-api/internal/domain/auth/service"
	"github.com/FACorreiaa/storelink-api/internal/domain/dashboard"
	dashboardhandler "github.com/FACorreiaa/storelink-api/internal/domain/dashboard/handler"
	"github.com/FACorreiaa/storelink-api/internal/domain/guard"
	"github.com/FACorreiaa/storelink-api/internal/domain/order"
	orderhandler "github.com/FACorreiaa/storelink-api/internal/domain/order/handler"
	"github.com/FACorreiaa/storelink-api/internal/domain/payment"
	paymenthandler "github.com/FACorreiaa/storelink-api/internal/domain/payment/handler"
	"github.com/FACorreiaa/storelink-api/internal/domain/profiles"
	profilehandler "github.com/FACorreiaa/storelink-api/internal/domain/profiles/handler"
	"github.com/FACorreiaa/storelink-api/internal/domain/referral"
	referralhandler "github.com/FACorreiaa/storelink-api/internal/domain/referral/handler"
	"github.com/FACorreiaa/storelink-api/internal/domain/store"
	storehandler "github.com/FACorreiaa/storelink-api/internal/domain/store/handler"
	"github.com/FACorreiaa/storelink-api/internal/domain/subscription"
	subscriptionhandler "github.com/FACorreiaa/storelink-api/internal/domain/subscription/handler"
	"github.com/FACorreiaa/storelink-api/internal/types"
	"github.com/FACorreiaa/storelink-api/pkg/config"
	"github.com/FACorreiaa/storelink-api/pkg/db"
	"github.com/FACorreiaa/storelink-api/pkg/observability"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config  *config.Config
	DB      *db.DB
	Logger  *slog.Logger
	Metrics *observability.Metrics

	sqlDB *sql.DB

	// Repositories
	ProfileRepo  profiles.Repository
	ReferralRepo referral.Repository
	StoreRepo    store.Repository
	OrderRepo    order.Repository
	PaymentRepo  payment.Repository

	// Services
	DashboardCache  *dashboard.Cache
	AuthService     *authservice.AuthService
	ProfileSvc      profiles.Service
	SubscriptionSvc subscription.Service
	ReferralSvc     referral.Service
	StoreSvc        store.Service
	OrderSvc        order.Service
	DashboardSvc    dashboard.Service
	PaymentSvc      payment.Service
	Guard           *guard.Guard

	// Handlers
	AuthHandler         *authhandler.AuthHandler
	ProfileHandler      *profilehandler.ProfileHandler
	SubscriptionHandler *subscriptionhandler.SubscriptionHandler
	ReferralHandler     *referralhandler.ReferralHandler
	PaymentHandler      *paymenthandler.PaymentHandler
	StoreHandler        *storehandler.StoreHandler
	OrderHandler        *orderhandler.OrderHandler
	DashboardHandler    *dashboardhandler.DashboardHandler
}

// InitDependencies initializes all application dependencies
func InitDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	if err := deps.initRepositories(); err != nil {
		return nil, fmt.Errorf("failed to init repositories: %w", err)
	}

	if err := deps.initServices(); err != nil {
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	if err := deps.initHandlers(); err != nil {
		return nil, fmt.Errorf("failed to init handlers: %w", err)
	}

	logger.Info("all dependencies initialized successfully")

	return deps, nil
}

// initDatabase initializes the database connection and runs migrations
func (d *Dependencies) initDatabase() error {
	database, err := OpenDatabase(d.Config, d.Logger)
	if err != nil {
		return err
	}

	d.DB = database

	if err := d.DB.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

// OpenDatabase opens the pool with the configured limits. The CLI reuses it for
// migrate and referral commands.
func OpenDatabase(cfg *config.Config, logger *slog.Logger) (*db.DB, error) {
	return db.New(db.Config{
		DSN:             cfg.Database.DSN(),
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}, logger)
}

// initRepositories initializes all repository layer dependencies
func (d *Dependencies) initRepositories() error {
	sqlDB := d.DB.SQLDB()
	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("failed to ping sql DB: %w", err)
	}

	d.sqlDB = sqlDB
	d.ProfileRepo = profiles.NewPostgresProfileRepo(d.DB.Pool, d.Logger)
	d.ReferralRepo = referral.NewRepositoryImpl(d.DB.Pool, d.Logger)
	d.StoreRepo = store.NewRepositoryImpl(d.DB.Pool, d.Logger)
	d.OrderRepo = order.NewRepositoryImpl(d.DB.Pool, d.Logger)
	d.PaymentRepo = payment.NewPostgresPaymentRepository(sqlDB)

	d.Logger.Info("repositories initialized")
	return nil
}

// initServices initializes all service layer dependencies
func (d *Dependencies) initServices() error {
	auth := d.Config.Auth
	jwtSecret := []byte(auth.JWTSecret)
	if len(jwtSecret) == 0 {
		return fmt.Errorf("jwt secret is required")
	}

	d.Metrics = observability.NewMetrics(prometheus.DefaultRegisterer)

	// The dashboard cache is shared by every service that mutates what the dashboard shows.
	d.DashboardCache = dashboard.NewCache(d.Config.Cache.DashboardTTL, d.Config.Cache.CleanupInterval)

	d.ProfileSvc = profiles.NewProfilesService(d.ProfileRepo, d.Logger)
	d.SubscriptionSvc = subscription.NewSubscriptionService(d.ProfileRepo, d.DashboardCache, d.Metrics, d.Logger)
	d.ReferralSvc = referral.NewReferralService(d.ReferralRepo, d.DashboardCache, d.Metrics, d.Logger)
	d.StoreSvc = store.NewStoreService(d.StoreRepo, d.SubscriptionSvc, d.ProfileSvc, d.DashboardCache, d.Logger)
	d.OrderSvc = order.NewOrderService(d.OrderRepo, d.StoreSvc, d.DashboardCache, d.Metrics, d.Logger)
	d.DashboardSvc = dashboard.NewDashboardService(d.DashboardCache, d.SubscriptionSvc, d.StoreRepo, d.OrderRepo, d.Logger)

	prices, err := planPrices(d.Config.Payment.PlanPrices)
	if err != nil {
		return err
	}
	pay := d.Config.Payment
	gateway := payment.NewRazorpayClient(pay.BaseURL, pay.KeyID, pay.KeySecret, pay.Timeout)
	d.PaymentSvc = payment.NewPaymentService(gateway, d.PaymentRepo, d.SubscriptionSvc, prices,
		pay.KeyID, pay.KeySecret, d.Metrics, d.Logger)

	tokens := authservice.NewTokenManager(jwtSecret, auth.JWTIssuer, auth.JWTAudience)
	sessionStore := authservice.NewSessionStore([]byte(auth.SessionSecret), int(auth.SessionMaxAge.Seconds()), auth.SecureCookies)
	d.AuthService = authservice.NewAuthService(tokens, d.ProfileSvc, sessionStore, auth.SessionName, d.Logger)

	d.Guard = guard.New(d.StoreSvc, d.Metrics, d.Logger)

	d.Logger.Info("services initialized")
	return nil
}

func planPrices(raw map[string]int64) (map[types.Plan]int64, error) {
	prices := make(map[types.Plan]int64, len(raw))
	for name, price := range raw {
		plan, err := types.ParsePlan(name)
		if err != nil {
			return nil, fmt.Errorf("payment.plan_prices: %w", err)
		}
		if price <= 0 {
			return nil, fmt.Errorf("payment.plan_prices: %s must be positive", name)
		}
		prices[plan] = price
	}
	return prices, nil
}

// initHandlers initializes all handler dependencies
func (d *Dependencies) initHandlers() error {
	d.AuthHandler = authhandler.NewAuthHandler(d.AuthService)
	d.ProfileHandler = profilehandler.NewProfileHandler(d.ProfileSvc)
	d.SubscriptionHandler = subscriptionhandler.NewSubscriptionHandler(d.SubscriptionSvc)
	d.ReferralHandler = referralhandler.NewReferralHandler(d.ReferralSvc)
	d.PaymentHandler = paymenthandler.NewPaymentHandler(d.PaymentSvc)
	d.StoreHandler = storehandler.NewStoreHandler(d.StoreSvc)
	d.OrderHandler = orderhandler.NewOrderHandler(d.OrderSvc)
	d.DashboardHandler = dashboardhandler.NewDashboardHandler(d.DashboardSvc)
	d.Logger.Info("handlers initialized")
	return nil
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.sqlDB != nil {
		d.sqlDB.Close()
	}
	if d.DB != nil {
		d.DB.Close()
	}
	d.Logger.Info("cleanup completed")
}
