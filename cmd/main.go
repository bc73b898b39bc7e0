package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"invoicehub/docs"
	"invoicehub/internal/caching"
	"invoicehub/internal/common"
	"invoicehub/internal/config"
	"invoicehub/internal/handlers"
	"invoicehub/internal/jobs"
	"invoicehub/internal/middleware"
	"invoicehub/internal/models"
	"invoicehub/internal/repositories"
	"invoicehub/internal/services"
	"invoicehub/pkg/database"
	"invoicehub/pkg/logger"
	"invoicehub/pkg/metrics"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.uber.org/zap"
)

var version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "invoicehub",
		Short:         "Multi-tenant invoicing API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("INVOICEHUB_CONFIG"), "path to a TOML config file")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, err := setup(configPath)
				if err != nil {
					return err
				}
				defer logger.L().Sync() //nolint:errcheck
				return serve(cmd.Context(), cfg)
			},
		},
		newMigrateCmd(&configPath),
		&cobra.Command{
			Use:   "version",
			Short: "Print the build version",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintln(cmd.OutOrStdout(), version)
			},
		},
	)
	return root
}

func newMigrateCmd(configPath *string) *cobra.Command {
	var down bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := setup(*configPath)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			pool, err := database.NewPool(ctx, cfg.Database.URL, 2)
			if err != nil {
				return err
			}
			defer pool.Close()

			m := database.NewMigrator(pool)
			if down {
				name, err := m.Down(ctx)
				if err != nil {
					return err
				}
				logger.L().Info("rolled back migration", zap.String("name", name))
				return nil
			}
			ran, err := m.Up(ctx)
			if err != nil {
				return err
			}
			logger.L().Info("migrations complete", zap.Int("applied", len(ran)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "roll back the most recent migration")
	return cmd
}

func setup(configPath string) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if _, err := logger.Init(cfg.Log); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	if cfg.Database.URL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	return cfg, nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	log := logger.L()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.NewPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	redisClient, err := caching.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return err
	}
	defer redisClient.Close()
	cacheSvc := caching.NewRedisCacheService(redisClient)

	storage, err := services.NewMinioStorage(cfg.Minio.Endpoint, cfg.Minio.AccessKey, cfg.Minio.SecretKey, cfg.Minio.Bucket, cfg.Minio.UseSSL)
	if err != nil {
		return fmt.Errorf("init object storage: %w", err)
	}
	if err := storage.EnsureBucket(ctx); err != nil {
		log.Warn("object storage unavailable, PDF export will fail", zap.Error(err))
	}

	var jwks *keyfunc.JWKS
	if cfg.Auth.JWKSURL != "" {
		jwks, err = keyfunc.Get(cfg.Auth.JWKSURL, keyfunc.Options{
			RefreshInterval:   time.Hour,
			RefreshRateLimit:  5 * time.Minute,
			RefreshUnknownKID: true,
			RefreshErrorHandler: func(err error) {
				log.Warn("jwks refresh failed", zap.Error(err))
			},
		})
		if err != nil {
			return fmt.Errorf("load jwks: %w", err)
		}
		defer jwks.EndBackground()
	}

	var mailer services.Mailer
	if cfg.SMTP.Host != "" {
		mailer = services.NewSMTPMailer(cfg.SMTP)
	} else {
		log.Warn("SMTP_HOST not set, emails are written to the log")
		mailer = services.NewLogMailer(!cfg.IsProduction())
	}
	var sms services.SMSSender
	if cfg.SMS.APIURL != "" {
		sms = services.NewHTTPSMSSender(cfg.SMS)
	}

	// Repositories
	userRepo := repositories.NewUserRepo(pool)
	tenantRepo := repositories.NewTenantRepo(pool)
	customerRepo := repositories.NewCustomerRepo(pool)
	taxRepo := repositories.NewTaxRepo(pool)
	invoiceRepo := repositories.NewInvoiceRepo(pool)
	auditLogsRepo := repositories.NewAuditLogsRepo(pool)

	// Services
	auditSvc := services.NewAuditLogsService(auditLogsRepo)
	rbacSvc := services.NewRBACService()
	tenantSvc := services.NewTenantService(tenantRepo, cacheSvc, auditSvc)
	authSvc := services.NewAuthService(userRepo, tenantRepo, tenantSvc, cacheSvc, auditSvc, cfg.Auth)
	notifier := services.NewNotificationService(mailer, sms)
	passwordReset := services.NewPasswordResetService(userRepo, cacheSvc, notifier, auditSvc, services.PasswordResetConfig{
		PublicBaseURL:   cfg.Server.PublicBaseURL,
		BcryptCost:      cfg.Auth.BcryptCost,
		SessionTTL:      cfg.Auth.SessionTTL,
		RequestsPerHour: cfg.Auth.ResetRequestsPerHour,
	})
	numbering := services.NewNumberingService(invoiceRepo)
	customerSvc := services.NewCustomerService(customerRepo, auditSvc)
	taxSvc := services.NewTaxService(taxRepo, auditSvc)
	invoiceSvc := services.NewInvoiceService(invoiceRepo, customerRepo, taxRepo, tenantSvc, numbering, notifier, auditSvc, cfg.Server.PublicBaseURL)
	documentSvc := services.NewInvoiceDocumentService(invoiceRepo, customerRepo, tenantSvc, storage)
	gateway := services.NewRazorpayGateway(cfg.Razorpay.WebhookSecret)

	// Middleware
	publicLimiter := middleware.NewIPRateLimiter(cfg.RateLimit.PublicRPS, cfg.RateLimit.PublicBurst)
	rbac := middleware.NewRBACMiddleware(rbacSvc)
	auditMW := middleware.NewAuditMiddleware(auditSvc)
	versionMW := middleware.NewVersionMiddleware(version)
	authenticated := middleware.Authenticated(
		middleware.SessionConfig(cfg.Auth.JWTSecret, jwks),
		middleware.NewSessionGuard(authSvc),
	)

	// Handlers
	authHandlers := handlers.NewAuthHandlers(authSvc, passwordReset)
	customerHandlers := handlers.NewCustomerHandlers(customerSvc)
	taxHandlers := handlers.NewTaxHandlers(taxSvc)
	invoiceHandlers := handlers.NewInvoiceHandlers(invoiceSvc, documentSvc)
	auditHandlers := handlers.NewAuditLogsHandlers(auditSvc)
	tenantHandlers := handlers.NewTenantHandlers(tenantSvc)
	webhookHandlers := handlers.NewWebhookHandlers(gateway, invoiceSvc)
	healthHandlers := handlers.NewHealthHandlers(version, map[string]handlers.Pinger{
		"database": pool,
		"redis":    cacheSvc,
		"storage":  handlers.PingFunc(storage.EnsureBucket),
	})

	scheduler, err := jobs.NewJobScheduler(passwordReset, publicLimiter)
	if err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop() //nolint:errcheck

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = common.HTTPErrorHandler
	e.Validator = common.NewRequestValidator()
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout

	e.Use(middleware.RequestID())
	e.Use(logger.Middleware())
	e.Use(metrics.Middleware())
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORS())
	e.Use(echoMiddleware.BodyLimit("2M"))

	e.GET("/health", healthHandlers.HealthCheck)
	e.GET("/health/live", healthHandlers.LivenessCheck)
	e.GET("/metrics", metrics.Handler())
	docs.SwaggerInfo.Version = version
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	v1 := versionMW.VersionRoute(e, "v1")

	auth := v1.Group("/auth")
	auth.POST("/signup", authHandlers.Signup, publicLimiter.Middleware())
	auth.POST("/login", authHandlers.Login, publicLimiter.Middleware())
	auth.POST("/forgot-password", authHandlers.ForgotPassword, publicLimiter.Middleware())
	auth.POST("/reset-password", authHandlers.ResetPassword, publicLimiter.Middleware())
	auth.POST("/logout", authHandlers.Logout, authenticated...)
	auth.GET("/me", authHandlers.Me, authenticated...)
	auth.POST("/onboard", authHandlers.Onboard, authenticated...)

	v1.GET("/public/invoices/:id", invoiceHandlers.ViewPublicInvoice, publicLimiter.Middleware())
	v1.POST("/webhooks/razorpay", webhookHandlers.RazorpayWebhook)

	protected := v1.Group("", authenticated...)

	protected.GET("/customers", customerHandlers.ListCustomers, rbac.RequireCapability(models.CapCustomersRead))
	protected.POST("/customers", customerHandlers.CreateCustomer, rbac.RequireCapability(models.CapCustomersWrite))
	protected.GET("/customers/:id", customerHandlers.GetCustomer, rbac.RequireCapability(models.CapCustomersRead))

	protected.GET("/taxes", taxHandlers.ListTaxes, rbac.RequireCapability(models.CapTaxesRead))
	protected.POST("/taxes", taxHandlers.CreateTax, rbac.RequireCapability(models.CapTaxesWrite))
	protected.GET("/taxes/:id", taxHandlers.GetTax, rbac.RequireCapability(models.CapTaxesRead))
	protected.PUT("/taxes/:id", taxHandlers.UpdateTax, rbac.RequireCapability(models.CapTaxesWrite))
	protected.DELETE("/taxes/:id", taxHandlers.DeleteTax, rbac.RequireCapability(models.CapTaxesWrite))

	protected.GET("/invoices", invoiceHandlers.ListInvoices, rbac.RequireCapability(models.CapInvoicesRead))
	protected.POST("/invoices", invoiceHandlers.CreateInvoice, rbac.RequireCapability(models.CapInvoicesWrite))
	protected.GET("/invoices/:id", invoiceHandlers.GetInvoice, rbac.RequireCapability(models.CapInvoicesRead))
	protected.DELETE("/invoices/:id", invoiceHandlers.DeleteInvoice, rbac.RequireCapability(models.CapInvoicesWrite))
	protected.POST("/invoices/:id/send", invoiceHandlers.SendInvoice, rbac.RequireCapability(models.CapInvoicesSend))
	protected.GET("/invoices/:id/payments", invoiceHandlers.ListPayments, rbac.RequireCapability(models.CapInvoicesRead))
	protected.POST("/invoices/:id/payments", invoiceHandlers.RecordPayment, rbac.RequireCapability(models.CapPaymentsRecord))
	protected.GET("/invoices/:id/pdf", invoiceHandlers.ExportInvoice, rbac.RequireCapability(models.CapInvoicesRead))

	protected.GET("/audit-logs", auditHandlers.ListAuditLogs, rbac.RequireCapability(models.CapAuditRead))

	admin := protected.Group("/admin", rbac.RequireCapability(models.CapTenantsManage), auditMW.AuditAdminRequest())
	admin.GET("/tenants", tenantHandlers.ListTenants)
	admin.GET("/tenants/:id", tenantHandlers.GetTenant)
	admin.PATCH("/tenants/:id/status", tenantHandlers.ChangeTenantStatus)
	admin.GET("/audit-logs", auditHandlers.ListAuditLogs)

	errCh := make(chan error, 1)
	go func() {
		log.Info("invoicehub listening", zap.String("port", cfg.Server.Port), zap.String("version", version),
			zap.String("environment", cfg.Server.Environment))
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
