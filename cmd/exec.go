package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ticket-marketplace/config"
	"ticket-marketplace/internal/auth"
	"ticket-marketplace/internal/handlers"
	"ticket-marketplace/internal/notify"
	"ticket-marketplace/internal/services"
	"ticket-marketplace/internal/services/checkout"
	"ticket-marketplace/internal/services/checkout/sandbox"
	"ticket-marketplace/internal/services/checkout/stripe"
	"ticket-marketplace/internal/store/pbstore"
	"ticket-marketplace/internal/telemetry"
	_ "ticket-marketplace/migrations"
	"ticket-marketplace/monitoring"
	"ticket-marketplace/security"
	"ticket-marketplace/utils"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

const version = "2.0.0"

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:  cfg.ServiceName,
		Version:      version,
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.OTLPEndpoint,
	})
	if err != nil {
		return err
	}

	// Redis is optional: it backs the settlement lock and the rate limiter.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = utils.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			slog.Warn("redis unavailable, continuing without it", "error", err)
			redisClient = nil
		}
	}

	var notifier notify.Notifier = notify.Nop{}
	var pubnubNotifier *notify.PubNubNotifier
	if cfg.PubNubPublishKey != "" {
		pubnubNotifier = notify.NewPubNub(notify.PubNubConfig{
			PublishKey:   cfg.PubNubPublishKey,
			SubscribeKey: cfg.PubNubSubscribeKey,
			SecretKey:    cfg.PubNubSecretKey,
			UserID:       cfg.PubNubUserID,
		})
		notifier = pubnubNotifier
	}

	provider, sb, err := newProvider(cfg)
	if err != nil {
		return err
	}

	verifier, err := newVerifier(app, cfg)
	if err != nil {
		return err
	}

	// Initialize services
	st := pbstore.New(app)
	monitor := monitoring.NewMonitor()

	settlementCfg := services.SettlementConfig{
		ClientURL: cfg.ClientURL,
		Currency:  cfg.CheckoutCurrency,
		LockTTL:   cfg.SettlementLockTTL,
	}
	if redisClient != nil {
		settlementCfg.Locker = services.NewRedisLocker(redisClient)
	}

	userService := services.NewUserService(st)
	catalogService := services.NewCatalogService(st, monitor, notifier)
	bookingService := services.NewBookingService(st, monitor, notifier)
	settlementService := services.NewSettlementService(st, provider, settlementCfg, monitor, notifier)
	reportService := services.NewReportService(st)

	var rdb redis.Cmdable
	if redisClient != nil {
		rdb = redisClient
	}

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: cfg.IsDevelopment(),
	})

	app.RootCmd.AddCommand(settleCommand(settlementService))

	// Setup graceful shutdown
	go handleShutdown(cancel)

	rt := &routes{
		verifier:      verifier,
		roles:         userService,
		metrics:       cfg.EnableMetrics,
		webhooks:      cfg.StripeWebhookSecret != "",
		sandboxRoutes: sb != nil && cfg.IsDevelopment(),
		health:        handlers.NewHealthHandler(st, rdb),
		tickets:       handlers.NewTicketHandler(catalogService, userService),
		bookings:      handlers.NewBookingHandler(bookingService, userService),
		admin:         handlers.NewAdminHandler(catalogService, userService, reportService),
		users:         handlers.NewUserHandler(userService),
		reports:       handlers.NewReportHandler(reportService, userService),
		payments:      handlers.NewPaymentHandler(settlementService, userService, cfg.StripeWebhookSecret, sb),
	}
	if redisClient != nil {
		rt.limiter = security.NewRateLimiter(redisClient, cfg.RateLimitPerMinute)
	}

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		rt.register(e.Router)

		slog.Info("server routes registered",
			"provider", provider.Name(),
			"auth", cfg.AuthProviders,
			"redis", redisClient != nil,
		)

		return e.Next()
	})

	app.OnTerminate().BindFunc(func(e *core.TerminateEvent) error {
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()

		if pubnubNotifier != nil {
			if err := pubnubNotifier.Close(shutdownCtx); err != nil {
				slog.Error("notification queue not drained", "error", err)
			}
		}
		if err := shutdownTracing(shutdownCtx); err != nil {
			slog.Error("tracer shutdown", "error", err)
		}
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				slog.Error("redis close", "error", err)
			}
		}
		return e.Next()
	})

	// Serve on the configured port when no command is given
	if len(os.Args) == 1 {
		app.RootCmd.SetArgs([]string{"serve", "--http=0.0.0.0:" + cfg.Port})
	}

	return app.Start()
}

// newProvider returns the configured checkout provider. The sandbox provider
// is also returned on its own so its hosted page can be mounted.
func newProvider(cfg *config.Config) (checkout.Provider, *sandbox.Provider, error) {
	switch checkout.ProviderName(cfg.PaymentProvider) {
	case checkout.ProviderStripe:
		client, err := stripe.New(stripe.Config{
			SecretKey: cfg.StripeSecretKey,
			BaseURL:   cfg.StripeBaseURL,
			Timeout:   cfg.PaymentTimeout,
		})
		if err != nil {
			return nil, nil, err
		}
		return client, nil, nil
	case checkout.ProviderSandbox:
		if !cfg.IsDevelopment() {
			slog.Warn("sandbox checkout provider outside development", "environment", cfg.Environment)
		}
		sb := sandbox.New(fmt.Sprintf("http://localhost:%s/dev/checkout", cfg.Port))
		return sb, sb, nil
	default:
		return nil, nil, fmt.Errorf("unknown payment provider %q", cfg.PaymentProvider)
	}
}

func newVerifier(app core.App, cfg *config.Config) (auth.Verifier, error) {
	var chain auth.Chain
	for _, name := range cfg.AuthProviders {
		switch name {
		case "pocketbase":
			chain = append(chain, auth.NewPocketBaseVerifier(app))
		case "jwt":
			v, err := auth.NewJWTVerifier(auth.JWTConfig{
				Secret:   cfg.AuthJWTSecret,
				Issuer:   cfg.AuthJWTIssuer,
				Audience: cfg.AuthJWTAudience,
				Leeway:   30 * time.Second,
			})
			if err != nil {
				return nil, err
			}
			chain = append(chain, v)
		default:
			return nil, fmt.Errorf("unknown auth provider %q", name)
		}
	}
	if len(chain) == 0 {
		return nil, errors.New("no auth provider configured")
	}
	return chain, nil
}

// settleCommand confirms a checkout session from the command line, for
// sessions whose webhook and success redirect were both lost.
func settleCommand(settlement *services.SettlementService) *cobra.Command {
	return &cobra.Command{
		Use:   "settle <sessionId>",
		Short: "Confirm settlement of a completed checkout session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()

			res, err := settlement.ConfirmSettlement(ctx, args[0])
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	slog.Info("shutdown signal received, cleaning up")
	cancel()
}
