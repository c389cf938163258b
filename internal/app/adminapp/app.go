package adminapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Monu5641000/Telegram-bot/internal/config"
	"github.com/Monu5641000/Telegram-bot/internal/infra/telegram"
	pgrepo "github.com/Monu5641000/Telegram-bot/internal/repo/postgres"
	adminauthsvc "github.com/Monu5641000/Telegram-bot/internal/services/adminauth"
	orderssvc "github.com/Monu5641000/Telegram-bot/internal/services/orders"
	"github.com/Monu5641000/Telegram-bot/internal/services/subs"
)

// App is the admin API: payment review, subscription control and the
// content catalog, behind TOTP login.
type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	postgres   *pgxpool.Pool
	httpRouter http.Handler
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, log)

	pool, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres init: %w", err)
	}

	userRepo := pgrepo.NewUserRepo(pool)
	orderRepo := pgrepo.NewOrderRepo(pool)
	contentRepo := pgrepo.NewContentRepo(pool)

	ledger := subs.NewLedger(userRepo)
	orderService := orderssvc.NewService(orderRepo, userRepo, ledger, cfg.Content.StartRef, log)
	authService := adminauthsvc.NewService(cfg.Admin.JWTSecret, cfg.Admin.TOTPSecret, cfg.Admin.ID, cfg.Admin.TokenTTL)
	if !authService.IsConfigured() {
		log.Warn("admin auth is not fully configured, protected routes will reject all requests")
	}

	deps := Dependencies{
		AuthService:  authService,
		OrderService: orderService,
		UserRepo:     userRepo,
		ContentRepo:  contentRepo,
		Ledger:       ledger,
		Logger:       log,
	}

	// The admin API runs without a bot token in local setups; decisions
	// then apply silently.
	if cfg.Bot.Token != "" {
		bot, err := telegram.NewBot(cfg.Bot.Token)
		if err != nil {
			log.Warn("telegram init failed, user notifications disabled", zap.Error(err))
		} else {
			deps.Notifier = telegram.NewNotifier(bot, log)
		}
	}

	RegisterRoutes(r, deps)

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	return &App{
		cfg:        cfg,
		logger:     log,
		server:     server,
		postgres:   pool,
		httpRouter: r,
	}, nil
}

func (a *App) Run() error {
	a.logger.Info("admin server started", zap.String("addr", a.cfg.HTTP.Addr))
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error

	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	if a.postgres != nil {
		a.postgres.Close()
	}

	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}
