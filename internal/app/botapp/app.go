package botapp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minio/minio-go/v7"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Monu5641000/Telegram-bot/internal/config"
	s3infra "github.com/Monu5641000/Telegram-bot/internal/infra/s3"
	tginfra "github.com/Monu5641000/Telegram-bot/internal/infra/telegram"
	"github.com/Monu5641000/Telegram-bot/internal/jobs/sweep"
	pgrepo "github.com/Monu5641000/Telegram-bot/internal/repo/postgres"
	redrepo "github.com/Monu5641000/Telegram-bot/internal/repo/redis"
	"github.com/Monu5641000/Telegram-bot/internal/services/cursor"
	orderssvc "github.com/Monu5641000/Telegram-bot/internal/services/orders"
	planssvc "github.com/Monu5641000/Telegram-bot/internal/services/plans"
	"github.com/Monu5641000/Telegram-bot/internal/services/screenshots"
	"github.com/Monu5641000/Telegram-bot/internal/services/subs"
)

// Handler-facing seams. The update handlers only see these, so their behavior
// is testable without Telegram or the databases behind them.
type userStore interface {
	GetOrCreate(ctx context.Context, userID, startRef int64) (pgrepo.UserRecord, error)
	Find(ctx context.Context, userID int64) (pgrepo.UserRecord, error)
}

type accessLedger interface {
	CheckAccess(ctx context.Context, userID int64) (subs.Access, error)
}

type contentEngine interface {
	Advance(ctx context.Context, userID, current int64, dir cursor.Direction) (cursor.Delivery, error)
	DeliverCurrent(ctx context.Context, userID, current int64) (cursor.Delivery, error)
}

type planCatalog interface {
	Keyboard(demoUsed bool) []planssvc.Button
	Select(ctx context.Context, userID int64, planName string) (planssvc.Selection, error)
}

type orderIntake interface {
	Create(ctx context.Context, userID int64, amount int, screenshotKey string, grantDays int) (pgrepo.OrderRecord, error)
}

type pendingStore interface {
	Get(ctx context.Context, userID int64) (redrepo.PendingRecord, error)
	Clear(ctx context.Context, userID int64) error
}

type screenshotStore interface {
	Put(ctx context.Context, id string, body io.Reader, size int64, contentType string) (string, error)
}

type chatSender interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendPhoto(ctx context.Context, chatID int64, name string, photo []byte, caption string) error
	SendPlanKeyboard(ctx context.Context, chatID int64, text string, plans []tginfra.PlanButton) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
	AnswerCallbackAlert(ctx context.Context, callbackID, text string) error
	Withdraw(ctx context.Context, chatID int64, messageID int) error
	DownloadPhoto(ctx context.Context, fileID string) (io.ReadCloser, int64, string, string, error)
}

// channelResolver delivers a channel message to the user and reports the
// resulting chat message id. Missing or deleted channel messages surface as
// errors, which is exactly what the cursor engine treats as a gap.
type channelResolver struct {
	bot       *tginfra.Bot
	channelID int64
}

func (r channelResolver) Resolve(ctx context.Context, userID, ref int64) (int, error) {
	return r.bot.Deliver(ctx, userID, r.channelID, ref)
}

type App struct {
	cfg      config.Config
	logger   *zap.Logger
	postgres *pgxpool.Pool
	redis    *goredis.Client
	s3       *minio.Client
	bot      *tginfra.Bot

	chat    chatSender
	users   userStore
	pending pendingStore
	ledger  accessLedger
	engine  contentEngine
	plans   planCatalog
	orders  orderIntake
	storage screenshotStore

	sweepJob *sweep.Job
}

func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}
	if strings.TrimSpace(cfg.Bot.Token) == "" {
		return nil, fmt.Errorf("bot token is empty")
	}

	pool, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN)
	if err != nil {
		return nil, fmt.Errorf("init postgres for bot app: %w", err)
	}

	bot, err := tginfra.NewBot(cfg.Bot.Token)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}

	var s3Client *minio.Client
	if c, err := s3infra.NewClient(cfg.S3.Endpoint, cfg.S3.AccessKey, cfg.S3.SecretKey, cfg.S3.UseSSL); err != nil {
		logger.Warn("s3 init failed, screenshots will be rejected", zap.Error(err))
	} else {
		s3Client = c
	}

	redisClient := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)

	userRepo := pgrepo.NewUserRepo(pool)
	orderRepo := pgrepo.NewOrderRepo(pool)
	pendingRepo := redrepo.NewPendingRepo(redisClient)

	ledger := subs.NewLedger(userRepo)
	engine := cursor.NewEngine(userRepo, channelResolver{bot: bot, channelID: cfg.Content.ChannelID}, cursor.Config{
		StartRef:   cfg.Content.StartRef,
		SkipBudget: cfg.Content.SkipBudget,
	}, logger)
	plansService := planssvc.NewService(cfg.Plans, userRepo, ledger, pendingRepo, cfg.Payment)
	ordersService := orderssvc.NewService(orderRepo, userRepo, ledger, cfg.Content.StartRef, logger)

	notifier := tginfra.NewNotifier(bot, logger)
	messenger := sweepMessenger{bot: bot, notifier: notifier, plans: plansService}
	sweepJob := sweep.NewJob(userRepo, ledger, messenger, logger)

	app := &App{
		cfg:      cfg,
		logger:   logger,
		postgres: pool,
		redis:    redisClient,
		s3:       s3Client,
		bot:      bot,
		chat:     bot,
		users:    userRepo,
		pending:  pendingRepo,
		ledger:   ledger,
		engine:   engine,
		plans:    plansService,
		orders:   ordersService,
		sweepJob: sweepJob,
	}
	if s3Client != nil {
		app.storage = screenshots.NewStorage(s3Client, cfg.S3.Bucket)
	}

	return app, nil
}

// sweepMessenger pairs message withdrawal with the retrying renewal prompt.
type sweepMessenger struct {
	bot      *tginfra.Bot
	notifier *tginfra.Notifier
	plans    *planssvc.Service
}

func (m sweepMessenger) Withdraw(ctx context.Context, chatID int64, messageID int) error {
	return m.bot.Withdraw(ctx, chatID, messageID)
}

func (m sweepMessenger) SendRenewalPrompt(ctx context.Context, chatID int64) error {
	if err := m.notifier.SendRenewalPrompt(ctx, chatID); err != nil {
		return err
	}

	// Renewal offers the paid plans only; the one-shot demo is gone for
	// anyone who held a subscription.
	buttons := m.plans.Keyboard(true)
	planButtons := make([]tginfra.PlanButton, 0, len(buttons))
	for _, b := range buttons {
		planButtons = append(planButtons, tginfra.PlanButton{Label: b.Label, Data: b.Data})
	}
	return m.bot.SendPlanKeyboard(ctx, chatID, "Pick a plan below to renew:", planButtons)
}

func (a *App) Run(ctx context.Context) error {
	a.logger.Info("bot app started")

	errCh := make(chan error, 2)
	go func() {
		errCh <- a.runSweepLoop(ctx)
	}()
	go func() {
		errCh <- a.bot.Listen(ctx, tginfra.Handlers{
			OnCommand:  a.handleCommand,
			OnCallback: a.handleCallback,
			OnPhoto:    a.handlePhoto,
		})
	}()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("bot app stopped")
			return nil
		case err := <-errCh:
			if err == nil || errors.Is(err, context.Canceled) {
				continue
			}
			return err
		}
	}
}

// runSweepLoop runs the expiry sweep on a fixed interval. Runs never
// overlap: the next tick waits for the previous Run to return.
func (a *App) runSweepLoop(ctx context.Context) error {
	interval := a.cfg.Sweep.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	startDelay := a.cfg.Sweep.StartDelay
	if startDelay <= 0 {
		startDelay = 10 * time.Second
	}

	select {
	case <-ctx.Done():
		return nil
	case <-time.After(startDelay):
	}

	if err := a.sweepJob.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("expiry sweep failed", zap.Error(err))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := a.sweepJob.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("expiry sweep failed", zap.Error(err))
			}
		}
	}
}

func (a *App) Close() {
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}
