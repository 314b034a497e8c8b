package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Spok95/ecoreport-bot/internal/app"
	"github.com/Spok95/ecoreport-bot/internal/cache"
	"github.com/Spok95/ecoreport-bot/internal/chat"
	"github.com/Spok95/ecoreport-bot/internal/config"
	"github.com/Spok95/ecoreport-bot/internal/db"
	"github.com/Spok95/ecoreport-bot/internal/jobs"
	"github.com/Spok95/ecoreport-bot/internal/logging"
	"github.com/Spok95/ecoreport-bot/internal/metrics"
	"github.com/Spok95/ecoreport-bot/internal/moderation"
	"github.com/Spok95/ecoreport-bot/internal/observability"
	"github.com/Spok95/ecoreport-bot/internal/period"
	"github.com/Spok95/ecoreport-bot/internal/reporting"
	"github.com/Spok95/ecoreport-bot/internal/submission"
	"github.com/Spok95/ecoreport-bot/internal/tg"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Не удалось загрузить .env файл, используем переменные окружения")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	lg, err := logging.Init(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer lg.Closer()
	logger := lg.Base

	flush, err := observability.InitSentry(cfg.SentryDSN, cfg.Env, "")
	if err != nil {
		logger.Warn("sentry init failed", zap.Error(err))
	} else {
		defer flush()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("db open", zap.Error(err))
	}
	defer func() { _ = database.Close() }()

	if err := db.Migrate(ctx, database); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}
	store := db.New(database)
	if cfg.SeedFile != "" {
		if err := store.LoadSeedFile(ctx, cfg.SeedFile); err != nil {
			logger.Fatal("seed", zap.String("file", cfg.SeedFile), zap.Error(err))
		}
		logger.Info("seed applied", zap.String("file", cfg.SeedFile))
	}

	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		logger.Fatal("telegram", zap.Error(err))
	}
	bot.Debug = false
	logger.Info("bot started", zap.String("username", bot.Self.UserName))

	var boardCache reporting.Cache
	if cfg.RedisURL != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("redis unavailable, leaderboard cache disabled", zap.Error(err))
		} else {
			defer func() { _ = rdb.Close() }()
			boardCache = cache.NewLeaderboard(rdb, cache.DefaultTTL, logger)
		}
	}

	channel := tg.NewChannel(bot)
	notifier := chat.ChannelNotifier{Channel: channel}
	engine := moderation.NewEngine(store, notifier, logger)
	sessions := submission.NewSessions(cfg.SessionTTL)
	flow := submission.NewFlow(store, sessions, channel, notifier, engine, submission.Options{
		Granularity:  period.ParseGranularity(cfg.PeriodType),
		MaxPerPeriod: cfg.MaxReportsPerPeriod,
		Now:          func() time.Time { return time.Now().In(cfg.Location) },
	}, logger)
	reports := reporting.NewService(store, channel, boardCache, cfg.Location, logger)

	dispatcher := app.NewDispatcher(app.Deps{
		Admins:    cfg,
		Store:     store,
		Moderator: engine,
		Flow:      flow,
		Reports:   reports,
		Channel:   channel,
		Log:       logger,
	})

	app.StartHTTP(ctx, cfg.HTTPAddr, store, logger)

	runner := jobs.New(ctx, logger)
	runner.Every(time.Minute, "session_sweep", jobs.SweepSessions(sessions, logger))
	runner.Every(30*time.Second, "db_ping", jobs.PingDB(store))
	granularity := period.ParseGranularity(cfg.PeriodType)
	runner.Every(10*time.Minute, "period_rollover", jobs.PeriodRollover(
		func() string { return period.Key(time.Now().In(cfg.Location), granularity) },
		reports.SummaryText, notifier, cfg.AdminIDs, logger))

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := bot.GetUpdatesChan(u)

	// апдейты читаются по одному, поэтому очередь чата сохраняет порядок прихода
	for {
		select {
		case <-ctx.Done():
			bot.StopReceivingUpdates()
			dispatcher.Wait()
			logger.Info("shutdown")
			return
		case upd, ok := <-updates:
			if !ok {
				dispatcher.Wait()
				return
			}
			metrics.BotUpdates.Inc()
			in, ok := tg.IntentFromUpdate(upd)
			if !ok {
				continue
			}
			dispatcher.Enqueue(ctx, in)
		}
	}
}
