package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	tgbot "github.com/go-telegram/bot"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/meetsmatch/notifyengine/internal/alerting"
	"github.com/meetsmatch/notifyengine/internal/coldchain"
	"github.com/meetsmatch/notifyengine/internal/config"
	"github.com/meetsmatch/notifyengine/internal/eventqueue"
	"github.com/meetsmatch/notifyengine/internal/lock"
	"github.com/meetsmatch/notifyengine/internal/maintenance"
	"github.com/meetsmatch/notifyengine/internal/metrics"
	"github.com/meetsmatch/notifyengine/internal/models"
	"github.com/meetsmatch/notifyengine/internal/plugintick"
	"github.com/meetsmatch/notifyengine/internal/recipientresolver"
	"github.com/meetsmatch/notifyengine/internal/scheduledproc"
	"github.com/meetsmatch/notifyengine/internal/sender"
	"github.com/meetsmatch/notifyengine/internal/store"
	"github.com/meetsmatch/notifyengine/internal/telegramintake"
	"github.com/meetsmatch/notifyengine/internal/telemetry"
	"github.com/meetsmatch/notifyengine/internal/templaterender"
)

func main() {
	if err := godotenv.Load(); err != nil {
		telemetry.Global().WithError(err).Warn("no .env file loaded")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		telemetry.Global().WithError(err).Fatal("invalid configuration")
	}

	telemetry.Init(telemetry.LoadLogConfig())
	logger := telemetry.Global()

	if err := alerting.Init(alerting.Config{DSN: cfg.SentryDSN, Environment: cfg.Environment}); err != nil {
		logger.WithError(err).Warn("sentry init failed, continuing without error reporting")
	}
	defer alerting.Flush(2 * time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.WithError(err).Fatal("database connection failed")
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
	defer redisClient.Close()

	locker := lock.New(redisClient)
	singleWriter, held, err := locker.TryAcquire(ctx, "notifyengine:singleton", 2*cfg.TickInterval)
	if err != nil {
		logger.WithError(err).Fatal("singleton lock acquisition failed")
	}
	if !held {
		logger.Fatal("another replica already holds the singleton lock, exiting")
	}
	defer singleWriter.Release(context.Background())
	go renewSingletonLock(ctx, singleWriter, cfg.TickInterval)

	bot, err := tgbot.New(cfg.TelegramToken)
	if err != nil {
		logger.WithError(err).Fatal("telegram bot init failed")
	}

	engine := wireEngine(db, bot, cfg)

	scheduler := plugintick.New(cfg.TickInterval, engine.tickPlugins...)
	go scheduler.Run(ctx)

	senderLoop := sender.New(cfg.SenderInterval, eventqueue.New(store.NewEventStore(db), engine.renderer), engine.transports)
	go senderLoop.Run(ctx)

	intake := telegramintake.New(bot, store.NewRecipientStore(db))
	if !cfg.TelegramUseWebhook {
		go intake.Run(ctx)
	}

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisURL})
	defer asynqClient.Close()
	startMaintenance(ctx, cfg, engine.maintenanceJobs)

	registry := prometheus.NewRegistry()
	metrics.Register(registry)

	router := gin.Default()
	router.GET("/health", func(c *gin.Context) {
		status := http.StatusOK
		if err := db.Health(c.Request.Context()); err != nil {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "service": "notifyengine"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	if cfg.TelegramUseWebhook {
		router.POST("/webhook", intake.HandleWebhook)
		if _, err := bot.SetWebhook(ctx, &tgbot.SetWebhookParams{URL: cfg.WebhookURL + "/webhook"}); err != nil {
			logger.WithError(err).Error("set webhook failed")
		}
	}

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}
	go func() {
		logger.WithField("addr", cfg.HTTPAddr).Info("http server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("http server forced shutdown")
	}
	senderLoop.Stop()
	logger.Info("shutdown complete")
}

// wiredEngine bundles everything main needs to start the tick scheduler,
// sender loop, and maintenance jobs without main itself knowing every
// component's constructor signature.
type wiredEngine struct {
	tickPlugins     []plugintick.Plugin
	transports      map[models.NotificationType]sender.Transport
	renderer        *templaterender.Renderer
	maintenanceJobs *maintenance.Jobs
}

func wireEngine(db *store.DB, bot *tgbot.Bot, cfg config.Config) *wiredEngine {
	configStore := store.NewConfigStore(db)
	sensorStore := store.NewSensorStore(db)
	stateStore := store.NewSensorStateStore(db)
	recipientStore := store.NewRecipientStore(db)
	sqlListStore := store.NewSQLListStore(db)
	dataSource := store.NewDataSource(db)
	eventStore := store.NewEventStore(db)

	renderer := templaterender.New(templaterender.NewStaticLoader(nil))
	resolver := recipientresolver.New(recipientStore, sqlListStore, dataSource)
	queue := eventqueue.New(eventStore, renderer)

	coldChainProc := coldchain.New(configStore, sensorStore, stateStore, db, resolver, queue)
	scheduledProc := scheduledproc.New(configStore, sqlListStore, dataSource, db, resolver, queue)

	transports := map[models.NotificationType]sender.Transport{
		models.NotificationEmail: sender.NewEmailTransport(sender.EmailConfig{
			Host: cfg.SMTPHost, Port: cfg.SMTPPort, User: cfg.SMTPUser, Pass: cfg.SMTPPass, From: cfg.SMTPFrom,
		}),
		models.NotificationTelegram: sender.NewTelegramTransport(bot),
	}

	return &wiredEngine{
		tickPlugins:     []plugintick.Plugin{coldChainTickAdapter{coldChainProc}, scheduledTickAdapter{scheduledProc}},
		transports:      transports,
		renderer:        renderer,
		maintenanceJobs: maintenance.New(eventStore),
	}
}

// renewSingletonLock keeps the process-wide singleton lock alive for as
// long as ctx lives, renewing once per tick interval with a TTL of two
// intervals so a single missed renewal doesn't immediately hand the lock to
// another replica.
func renewSingletonLock(ctx context.Context, l *lock.Lock, tickInterval time.Duration) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := l.Renew(ctx, 2*tickInterval); err != nil {
				telemetry.Global().WithError(err).Error("singleton lock renewal failed")
			}
		}
	}
}

type coldChainTickAdapter struct{ p *coldchain.Processor }

func (a coldChainTickAdapter) Name() string { return "coldchain" }
func (a coldChainTickAdapter) Tick(ctx context.Context, now time.Time) error {
	_, err := a.p.Run(ctx, now)
	return err
}

type scheduledTickAdapter struct{ p *scheduledproc.Processor }

func (a scheduledTickAdapter) Name() string { return "scheduled" }
func (a scheduledTickAdapter) Tick(ctx context.Context, now time.Time) error {
	_, err := a.p.Run(ctx, now)
	return err
}

func startMaintenance(ctx context.Context, cfg config.Config, jobs *maintenance.Jobs) {
	mux := asynq.NewServeMux()
	jobs.Register(mux)

	srv := asynq.NewServer(asynq.RedisClientOpt{Addr: cfg.RedisURL}, asynq.Config{Concurrency: 2})
	go func() {
		if err := srv.Run(mux); err != nil {
			telemetry.Global().WithError(err).Error("asynq server stopped")
		}
	}()

	scheduler := asynq.NewScheduler(asynq.RedisClientOpt{Addr: cfg.RedisURL}, nil)
	for spec, task := range jobs.Schedule() {
		if _, err := scheduler.Register(spec, task); err != nil {
			telemetry.Global().WithField("spec", spec).WithError(err).Error("register periodic task failed")
		}
	}
	go func() {
		if err := scheduler.Run(); err != nil {
			telemetry.Global().WithError(err).Error("asynq scheduler stopped")
		}
	}()

	go func() {
		<-ctx.Done()
		srv.Shutdown()
		scheduler.Shutdown()
	}()
}
