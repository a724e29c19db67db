package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/snap-point/moderation-api/automod"
	"github.com/snap-point/moderation-api/classifier"
	"github.com/snap-point/moderation-api/config"
	"github.com/snap-point/moderation-api/jobs"
	"github.com/snap-point/moderation-api/moderation"
	"github.com/snap-point/moderation-api/notify"
	"github.com/snap-point/moderation-api/queue"
	"github.com/snap-point/moderation-api/reports"
	"github.com/snap-point/moderation-api/routes"
	"github.com/snap-point/moderation-api/store"
	"github.com/snap-point/moderation-api/store/gormstore"
	"github.com/snap-point/moderation-api/store/memstore"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := config.NewLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	st, err := openStore(cfg, log)
	if err != nil {
		log.Fatal("opening storage", zap.Error(err))
	}

	// Notifications are persisted and, when Redis is configured, published.
	var notifier notify.Notifier = notify.NewStoreNotifier(st)
	if cfg.RedisURL != "" {
		rn, err := notify.NewRedisNotifier(cfg.RedisURL)
		if err != nil {
			log.Warn("redis unavailable, notifications will only be stored", zap.Error(err))
		} else {
			notifier = notify.Multi{notifier, rn}
		}
	}
	dispatcher := notify.NewDispatcher(notifier, log)

	registry, err := automod.NewRegistry(automod.DefaultRules(), st, log)
	if err != nil {
		log.Fatal("building rule registry", zap.Error(err))
	}
	if err := registry.Load(context.Background()); err != nil {
		log.Fatal("loading rule states", zap.Error(err))
	}
	engine := automod.NewEngine(registry, automod.NewBehaviorService(st), st, log)

	var vision classifier.VisionClient = classifier.HeuristicVision{}
	if cfg.Vision.Enabled() {
		vision = classifier.NewHTTPVisionClient(cfg.Vision, log)
	}
	imageOpts := classifier.ImageClassifierOptions{
		CacheTTL:   cfg.ImageCacheTTL,
		BatchSize:  cfg.ImageBatchSize,
		BatchDelay: cfg.ImageBatchDelay,
	}
	if cfg.R2.Enabled() {
		imageOpts.Inspector = classifier.NewR2ImageInspector(cfg.R2)
	}
	images := classifier.NewImageClassifier(vision, imageOpts, log)

	reviewQueue := queue.New(st, dispatcher, log)
	orchestrator := moderation.New(
		classifier.NewTextClassifier(log),
		images,
		classifier.NewQualityAnalyzer(log, classifier.WithTopicKeywords(cfg.TopicKeywords)),
		engine,
		st, reviewQueue, dispatcher,
		moderation.Options{
			ClassifierTimeout:  cfg.ClassifierTimeout,
			BatchSize:          cfg.BulkBatchSize,
			BatchDelay:         cfg.BulkBatchDelay,
			SuspensionDuration: cfg.SuspensionDuration,
		}, log)
	intake := reports.New(st, reviewQueue, dispatcher, cfg.SuspensionDuration, log)

	sweeper := jobs.NewSweeper(st, log)
	if err := sweeper.Schedule(cfg.SweepSchedule); err != nil {
		log.Fatal("scheduling jobs", zap.Error(err))
	}
	sweeper.Start()

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	routes.SetupRoutes(r, routes.Dependencies{
		Store:        st,
		Orchestrator: orchestrator,
		Queue:        reviewQueue,
		Reports:      intake,
		Registry:     registry,
		Images:       images,
		JWTSecret:    cfg.JWTSecret,
		Log:          log,
	})

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		log.Info("starting server", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutting down server", zap.Error(err))
	}
	sweeper.Stop()
	dispatcher.Flush()
	log.Info("server exited")
}

func openStore(cfg *config.Config, log *zap.Logger) (store.Store, error) {
	if cfg.StorageDriver == "memory" {
		log.Warn("using in-memory storage; data is lost on restart")
		return memstore.New(), nil
	}
	db, err := config.InitDB(cfg.Database, log)
	if err != nil {
		return nil, err
	}
	return gormstore.New(db), nil
}
