package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"bingoledger/internal/config"
	"bingoledger/internal/handler"
	"bingoledger/internal/infrastructure/cache"
	"bingoledger/internal/infrastructure/database"
	"bingoledger/internal/infrastructure/mq"
	"bingoledger/internal/job"
	"bingoledger/pkg/idgen"
	"bingoledger/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Server.Mode, cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if flag.NArg() > 0 && flag.Arg(0) == "migrate" {
		if err := runMigrate(cfg, log, flag.Args()[1:]); err != nil {
			log.Fatal("migrate", zap.Error(err))
		}
		return
	}

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

// runMigrate handles `migrate up`, `migrate down [N]` and `migrate status`.
func runMigrate(cfg *config.Config, log *zap.Logger, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: migrate up|down [N]|status")
	}

	switch args[0] {
	case "up":
		return database.MigrateUp(&cfg.Database, log)
	case "down":
		steps := 1
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n <= 0 {
				return fmt.Errorf("invalid step count %q", args[1])
			}
			steps = n
		}
		return database.MigrateDown(&cfg.Database, steps, log)
	case "status":
		version, dirty, err := database.MigrateStatus(&cfg.Database, log)
		if err != nil {
			return err
		}
		log.Info("migration status", zap.Uint("version", version), zap.Bool("dirty", dirty))
		return nil
	default:
		return fmt.Errorf("unknown migrate command %q", args[0])
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	if err := idgen.Init(cfg.Server.WorkerID); err != nil {
		return fmt.Errorf("init id generator: %w", err)
	}

	db, err := database.Open(&cfg.Database, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(db); err != nil {
			log.Warn("close database", zap.Error(err))
		}
	}()

	redisClient, err := cache.NewRedis(&cfg.Redis, log)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Kafka.Enabled {
		producer, err := mq.NewKafkaProducer(&cfg.Kafka, log)
		if err != nil {
			return err
		}
		defer func() { _ = producer.Close() }()

		go job.NewOutboxSender(db, producer, cfg, log).Start(ctx)
	} else {
		log.Warn("kafka disabled, settlement events stay in the outbox")
	}

	go job.NewGameExpiryJob(db, cfg, log).Start(ctx)
	go job.NewLedgerAuditJob(db, cfg, log).Start(ctx)

	router := handler.SetupRouter(db, redisClient, cfg, log)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("http server shutdown", zap.Error(err))
	}

	log.Info("server stopped")
	return nil
}
