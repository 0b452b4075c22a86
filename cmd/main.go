package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/zlog"

	"github.com/NegroPrimo123/Students-Bot/cmd/buildCFG"
	"github.com/NegroPrimo123/Students-Bot/internal/api/api"
	"github.com/NegroPrimo123/Students-Bot/internal/bot"
	"github.com/NegroPrimo123/Students-Bot/internal/bot/session"
	rabbitReader "github.com/NegroPrimo123/Students-Bot/internal/consumerWorker"
	"github.com/NegroPrimo123/Students-Bot/internal/notify"
	"github.com/NegroPrimo123/Students-Bot/internal/rabbit"
	"github.com/NegroPrimo123/Students-Bot/internal/repo"
	"github.com/NegroPrimo123/Students-Bot/internal/review"
	"github.com/NegroPrimo123/Students-Bot/internal/scheduler"
	"github.com/NegroPrimo123/Students-Bot/internal/service"
	"github.com/NegroPrimo123/Students-Bot/internal/stats"
	"github.com/NegroPrimo123/Students-Bot/internal/sweep"
	"github.com/NegroPrimo123/Students-Bot/internal/telegram"
)

func main() {
	zlog.Init()
	log := zlog.Logger

	cfg := config.New()
	if err := cfg.Load("config.yaml", "", "'"); err != nil {
		log.Fatal().Msgf("failed to load configuration: %v", err)
	}
	serverCfg := buildCFG.BuildServerConfig(cfg, &log)
	port := serverCfg.Port

	masterDSN, slaveDSNs, poolOptions, err := buildCFG.BuildDBConfig(cfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build DB config")
	}
	db, err := dbpg.New(masterDSN, slaveDSNs, poolOptions)
	if err != nil {
		log.Fatal().Msgf("failed to connect to DB: %v", err)
	}
	if err := db.Master.Ping(); err != nil {
		log.Fatal().Msgf("DB ping failed: %v", err)
	}
	log.Info().Msg("Database connected successfully")

	repository, err := repo.NewRepository(db, &log)
	if err != nil {
		log.Fatal().Msgf("failed to initialize repository: %v", err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		log.Fatal().Err(err).Msg("cannot get working directory")
	}
	migrationPath := filepath.Join(cwd, "migrations/postgres")
	if err := repository.MigrateUp(migrationPath); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}
	log.Info().Msg("Migrations applied successfully")

	rabbitCfg, err := buildCFG.BuildRabbitConfig(cfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load RabbitMQ config")
	}
	rmq, err := rabbit.NewRabbit(rabbitCfg.Url, rabbitCfg.Exchange, rabbitCfg.Queue)
	if err != nil {
		log.Fatal().Msgf("Failed to connect to RabbitMQ: %v", err)
	}
	defer rmq.Close()

	botCfg, err := buildCFG.BuildBotConfig(cfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load bot config")
	}
	adapter, err := telegram.New(botCfg.Token, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Telegram")
	}

	dispatcher := notify.NewDispatcher(rmq, &log)
	engine := review.NewEngine(repository, dispatcher, &log)
	sweeper := sweep.NewRunner(repository, dispatcher, &log)
	reminders := notify.NewReminders(repository, dispatcher, &log)
	aggregator := stats.NewAggregator(repository)

	workerCtx, cancelWorkers := context.WithCancel(context.Background())

	reader := rabbitReader.NewReader(rmq, adapter)
	reader.Start(workerCtx)

	sessions := session.NewStore(botCfg.SessionTTL)
	botCore := bot.New(repository, sessions, adapter, aggregator, &log)
	go adapter.Listen(workerCtx, botCore)

	scheduleCfg := buildCFG.BuildScheduleConfig(cfg, &log)
	jobs := scheduler.New(sweeper, reminders, &log)
	if err := jobs.Start(workerCtx, scheduleCfg.PenaltySpec, scheduleCfg.ReminderSpec); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}

	serviceInstance := service.NewService(repository, &log, engine, aggregator, sweeper, adapter)
	app := api.NewRouters(&api.Routers{
		Service:    serviceInstance,
		AdminToken: buildCFG.AdminToken(cfg, &log),
	})

	serverErrChan := make(chan error, 1)
	go func() {
		log.Info().Msgf("Starting server on %s", port)
		if err := app.Run(":" + port); err != nil {
			serverErrChan <- fmt.Errorf("failed to start server: %w", err)
		}
	}()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-signalChan:
		log.Info().Msgf("Received signal %s. Initiating shutdown...", sig)
	case err := <-serverErrChan:
		log.Error().Msgf("Server error: %v", err)
	}

	jobs.Stop()
	cancelWorkers()
	reader.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if closer, ok := interface{}(app).(interface{ Close(context.Context) error }); ok {
		if err := closer.Close(shutdownCtx); err != nil {
			log.Error().Msgf("Error shutting down server: %v", err)
		}
	}

	log.Info().Msg("Shutdown complete")
}
