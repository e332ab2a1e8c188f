package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/sitewise/procure/internal/config"
	"github.com/sitewise/procure/internal/draft"
	"github.com/sitewise/procure/internal/export"
	httpserver "github.com/sitewise/procure/internal/interfaces/http"
	"github.com/sitewise/procure/internal/repository"
	"github.com/sitewise/procure/internal/service"
	"github.com/sitewise/procure/internal/store"
	"github.com/sitewise/procure/pkg/database"
	"github.com/sitewise/procure/pkg/utils"
)

func main() {
	// Load .env if present; real environment wins over file values
	_ = gotenv.Load()

	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting procurement engine",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	docs := store.NewSQLiteStore(db.DB, logger)
	prRepo := repository.NewPRRepository(docs, logger)
	poRepo := repository.NewPORepository(docs, logger)
	sbRepo := repository.NewSentBackRepository(docs, logger)
	draftRepo := repository.NewDraftRepository(db.DB, logger)

	commitService := service.NewCommitService(prRepo, poRepo, sbRepo, logger)
	draftManager := draft.NewManager(draftRepo, prRepo, commitService, logger)

	exporter, err := export.NewExporter(cfg.Export.OutputDir, cfg.Export.Currency, logger)
	if err != nil {
		logger.Fatal("Failed to initialize exporter", zap.Error(err))
	}

	server := httpserver.NewServer(httpserver.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, httpserver.Deps{
		Drafts:    draftManager,
		PRs:       prRepo,
		POs:       poRepo,
		SentBacks: sbRepo,
		Exporter:  exporter,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		logger.Fatal("Server error", zap.Error(err))
	}

	logger.Info("Server exited")
}
