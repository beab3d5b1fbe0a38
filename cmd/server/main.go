package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lk2023060901/filevault/internal/conf"
	"github.com/lk2023060901/filevault/internal/filevault/adapter"
	"github.com/lk2023060901/filevault/internal/filevault/biz"
	"github.com/lk2023060901/filevault/internal/filevault/imaging"
	"github.com/lk2023060901/filevault/internal/filevault/models"
	"github.com/lk2023060901/filevault/internal/filevault/repository"
	"github.com/lk2023060901/filevault/internal/filevault/service"
	"github.com/lk2023060901/filevault/internal/filevault/validator"
	"github.com/lk2023060901/filevault/internal/pkg/database"
	"github.com/lk2023060901/filevault/internal/pkg/logger"
	"github.com/lk2023060901/filevault/internal/server"
	"go.uber.org/zap"
)

var (
	configFile = flag.String("config", "config.yaml", "config file path")
)

func main() {
	flag.Parse()

	// Load configuration
	config, err := conf.LoadConfig(*configFile)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize logger with config
	logConfig := &logger.Config{
		Level:            config.Log.Level,
		Format:           config.Log.Format,
		Output:           config.Log.Output,
		EnableCaller:     config.Log.EnableCaller,
		EnableStacktrace: config.Log.EnableStacktrace,
		File: logger.FileConfig{
			Filename:   config.Log.File.Filename,
			MaxSize:    config.Log.File.MaxSize,
			MaxAge:     config.Log.File.MaxAge,
			MaxBackups: config.Log.File.MaxBackups,
			Compress:   config.Log.File.Compress,
		},
	}

	log, err := logger.New(logConfig)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	if err := logger.InitGlobal(logConfig); err != nil {
		log.Fatal("failed to initialize global logger", zap.Error(err))
	}

	log.Info("config loaded successfully")

	// Initialize database
	dbConfig := &database.Config{
		Host:     config.Database.Host,
		Port:     config.Database.Port,
		User:     config.Database.User,
		Password: config.Database.Password,
		DBName:   config.Database.DBName,
		SSLMode:  config.Database.SSLMode,
	}
	dbConfig.SetDefaults()

	db, err := database.New(dbConfig, log)
	if err != nil {
		log.Fatal("failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	if err := db.AutoMigrate(&models.FileMetadata{}); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Initialize storage backend
	storage, err := adapter.New(&config.Storage, log)
	if err != nil {
		log.Fatal("failed to initialize storage backend", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := storage.EnsureBucketExists(ctx); err != nil {
		cancel()
		log.Fatal("failed to prepare storage bucket", zap.Error(err))
	}
	cancel()

	// Wire the engine and HTTP layer
	engine := biz.NewEngine(
		validator.New(),
		repository.New(db),
		storage,
		imaging.New(),
		log,
		config.Storage.DefaultExpiry,
	)

	fileService := service.NewFileService(engine, log.Logger)
	httpServer := server.NewHTTPServer(config, log.Logger, fileService)

	go func() {
		if err := httpServer.Start(); err != nil {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP server gracefully", zap.Error(err))
	}
}
