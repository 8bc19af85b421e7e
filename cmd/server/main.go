package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/shaibinkb16/File-Vault-CI-CD/internal/conf"
	"github.com/shaibinkb16/File-Vault-CI-CD/internal/data"
	"github.com/shaibinkb16/File-Vault-CI-CD/internal/file/biz"
	filedata "github.com/shaibinkb16/File-Vault-CI-CD/internal/file/data"
	"github.com/shaibinkb16/File-Vault-CI-CD/internal/file/service"
	"github.com/shaibinkb16/File-Vault-CI-CD/internal/pkg/logger"
	"github.com/shaibinkb16/File-Vault-CI-CD/internal/pkg/workerpool"
	"github.com/shaibinkb16/File-Vault-CI-CD/internal/server"
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
	log, err := logger.New(&config.Log)
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()

	log.Info("config loaded successfully")

	// Initialize data layer
	d, cleanup, err := data.NewData(config, log)
	if err != nil {
		log.Fatal("failed to initialize data layer", zap.Error(err))
	}
	defer cleanup()

	// Initialize repositories and storage
	fileRepo := filedata.NewFileRepo(d.DB)
	blobStore := filedata.NewBlobStore(d.MinIOClient)

	// Initialize use cases
	fileUseCase := biz.NewFileUseCase(fileRepo, blobStore, log)

	// Initialize upload worker pool
	uploadPool, err := workerpool.New(&workerpool.Config{Workers: config.Upload.Workers}, log.Logger)
	if err != nil {
		log.Fatal("failed to initialize worker pool", zap.Error(err))
	}
	defer uploadPool.Release()

	// Initialize services
	fileService := service.NewFileService(fileUseCase, uploadPool, &config.Upload, log)

	// Initialize HTTP server
	httpServer := server.NewHTTPServer(config, log, d, fileService)

	go func() {
		if err := httpServer.Start(); err != nil {
			log.Fatal("failed to start HTTP server", zap.Error(err))
		}
	}()

	log.Info("server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), config.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Stop(ctx); err != nil {
		log.Error("HTTP server forced to shutdown", zap.Error(err))
	}

	log.Info("server exited")
}
