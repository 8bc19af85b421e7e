package data

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/shaibinkb16/File-Vault-CI-CD/internal/conf"
	filedata "github.com/shaibinkb16/File-Vault-CI-CD/internal/file/data"
	"github.com/shaibinkb16/File-Vault-CI-CD/internal/pkg/database"
	"github.com/shaibinkb16/File-Vault-CI-CD/internal/pkg/logger"
	"github.com/shaibinkb16/File-Vault-CI-CD/internal/pkg/minio"
)

type Data struct {
	DB          *database.DB
	MinIOClient *minio.Client
	Logger      *logger.Logger
}

func NewData(config *conf.Config, log *logger.Logger) (*Data, func(), error) {
	// Initialize PostgreSQL
	db, err := initDB(config, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init database: %w", err)
	}

	// Initialize MinIO
	minioClient, err := initMinIO(config, log)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to init minio: %w", err)
	}

	d := &Data{
		DB:          db,
		MinIOClient: minioClient,
		Logger:      log,
	}

	cleanup := func() {
		log.Info("cleaning up data resources")

		if err := db.Close(); err != nil {
			log.Error("failed to close database", zap.Error(err))
		}

		if err := minioClient.Close(); err != nil {
			log.Error("failed to close minio client", zap.Error(err))
		}
	}

	return d, cleanup, nil
}

func initDB(config *conf.Config, log *logger.Logger) (*database.DB, error) {
	db, err := database.New(&config.Database, log)
	if err != nil {
		return nil, err
	}

	if config.Database.AutoMigrate {
		if err := db.AutoMigrate(&filedata.FilePO{}); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to auto migrate: %w", err)
		}
	}

	log.Info("database initialized successfully")
	return db, nil
}

func initMinIO(config *conf.Config, log *logger.Logger) (*minio.Client, error) {
	client, err := minio.NewClient(&config.MinIO, log.Logger)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.MinIO.ConnectTimeout)
	defer cancel()

	if err := client.EnsureBucket(ctx); err != nil {
		return nil, err
	}

	return client, nil
}
