package conf

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/shaibinkb16/File-Vault-CI-CD/internal/pkg/database"
	"github.com/shaibinkb16/File-Vault-CI-CD/internal/pkg/logger"
	"github.com/shaibinkb16/File-Vault-CI-CD/internal/pkg/minio"
)

type Config struct {
	Server   ServerConfig
	Database database.Config
	MinIO    minio.Config
	Upload   UploadConfig
	Log      logger.Config
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Mode            string        `mapstructure:"mode"` // debug, release, test
}

type UploadConfig struct {
	// MaxFileSize 单文件大小上限（字节）
	MaxFileSize int64 `mapstructure:"max_file_size"`
	// MaxBatchFiles 批量上传单次文件数上限
	MaxBatchFiles int `mapstructure:"max_batch_files"`
	// Workers 批量上传并发 worker 数量
	Workers int `mapstructure:"workers"`
}

func LoadConfig(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	config := DefaultConfig()
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return config, nil
}

// DefaultConfig 返回带默认值的配置
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			Mode:            "release",
		},
		Database: *database.DefaultConfig(),
		MinIO:    *minio.DefaultConfig(),
		Upload: UploadConfig{
			MaxFileSize:   100 << 20, // 100 MiB
			MaxBatchFiles: 20,
			Workers:       8,
		},
		Log: *logger.DefaultConfig(),
	}
}

func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
