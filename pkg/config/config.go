package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Backend names accepted for storage.backend.
const (
	BackendS3        = "s3"
	BackendSimulated = "simulated"
)

type Config struct {
	Server struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"server"`

	Storage struct {
		Backend         string `mapstructure:"backend"` // s3 | simulated
		Bucket          string `mapstructure:"bucket"`
		Region          string `mapstructure:"region"`
		Endpoint        string `mapstructure:"endpoint"` // MinIO etc.
		AccessKeyID     string `mapstructure:"access_key_id"`
		SecretAccessKey string `mapstructure:"secret_access_key"`
	} `mapstructure:"storage"`

	Database struct {
		Driver   string `mapstructure:"driver"` // postgres | sqlite
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
		SSLMode  string `mapstructure:"sslmode"`
		Path     string `mapstructure:"path"` // sqlite file
	} `mapstructure:"database"`

	Cache struct {
		RedisURL string        `mapstructure:"redis_url"` // empty disables caching
		TTL      time.Duration `mapstructure:"ttl"`
	} `mapstructure:"cache"`

	Audio struct {
		StagingDir     string        `mapstructure:"staging_dir"` // empty means os.TempDir
		FFmpegBinary   string        `mapstructure:"ffmpeg_binary"`
		FFmpegTimeout  time.Duration `mapstructure:"ffmpeg_timeout"`
		MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
	} `mapstructure:"audio"`

	Logging struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"logging"`
}

// Load reads configuration from an optional yaml file plus MHA_ prefixed
// environment variables (MHA_STORAGE_BUCKET etc.).
func Load(cfgFile string) (*Config, error) {
	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		viper.AddConfigPath(".")
		viper.AddConfigPath(filepath.Join(home, ".assistant"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("MHA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Missing file is fine, env vars and defaults still apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.addr", ":8080")

	viper.SetDefault("storage.backend", BackendSimulated)
	viper.SetDefault("storage.bucket", "mental-health-audio")
	viper.SetDefault("storage.region", "us-east-1")

	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.path", "assistant.db")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.sslmode", "disable")

	viper.SetDefault("cache.ttl", 24*time.Hour)

	viper.SetDefault("audio.ffmpeg_binary", "ffmpeg")
	viper.SetDefault("audio.ffmpeg_timeout", 2*time.Minute)
	viper.SetDefault("audio.max_upload_bytes", int64(32<<20))

	viper.SetDefault("logging.level", "info")
}
