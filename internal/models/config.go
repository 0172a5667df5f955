package models

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	ServerAddr  string `yaml:"server_addr"`
	DatabaseURL string `yaml:"database_url"`
	KafkaBroker string `yaml:"kafka_broker"`
	KafkaTopic  string `yaml:"kafka_topic"`
	StoragePath string `yaml:"storage_path"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	LogFile   string `yaml:"log_file"`

	Storage          StorageConfig          `yaml:"storage"`
	Upload           UploadConfig           `yaml:"upload"`
	ClientValidation ClientValidationConfig `yaml:"client_validation"`
	Cleanup          CleanupConfig          `yaml:"cleanup"`
}

type StorageConfig struct {
	// local, s3, minio or gcs
	Backend         string        `yaml:"backend"`
	Bucket          string        `yaml:"bucket"`
	Region          string        `yaml:"region"`
	Endpoint        string        `yaml:"endpoint"`
	AccessKey       string        `yaml:"access_key"`
	SecretKey       string        `yaml:"secret_key"`
	UseSSL          bool          `yaml:"use_ssl"`
	PathStyle       bool          `yaml:"path_style"`
	CredentialsFile string        `yaml:"credentials_file"`
	PublicBaseURL   string        `yaml:"public_base_url"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
}

type UploadConfig struct {
	MaxUploadMB       float64  `yaml:"max_upload_mb"`
	CompressAboveMB   float64  `yaml:"compress_above_mb"`
	JPEGQuality       int      `yaml:"jpeg_quality"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
}

type ClientValidationConfig struct {
	URL      string        `yaml:"url"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
	Timeout  time.Duration `yaml:"timeout"`
}

type CleanupConfig struct {
	BatchSize       int           `yaml:"batch_size"`
	MaxAttempts     int           `yaml:"max_attempts"`
	Concurrency     int           `yaml:"concurrency"`
	DeleteTimeout   time.Duration `yaml:"delete_timeout"`
	Schedule        string        `yaml:"schedule"`
	TriggerOnDelete bool          `yaml:"trigger_on_delete"`
}

func LoadConfig(path string) (*Config, error) {
	const op = "models.LoadConfig"

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return cfg, nil
}

func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ServerAddr == "" {
		c.ServerAddr = ":8080"
	}
	if c.KafkaTopic == "" {
		c.KafkaTopic = "asset-cleanup-triggers"
	}
	if c.StoragePath == "" {
		c.StoragePath = "./data"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}

	if c.Storage.Backend == "" {
		c.Storage.Backend = "local"
	}
	if c.Storage.RequestTimeout <= 0 {
		c.Storage.RequestTimeout = 10 * time.Second
	}

	if c.Upload.MaxUploadMB <= 0 {
		c.Upload.MaxUploadMB = 20
	}
	if c.Upload.CompressAboveMB <= 0 {
		c.Upload.CompressAboveMB = 1
	}
	if c.Upload.JPEGQuality <= 0 {
		c.Upload.JPEGQuality = 80
	}
	if len(c.Upload.AllowedExtensions) == 0 {
		c.Upload.AllowedExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp"}
	}
	for i, ext := range c.Upload.AllowedExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		c.Upload.AllowedExtensions[i] = ext
	}

	if c.ClientValidation.CacheTTL <= 0 {
		c.ClientValidation.CacheTTL = 5 * time.Minute
	}
	if c.ClientValidation.Timeout <= 0 {
		c.ClientValidation.Timeout = 10 * time.Second
	}

	if c.Cleanup.BatchSize <= 0 {
		c.Cleanup.BatchSize = DefaultCleanupBatchSize
	}
	if c.Cleanup.MaxAttempts <= 0 {
		c.Cleanup.MaxAttempts = DefaultMaxAttempts
	}
	if c.Cleanup.Concurrency <= 0 {
		c.Cleanup.Concurrency = 1
	}
	if c.Cleanup.DeleteTimeout <= 0 {
		c.Cleanup.DeleteTimeout = 5 * time.Second
	}
}

func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("database_url is required")
	}
	switch c.Storage.Backend {
	case "local":
	case "s3", "minio", "gcs":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required for backend %q", c.Storage.Backend)
		}
	default:
		return fmt.Errorf("unsupported storage backend %q", c.Storage.Backend)
	}
	if c.Storage.Backend == "minio" && c.Storage.Endpoint == "" {
		return fmt.Errorf("storage.endpoint is required for backend \"minio\"")
	}
	if c.Cleanup.BatchSize > MaxCleanupBatchSize {
		return fmt.Errorf("cleanup.batch_size must not exceed %d", MaxCleanupBatchSize)
	}
	if c.Upload.JPEGQuality > 100 {
		return fmt.Errorf("upload.jpeg_quality must be between 1 and 100")
	}
	return nil
}

func (u UploadConfig) MaxUploadBytes() int64 {
	return int64(u.MaxUploadMB * 1024 * 1024)
}

func (u UploadConfig) CompressAboveBytes() int64 {
	return int64(u.CompressAboveMB * 1024 * 1024)
}
