package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"
	defaultPort       = 2333
	defaultEnv        = "development"

	defaultCatalogDriver = "redis"
	defaultBlobDriver    = "local"
	defaultAIProvider    = "gemini"
	defaultGeminiModel   = "gemini-2.0-flash"
	defaultMaxRetries    = 3
	defaultConcurrency   = 4

	// Env overrides for secrets, applied after the YAML file.
	EnvAIAPIKey    = "FORGESPEC_AI_API_KEY"
	EnvAuthToken   = "FORGESPEC_AUTH_TOKEN"
	EnvS3AccessKey = "FORGESPEC_S3_ACCESS_KEY"
	EnvS3SecretKey = "FORGESPEC_S3_SECRET_KEY"
)

var defaultAllowedExtensions = []string{"pdf", "xls", "xlsx", "zip", "rar", "7z"}

// AppConfig holds runtime configuration loaded from YAML plus env overrides.
type AppConfig struct {
	Port           int
	Env            string // "development" | "production"
	AllowedOrigins []string
	AuthToken      string
	Timezone       string

	Redis    RedisConfig
	Database DatabaseConfig
	Catalog  CatalogConfig
	Blob     BlobConfig
	AI       AIConfig
	Intake   IntakeConfig
	Backup   BackupConfig
	Paths    PathsConfig
}

type RedisConfig struct {
	URL      string
	Host     string
	Port     int
	Username string
	Password string
	DB       int
	TLS      bool
}

type DatabaseConfig struct {
	DSN      string
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	Charset  string
}

// CatalogConfig selects the metadata persistence driver.
// "redis" keeps the whole record collection as a JSON array under one key;
// "database" mirrors the legacy remote-database deployment.
type CatalogConfig struct {
	Driver string // "redis" | "database"
}

type BlobConfig struct {
	Driver string // "local" | "s3"
	Dir    string
	S3     S3Config
}

type S3Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	PathStyle       bool
}

// AIConfig configures the metadata extraction provider.
// A missing API key is a recoverable configuration error: the server starts
// and every analyze request fails with a per-item error instead.
type AIConfig struct {
	Provider   string // "gemini" | "openai" | "openai-compatible" | "anthropic"
	APIKey     string
	Endpoint   string
	Model      string
	MaxRetries int
}

type IntakeConfig struct {
	AllowedExtensions []string
	Concurrency       int
	StagingDir        string
}

type BackupConfig struct {
	Enable        bool
	IntervalHours int
}

type PathsConfig struct {
	Logs    string
	Data    string
	Backups string
}

type rawAppConfig struct {
	Port           int      `yaml:"port"`
	Env            string   `yaml:"env"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	AuthToken      string   `yaml:"auth_token"`
	Timezone       string   `yaml:"timezone"`

	Redis struct {
		URL      string `yaml:"url"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		DB       *int   `yaml:"db"`
		TLS      *bool  `yaml:"tls"`
	} `yaml:"redis"`

	Database struct {
		DSN      string `yaml:"dsn"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		Charset  string `yaml:"charset"`
	} `yaml:"database"`

	Catalog struct {
		Driver string `yaml:"driver"`
	} `yaml:"catalog"`

	Blob struct {
		Driver string `yaml:"driver"`
		Dir    string `yaml:"dir"`
		S3     struct {
			Endpoint        string `yaml:"endpoint"`
			Region          string `yaml:"region"`
			Bucket          string `yaml:"bucket"`
			AccessKeyID     string `yaml:"access_key_id"`
			SecretAccessKey string `yaml:"secret_access_key"`
			PathStyle       *bool  `yaml:"path_style"`
		} `yaml:"s3"`
	} `yaml:"blob"`

	AI struct {
		Provider   string `yaml:"provider"`
		APIKey     string `yaml:"api_key"`
		Endpoint   string `yaml:"endpoint"`
		Model      string `yaml:"model"`
		MaxRetries *int   `yaml:"max_retries"`
	} `yaml:"ai"`

	Intake struct {
		AllowedExtensions []string `yaml:"allowed_extensions"`
		Concurrency       *int     `yaml:"concurrency"`
		StagingDir        string   `yaml:"staging_dir"`
	} `yaml:"intake"`

	Backup struct {
		Enable        *bool `yaml:"enable"`
		IntervalHours int   `yaml:"interval_hours"`
	} `yaml:"backup"`

	Paths struct {
		Logs    string `yaml:"logs"`
		Data    string `yaml:"data"`
		Backups string `yaml:"backups"`
	} `yaml:"paths"`
}

// Load reads the YAML config, fills defaults and applies env overrides.
func Load(configPath string) (*AppConfig, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = DefaultConfigPath
	}

	cfg := defaultAppConfig()

	content, err := os.ReadFile(path)
	switch {
	case err == nil:
		decoder := yaml.NewDecoder(bytes.NewReader(content))
		decoder.KnownFields(true)
		raw := rawAppConfig{}
		if decodeErr := decoder.Decode(&raw); decodeErr != nil {
			return nil, fmt.Errorf("parse config file %q: %w", path, decodeErr)
		}
		applyRawAppConfig(&cfg, raw)
	case os.IsNotExist(err):
		// run on defaults; secrets still arrive via env
	default:
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}

	applyEnvOverrides(&cfg)

	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d in %q, expected 1-65535", cfg.Port, path)
	}
	if cfg.Catalog.Driver != "redis" && cfg.Catalog.Driver != "database" {
		return nil, fmt.Errorf("invalid catalog.driver %q, expected redis or database", cfg.Catalog.Driver)
	}
	if cfg.Blob.Driver != "local" && cfg.Blob.Driver != "s3" {
		return nil, fmt.Errorf("invalid blob.driver %q, expected local or s3", cfg.Blob.Driver)
	}
	if cfg.Blob.Driver == "s3" && strings.TrimSpace(cfg.Blob.S3.Bucket) == "" {
		return nil, fmt.Errorf("blob.s3.bucket is required when blob.driver is s3")
	}
	if cfg.AI.MaxRetries < 1 {
		return nil, fmt.Errorf("invalid ai.max_retries %d, expected >= 1", cfg.AI.MaxRetries)
	}
	if cfg.Intake.Concurrency < 1 {
		return nil, fmt.Errorf("invalid intake.concurrency %d, expected >= 1", cfg.Intake.Concurrency)
	}

	return &cfg, nil
}

func defaultAppConfig() AppConfig {
	return AppConfig{
		Port: defaultPort,
		Env:  defaultEnv,
		Redis: RedisConfig{
			Host: "localhost",
			Port: 6379,
		},
		Database: DatabaseConfig{
			Host:    "127.0.0.1",
			Port:    3306,
			User:    "root",
			Name:    "forgespec",
			Charset: "utf8mb4",
		},
		Catalog: CatalogConfig{Driver: defaultCatalogDriver},
		Blob: BlobConfig{
			Driver: defaultBlobDriver,
			S3: S3Config{
				Region: "auto",
			},
		},
		AI: AIConfig{
			Provider:   defaultAIProvider,
			Model:      defaultGeminiModel,
			MaxRetries: defaultMaxRetries,
		},
		Intake: IntakeConfig{
			AllowedExtensions: append([]string(nil), defaultAllowedExtensions...),
			Concurrency:       defaultConcurrency,
		},
		Backup: BackupConfig{
			IntervalHours: 24,
		},
	}
}

func applyRawAppConfig(cfg *AppConfig, raw rawAppConfig) {
	if raw.Port != 0 {
		cfg.Port = raw.Port
	}
	if v := strings.TrimSpace(raw.Env); v != "" {
		cfg.Env = strings.ToLower(v)
	}
	if raw.AllowedOrigins != nil {
		cfg.AllowedOrigins = normalizeOrigins(raw.AllowedOrigins)
	}
	if v := strings.TrimSpace(raw.AuthToken); v != "" {
		cfg.AuthToken = v
	}
	if v := strings.TrimSpace(raw.Timezone); v != "" {
		cfg.Timezone = v
	}

	if v := strings.TrimSpace(raw.Redis.URL); v != "" {
		cfg.Redis.URL = v
	}
	if v := strings.TrimSpace(raw.Redis.Host); v != "" {
		cfg.Redis.Host = v
	}
	if raw.Redis.Port != 0 {
		cfg.Redis.Port = raw.Redis.Port
	}
	if v := strings.TrimSpace(raw.Redis.Username); v != "" {
		cfg.Redis.Username = v
	}
	if v := strings.TrimSpace(raw.Redis.Password); v != "" {
		cfg.Redis.Password = v
	}
	if raw.Redis.DB != nil {
		cfg.Redis.DB = *raw.Redis.DB
	}
	if raw.Redis.TLS != nil {
		cfg.Redis.TLS = *raw.Redis.TLS
	}

	if v := strings.TrimSpace(raw.Database.DSN); v != "" {
		cfg.Database.DSN = v
	}
	if v := strings.TrimSpace(raw.Database.Host); v != "" {
		cfg.Database.Host = v
	}
	if raw.Database.Port != 0 {
		cfg.Database.Port = raw.Database.Port
	}
	if v := strings.TrimSpace(raw.Database.User); v != "" {
		cfg.Database.User = v
	}
	if v := strings.TrimSpace(raw.Database.Password); v != "" {
		cfg.Database.Password = v
	}
	if v := strings.TrimSpace(raw.Database.Name); v != "" {
		cfg.Database.Name = v
	}
	if v := strings.TrimSpace(raw.Database.Charset); v != "" {
		cfg.Database.Charset = v
	}

	if v := strings.ToLower(strings.TrimSpace(raw.Catalog.Driver)); v != "" {
		cfg.Catalog.Driver = v
	}

	if v := strings.ToLower(strings.TrimSpace(raw.Blob.Driver)); v != "" {
		cfg.Blob.Driver = v
	}
	if v := strings.TrimSpace(raw.Blob.Dir); v != "" {
		cfg.Blob.Dir = v
	}
	if v := strings.TrimSpace(raw.Blob.S3.Endpoint); v != "" {
		cfg.Blob.S3.Endpoint = v
	}
	if v := strings.TrimSpace(raw.Blob.S3.Region); v != "" {
		cfg.Blob.S3.Region = v
	}
	if v := strings.TrimSpace(raw.Blob.S3.Bucket); v != "" {
		cfg.Blob.S3.Bucket = v
	}
	if v := strings.TrimSpace(raw.Blob.S3.AccessKeyID); v != "" {
		cfg.Blob.S3.AccessKeyID = v
	}
	if v := strings.TrimSpace(raw.Blob.S3.SecretAccessKey); v != "" {
		cfg.Blob.S3.SecretAccessKey = v
	}
	if raw.Blob.S3.PathStyle != nil {
		cfg.Blob.S3.PathStyle = *raw.Blob.S3.PathStyle
	}

	if v := strings.ToLower(strings.TrimSpace(raw.AI.Provider)); v != "" {
		cfg.AI.Provider = v
	}
	if v := strings.TrimSpace(raw.AI.APIKey); v != "" {
		cfg.AI.APIKey = v
	}
	if v := strings.TrimSpace(raw.AI.Endpoint); v != "" {
		cfg.AI.Endpoint = v
	}
	if v := strings.TrimSpace(raw.AI.Model); v != "" {
		cfg.AI.Model = v
	}
	if raw.AI.MaxRetries != nil {
		cfg.AI.MaxRetries = *raw.AI.MaxRetries
	}

	if raw.Intake.AllowedExtensions != nil {
		cfg.Intake.AllowedExtensions = normalizeExtensions(raw.Intake.AllowedExtensions)
	}
	if raw.Intake.Concurrency != nil {
		cfg.Intake.Concurrency = *raw.Intake.Concurrency
	}
	if v := strings.TrimSpace(raw.Intake.StagingDir); v != "" {
		cfg.Intake.StagingDir = v
	}

	if raw.Backup.Enable != nil {
		cfg.Backup.Enable = *raw.Backup.Enable
	}
	if raw.Backup.IntervalHours > 0 {
		cfg.Backup.IntervalHours = raw.Backup.IntervalHours
	}

	cfg.Paths.Logs = strings.TrimSpace(raw.Paths.Logs)
	cfg.Paths.Data = strings.TrimSpace(raw.Paths.Data)
	cfg.Paths.Backups = strings.TrimSpace(raw.Paths.Backups)
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvAIAPIKey)); v != "" {
		cfg.AI.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvAuthToken)); v != "" {
		cfg.AuthToken = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvS3AccessKey)); v != "" {
		cfg.Blob.S3.AccessKeyID = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvS3SecretKey)); v != "" {
		cfg.Blob.S3.SecretAccessKey = v
	}
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		trimmed := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(ext, ".")))
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func (c *AppConfig) IsDev() bool {
	return strings.EqualFold(c.Env, defaultEnv)
}

func (c *AppConfig) LogDir() string {
	if c == nil {
		return ResolveRuntimePath("", "logs")
	}
	return ResolveRuntimePath(c.Paths.Logs, "logs")
}

func (c *AppConfig) DataDir() string {
	if c == nil {
		return ResolveRuntimePath("", "data")
	}
	return ResolveRuntimePath(c.Paths.Data, "data")
}

func (c *AppConfig) BackupDir() string {
	if c == nil {
		return ResolveRuntimePath("", "backups")
	}
	return ResolveRuntimePath(c.Paths.Backups, "backups")
}

// BlobDir resolves the local blob store directory under the data dir unless
// an explicit directory was configured.
func (c *AppConfig) BlobDir() string {
	if v := strings.TrimSpace(c.Blob.Dir); v != "" {
		return ResolveRuntimePath(v, "")
	}
	return ResolveRuntimePath(c.Paths.Data, "data") + string(os.PathSeparator) + "blobs"
}

// StagingDir resolves the intake staging directory for uncommitted uploads.
func (c *AppConfig) StagingDir() string {
	if v := strings.TrimSpace(c.Intake.StagingDir); v != "" {
		return ResolveRuntimePath(v, "")
	}
	return ResolveRuntimePath(c.Paths.Data, "data") + string(os.PathSeparator) + "staging"
}
