package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	require.NoError(t, err)

	assert.Equal(t, 2333, cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.True(t, cfg.IsDev())
	assert.Equal(t, "redis", cfg.Catalog.Driver)
	assert.Equal(t, "local", cfg.Blob.Driver)
	assert.Equal(t, "gemini", cfg.AI.Provider)
	assert.Equal(t, "gemini-2.0-flash", cfg.AI.Model)
	assert.Equal(t, 3, cfg.AI.MaxRetries)
	assert.Equal(t, 4, cfg.Intake.Concurrency)
	assert.Equal(t, []string{"pdf", "xls", "xlsx", "zip", "rar", "7z"}, cfg.Intake.AllowedExtensions)
	assert.Equal(t, 24, cfg.Backup.IntervalHours)
	assert.False(t, cfg.Backup.Enable)
}

func TestLoadAppliesFileValues(t *testing.T) {
	path := writeConfigFile(t, `
port: 8080
env: Production
auth_token: secret-token
timezone: Asia/Seoul
catalog:
  driver: database
database:
  host: db.internal
  name: forge
ai:
  provider: OpenAI
  model: gpt-4o
  max_retries: 5
intake:
  allowed_extensions: [".PDF", "xlsx", " zip "]
  concurrency: 2
backup:
  enable: true
  interval_hours: 6
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "production", cfg.Env)
	assert.False(t, cfg.IsDev())
	assert.Equal(t, "secret-token", cfg.AuthToken)
	assert.Equal(t, "Asia/Seoul", cfg.Timezone)
	assert.Equal(t, "database", cfg.Catalog.Driver)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "forge", cfg.Database.Name)
	assert.Equal(t, "openai", cfg.AI.Provider)
	assert.Equal(t, "gpt-4o", cfg.AI.Model)
	assert.Equal(t, 5, cfg.AI.MaxRetries)
	assert.Equal(t, []string{"pdf", "xlsx", "zip"}, cfg.Intake.AllowedExtensions)
	assert.Equal(t, 2, cfg.Intake.Concurrency)
	assert.True(t, cfg.Backup.Enable)
	assert.Equal(t, 6, cfg.Backup.IntervalHours)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfigFile(t, "listen_port: 8080\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config file")
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{"bad port", "port: 70000\n", "invalid port"},
		{"bad catalog driver", "catalog:\n  driver: mongo\n", "invalid catalog.driver"},
		{"bad blob driver", "blob:\n  driver: gcs\n", "invalid blob.driver"},
		{"s3 without bucket", "blob:\n  driver: s3\n", "blob.s3.bucket is required"},
		{"bad max retries", "ai:\n  max_retries: 0\n", "invalid ai.max_retries"},
		{"bad concurrency", "intake:\n  concurrency: 0\n", "invalid intake.concurrency"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfigFile(t, tc.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfigFile(t, `
auth_token: file-token
ai:
  api_key: file-key
blob:
  driver: s3
  s3:
    bucket: forgespec
`)

	t.Setenv(EnvAIAPIKey, "env-key")
	t.Setenv(EnvAuthToken, "env-token")
	t.Setenv(EnvS3AccessKey, "env-access")
	t.Setenv(EnvS3SecretKey, "env-secret")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.AI.APIKey)
	assert.Equal(t, "env-token", cfg.AuthToken)
	assert.Equal(t, "env-access", cfg.Blob.S3.AccessKeyID)
	assert.Equal(t, "env-secret", cfg.Blob.S3.SecretAccessKey)
}

func TestDatabaseDSNValue(t *testing.T) {
	explicit := DatabaseConfig{DSN: "root:pw@tcp(db:3306)/forge"}
	assert.Equal(t, "root:pw@tcp(db:3306)/forge", explicit.DSNValue())

	built := DatabaseConfig{
		Host:     "db.internal",
		Port:     3307,
		User:     "forge",
		Password: "pw",
		Name:     "forgespec",
		Charset:  "utf8mb4",
	}
	dsn := built.DSNValue()
	assert.Contains(t, dsn, "forge:pw@tcp(db.internal:3307)/forgespec")
	assert.Contains(t, dsn, "charset=utf8mb4")
	assert.Contains(t, dsn, "parseTime=true")
}

func TestRedisURLValue(t *testing.T) {
	explicit := RedisConfig{URL: "redis://cache:6379/2"}
	assert.Equal(t, "redis://cache:6379/2", explicit.URLValue())

	built := RedisConfig{Host: "cache.internal", Port: 6380, Password: "pw", DB: 1}
	url := built.URLValue()
	assert.Contains(t, url, "redis://")
	assert.Contains(t, url, "cache.internal:6380")
	assert.Contains(t, url, "/1")

	secure := RedisConfig{Host: "cache", Port: 6379, TLS: true}
	assert.Contains(t, secure.URLValue(), "rediss://")
}

func TestStagingAndBlobDirs(t *testing.T) {
	cfg := AppConfig{}
	cfg.Paths.Data = filepath.Join(t.TempDir(), "data")

	assert.Equal(t, filepath.Join(cfg.Paths.Data, "staging"), cfg.StagingDir())
	assert.Equal(t, filepath.Join(cfg.Paths.Data, "blobs"), cfg.BlobDir())

	cfg.Intake.StagingDir = filepath.Join(t.TempDir(), "stage")
	assert.Equal(t, cfg.Intake.StagingDir, cfg.StagingDir())
}
