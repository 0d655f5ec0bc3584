package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SERVICE_ID", "21")
	t.Setenv("STORAGE_CONNECTION_STRING", "UseDevelopmentStorage=true")
}

func TestLoadDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "21", cfg.Service.ID)
	assert.Equal(t, "access-api", cfg.Service.Name)
	assert.Equal(t, HistoryDriverTables, cfg.HistoryDriver)
	assert.Equal(t, "CommandHistory", cfg.HistoryTable)
	assert.Equal(t, "History", cfg.LegacyHistoryTable)
	assert.Equal(t, "Tenders", cfg.TendersTable)
	assert.Equal(t, 30*time.Second, cfg.InflightTTL)
	assert.Equal(t, 10*time.Minute, cfg.HistoryCacheTTL)
	assert.EqualValues(t, 1<<20, cfg.MaxBodyBytes)
	assert.Equal(t, ":8080", cfg.Addr())

	svc := cfg.ResponseService()
	assert.Equal(t, "21", svc.ID)
	assert.Equal(t, "1.0.0", svc.Version)
}

func TestLoadRequiresServiceID(t *testing.T) {
	t.Setenv("STORAGE_CONNECTION_STRING", "UseDevelopmentStorage=true")
	t.Setenv("SERVICE_ID", "")
	require.NoError(t, os.Unsetenv("SERVICE_ID"))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SERVICE_ID")
}

func TestLoadReadsEnvFile(t *testing.T) {
	t.Setenv("STORAGE_CONNECTION_STRING", "UseDevelopmentStorage=true")
	t.Setenv("SERVICE_ID", "")
	require.NoError(t, os.Unsetenv("SERVICE_ID"))
	t.Setenv("HISTORY_DRIVER", "sqlite")

	dir := t.TempDir()
	file := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(file, []byte("SERVICE_ID=7\nHISTORY_DRIVER=tables\nLISTEN_ADDR=127.0.0.1:9000\n"), 0o600))
	t.Cleanup(func() {
		_ = os.Unsetenv("LISTEN_ADDR")
	})

	cfg, err := Load(file, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "7", cfg.Service.ID)
	assert.Equal(t, HistoryDriverSQLite, cfg.HistoryDriver, "environment wins over the file")
	assert.Equal(t, "127.0.0.1:9000", cfg.Addr())
}

func TestValidate(t *testing.T) {
	valid := Config{
		LogFormat:               "json",
		HistoryDriver:           HistoryDriverTables,
		HistoryTable:            "CommandHistory",
		StorageConnectionString: "x",
		TendersTable:            "Tenders",
		MaxBodyBytes:            1,
		InflightTTL:             time.Second,
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "driver", mutate: func(c *Config) { c.HistoryDriver = "mongo" }, want: "HISTORY_DRIVER"},
		{name: "sqlitePath", mutate: func(c *Config) { c.HistoryDriver = HistoryDriverSQLite }, want: "HISTORY_SQLITE_PATH"},
		{name: "storage", mutate: func(c *Config) { c.StorageConnectionString = "" }, want: "STORAGE_CONNECTION_STRING"},
		{name: "logFormat", mutate: func(c *Config) { c.LogFormat = "xml" }, want: "LOG_FORMAT"},
		{name: "body", mutate: func(c *Config) { c.MaxBodyBytes = 0 }, want: "MAX_BODY_BYTES"},
		{name: "inflight", mutate: func(c *Config) { c.InflightTTL = 0 }, want: "INFLIGHT_TTL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestAddrUsesFunctionsPort(t *testing.T) {
	assert.Equal(t, ":7071", Config{Port: "7071"}.Addr())
	assert.Equal(t, ":1", Config{Port: "7071", ListenAddr: ":1"}.Addr())
}

func TestParseRedis(t *testing.T) {
	opts, err := ParseRedis("")
	require.NoError(t, err)
	assert.Nil(t, opts)

	opts, err = ParseRedis("redis://:secret@localhost:6380/2")
	require.NoError(t, err)
	assert.Equal(t, "localhost:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)

	opts, err = ParseRedis("cache.redis.cache.windows.net:6380,password=abc=,ssl=True,abortConnect=False")
	require.NoError(t, err)
	assert.Equal(t, "cache.redis.cache.windows.net:6380", opts.Addr)
	assert.Equal(t, "abc=", opts.Password)
	assert.NotNil(t, opts.TLSConfig)
}

func TestNewLogger(t *testing.T) {
	logger := Config{Debug: true, LogFormat: "json"}.NewLogger()
	assert.Equal(t, log.DebugLevel, logger.GetLevel())
	assert.IsType(t, &log.JSONFormatter{}, logger.Formatter)

	logger = Config{LogFormat: "text"}.NewLogger()
	assert.Equal(t, log.InfoLevel, logger.GetLevel())
	assert.IsType(t, &log.TextFormatter{}, logger.Formatter)
}
