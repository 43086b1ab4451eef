package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr bool
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name: "valid minimal config",
			envVars: map[string]string{
				"CATALOG_API_URL": "https://api.example.com/v1",
				"CATALOG_API_KEY": "test-key",
			},
			check: func(t *testing.T, cfg *Config) {
				require.Equal(t, "https://api.example.com/v1", cfg.CatalogAPIURL)
				require.Equal(t, "test-key", cfg.CatalogAPIKey)
				require.Equal(t, "8080", cfg.ServerPort)
				require.Equal(t, "info", cfg.LogLevel)
				require.Equal(t, "tunecache.db", cfg.DatabasePath)
				require.Equal(t, "/downloads", cfg.DownloadsPath)
				require.Equal(t, 3, cfg.MaxConcurrent)
				require.Equal(t, time.Duration(0), cfg.OfflineExpiry)
			},
		},
		{
			name: "all values overridden",
			envVars: map[string]string{
				"CATALOG_API_URL":          "https://api.example.com/v1",
				"CATALOG_API_KEY":          "test-key",
				"SERVER_PORT":              "9090",
				"LOG_LEVEL":                "debug",
				"DATABASE_PATH":            "/tmp/test.db",
				"DOWNLOADS_PATH":           "/tmp",
				"MAX_CONCURRENT_DOWNLOADS": "5",
				"OFFLINE_EXPIRY":           "720h",
				"EXPIRY_REAP_INTERVAL":     "1h",
			},
			check: func(t *testing.T, cfg *Config) {
				require.Equal(t, "9090", cfg.ServerPort)
				require.Equal(t, "debug", cfg.LogLevel)
				require.Equal(t, 5, cfg.MaxConcurrent)
				require.Equal(t, 720*time.Hour, cfg.OfflineExpiry)
				require.Equal(t, time.Hour, cfg.ExpiryReapInterval)
			},
		},
		{
			name: "missing API URL",
			envVars: map[string]string{
				"CATALOG_API_KEY": "test-key",
			},
			wantErr: true,
		},
		{
			name: "missing API key",
			envVars: map[string]string{
				"CATALOG_API_URL": "https://api.example.com/v1",
			},
			wantErr: true,
		},
		{
			name: "invalid log level",
			envVars: map[string]string{
				"CATALOG_API_URL": "https://api.example.com/v1",
				"CATALOG_API_KEY": "test-key",
				"LOG_LEVEL":       "verbose",
			},
			wantErr: true,
		},
		{
			name: "zero concurrent downloads",
			envVars: map[string]string{
				"CATALOG_API_URL":          "https://api.example.com/v1",
				"CATALOG_API_KEY":          "test-key",
				"MAX_CONCURRENT_DOWNLOADS": "0",
			},
			wantErr: true,
		},
		{
			name: "relative downloads path",
			envVars: map[string]string{
				"CATALOG_API_URL": "https://api.example.com/v1",
				"CATALOG_API_KEY": "test-key",
				"DOWNLOADS_PATH":  "downloads",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			cfg, err := Load()
			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestValidate_DownloadsPathIsFile(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(filePath, []byte("x"), 0o644))

	cfg := &Config{
		CatalogAPIURL: "https://api.example.com/v1",
		CatalogAPIKey: "test-key",
		LogLevel:      "info",
		MaxConcurrent: 3,
		DownloadsPath: filePath,
	}

	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "must be a directory")
}

func TestValidate_CleansDownloadsPath(t *testing.T) {
	cfg := &Config{
		CatalogAPIURL: "https://api.example.com/v1",
		CatalogAPIKey: "test-key",
		LogLevel:      "info",
		MaxConcurrent: 3,
		DownloadsPath: "/downloads/../downloads/",
	}

	require.NoError(t, cfg.Validate())
	require.Equal(t, "/downloads", cfg.DownloadsPath)
}
