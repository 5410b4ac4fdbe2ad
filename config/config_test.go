package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	config, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), config)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
http:
  port: 9090
  timeout: 5s
model:
  path: /srv/models/url.joblib
database:
  driver: postgres
  dsn: postgres://user@localhost/phish?sslmode=disable
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	config, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, config.Http.Port)
	assert.Equal(t, 5*time.Second, config.Http.Timeout)
	assert.Equal(t, "/srv/models/url.joblib", config.Model.Path)
	assert.Equal(t, "postgres", config.Database.Driver)
	assert.Equal(t, "debug", config.Log.Level)
	// untouched sections keep their defaults
	assert.Equal(t, 1024, config.Cache.Size)
	assert.Equal(t, []string{"*"}, config.Http.AllowedOrigins)
}

func TestLoadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	config, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5000, config.Http.Port)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad yaml", "http: [port"},
		{"bad port", "http:\n  port: 70000\n"},
		{"bad driver", "database:\n  driver: mysql\n"},
		{"empty model path", "model:\n  path: \"\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}
