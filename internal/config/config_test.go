package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func setRequired(t *testing.T) {
	t.Helper()
	// point at a file that does not exist so a developer .env cannot leak in
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("MASTER_API_KEY", "master")
}

func TestLoadConfig_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "v1", cfg.APIVersion)
	assert.Equal(t, 30*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, 120*time.Second, cfg.HeartbeatTimeout)
	assert.Zero(t, cfg.WSMessageRate)
	assert.Equal(t, 20, cfg.WSMessageBurst)
	assert.Empty(t, cfg.APIKeys)
	assert.Empty(t, cfg.DatabaseURL)
	assert.False(t, cfg.SpotifyEnabled())
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("API_KEYS", " key-a, key-b ,,")
	t.Setenv("HEARTBEAT_INTERVAL", "15")
	t.Setenv("HEARTBEAT_TIMEOUT", "1m")
	t.Setenv("SPOTIFY_CLIENT_ID", "id")
	t.Setenv("SPOTIFY_CLIENT_SECRET", "secret")
	t.Setenv("SPOTIFY_REDIRECT_URI", "http://localhost/cb")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, []string{"key-a", "key-b"}, cfg.APIKeys)
	assert.Equal(t, 15*time.Second, cfg.HeartbeatInterval)
	assert.Equal(t, time.Minute, cfg.HeartbeatTimeout)
	assert.True(t, cfg.SpotifyEnabled())
}

func TestLoadConfig_MissingRequired(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("JWT_SECRET", "")
	t.Setenv("MASTER_API_KEY", "master")

	_, err := LoadConfig()
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestLoadConfig_InvalidNumber(t *testing.T) {
	setRequired(t)
	t.Setenv("HTTP_PORT", "eighty")

	_, err := LoadConfig()
	assert.ErrorContains(t, err, "HTTP_PORT")
}

func TestValidate(t *testing.T) {
	setRequired(t)
	cfg, err := LoadConfig()
	require.NoError(t, err)

	cfg.JWTSecret = "short"
	cfg.HeartbeatTimeout = cfg.HeartbeatInterval
	cfg.UploadMaxSize = "lots"

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
	assert.Contains(t, err.Error(), "HEARTBEAT_TIMEOUT")
	assert.Contains(t, err.Error(), "UPLOAD_MAX_SIZE")
}

func TestValidate_MessageRate(t *testing.T) {
	setRequired(t)
	cfg, err := LoadConfig()
	require.NoError(t, err)

	cfg.WSMessageRate = -1
	assert.ErrorContains(t, cfg.Validate(), "WS_MESSAGE_RATE")

	cfg.WSMessageRate = 5
	cfg.WSMessageBurst = 0
	assert.ErrorContains(t, cfg.Validate(), "WS_MESSAGE_BURST")

	cfg.WSMessageBurst = 10
	assert.NoError(t, cfg.Validate())
}

func TestUploadMaxBytes(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{"10MB", 10 << 20},
		{"512kb", 512 << 10},
		{"1048576", 1 << 20},
		{"2 GB", 2 << 30},
	}
	for _, tt := range tests {
		cfg := &Config{UploadMaxSize: tt.input}
		got, err := cfg.UploadMaxBytes()
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.want, got, tt.input)
	}
}
