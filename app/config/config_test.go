package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	SetDefaults()

	cfg, err := Decode()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "http://127.0.0.1:8483/api", cfg.Backend.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Backend.TimeoutDuration())
	assert.Equal(t, 3*time.Second, cfg.Poller.IntervalDuration())
	assert.Equal(t, "task-storage", cfg.Storage.StateKey)
	assert.Equal(t, "https://www.bilibili.com/", cfg.Proxy.Referer)
}

func TestDecodeOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	SetDefaults()

	viper.Set("backend.base_url", "http://backend:8483/api/")
	viper.Set("poller.interval", 10)

	cfg, err := Decode()
	require.NoError(t, err)
	assert.Equal(t, "http://backend:8483/api", cfg.Backend.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Poller.IntervalDuration())
}

func TestDecodeInvalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  any
	}{
		{"empty port", "server.port", ""},
		{"empty backend", "backend.base_url", ""},
		{"zero interval", "poller.interval", 0},
		{"empty state key", "storage.state_key", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()
			t.Cleanup(viper.Reset)
			SetDefaults()
			viper.Set(tt.key, tt.val)

			_, err := Decode()
			assert.Error(t, err)
		})
	}
}
