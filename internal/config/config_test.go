package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("API_BASE_URL", "")
	t.Setenv("STORAGE_DRIVER", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000/api", cfg.API.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.API.LogoutTimeout)
	assert.Equal(t, "bolt", cfg.Storage.Driver)
	assert.False(t, cfg.Auth.ReevaluateBearer)
	assert.Contains(t, cfg.Routes.Public, "/about")
	assert.Equal(t, "127.0.0.1:7070", cfg.AgentAddress())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://api.example.edu/v1/")
	t.Setenv("LOGOUT_TIMEOUT", "2")
	t.Setenv("AUTH_GRACE_COOLDOWN", "1m")
	t.Setenv("ROUTES_PUBLIC", " /,/about , ,/news")
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("AGENT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.edu/v1", cfg.API.BaseURL)
	assert.Equal(t, 2*time.Second, cfg.API.LogoutTimeout)
	assert.Equal(t, time.Minute, cfg.Auth.GraceCooldown)
	assert.Equal(t, []string{"/", "/about", "/news"}, cfg.Routes.Public)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, "s3cret", cfg.Agent.Secret)
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	cases := map[string]map[string]string{
		"relative base url": {"API_BASE_URL": "/api"},
		"unknown driver":    {"API_BASE_URL": "http://x.test", "STORAGE_DRIVER": "sqlite"},
		"margin too large":  {"API_BASE_URL": "http://x.test", "STORAGE_DRIVER": "memory", "AUTH_REFRESH_MARGIN": "2h"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
