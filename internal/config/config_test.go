package config

import (
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestLoadMemoryDriverDefaults(t *testing.T) {
    t.Setenv("STORE_DRIVER", "memory")
    t.Setenv("JWT_SECRET", "test-secret")
    t.Setenv("MEDIA_URL", "/assets")

    cfg, err := Load()
    require.NoError(t, err)
    assert.Equal(t, DriverMemory, cfg.StoreDriver)
    assert.Equal(t, "8080", cfg.Port)
    assert.Equal(t, "/assets/", cfg.MediaURL)
    assert.Equal(t, 60, cfg.AccessTTLMin)
    assert.Equal(t, int64(5<<20), cfg.MaxUploadBytes)
    assert.False(t, cfg.EventsEnabled)
}

func TestLoadReportsEveryProblem(t *testing.T) {
    t.Setenv("STORE_DRIVER", "mysql")
    t.Setenv("JWT_SECRET", "")
    t.Setenv("DB_USER", "")
    t.Setenv("DB_NAME", "")
    t.Setenv("BCRYPT_COST", "abc")

    _, err := Load()
    require.Error(t, err)
    msg := err.Error()
    assert.Contains(t, msg, "JWT_SECRET")
    assert.Contains(t, msg, "DB_USER")
    assert.Contains(t, msg, "DB_NAME")
    assert.Contains(t, msg, `invalid int for BCRYPT_COST: "abc"`)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
    t.Setenv("STORE_DRIVER", "sqlite")
    t.Setenv("JWT_SECRET", "x")

    _, err := Load()
    require.Error(t, err)
    assert.Contains(t, err.Error(), "STORE_DRIVER")
}

func TestRateLimitConfigNormalized(t *testing.T) {
    t.Setenv("RATE_LIMIT_CAPACITY", "0")
    t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
    t.Setenv("RATE_LIMIT_TTL", "1s")

    cfg := LoadRateLimitConfig()
    assert.Equal(t, 1, cfg.Capacity)
    assert.Equal(t, 2*time.Second, cfg.RefillInterval)
    assert.Equal(t, 10*time.Second, cfg.TTL)
}

func TestCacheConfigMethods(t *testing.T) {
    t.Setenv("CACHE_METHODS", "get, head")
    cfg := LoadCacheConfig()
    assert.True(t, cfg.Methods["GET"])
    assert.True(t, cfg.Methods["HEAD"])
    assert.False(t, cfg.Methods["POST"])
}

func TestLoadAdminAccount(t *testing.T) {
    t.Setenv("STORE_DRIVER", "memory")
    t.Setenv("JWT_SECRET", "x")
    t.Setenv("ADMIN_EMAIL", " admin@test.com ")
    t.Setenv("ADMIN_PASSWORD", "adminpass")

    cfg, err := Load()
    require.NoError(t, err)
    assert.Equal(t, "admin@test.com", cfg.AdminEmail)
    assert.Equal(t, "adminpass", cfg.AdminPassword)

    t.Setenv("ADMIN_PASSWORD", "")
    _, err = Load()
    require.Error(t, err)
    assert.Contains(t, err.Error(), "ADMIN_PASSWORD")
}
