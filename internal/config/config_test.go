package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TWIN_CONFIG", "")
	t.Setenv("STORAGE_BACKEND", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, BackendRedis, cfg.StorageBackend)
	assert.Equal(t, "twin:changes", cfg.ChangeChannel)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.False(t, cfg.MQTT.Enabled)
	assert.Equal(t, byte(1), cfg.MQTT.QoS)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "twin.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  addr: ":9090"
storage_backend: memory
timezone: Europe/Moscow
seed_sensors:
  - id: T-900
    name: Датчик T-900
    type: temperature
    unit: "°C"
    value: 42.5
mqtt:
  enabled: true
  topic: plant/+/value
`), 0o600))

	t.Setenv("TWIN_CONFIG", path)
	t.Setenv("HTTP_ADDR", ":7070")
	t.Setenv("STORAGE_BACKEND", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.HTTP.Addr)
	assert.Equal(t, BackendMemory, cfg.StorageBackend)
	assert.Equal(t, "Europe/Moscow", cfg.Timezone)
	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, "plant/+/value", cfg.MQTT.Topic)
	require.Len(t, cfg.SeedSensors, 1)
	assert.Equal(t, "T-900", cfg.SeedSensors[0].ID)
	assert.Equal(t, 42.5, cfg.SeedSensors[0].Value)
}

func TestLoad_RejectsUnknownBackend(t *testing.T) {
	t.Setenv("TWIN_CONFIG", "")
	t.Setenv("STORAGE_BACKEND", "sqlite")

	_, err := Load()
	assert.Error(t, err)
}
