package app

import (
	"math/rand"
	"time"

	"go.uber.org/zap"

	"twin-data/internal/catalog"
	"twin-data/internal/config"
	"twin-data/internal/domain"
	"twin-data/internal/registry"
)

// AutomaticSensors 配置中的 seed_sensors；未配置时使用内置的六个传感器
func AutomaticSensors(cfg *config.Config, now time.Time, rnd *rand.Rand, logger *zap.Logger) []domain.Sensor {
	if len(cfg.SeedSensors) == 0 {
		return registry.DefaultAutomatic(now, rnd)
	}
	out := make([]domain.Sensor, 0, len(cfg.SeedSensors))
	for _, s := range cfg.SeedSensors {
		t := domain.SensorType(s.Type)
		if !t.IsValid() {
			logger.Warn("Unknown seed sensor type, using other", zap.String("sensor_id", s.ID), zap.String("type", s.Type))
			t = domain.SensorTypeOther
		}
		unit := s.Unit
		if unit == "" {
			unit = domain.DefaultUnit(t)
		}
		out = append(out, registry.AutomaticSensor(s.ID, s.Name, t, unit, s.Value, now, rnd))
	}
	return out
}

// SensorIDs 用于限制 twin-feed 接受的主题
func SensorIDs(sensors []domain.Sensor) []string {
	ids := make([]string, 0, len(sensors))
	for _, s := range sensors {
		ids = append(ids, s.ID)
	}
	return ids
}

// LoadCatalog CATALOG_FILE 为空时使用内置目录
func LoadCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	if cfg.CatalogFile == "" {
		return catalog.Default(), nil
	}
	return catalog.LoadFile(cfg.CatalogFile)
}
