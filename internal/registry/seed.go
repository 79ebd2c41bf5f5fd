package registry

import (
	"math/rand"
	"time"

	"twin-data/internal/chart"
	"twin-data/internal/domain"
)

// AutomaticSensor 构造自动传感器，历史为最近 24 小时的模拟序列
func AutomaticSensor(id, name string, t domain.SensorType, unit string, value float64, now time.Time, rnd *rand.Rand) domain.Sensor {
	if unit == "" {
		unit = domain.DefaultUnit(t)
	}
	v := value
	return domain.Sensor{
		ID:           id,
		Name:         name,
		Code:         id,
		Kind:         domain.SensorKindAutomatic,
		Type:         t,
		CurrentValue: &v,
		Unit:         unit,
		Status:       domain.SensorStatusNormal,
		LastUpdate:   domain.FormatTimestamp(now),
		History:      chart.MockHistory(&v, 24, now, rnd),
		IsActive:     true,
	}
}

// DefaultAutomatic 内置的自动传感器
func DefaultAutomatic(now time.Time, rnd *rand.Rand) []domain.Sensor {
	return []domain.Sensor{
		AutomaticSensor("T-101", "Датчик T-101", domain.SensorTypeTemperature, "°C", 85.5, now, rnd),
		AutomaticSensor("T-102", "Датчик T-102", domain.SensorTypeTemperature, "°C", 92.3, now, rnd),
		AutomaticSensor("P-201", "Датчик P-201", domain.SensorTypePressure, "МПа", 2.4, now, rnd),
		AutomaticSensor("F-301", "Датчик F-301", domain.SensorTypeFlow, "м³/ч", 120.5, now, rnd),
		AutomaticSensor("L-401", "Датчик L-401", domain.SensorTypeLevel, "%", 65, now, rnd),
		AutomaticSensor("Q-501", "Датчик Q-501", domain.SensorTypeQuality, "ед.", 98.2, now, rnd),
	}
}
