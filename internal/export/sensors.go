package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"twin-data/internal/domain"
	"twin-data/internal/registry"
)

// WriteSensorsJSON 导出手动传感器定义（不含读数与运行时状态）
func WriteSensorsJSON(w io.Writer, sensors []domain.Sensor) error {
	defs := make([]domain.Sensor, 0, len(sensors))
	for _, s := range sensors {
		s.ManualData = nil
		s.History = nil
		s.CurrentValue = nil
		s.LastUpdate = ""
		s.Status = ""
		defs = append(defs, s)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(defs); err != nil {
		return fmt.Errorf("failed to encode sensors: %w", err)
	}
	return nil
}

// ReadSensorsJSON 解析导入文件；顶层必须是数组
func ReadSensorsJSON(r io.Reader) ([]registry.SensorInput, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, domain.NewValidationError("Некорректный формат файла")
	}
	var inputs []registry.SensorInput
	if err := json.Unmarshal(raw, &inputs); err != nil {
		return nil, domain.NewValidationError("Некорректный формат файла")
	}
	if inputs == nil {
		return nil, domain.NewValidationError("Некорректный формат файла")
	}
	return inputs, nil
}

// SensorsFileName 如 "manual-sensors-2024-01-01.json"
func SensorsFileName(now time.Time) string {
	return fmt.Sprintf("manual-sensors-%s.json", now.UTC().Format("2006-01-02"))
}
