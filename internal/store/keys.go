package store

// 持久化键（与前端 localStorage 布局保持一致）
const (
	KeyMappingData        = "mappingData"
	KeyLabResearchData    = "labResearchData"
	KeyManualSensors      = "manualSensors"
	KeyManualSensorPrefix = "manualSensorData_"
	KeyManualEntryHistory = "manualDataEntryHistory"
	KeyLiveSensorPrefix   = "liveSensorData_"
)

// SensorDataKey 单个手动传感器的读数键
func SensorDataKey(sensorID string) string {
	return KeyManualSensorPrefix + sensorID
}

// LiveSensorKey 自动传感器实时历史键（由 twin-feed 写入）
func LiveSensorKey(sensorID string) string {
	return KeyLiveSensorPrefix + sensorID
}
