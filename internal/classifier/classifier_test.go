package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"twin-data/internal/domain"
)

func testSensors() []domain.Sensor {
	return []domain.Sensor{
		{ID: "T-101", Kind: domain.SensorKindAutomatic, Type: domain.SensorTypeTemperature},
		{ID: "T-102", Kind: domain.SensorKindAutomatic, Type: domain.SensorTypeTemperature},
		{ID: "P-201", Kind: domain.SensorKindAutomatic, Type: domain.SensorTypePressure},
		{ID: "F-301", Kind: domain.SensorKindAutomatic, Type: domain.SensorTypeFlow},
		{ID: "T-005", Kind: domain.SensorKindManual, IsManual: true, IsActive: true, Type: domain.SensorTypeTemperature},
		{ID: "Q-001", Kind: domain.SensorKindManual, IsManual: true, IsActive: true, Type: domain.SensorTypeQuality},
		{ID: "C-001", Kind: domain.SensorKindManual, IsManual: true, IsActive: true, Type: domain.SensorTypeComposition},
		{ID: "C-002", Kind: domain.SensorKindManual, IsManual: true, IsActive: false, Type: domain.SensorTypeComposition},
	}
}

func ids(sensors []domain.Sensor) []string {
	out := make([]string, 0, len(sensors))
	for _, s := range sensors {
		out = append(out, s.ID)
	}
	return out
}

func TestGroupPredicates(t *testing.T) {
	assert.True(t, IsManualGroup(domain.GroupManualInput))
	assert.True(t, IsManualGroup(domain.GroupManualVerification))
	assert.False(t, IsManualGroup(domain.GroupInput))
	assert.False(t, IsManualGroup(domain.GroupLaboratory))

	assert.True(t, IsLaboratoryGroup(domain.GroupLaboratory))
	assert.False(t, IsLaboratoryGroup(domain.GroupManualInput))

	assert.False(t, RequiresSensorPicker(domain.GroupNone))
	assert.False(t, RequiresSensorPicker("bogus"))
	assert.Equal(t, Flags{Manual: true, SensorPicker: true}, Classify(domain.GroupManualInput))
	assert.Equal(t, Flags{Laboratory: true, SensorPicker: true}, Classify(domain.GroupLaboratory))
}

func TestInferType(t *testing.T) {
	cases := []struct {
		row  domain.MappingRow
		want domain.SensorType
		ok   bool
	}{
		{domain.MappingRow{ParameterName: "Температура входа"}, domain.SensorTypeTemperature, true},
		{domain.MappingRow{ParameterName: "Перепад ДАВЛЕНИЯ"}, domain.SensorTypePressure, true},
		{domain.MappingRow{ParameterName: "Inlet Flow"}, domain.SensorTypeFlow, true},
		{domain.MappingRow{ParameterName: "Уровень жидкости"}, domain.SensorTypeLevel, true},
		{domain.MappingRow{ParameterName: "Вибрация"}, "", false},
		// first keyword wins
		{domain.MappingRow{ParameterName: "Температура и давление"}, domain.SensorTypeTemperature, true},
		// explicit tag beats the name
		{domain.MappingRow{ParameterName: "Температура", ParameterType: domain.SensorTypeFlow}, domain.SensorTypeFlow, true},
		// non-sensor tag falls back to the name
		{domain.MappingRow{ParameterName: "Тепловая нагрузка", ParameterType: "power"}, "", false},
	}
	for _, tc := range cases {
		got, ok := InferType(tc.row)
		assert.Equal(t, tc.ok, ok, tc.row.ParameterName)
		assert.Equal(t, tc.want, got, tc.row.ParameterName)
	}
}

func TestFilterSensorsFor_Verification(t *testing.T) {
	row := domain.MappingRow{ParameterName: "Температура входа", Unit: "°C"}
	got := FilterSensorsFor(row, domain.GroupVerification, testSensors())
	assert.Equal(t, []string{"T-101", "T-102"}, ids(got))
}

func TestFilterSensorsFor_NoTypeMatchFallsBack(t *testing.T) {
	row := domain.MappingRow{ParameterName: "Уровень жидкости"}
	got := FilterSensorsFor(row, domain.GroupInput, testSensors())
	assert.Equal(t, []string{"T-101", "T-102", "P-201", "F-301"}, ids(got))

	row = domain.MappingRow{ParameterName: "КПД"}
	got = FilterSensorsFor(row, domain.GroupInput, testSensors())
	assert.Equal(t, []string{"T-101", "T-102", "P-201", "F-301"}, ids(got))
}

func TestFilterSensorsFor_ManualSkipsDisabled(t *testing.T) {
	row := domain.MappingRow{ParameterName: "Температура входа"}
	got := FilterSensorsFor(row, domain.GroupManualInput, testSensors())
	assert.Equal(t, []string{"T-005", "Q-001", "C-001"}, ids(got))
}

func TestFilterSensorsFor_LaboratoryNeverAutomatic(t *testing.T) {
	for _, name := range []string{"Температура", "Состав газа", "Качество", "Влажность"} {
		got := FilterSensorsFor(domain.MappingRow{ParameterName: name}, domain.GroupLaboratory, testSensors())
		for _, s := range got {
			assert.True(t, s.IsManualSensor(), name)
		}
	}

	got := FilterSensorsFor(domain.MappingRow{ParameterName: "Состав газа"}, domain.GroupLaboratory, testSensors())
	assert.Equal(t, []string{"C-001", "C-002"}, ids(got))

	got = FilterSensorsFor(domain.MappingRow{ParameterName: "Температура"}, domain.GroupLaboratory, testSensors())
	assert.Equal(t, []string{"Q-001", "C-001", "C-002"}, ids(got))
}
