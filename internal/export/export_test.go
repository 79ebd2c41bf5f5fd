package export

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"twin-data/internal/chart"
	"twin-data/internal/domain"
)

func TestWriteSeriesCSV(t *testing.T) {
	ts := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	samples := []chart.Sample{
		{Timestamp: ts, Value: 85.5},
		{Timestamp: ts.Add(time.Hour), Value: 1.0 / 3},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteSeriesCSV(&buf, samples, "°C"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "timestamp,value,unit", lines[0])
	assert.Equal(t, "2024-01-01T10:00:00.000Z,85.5000,°C", lines[1])
	assert.Equal(t, "2024-01-01T11:00:00.000Z,0.3333,°C", lines[2])
}

func TestWriteSeriesCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSeriesCSV(&buf, nil, "%"))
	assert.Equal(t, "timestamp,value,unit\n", buf.String())
}

func TestWriteHistoryCSV_QuotesNotes(t *testing.T) {
	entries := []domain.HistoryEntry{{
		SensorName: "Ручной датчик", SensorUnit: "%", Value: 50,
		Notes: "проба, повтор", EnteredBy: "Иванов", Date: "01.01.2024", Time: "10:00",
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteHistoryCSV(&buf, entries))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Дата,Время,Датчик,Значение,Единица измерения,Примечания,Внесено", lines[0])
	assert.Equal(t, `01.01.2024,10:00,Ручной датчик,50.0000,%,"проба, повтор",Иванов`, lines[1])
}

func TestFileNames(t *testing.T) {
	now := time.Date(2024, 3, 5, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, "Температура_реактора_2024-03-05.csv", SeriesFileName("Температура  реактора", now))
	assert.Equal(t, "manual_data_entries_2024-03-05.xlsx", HistoryFileName(now, "xlsx"))
	assert.Equal(t, "manual-sensors-2024-03-05.json", SensorsFileName(now))
}

func TestJournalWorkbook(t *testing.T) {
	sensor := domain.Sensor{ID: "m1", Code: "L-001", Name: "Уровень", Unit: "%"}
	readings := []domain.Reading{
		{Timestamp: "2024-01-01T10:00:00.000Z", Value: 42.5, Notes: "n", EnteredBy: "Оператор", EntryDate: "2024-01-01T10:01:00.000Z"},
	}

	data, err := JournalWorkbook(sensor, readings)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"L-001"}, f.GetSheetList())
	header, err := f.GetCellValue("L-001", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Время", header)

	ts, err := f.GetCellValue("L-001", "A2")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01T10:00:00.000Z", ts)

	unit, err := f.GetCellValue("L-001", "C2")
	require.NoError(t, err)
	assert.Equal(t, "%", unit)
}

func TestHistoryWorkbook(t *testing.T) {
	entries := []domain.HistoryEntry{
		{Date: "01.01.2024", Time: "10:00", SensorName: "A", SensorUnit: "°C", Value: 10, EnteredBy: "X"},
		{Date: "01.01.2024", Time: "09:00", SensorName: "B", SensorUnit: "%", Value: 20, EnteredBy: "Y"},
	}

	data, err := HistoryWorkbook(entries)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("История ввода")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, HistoryCSVHeader, rows[0])
	assert.Equal(t, "B", rows[2][2])
}

func TestSheetName(t *testing.T) {
	assert.Equal(t, "T_1", sheetName("T/1"))
	assert.Equal(t, "Sheet1", sheetName(""))
	assert.Len(t, []rune(sheetName(strings.Repeat("д", 40))), 31)
}

func TestSensorsJSON_RoundTrip(t *testing.T) {
	v := 12.0
	sensors := []domain.Sensor{{
		ID: "m1", Name: "Датчик", Code: "T-001", Kind: domain.SensorKindManual,
		Type: domain.SensorTypeTemperature, Unit: "°C", IsActive: true, IsManual: true,
		CurrentValue: &v, ManualData: []domain.Reading{{Value: 12}},
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteSensorsJSON(&buf, sensors))
	assert.NotContains(t, buf.String(), "manualData")
	assert.Contains(t, buf.String(), `"currentValue": null`)

	inputs, err := ReadSensorsJSON(&buf)
	require.NoError(t, err)
	require.Len(t, inputs, 1)
	assert.Equal(t, "T-001", inputs[0].Code)
	require.NotNil(t, inputs[0].IsActive)
	assert.True(t, *inputs[0].IsActive)

	// 源数据不被修改
	assert.Len(t, sensors[0].ManualData, 1)
}

func TestReadSensorsJSON_RejectsNonArray(t *testing.T) {
	for _, payload := range []string{`{"name":"x"}`, `null`, `not json`} {
		_, err := ReadSensorsJSON(strings.NewReader(payload))
		var verr *domain.ValidationError
		assert.True(t, errors.As(err, &verr), payload)
	}
}
