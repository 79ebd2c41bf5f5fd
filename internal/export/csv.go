// Package export 图表序列、录入记录与传感器定义的导出/导入
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"time"

	"twin-data/internal/chart"
	"twin-data/internal/domain"
)

// SeriesCSVHeader 图表数据导出表头
var SeriesCSVHeader = []string{"timestamp", "value", "unit"}

// HistoryCSVHeader 录入记录导出表头
var HistoryCSVHeader = []string{"Дата", "Время", "Датчик", "Значение", "Единица измерения", "Примечания", "Внесено"}

// WriteSeriesCSV 写出窗口内的样本（值保留 4 位小数）
func WriteSeriesCSV(w io.Writer, samples []chart.Sample, unit string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(SeriesCSVHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, s := range samples {
		record := []string{domain.FormatTimestamp(s.Timestamp), formatValue(s.Value), unit}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteHistoryCSV 写出录入审计记录
func WriteHistoryCSV(w io.Writer, entries []domain.HistoryEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(HistoryCSVHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, e := range entries {
		record := []string{e.Date, e.Time, e.SensorName, formatValue(e.Value), e.SensorUnit, e.Notes, e.EnteredBy}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv record: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

var spaces = regexp.MustCompile(`\s+`)

// SeriesFileName 如 "Датчик_T-101_2024-01-01.csv"
func SeriesFileName(sensorName string, now time.Time) string {
	return fmt.Sprintf("%s_%s.csv", spaces.ReplaceAllString(sensorName, "_"), now.UTC().Format("2006-01-02"))
}

// HistoryFileName 录入记录导出文件名（ext 不含点）
func HistoryFileName(now time.Time, ext string) string {
	return fmt.Sprintf("manual_data_entries_%s.%s", now.UTC().Format("2006-01-02"), ext)
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
