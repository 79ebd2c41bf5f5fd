package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"twin-data/internal/domain"
)

var journalHeader = []string{"Время", "Значение", "Единица измерения", "Примечания", "Внесено", "Дата ввода"}
var journalWidths = []float64{26, 14, 18, 30, 16, 26}

var historyWidths = []float64{12, 8, 30, 14, 18, 30, 16}

// JournalWorkbook 单个手动传感器的读数日志
func JournalWorkbook(sensor domain.Sensor, readings []domain.Reading) ([]byte, error) {
	rows := make([][]any, 0, len(readings))
	for _, r := range readings {
		rows = append(rows, []any{r.Timestamp, r.Value, sensor.Unit, r.Notes, r.EnteredBy, r.EntryDate})
	}
	title := sensor.Code
	if title == "" {
		title = sensor.ID
	}
	return workbook(sheetName(title), journalHeader, journalWidths, rows)
}

// HistoryWorkbook 录入审计记录
func HistoryWorkbook(entries []domain.HistoryEntry) ([]byte, error) {
	rows := make([][]any, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []any{e.Date, e.Time, e.SensorName, e.Value, e.SensorUnit, e.Notes, e.EnteredBy})
	}
	return workbook("История ввода", HistoryCSVHeader, historyWidths, rows)
}

// workbook 单工作表：带样式的表头、列宽、冻结首行
func workbook(sheet string, headers []string, widths []float64, rows [][]any) ([]byte, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(sheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if sheet != "Sheet1" {
		f.DeleteSheet("Sheet1")
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	valueStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create value style: %w", err)
	}

	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
		if col < len(widths) {
			name, _ := excelize.ColumnNumberToName(col + 1)
			if err := f.SetColWidth(sheet, name, name, widths[col]); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set column width: %w", err)
			}
		}
	}

	for i, values := range rows {
		row := i + 2
		for j, v := range values {
			cell, err := excelize.CoordinatesToCellName(j+1, row)
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to convert coordinates: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set cell %s: %w", cell, err)
			}
			if _, isNum := v.(float64); isNum {
				if err := f.SetCellStyle(sheet, cell, cell, valueStyle); err != nil {
					f.Close()
					return nil, fmt.Errorf("failed to set value style: %w", err)
				}
			}
		}
	}

	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}
	return buf.Bytes(), nil
}

// sheetName Excel 工作表名最长 31 个字符且不能包含 []:*?/\
func sheetName(name string) string {
	r := []rune(name)
	out := make([]rune, 0, len(r))
	for _, c := range r {
		switch c {
		case '[', ']', ':', '*', '?', '/', '\\':
			c = '_'
		}
		out = append(out, c)
		if len(out) == 31 {
			break
		}
	}
	if len(out) == 0 {
		return "Sheet1"
	}
	return string(out)
}
