package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// ExportFormat defines the export file format.
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatXLSX ExportFormat = "xlsx"
	FormatJSON ExportFormat = "json"
)

// FormatFromPath picks the export format from a file extension.
func FormatFromPath(path string) (ExportFormat, error) {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "csv":
		return FormatCSV, nil
	case "xlsx":
		return FormatXLSX, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported export format for %s (want .csv, .xlsx or .json)", path)
	}
}

// ExportOptions defines export configuration.
type ExportOptions struct {
	Format    ExportFormat
	FilePath  string
	Delimiter rune // For CSV, default is comma
}

// Exporter handles exporting reports to various formats.
type Exporter struct {
	options *ExportOptions
}

// NewExporter creates a new exporter.
func NewExporter(options *ExportOptions) *Exporter {
	return &Exporter{options: options}
}

// ExportToFile exports report to path in the format implied by its extension.
func ExportToFile(report *Report, path string) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	return NewExporter(&ExportOptions{Format: format, FilePath: path}).Export(report)
}

// Export exports a report to the specified format.
func (e *Exporter) Export(report *Report) error {
	switch e.options.Format {
	case FormatCSV:
		return e.exportCSV(report)
	case FormatXLSX:
		return e.exportXLSX(report)
	case FormatJSON:
		return e.exportJSON(report)
	default:
		return fmt.Errorf("unsupported export format: %s", e.options.Format)
	}
}

// exportCSV exports report to CSV format.
func (e *Exporter) exportCSV(report *Report) error {
	file, err := os.Create(e.options.FilePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if e.options.Delimiter != 0 {
		writer.Comma = e.options.Delimiter
	}

	if err := writer.Write(report.Definition.Columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, row := range report.Rows {
		values := make([]string, len(report.Definition.Columns))
		for i, col := range report.Definition.Columns {
			values[i] = formatValue(row.Values[col])
		}
		if err := writer.Write(values); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// exportXLSX exports report to Excel format.
func (e *Exporter) exportXLSX(report *Report) error {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := sanitizeSheetName(report.Definition.Name)
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if sheetName != "Sheet1" {
		f.DeleteSheet("Sheet1")
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"1565C0"}},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})

	for i, col := range report.Definition.Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, col)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)

		colName, _ := excelize.ColumnNumberToName(i + 1)
		width := float64(len(col) + 5)
		if col == ColURL || col == ColDescription || col == ColLocation {
			width = 60
		}
		f.SetColWidth(sheetName, colName, colName, width)
	}

	for rowIdx, row := range report.Rows {
		for i, col := range report.Definition.Columns {
			cell, _ := excelize.CoordinatesToCellName(i+1, rowIdx+2)
			if val, ok := row.Values[col]; ok {
				f.SetCellValue(sheetName, cell, val)
			}
		}
	}

	f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})

	e.addMetadataSheet(f, report)

	return f.SaveAs(e.options.FilePath)
}

// addMetadataSheet adds a metadata sheet to the Excel file.
func (e *Exporter) addMetadataSheet(f *excelize.File, report *Report) {
	sheetName := "Metadata"
	f.NewSheet(sheetName)

	metadata := [][]string{
		{"Report Name", report.Definition.Name},
		{"Description", report.Definition.Description},
		{"Total Rows", fmt.Sprintf("%d", report.TotalCount)},
		{"Generated", time.Now().Format(time.RFC3339)},
		{"Tool", "go2web"},
	}

	for i, row := range metadata {
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", i+1), row[0])
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", i+1), row[1])
	}

	f.SetColWidth(sheetName, "A", "A", 20)
	f.SetColWidth(sheetName, "B", "B", 50)
}

// exportJSON exports report to JSON format.
func (e *Exporter) exportJSON(report *Report) error {
	data := &JSONReport{
		Metadata: JSONMetadata{
			Name:        report.Definition.Name,
			Description: report.Definition.Description,
			TotalCount:  report.TotalCount,
			Generated:   time.Now().Format(time.RFC3339),
			Columns:     report.Definition.Columns,
		},
		Rows: make([]map[string]interface{}, 0, len(report.Rows)),
	}
	for _, row := range report.Rows {
		data.Rows = append(data.Rows, row.Values)
	}

	file, err := os.Create(e.options.FilePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)

	return encoder.Encode(data)
}

// JSONReport represents the JSON export structure.
type JSONReport struct {
	Metadata JSONMetadata             `json:"metadata"`
	Rows     []map[string]interface{} `json:"rows"`
}

// JSONMetadata represents report metadata.
type JSONMetadata struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	TotalCount  int      `json:"total_count"`
	Generated   string   `json:"generated"`
	Columns     []string `json:"columns"`
}

// formatValue converts a value to string for export.
func formatValue(v interface{}) string {
	if v == nil {
		return ""
	}

	switch val := v.(type) {
	case string:
		return val
	case int:
		return fmt.Sprintf("%d", val)
	case bool:
		if val {
			return "yes"
		}
		return "no"
	default:
		return fmt.Sprintf("%v", val)
	}
}

// sanitizeSheetName strips characters Excel rejects and caps the length at 31.
func sanitizeSheetName(name string) string {
	replacer := strings.NewReplacer(":", "", "\\", "", "/", "", "?", "", "*", "", "[", "", "]", "")
	name = replacer.Replace(name)
	if len(name) > 31 {
		name = name[:31]
	}
	if name == "" {
		name = "Sheet1"
	}
	return name
}
