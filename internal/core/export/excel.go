package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const statementSheet = "Statement"

// ExcelExporter implements Excel export using excelize
type ExcelExporter struct{}

// NewExcelExporter creates a new Excel exporter
func NewExcelExporter() *ExcelExporter {
	return &ExcelExporter{}
}

// Export writes the summary block followed by one row per ledger line
func (e *ExcelExporter) Export(st *Statement, writer io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", statementSheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	style := st.style()

	titleStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}})
	if err != nil {
		return fmt.Errorf("failed to create title style: %w", err)
	}
	f.SetCellValue(statementSheet, "A1", st.title())
	f.SetCellStyle(statementSheet, "A1", "A1", titleStyle)

	summary := [][]any{
		{"Generated", st.GeneratedAt.UTC().Format("2006-01-02 15:04:05")},
		{"Tier", st.Tier},
		{"Balance", st.Balance},
		{"Total earned", st.TotalEarned},
		{"Total spent", st.TotalSpent},
	}
	if st.Truncated {
		summary = append(summary, []any{"Note", st.truncationNote()})
	}
	rowIndex := 2
	for _, kv := range summary {
		f.SetCellValue(statementSheet, cellName(1, rowIndex), kv[0])
		f.SetCellValue(statementSheet, cellName(2, rowIndex), kv[1])
		rowIndex++
	}
	rowIndex++

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: style.FontSize, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{stripHash(style.HeaderBgColor)}},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	headerRow := rowIndex
	for col, header := range statementHeaders {
		cell := cellName(col+1, rowIndex)
		f.SetCellValue(statementSheet, cell, header)
		f.SetCellStyle(statementSheet, cell, cell, headerStyle)
	}
	f.SetColWidth(statementSheet, "A", "A", 20)
	f.SetColWidth(statementSheet, "E", "E", 30)
	f.SetColWidth(statementSheet, "G", "G", 40)
	rowIndex++

	oddStyle, _ := rowStyle(f, style, style.RowBgColor1)
	evenStyle, _ := rowStyle(f, style, style.RowBgColor2)

	for i, line := range st.Lines {
		rowCellStyle := oddStyle
		if i%2 == 1 {
			rowCellStyle = evenStyle
		}
		for col, value := range line.cells() {
			cell := cellName(col+1, rowIndex)
			f.SetCellValue(statementSheet, cell, value)
			f.SetCellStyle(statementSheet, cell, cell, rowCellStyle)
		}
		rowIndex++
	}

	f.SetPanes(statementSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      headerRow,
		TopLeftCell: cellName(1, headerRow+1),
		ActivePane:  "bottomLeft",
	})
	lastRow := headerRow + len(st.Lines)
	f.AutoFilter(statementSheet, fmt.Sprintf("A%d:%s", headerRow, cellName(len(statementHeaders), lastRow)), nil)

	if err := f.Write(writer); err != nil {
		return fmt.Errorf("failed to write Excel file: %w", err)
	}
	return nil
}

// ContentType returns the MIME type for Excel files
func (e *ExcelExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// FileExtension returns the file extension for Excel files
func (e *ExcelExporter) FileExtension() string {
	return ".xlsx"
}

func rowStyle(f *excelize.File, style Style, bgColor string) (int, error) {
	s := &excelize.Style{Font: &excelize.Font{Size: style.FontSize}}
	if bgColor != "" && bgColor != "#FFFFFF" {
		s.Fill = excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{stripHash(bgColor)}}
	}
	return f.NewStyle(s)
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

func stripHash(color string) string {
	if len(color) > 0 && color[0] == '#' {
		return color[1:]
	}
	return color
}
