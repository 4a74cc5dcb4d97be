package export

import (
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"
)

// relative widths of statementHeaders columns
var pdfColumnWeights = []float64{3, 1.6, 1.4, 1.4, 4, 2, 4.6}

// PDFExporter implements PDF export using gofpdf
type PDFExporter struct {
	pageSize string
}

// NewPDFExporter creates a new PDF exporter
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{pageSize: "A4"}
}

// Export renders the statement as a landscape table, repeating the header on each page
func (p *PDFExporter) Export(st *Statement, writer io.Writer) error {
	style := st.style()
	pdf := gofpdf.New("L", "mm", p.pageSize, "")
	pdf.SetAutoPageBreak(false, 10)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, st.title())
	pdf.Ln(12)

	pdf.SetFont("Arial", "", style.FontSize)
	pdf.Cell(0, 5, fmt.Sprintf("Tier: %s | Balance: %d | Earned: %d | Spent: %d",
		st.Tier, st.Balance, st.TotalEarned, st.TotalSpent))
	pdf.Ln(6)
	pdf.SetFont("Arial", "I", 8)
	pdf.Cell(0, 5, fmt.Sprintf("Generated: %s", st.GeneratedAt.UTC().Format("2006-01-02 15:04:05")))
	pdf.Ln(5)
	if st.Truncated {
		pdf.Cell(0, 5, st.truncationNote())
		pdf.Ln(5)
	}
	pdf.Ln(3)

	pageWidth, pageHeight := pdf.GetPageSize()
	left, _, right, bottom := pdf.GetMargins()
	usable := pageWidth - left - right
	var totalWeight float64
	for _, w := range pdfColumnWeights {
		totalWeight += w
	}
	widths := make([]float64, len(pdfColumnWeights))
	for i, w := range pdfColumnWeights {
		widths[i] = usable * w / totalWeight
	}

	drawHeader := func() {
		pdf.SetFont("Arial", "B", style.FontSize)
		r, g, b := hexToRGB(style.HeaderBgColor)
		pdf.SetFillColor(r, g, b)
		pdf.SetTextColor(255, 255, 255)
		for i, header := range statementHeaders {
			pdf.CellFormat(widths[i], 7, header, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetTextColor(0, 0, 0)
		pdf.SetFont("Arial", "", style.FontSize-1)
	}
	drawHeader()

	for i, line := range st.Lines {
		if pdf.GetY()+6 > pageHeight-bottom-10 {
			pdf.AddPage()
			drawHeader()
		}
		bg := style.RowBgColor1
		if i%2 == 1 {
			bg = style.RowBgColor2
		}
		r, g, b := hexToRGB(bg)
		pdf.SetFillColor(r, g, b)
		for col, value := range line.cells() {
			align := "L"
			if col == 2 || col == 3 {
				align = "R"
			}
			pdf.CellFormat(widths[col], 6, fmt.Sprintf("%v", value), "1", 0, align, true, 0, "")
		}
		pdf.Ln(-1)
	}

	if err := pdf.Output(writer); err != nil {
		return fmt.Errorf("failed to write PDF: %w", err)
	}
	return nil
}

// ContentType returns the MIME type for PDF files
func (p *PDFExporter) ContentType() string {
	return "application/pdf"
}

// FileExtension returns the file extension for PDF files
func (p *PDFExporter) FileExtension() string {
	return ".pdf"
}

func hexToRGB(hex string) (int, int, int) {
	hex = stripHash(hex)
	if len(hex) != 6 {
		return 255, 255, 255
	}
	var r, g, b int
	fmt.Sscanf(hex, "%02x%02x%02x", &r, &g, &b)
	return r, g, b
}
