package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleStatement() *Statement {
	at := time.Date(2026, 3, 11, 10, 0, 0, 0, time.UTC)
	return &Statement{
		UserID:      "u1",
		Tier:        "beta",
		GeneratedAt: at,
		Balance:     7,
		TotalEarned: 10,
		TotalSpent:  3,
		Lines: []StatementLine{
			{EntryID: "spend:1", CreatedAt: at.Add(time.Minute), Type: "spend", Amount: -3, Reason: "tool run", RelatedTool: "resume", ResultingBalance: 7},
			{EntryID: "signup:u1", CreatedAt: at, Type: "earn", Amount: 10, Reason: "beta signup", ResultingBalance: 10},
		},
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatXLSX, "excel": FormatXLSX, "XLSX": FormatXLSX, "pdf": FormatPDF} {
		got, err := ParseFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFormat("csv")
	assert.Error(t, err)
}

func TestRenderExcel(t *testing.T) {
	out, err := NewService().Render(sampleStatement(), FormatXLSX)
	require.NoError(t, err)
	assert.Equal(t, "statement-u1-20260311.xlsx", out.FileName)

	f, err := excelize.OpenReader(bytes.NewReader(out.Body))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(statementSheet)
	require.NoError(t, err)
	assert.Equal(t, "Credit statement: u1", rows[0][0])
	assert.Equal(t, []string{"Balance", "7"}, rows[3])

	headerIdx := -1
	for i, row := range rows {
		if len(row) > 0 && row[0] == statementHeaders[0] {
			headerIdx = i
		}
	}
	require.NotEqual(t, -1, headerIdx)
	require.Len(t, rows, headerIdx+3)
	assert.Equal(t, "-3", rows[headerIdx+1][2])
	assert.Equal(t, "beta signup", rows[headerIdx+2][4])
}

func TestRenderExcelMarksTruncatedStatement(t *testing.T) {
	st := sampleStatement()
	st.Truncated = true
	out, err := NewService().Render(st, FormatXLSX)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out.Body))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(statementSheet)
	require.NoError(t, err)
	require.Equal(t, "Note", rows[6][0])
	assert.Contains(t, rows[6][1], "2 most recent entries")

	pdfOut, err := NewService().Render(st, FormatPDF)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdfOut.Body, []byte("%PDF")))
}

func TestRenderPDF(t *testing.T) {
	st := sampleStatement()
	for i := 0; i < 80; i++ {
		st.Lines = append(st.Lines, st.Lines[0])
	}
	out, err := NewService().Render(st, FormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", out.ContentType)
	assert.True(t, bytes.HasPrefix(out.Body, []byte("%PDF")))
}

func TestRenderUnknownFormat(t *testing.T) {
	_, err := NewService().Render(sampleStatement(), Format("csv"))
	assert.Error(t, err)
}
