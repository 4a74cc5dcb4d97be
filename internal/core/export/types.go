package export

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// Format is a statement file format
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts "pdf", "xlsx" and the alias "excel"; empty means xlsx
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "xlsx", "excel":
		return FormatXLSX, nil
	case "pdf":
		return FormatPDF, nil
	}
	return "", fmt.Errorf("unsupported export format: %s", s)
}

// Exporter renders a statement in one format
type Exporter interface {
	Export(st *Statement, writer io.Writer) error
	ContentType() string
	FileExtension() string
}

// Statement is the account summary plus the ledger lines being exported, newest first
type Statement struct {
	UserID      string
	Tier        string
	GeneratedAt time.Time
	Balance     int64
	TotalEarned int64
	TotalSpent  int64
	Lines       []StatementLine
	// Truncated is set when older entries were left out of Lines
	Truncated bool
	Style     Style
}

// StatementLine is one ledger entry
type StatementLine struct {
	EntryID          string
	CreatedAt        time.Time
	Type             string
	Amount           int64
	Reason           string
	RelatedTool      string
	ResultingBalance int64
}

// Style holds the styling shared by both exporters
type Style struct {
	HeaderBgColor string // hex
	RowBgColor1   string
	RowBgColor2   string
	FontSize      float64
}

// DefaultStyle returns default export styling
func DefaultStyle() Style {
	return Style{
		HeaderBgColor: "#4472C4",
		RowBgColor1:   "#FFFFFF",
		RowBgColor2:   "#F2F2F2",
		FontSize:      10,
	}
}

var statementHeaders = []string{"Date (UTC)", "Type", "Amount", "Balance", "Reason", "Tool", "Entry ID"}

func (st *Statement) style() Style {
	if st.Style.FontSize == 0 {
		return DefaultStyle()
	}
	return st.Style
}

func (st *Statement) title() string {
	return fmt.Sprintf("Credit statement: %s", st.UserID)
}

func (st *Statement) truncationNote() string {
	return fmt.Sprintf("Only the %d most recent entries are included; older entries were omitted", len(st.Lines))
}

func (l StatementLine) cells() []any {
	return []any{
		l.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		l.Type,
		l.Amount,
		l.ResultingBalance,
		l.Reason,
		l.RelatedTool,
		l.EntryID,
	}
}
