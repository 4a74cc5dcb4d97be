package export

import (
	"bytes"
	"fmt"
)

// Service picks the exporter for a format
type Service struct {
	exporters map[Format]Exporter
}

// NewService creates a new export service
func NewService() *Service {
	return &Service{
		exporters: map[Format]Exporter{
			FormatPDF:  NewPDFExporter(),
			FormatXLSX: NewExcelExporter(),
		},
	}
}

// Rendered is an exported statement ready to be served
type Rendered struct {
	Body        []byte
	ContentType string
	FileName    string
}

// Render exports st in the given format
func (s *Service) Render(st *Statement, format Format) (*Rendered, error) {
	exporter, ok := s.exporters[format]
	if !ok {
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}

	var buf bytes.Buffer
	if err := exporter.Export(st, &buf); err != nil {
		return nil, fmt.Errorf("%s export failed: %w", format, err)
	}

	return &Rendered{
		Body:        buf.Bytes(),
		ContentType: exporter.ContentType(),
		FileName:    fmt.Sprintf("statement-%s-%s%s", st.UserID, st.GeneratedAt.UTC().Format("20060102"), exporter.FileExtension()),
	}, nil
}
