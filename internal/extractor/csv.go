package extractor

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/cbayrak/tenderdoc/internal/document"
)

// CSVExtractor handles CSV files. Rows are kept tab-joined so the
// structure detector recognizes the table lines, and the parsed rows are
// preserved as a single sheet for the sheet chunker.
type CSVExtractor struct{}

func (p *CSVExtractor) Extract(r io.Reader, filename string) (*document.RawDocument, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	out := &document.RawDocument{
		Kind:       document.KindCSV,
		SourceName: filename,
	}
	if len(records) == 0 {
		return out, nil
	}

	sheet := document.Sheet{Name: filename, Headers: records[0]}
	if len(records) > 1 {
		sheet.Rows = records[1:]
	}
	out.Sheets = []document.Sheet{sheet}

	var buf strings.Builder
	for i, row := range records {
		if i > 0 {
			buf.WriteString("\n")
		}
		buf.WriteString(strings.Join(row, "\t"))
	}
	out.Text = CleanText(buf.String())
	return out, nil
}
