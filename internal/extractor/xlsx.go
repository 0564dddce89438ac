package extractor

import (
	"io"
	"strings"

	"github.com/cbayrak/tenderdoc/internal/document"
	"github.com/xuri/excelize/v2"
)

// SheetExtractor handles spreadsheet files via excelize, preserving
// per-sheet row structure so the sheet chunker can batch rows with
// repeated headers. Gramaj and unit-price tables almost always arrive
// as spreadsheets.
type SheetExtractor struct{}

func (p *SheetExtractor) Extract(r io.Reader, filename string) (*document.RawDocument, error) {
	out := &document.RawDocument{
		Kind:       document.KindXLSX,
		SourceName: filename,
	}

	f, err := excelize.OpenReader(r)
	if err != nil {
		// Legacy .xls or corrupt container: degrade instead of failing.
		out.NeedsOCR = true
		return out, nil
	}
	defer f.Close()

	var buf strings.Builder
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil || len(rows) == 0 {
			continue
		}

		sheet := document.Sheet{Name: name}
		sheet.Headers = rows[0]
		if len(rows) > 1 {
			sheet.Rows = rows[1:]
		}
		out.Sheets = append(out.Sheets, sheet)

		if buf.Len() > 0 {
			buf.WriteString("\n\n")
		}
		buf.WriteString("[Sayfa: " + name + "]\n")
		for i, row := range rows {
			if i > 0 {
				buf.WriteString("\n")
			}
			buf.WriteString(strings.Join(row, "\t"))
		}
	}

	out.Text = CleanText(buf.String())
	return out, nil
}
