package reporting

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// PDFRenderer converts HTML into a PDF document.
type PDFRenderer interface {
	RenderHTML(ctx context.Context, html string, landscape bool) ([]byte, error)
}

// Format identifies an export encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

// ParseFormat validates a requested format string.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatCSV, FormatXLSX, FormatPDF:
		return Format(s), nil
	}
	return "", fmt.Errorf("reporting: unsupported export format %q", s)
}

// ContentType returns the response MIME type for f.
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	}
	return "application/octet-stream"
}

// Filename derives the timestamped download name, e.g.
// "products_20260829_153000.csv".
func Filename(ds Dataset, f Format, now time.Time) string {
	return fmt.Sprintf("%s_%s.%s", ds.Name, now.Format("20060102_150405"), f)
}

// EncodeCSV writes the dataset as UTF-8 CSV with a header row.
func EncodeCSV(ds Dataset) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(ds.Headers); err != nil {
		return nil, err
	}
	for _, row := range ds.Rows {
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeXLSX writes the dataset as a single-sheet workbook with a bold
// frozen header row.
func EncodeXLSX(ds Dataset) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"
	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	for col, h := range ds.Headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return nil, err
		}
	}
	lastHeader, err := excelize.CoordinatesToCellName(len(ds.Headers), 1)
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(sheet, "A1", lastHeader, headerStyle); err != nil {
		return nil, err
	}
	if err := f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return nil, err
	}

	for i, row := range ds.Rows {
		for col, val := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(sheet, cell, val); err != nil {
				return nil, err
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodePDF renders the dataset as an HTML table and converts it via
// the renderer. Wide datasets go landscape.
func EncodePDF(ctx context.Context, renderer PDFRenderer, ds Dataset) ([]byte, error) {
	return renderer.RenderHTML(ctx, datasetHTML(ds), len(ds.Headers) > 5)
}

func datasetHTML(ds Dataset) string {
	var b strings.Builder
	b.WriteString(`<!doctype html><html><head><meta charset="utf-8"><style>
body { font-family: sans-serif; font-size: 11px; }
h1 { font-size: 16px; text-transform: capitalize; }
table { width: 100%; border-collapse: collapse; }
th, td { border: 1px solid #999; padding: 4px 6px; text-align: left; }
th { background: #eee; }
</style></head><body>`)
	b.WriteString("<h1>" + html.EscapeString(ds.Name) + "</h1><table><thead><tr>")
	for _, h := range ds.Headers {
		b.WriteString("<th>" + html.EscapeString(h) + "</th>")
	}
	b.WriteString("</tr></thead><tbody>")
	for _, row := range ds.Rows {
		b.WriteString("<tr>")
		for _, val := range row {
			b.WriteString("<td>" + html.EscapeString(val) + "</td>")
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</tbody></table></body></html>")
	return b.String()
}

// Encode dispatches on format. PDF needs the renderer; the other
// formats ignore it.
func Encode(ctx context.Context, f Format, renderer PDFRenderer, ds Dataset) ([]byte, error) {
	switch f {
	case FormatCSV:
		return EncodeCSV(ds)
	case FormatXLSX:
		return EncodeXLSX(ds)
	case FormatPDF:
		return EncodePDF(ctx, renderer, ds)
	}
	return nil, fmt.Errorf("reporting: unsupported export format %q", f)
}
