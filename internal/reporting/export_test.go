package reporting

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/mitienda/mitienda/report"
)

func sampleDataset() Dataset {
	return productDataset([]ProductRow{
		{ID: 1, Name: "Camisa Azul", Category: "Ropa", Brand: "Acme", Price: decimal.RequireFromString("19.99"), TotalStock: 12, Available: true, Featured: false},
		{ID: 2, Name: "Taza", Category: "Hogar", Brand: "", Price: decimal.NewFromInt(8), TotalStock: 0, Available: false, Featured: true},
	})
}

func TestEncodeCSVRendersYesNo(t *testing.T) {
	data, err := EncodeCSV(sampleDataset())
	require.NoError(t, err)

	out := string(data)
	require.Contains(t, out, "ID,Name,Category,Brand,Price,Stock,Available,Featured")
	require.Contains(t, out, "1,Camisa Azul,Ropa,Acme,19.99,12,Yes,No")
	require.Contains(t, out, "2,Taza,Hogar,,8.00,0,No,Yes")
	// Exports never use the badge glyphs from the HTML listings.
	require.NotContains(t, out, "badge")
	require.NotContains(t, out, "✓")
}

func TestEncodeXLSXRoundTrips(t *testing.T) {
	data, err := EncodeXLSX(sampleDataset())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Sheet1")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, []string{"ID", "Name", "Category", "Brand", "Price", "Stock", "Available", "Featured"}, rows[0])
	require.Equal(t, "Yes", rows[1][6])
	require.Equal(t, "No", rows[1][7])
}

func TestEncodePDFSendsHTMLTable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/forms/chromium/convert/html", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(10<<20))

		file, _, err := r.FormFile("files")
		require.NoError(t, err)
		defer file.Close()

		html, err := io.ReadAll(file)
		require.NoError(t, err)
		require.Contains(t, string(html), "Camisa Azul")
		require.Contains(t, string(html), "<th>Available</th>")
		require.Contains(t, string(html), "Yes")

		require.Equal(t, "true", r.FormValue("landscape"))

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("%PDF-mock"))
	}))
	defer srv.Close()

	client := report.NewClient(srv.URL)
	data, err := EncodePDF(context.Background(), client, sampleDataset())
	require.NoError(t, err)
	require.Equal(t, "%PDF-mock", string(data))
}

func TestFilenameIsTimestamped(t *testing.T) {
	now := time.Date(2026, 8, 29, 15, 30, 0, 0, time.UTC)
	require.Equal(t, "products_20260829_153000.csv", Filename(sampleDataset(), FormatCSV, now))
	require.Equal(t, "products_20260829_153000.xlsx", Filename(sampleDataset(), FormatXLSX, now))
}

func TestParseFormat(t *testing.T) {
	for _, ok := range []string{"csv", "xlsx", "pdf"} {
		f, err := ParseFormat(ok)
		require.NoError(t, err)
		require.Equal(t, Format(ok), f)
	}
	_, err := ParseFormat("docx")
	require.Error(t, err)
}
