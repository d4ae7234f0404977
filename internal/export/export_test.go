package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	reportingdomain "github.com/vendwatch/vendwatch/internal/reporting/domain"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func testRenderer() *Renderer {
	return New(Params{Log: zap.NewNop()})
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = ParseFormat(" XLSX ")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)

	_, err = ParseFormat("pdf")
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestRenderCSVRoundTrips(t *testing.T) {
	file, err := testRenderer().Render(FormatCSV, "sales", []string{"a", "b"}, [][]string{
		{"1", "x"},
		{"2", "y"},
	})
	require.NoError(t, err)
	assert.Equal(t, "text/csv", file.ContentType)
	assert.True(t, strings.HasPrefix(file.Name, "sales-"))
	assert.True(t, strings.HasSuffix(file.Name, ".csv"))

	records, err := csv.NewReader(bytes.NewReader(file.Data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"a", "b"}, records[0])
	assert.Equal(t, []string{"2", "y"}, records[2])
}

func TestRenderXLSX(t *testing.T) {
	file, err := testRenderer().Render(FormatXLSX, "impressions", []string{"h1", "h2"}, [][]string{
		{"v1", "v2"},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(file.Name, ".xlsx"))

	xl, err := excelize.OpenReader(bytes.NewReader(file.Data))
	require.NoError(t, err)
	defer xl.Close()

	header, err := xl.GetCellValue("impressions", "A1")
	require.NoError(t, err)
	assert.Equal(t, "h1", header)
	value, err := xl.GetCellValue("impressions", "B2")
	require.NoError(t, err)
	assert.Equal(t, "v2", value)
}

func TestFileNamesDoNotCollide(t *testing.T) {
	r := testRenderer()
	first, err := r.Render(FormatCSV, "sales", []string{"a"}, nil)
	require.NoError(t, err)
	second, err := r.Render(FormatCSV, "sales", []string{"a"}, nil)
	require.NoError(t, err)
	assert.NotEqual(t, first.Name, second.Name)
}

func TestSaleRows(t *testing.T) {
	headers, records := SaleRows([]reportingdomain.SaleExportRow{{
		SaleDate:       time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC),
		SaleTime:       "23:45:00",
		Quantity:       2,
		ProductName:    "Cola",
		CategoryName:   "Drinks",
		MachineName:    "Lobby",
		GeographyName:  "North",
		SourceSystemID: "s-1",
	}})
	assert.Equal(t, "sale_date", headers[0])
	require.Len(t, records, 1)
	assert.Equal(t, []string{"2024-03-05", "23:45:00", "2", "Cola", "Drinks", "Lobby", "North", "s-1"}, records[0])
}
