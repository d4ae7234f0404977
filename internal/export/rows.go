package export

import (
	"strconv"

	reportingdomain "github.com/vendwatch/vendwatch/internal/reporting/domain"
)

const dateLayout = "2006-01-02"

// SaleRows flattens denormalized sale rows for rendering.
func SaleRows(rows []reportingdomain.SaleExportRow) ([]string, [][]string) {
	headers := []string{"sale_date", "sale_time", "quantity", "product", "category", "machine", "geography", "source_system_id"}
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, []string{
			r.SaleDate.Format(dateLayout),
			r.SaleTime,
			strconv.FormatInt(r.Quantity, 10),
			r.ProductName,
			r.CategoryName,
			r.MachineName,
			r.GeographyName,
			r.SourceSystemID,
		})
	}
	return headers, records
}

// ImpressionRows flattens denormalized impression rows for rendering.
func ImpressionRows(rows []reportingdomain.ImpressionExportRow) ([]string, [][]string) {
	headers := []string{"date", "device_number", "type", "total_impressions", "seconds", "advert_playouts", "machine", "geography", "source_system"}
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, []string{
			r.Date.Format(dateLayout),
			r.DeviceNumber,
			string(r.Type),
			strconv.FormatFloat(r.TotalImpressions, 'f', -1, 64),
			strconv.FormatInt(r.Seconds, 10),
			strconv.FormatInt(r.AdvertPlayouts, 10),
			r.MachineName,
			r.GeographyName,
			r.SourceSystemName,
		})
	}
	return headers, records
}
