package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	impressiondomain "github.com/vendwatch/vendwatch/internal/impression/domain"
	saledomain "github.com/vendwatch/vendwatch/internal/sale/domain"
)

type nayaxSaleRequest struct {
	TransactionID string         `json:"transaction_id"`
	MachineID     string         `json:"machine_id"`
	ProductID     string         `json:"product_id"`
	SaleDate      string         `json:"sale_date"`
	SaleTime      string         `json:"sale_time"`
	Quantity      int64          `json:"quantity"`
	Raw           map[string]any `json:"raw"`
}

// IngestNayaxSale accepts one sale fact from the Nayax feed. A replayed
// transaction id returns the accepted fact unchanged, so vendor retries
// are safe.
func (s *Server) IngestNayaxSale(c *gin.Context) {
	var req nayaxSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	machineID, err := parseSnowflakeID(req.MachineID)
	if err != nil {
		AbortWithError(c, saledomain.ErrInvalidMachine)
		return
	}
	productID, err := parseSnowflakeID(req.ProductID)
	if err != nil {
		AbortWithError(c, saledomain.ErrInvalidProduct)
		return
	}
	saleDate, err := time.Parse(dateOnlyLayout, strings.TrimSpace(req.SaleDate))
	if err != nil {
		AbortWithError(c, saledomain.ErrInvalidDate)
		return
	}

	resp, err := s.saleSvc.Ingest(c.Request.Context(), saledomain.IngestSaleRequest{
		SourceSystemID: strings.TrimSpace(req.TransactionID),
		MachineID:      machineID,
		ProductID:      productID,
		SaleDate:       saleDate,
		SaleTime:       strings.TrimSpace(req.SaleTime),
		Quantity:       req.Quantity,
		Raw:            req.Raw,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.metrics.RecordFactIngested(c.Request.Context(), "nayax", "sale")
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type dataJamImpressionRequest struct {
	SourceSystemName string         `json:"source_system_name"`
	SourceSystemID   string         `json:"source_system_id"`
	DeviceNumber     string         `json:"device_number"`
	Date             string         `json:"date"`
	TotalImpressions float64        `json:"total_impressions"`
	Seconds          int64          `json:"seconds"`
	AdvertPlayouts   int64          `json:"advert_playouts"`
	Type             string         `json:"type"`
	Raw              map[string]any `json:"raw"`
}

// IngestDataJamImpression accepts one impression fact. The source system
// name defaults to the feed; DataJam relays third-party counters under
// their own names.
func (s *Server) IngestDataJamImpression(c *gin.Context) {
	var req dataJamImpressionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	date, err := time.Parse(dateOnlyLayout, strings.TrimSpace(req.Date))
	if err != nil {
		AbortWithError(c, impressiondomain.ErrInvalidDate)
		return
	}

	sourceName := strings.TrimSpace(req.SourceSystemName)
	if sourceName == "" {
		sourceName = "datajam"
	}
	kind := impressiondomain.Type(strings.TrimSpace(req.Type))
	if kind == "" {
		kind = impressiondomain.TypeImpression
	}

	resp, err := s.impressionSvc.Ingest(c.Request.Context(), impressiondomain.IngestImpressionRequest{
		SourceSystemName: sourceName,
		SourceSystemID:   strings.TrimSpace(req.SourceSystemID),
		DeviceNumber:     strings.TrimSpace(req.DeviceNumber),
		Date:             date,
		TotalImpressions: req.TotalImpressions,
		Seconds:          req.Seconds,
		AdvertPlayouts:   req.AdvertPlayouts,
		Type:             kind,
		Raw:              req.Raw,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.metrics.RecordFactIngested(c.Request.Context(), "datajam", "impression")
	c.JSON(http.StatusOK, gin.H{"data": resp})
}
