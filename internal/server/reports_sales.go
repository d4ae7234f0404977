package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	reportingdomain "github.com/vendwatch/vendwatch/internal/reporting/domain"
	"github.com/vendwatch/vendwatch/internal/viewer"
)

func (s *Server) SalesCountPerRange(c *gin.Context) {
	s.runRangeReport(c, "sales_count_per_range", s.salesReports.CountPerRange)
}

func (s *Server) SalesRevenuePerRange(c *gin.Context) {
	v, ok := currentViewer(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	req, err := bindRangeRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	rows, err := s.salesReports.RevenuePerRange(c.Request.Context(), v, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.metrics.RecordReportQuery(c.Request.Context(), "sales_revenue_per_range")
	c.JSON(http.StatusOK, gin.H{"data": rows})
}

func (s *Server) SalesCountPerGeography(c *gin.Context) {
	s.runFilterReport(c, "sales_count_per_geography", func(v viewer.Viewer, req reportingdomain.FilterRequest) (any, error) {
		return s.salesReports.CountPerGeography(c.Request.Context(), v, req)
	})
}

func (s *Server) SalesCountPerCategory(c *gin.Context) {
	s.runFilterReport(c, "sales_count_per_category", func(v viewer.Viewer, req reportingdomain.FilterRequest) (any, error) {
		return s.salesReports.CountPerCategory(c.Request.Context(), v, req)
	})
}

func (s *Server) SalesCountPerMachine(c *gin.Context) {
	s.runFilterReport(c, "sales_count_per_machine", func(v viewer.Viewer, req reportingdomain.FilterRequest) (any, error) {
		return s.salesReports.CountPerMachine(c.Request.Context(), v, req)
	})
}

func (s *Server) SalesAverageWithTrend(c *gin.Context) {
	s.runFilterReport(c, "sales_average_trend", func(v viewer.Viewer, req reportingdomain.FilterRequest) (any, error) {
		return s.salesReports.AverageWithTrend(c.Request.Context(), v, req)
	})
}

// SalesExportPreview returns the paginated preview of the denormalized
// export rows; the file download lives under /api/exports/sales.
func (s *Server) SalesExportPreview(c *gin.Context) {
	v, ok := currentViewer(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	in, err := bindFilterInput(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	page, err := bindPagination(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.salesReports.Export(c.Request.Context(), v, reportingdomain.ExportRequest{
		Filter:     in,
		Pagination: page,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.metrics.RecordReportQuery(c.Request.Context(), "sales_export_preview")
	c.JSON(http.StatusOK, gin.H{"data": resp.Page})
}
