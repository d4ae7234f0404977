package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	reportingdomain "github.com/vendwatch/vendwatch/internal/reporting/domain"
	"github.com/vendwatch/vendwatch/internal/viewer"
)

func (s *Server) ImpressionsCountPerRange(c *gin.Context) {
	s.runRangeReport(c, "impressions_count_per_range", s.impReports.CountPerRange)
}

func (s *Server) ImpressionsSecondsPerRange(c *gin.Context) {
	s.runRangeReport(c, "impressions_seconds_per_range", s.impReports.SecondsPerRange)
}

func (s *Server) ImpressionsPlayoutsPerRange(c *gin.Context) {
	s.runRangeReport(c, "impressions_playouts_per_range", s.impReports.PlayoutsPerRange)
}

func (s *Server) ImpressionsPerGeography(c *gin.Context) {
	s.runFilterReport(c, "impressions_per_geography", func(v viewer.Viewer, req reportingdomain.FilterRequest) (any, error) {
		return s.impReports.PerGeography(c.Request.Context(), v, req)
	})
}

func (s *Server) ImpressionsPerVenue(c *gin.Context) {
	s.runFilterReport(c, "impressions_per_venue", func(v viewer.Viewer, req reportingdomain.FilterRequest) (any, error) {
		return s.impReports.PerVenue(c.Request.Context(), v, req)
	})
}

func (s *Server) ImpressionsPerVenuePerRange(c *gin.Context) {
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

	rows, err := s.impReports.PerVenuePerRange(c.Request.Context(), v, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.metrics.RecordReportQuery(c.Request.Context(), "impressions_per_venue_per_range")
	c.JSON(http.StatusOK, gin.H{"data": rows})
}

func (s *Server) ImpressionsPerZone(c *gin.Context) {
	s.runFilterReport(c, "impressions_per_zone", func(v viewer.Viewer, req reportingdomain.FilterRequest) (any, error) {
		return s.impReports.PerZone(c.Request.Context(), v, req)
	})
}

func (s *Server) ImpressionsAverageWithTrend(c *gin.Context) {
	s.runFilterReport(c, "impressions_average_trend", func(v viewer.Viewer, req reportingdomain.FilterRequest) (any, error) {
		return s.impReports.AverageWithTrend(c.Request.Context(), v, req)
	})
}

func (s *Server) ImpressionsPlayoutsAverageWithTrend(c *gin.Context) {
	s.runFilterReport(c, "impressions_playouts_average_trend", func(v viewer.Viewer, req reportingdomain.FilterRequest) (any, error) {
		return s.impReports.PlayoutsAverageWithTrend(c.Request.Context(), v, req)
	})
}

func (s *Server) ImpressionsComposite(c *gin.Context) {
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

	rows, err := s.impReports.Composite(c.Request.Context(), v, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.metrics.RecordReportQuery(c.Request.Context(), "impressions_composite")
	c.JSON(http.StatusOK, gin.H{"data": rows})
}

// ImpressionsExportPreview returns the paginated preview of the
// denormalized export rows; the file download lives under
// /api/exports/impressions.
func (s *Server) ImpressionsExportPreview(c *gin.Context) {
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

	resp, err := s.impReports.Export(c.Request.Context(), v, reportingdomain.ExportRequest{
		Filter:     in,
		Pagination: page,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.metrics.RecordReportQuery(c.Request.Context(), "impressions_export_preview")
	c.JSON(http.StatusOK, gin.H{"data": resp.Page})
}
