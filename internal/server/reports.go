package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	reportingdomain "github.com/vendwatch/vendwatch/internal/reporting/domain"
	"github.com/vendwatch/vendwatch/internal/viewer"
)

// runRangeReport handles the shared shape of every gap-filled time-series
// endpoint: resolve the viewer, bind the frame and filter, run, count.
func (s *Server) runRangeReport(
	c *gin.Context,
	operation string,
	query func(ctx context.Context, v viewer.Viewer, req reportingdomain.RangeRequest) ([]reportingdomain.RangeRow, error),
) {
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

	rows, err := query(c.Request.Context(), v, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.metrics.RecordReportQuery(c.Request.Context(), operation)
	c.JSON(http.StatusOK, gin.H{"data": rows})
}

// runFilterReport is the non-bucketed counterpart.
func (s *Server) runFilterReport(
	c *gin.Context,
	operation string,
	query func(v viewer.Viewer, req reportingdomain.FilterRequest) (any, error),
) {
	v, ok := currentViewer(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	req, err := bindFilterRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	rows, err := query(v, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.metrics.RecordReportQuery(c.Request.Context(), operation)
	c.JSON(http.StatusOK, gin.H{"data": rows})
}
