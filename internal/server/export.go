package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vendwatch/vendwatch/internal/export"
	reportingdomain "github.com/vendwatch/vendwatch/internal/reporting/domain"
)

// DownloadSalesExport renders the full filtered sale row set as a file.
func (s *Server) DownloadSalesExport(c *gin.Context) {
	v, ok := currentViewer(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	in, err := bindFilterInput(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.salesReports.Export(c.Request.Context(), v, reportingdomain.ExportRequest{
		Filter:    in,
		RawResult: true,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	headers, records := export.SaleRows(resp.Rows)
	file, err := s.renderer.Render(format, "sales", headers, records)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.metrics.RecordExportRendered(c.Request.Context(), "sale", string(format))
	serveFile(c, file)
}

// DownloadImpressionsExport renders the full filtered impression row set.
func (s *Server) DownloadImpressionsExport(c *gin.Context) {
	v, ok := currentViewer(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	in, err := bindFilterInput(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.impReports.Export(c.Request.Context(), v, reportingdomain.ExportRequest{
		Filter:    in,
		RawResult: true,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	headers, records := export.ImpressionRows(resp.Rows)
	file, err := s.renderer.Render(format, "impressions", headers, records)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.metrics.RecordExportRendered(c.Request.Context(), "impression", string(format))
	serveFile(c, file)
}

func serveFile(c *gin.Context, file *export.File) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name))
	c.Data(http.StatusOK, file.ContentType, file.Data)
}
