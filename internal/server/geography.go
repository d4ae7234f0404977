package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	geographydomain "github.com/vendwatch/vendwatch/internal/geography/domain"
	"github.com/vendwatch/vendwatch/pkg/db/pagination"
)

type createGeographyRequest struct {
	Name          string `json:"name"`
	Postcode      string `json:"postcode"`
	MapLocationID string `json:"map_location_id"`
}

func (s *Server) CreateGeography(c *gin.Context) {
	var req createGeographyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.geographySvc.Create(c.Request.Context(), geographydomain.CreateGeographyRequest{
		Name:          strings.TrimSpace(req.Name),
		Postcode:      strings.TrimSpace(req.Postcode),
		MapLocationID: strings.TrimSpace(req.MapLocationID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListGeographies(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Search string   `form:"search"`
		Sort   []string `form:"sort"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.geographySvc.List(c.Request.Context(), geographydomain.ListGeographyRequest{
		Pagination: query.Pagination,
		Search:     strings.TrimSpace(query.Search),
		Sort:       splitSortParams(query.Sort),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetGeographyByID(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, geographydomain.ErrInvalidID)
		return
	}

	resp, err := s.geographySvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type updateGeographyRequest struct {
	Name          string  `json:"name"`
	Postcode      *string `json:"postcode"`
	MapLocationID *string `json:"map_location_id"`
}

func (s *Server) UpdateGeography(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, geographydomain.ErrInvalidID)
		return
	}

	var req updateGeographyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.geographySvc.Update(c.Request.Context(), geographydomain.UpdateGeographyRequest{
		ID:            id,
		Name:          strings.TrimSpace(req.Name),
		Postcode:      req.Postcode,
		MapLocationID: req.MapLocationID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteGeography(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, geographydomain.ErrInvalidID)
		return
	}

	if err := s.geographySvc.Delete(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
