package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	machinedomain "github.com/vendwatch/vendwatch/internal/machine/domain"
	"github.com/vendwatch/vendwatch/pkg/db/pagination"
)

type createMachineRequest struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	GeographyID string `json:"geography_id"`
}

func (s *Server) CreateMachine(c *gin.Context) {
	var req createMachineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	geographyID, err := parseSnowflakeID(req.GeographyID)
	if err != nil {
		AbortWithError(c, machinedomain.ErrInvalidGeography)
		return
	}

	resp, err := s.machineSvc.Create(c.Request.Context(), machinedomain.CreateMachineRequest{
		Name:        strings.TrimSpace(req.Name),
		DisplayName: strings.TrimSpace(req.DisplayName),
		GeographyID: geographyID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListMachines(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Search      string   `form:"search"`
		GeographyID []string `form:"geography_id"`
		Sort        []string `form:"sort"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	geographyIDs, err := parseIDList(query.GeographyID)
	if err != nil {
		AbortWithError(c, machinedomain.ErrInvalidGeography)
		return
	}

	resp, err := s.machineSvc.List(c.Request.Context(), machinedomain.ListMachineRequest{
		Pagination:   query.Pagination,
		Search:       strings.TrimSpace(query.Search),
		GeographyIDs: geographyIDs,
		Sort:         splitSortParams(query.Sort),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetMachineByID(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, machinedomain.ErrInvalidID)
		return
	}

	resp, err := s.machineSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type updateMachineRequest struct {
	Name        string  `json:"name"`
	DisplayName *string `json:"display_name"`
	GeographyID string  `json:"geography_id"`
}

func (s *Server) UpdateMachine(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, machinedomain.ErrInvalidID)
		return
	}

	var req updateMachineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	geographyID, err := parseSnowflakeID(req.GeographyID)
	if err != nil {
		AbortWithError(c, machinedomain.ErrInvalidGeography)
		return
	}

	resp, err := s.machineSvc.Update(c.Request.Context(), machinedomain.UpdateMachineRequest{
		ID:          id,
		Name:        strings.TrimSpace(req.Name),
		DisplayName: req.DisplayName,
		GeographyID: geographyID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteMachine(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, machinedomain.ErrInvalidID)
		return
	}

	if err := s.machineSvc.Delete(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

type linkDeviceRequest struct {
	DeviceNumber string `json:"device_number"`
}

func (s *Server) LinkDevice(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, machinedomain.ErrInvalidID)
		return
	}

	var req linkDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.machineSvc.LinkDevice(c.Request.Context(), machinedomain.LinkDeviceRequest{
		MachineID:    id,
		DeviceNumber: strings.TrimSpace(req.DeviceNumber),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UnlinkDevice(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, machinedomain.ErrInvalidID)
		return
	}

	if err := s.machineSvc.UnlinkDevice(c.Request.Context(), machinedomain.LinkDeviceRequest{
		MachineID:    id,
		DeviceNumber: strings.TrimSpace(c.Param("device")),
	}); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
