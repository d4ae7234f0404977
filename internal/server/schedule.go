package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/vendwatch/vendwatch/internal/export"
	"github.com/vendwatch/vendwatch/internal/reporting/filter"
	scheduledomain "github.com/vendwatch/vendwatch/internal/schedule/domain"
	"github.com/vendwatch/vendwatch/internal/viewer"
)

type createScheduleRequest struct {
	Name       string       `json:"name"`
	Kind       string       `json:"kind"`
	Format     string       `json:"format"`
	Recurrence string       `json:"recurrence"`
	Filter     filter.Input `json:"filter"`
	Recipient  string       `json:"recipient"`
}

// CreateSchedule registers a recurring report owned by the caller; the
// runner later executes it under the owner's scope.
func (s *Server) CreateSchedule(c *gin.Context) {
	v, ok := currentViewer(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req createScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	format, err := export.ParseFormat(req.Format)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.scheduleSvc.Create(c.Request.Context(), scheduledomain.CreateScheduleRequest{
		OwnerID:    v.UserID,
		Name:       strings.TrimSpace(req.Name),
		Kind:       scheduledomain.Kind(strings.TrimSpace(req.Kind)),
		Format:     format,
		Recurrence: scheduledomain.Recurrence(strings.TrimSpace(req.Recurrence)),
		Filter:     req.Filter,
		Recipient:  strings.TrimSpace(req.Recipient),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// ListSchedules shows the caller's schedules. Superusers see every
// schedule and can narrow with owner_id.
func (s *Server) ListSchedules(c *gin.Context) {
	v, ok := currentViewer(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	page, err := bindPagination(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	ownerID := v.UserID
	if v.Superuser {
		ownerID = 0
		if raw := strings.TrimSpace(c.Query("owner_id")); raw != "" {
			ownerID, err = parseSnowflakeID(raw)
			if err != nil {
				AbortWithError(c, scheduledomain.ErrInvalidOwner)
				return
			}
		}
	}

	resp, err := s.scheduleSvc.List(c.Request.Context(), scheduledomain.ListSchedulesRequest{
		OwnerID:    ownerID,
		Pagination: page,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// loadOwnedSchedule fetches the schedule and enforces ownership. A foreign
// schedule reads as not found so ids do not leak.
func (s *Server) loadOwnedSchedule(c *gin.Context) (scheduledomain.ReportSchedule, viewer.Viewer, error) {
	v, ok := currentViewer(c)
	if !ok {
		return scheduledomain.ReportSchedule{}, viewer.Viewer{}, ErrUnauthorized
	}

	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		return scheduledomain.ReportSchedule{}, v, scheduledomain.ErrNotFound
	}

	sched, err := s.scheduleSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		return scheduledomain.ReportSchedule{}, v, err
	}
	if !v.Superuser && sched.OwnerID != v.UserID {
		return scheduledomain.ReportSchedule{}, v, scheduledomain.ErrNotFound
	}
	return sched, v, nil
}

func (s *Server) GetScheduleByID(c *gin.Context) {
	sched, _, err := s.loadOwnedSchedule(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": sched})
}

type updateScheduleRequest struct {
	Name       *string       `json:"name"`
	Format     *string       `json:"format"`
	Recurrence *string       `json:"recurrence"`
	Filter     *filter.Input `json:"filter"`
	Recipient  *string       `json:"recipient"`
	Active     *bool         `json:"active"`
}

func (s *Server) UpdateSchedule(c *gin.Context) {
	sched, _, err := s.loadOwnedSchedule(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req updateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	update := scheduledomain.UpdateScheduleRequest{
		ID:        sched.ID,
		Name:      req.Name,
		Filter:    req.Filter,
		Recipient: req.Recipient,
		Active:    req.Active,
	}
	if req.Format != nil {
		format, err := export.ParseFormat(*req.Format)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		update.Format = &format
	}
	if req.Recurrence != nil {
		recurrence := scheduledomain.Recurrence(strings.TrimSpace(*req.Recurrence))
		update.Recurrence = &recurrence
	}

	resp, err := s.scheduleSvc.Update(c.Request.Context(), update)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteSchedule(c *gin.Context) {
	sched, _, err := s.loadOwnedSchedule(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.scheduleSvc.Delete(c.Request.Context(), sched.ID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
