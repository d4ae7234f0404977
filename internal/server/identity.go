package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	identitydomain "github.com/vendwatch/vendwatch/internal/identity/domain"
)

type createUserRequest struct {
	Email       string   `json:"email"`
	FullName    string   `json:"full_name"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

func (s *Server) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.identitySvc.Create(c.Request.Context(), identitydomain.CreateUserRequest{
		Email:       strings.TrimSpace(req.Email),
		FullName:    strings.TrimSpace(req.FullName),
		Role:        identitydomain.Role(strings.TrimSpace(req.Role)),
		Permissions: req.Permissions,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetUserByID(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, identitydomain.ErrInvalidUser)
		return
	}

	resp, err := s.identitySvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) grantRequest(c *gin.Context) (identitydomain.GrantRequest, error) {
	userID, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		return identitydomain.GrantRequest{}, identitydomain.ErrInvalidUser
	}
	targetID, err := parseSnowflakeID(c.Param("targetId"))
	if err != nil {
		return identitydomain.GrantRequest{}, identitydomain.ErrInvalidTarget
	}
	return identitydomain.GrantRequest{UserID: userID, TargetID: targetID}, nil
}

func (s *Server) GrantMachine(c *gin.Context) {
	req, err := s.grantRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.identitySvc.GrantMachine(c.Request.Context(), req); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) RevokeMachine(c *gin.Context) {
	req, err := s.grantRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.identitySvc.RevokeMachine(c.Request.Context(), req); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) GrantProduct(c *gin.Context) {
	req, err := s.grantRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.identitySvc.GrantProduct(c.Request.Context(), req); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) RevokeProduct(c *gin.Context) {
	req, err := s.grantRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.identitySvc.RevokeProduct(c.Request.Context(), req); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) ListMachineGrants(c *gin.Context) {
	s.listGrants(c, s.identitySvc.MachineGrants)
}

func (s *Server) ListProductGrants(c *gin.Context) {
	s.listGrants(c, s.identitySvc.ProductGrants)
}

func (s *Server) listGrants(c *gin.Context, fetch func(ctx context.Context, userID snowflake.ID) ([]snowflake.ID, error)) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, identitydomain.ErrInvalidUser)
		return
	}

	ids, err := fetch(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if ids == nil {
		ids = []snowflake.ID{}
	}

	c.JSON(http.StatusOK, gin.H{"data": ids})
}
