package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	productdomain "github.com/vendwatch/vendwatch/internal/product/domain"
	"github.com/vendwatch/vendwatch/pkg/db/pagination"
)

type createCategoryRequest struct {
	Name string `json:"name"`
}

func (s *Server) CreateProductCategory(c *gin.Context) {
	var req createCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.productSvc.CreateCategory(c.Request.Context(), productdomain.CreateCategoryRequest{
		Name: strings.TrimSpace(req.Name),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListProductCategories(c *gin.Context) {
	resp, err := s.productSvc.ListCategories(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type createProductRequest struct {
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	CategoryID string `json:"category_id"`
}

func (s *Server) CreateProduct(c *gin.Context) {
	var req createProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	categoryID, err := parseSnowflakeID(req.CategoryID)
	if err != nil {
		AbortWithError(c, productdomain.ErrInvalidCategory)
		return
	}

	resp, err := s.productSvc.Create(c.Request.Context(), productdomain.CreateProductRequest{
		Name:       strings.TrimSpace(req.Name),
		PriceCents: req.PriceCents,
		CategoryID: categoryID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListProducts(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Search     string   `form:"search"`
		CategoryID []string `form:"category_id"`
		Sort       []string `form:"sort"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	categoryIDs, err := parseIDList(query.CategoryID)
	if err != nil {
		AbortWithError(c, productdomain.ErrInvalidCategory)
		return
	}

	resp, err := s.productSvc.List(c.Request.Context(), productdomain.ListProductRequest{
		Pagination:  query.Pagination,
		Search:      strings.TrimSpace(query.Search),
		CategoryIDs: categoryIDs,
		Sort:        splitSortParams(query.Sort),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetProductByID(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, productdomain.ErrInvalidID)
		return
	}

	resp, err := s.productSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type updateProductRequest struct {
	Name       string `json:"name"`
	PriceCents *int64 `json:"price_cents"`
	CategoryID string `json:"category_id"`
}

func (s *Server) UpdateProduct(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, productdomain.ErrInvalidID)
		return
	}

	var req updateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	categoryID, err := parseSnowflakeID(req.CategoryID)
	if err != nil {
		AbortWithError(c, productdomain.ErrInvalidCategory)
		return
	}

	resp, err := s.productSvc.Update(c.Request.Context(), productdomain.UpdateProductRequest{
		ID:         id,
		Name:       strings.TrimSpace(req.Name),
		PriceCents: req.PriceCents,
		CategoryID: categoryID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteProduct(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, productdomain.ErrInvalidID)
		return
	}

	if err := s.productSvc.Delete(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
