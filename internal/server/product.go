package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/pos/internal/audit/domain"
	productdomain "github.com/smallbiznis/pos/internal/product/domain"
)

func (s *Server) CreateProduct(c *gin.Context) {
	var req productdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.productSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.audit(c, auditdomain.ActionProductCreate, "product", resp.ID, map[string]any{
		"code":       resp.Code,
		"name":       resp.Name,
		"unit_price": resp.UnitPrice.StringFixed(2),
		"stock":      resp.Stock,
	})

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListProducts(c *gin.Context) {
	var query struct {
		Name     string `form:"name"`
		Active   string `form:"active"`
		LowStock string `form:"low_stock"`
		SortBy   string `form:"sort_by"`
		OrderBy  string `form:"order_by"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	active, err := parseOptionalBool(query.Active)
	if err != nil {
		AbortWithError(c, newValidationError("active", "invalid_active", "invalid active"))
		return
	}
	lowStock, err := parseOptionalBool(query.LowStock)
	if err != nil {
		AbortWithError(c, newValidationError("low_stock", "invalid_low_stock", "invalid low_stock"))
		return
	}

	resp, err := s.productSvc.List(c.Request.Context(), productdomain.ListRequest{
		Name:     strings.TrimSpace(query.Name),
		Active:   active,
		LowStock: lowStock,
		SortBy:   strings.TrimSpace(query.SortBy),
		OrderBy:  strings.TrimSpace(query.OrderBy),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetProductByID(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.productSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateProduct(c *gin.Context) {
	var req productdomain.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.ID = strings.TrimSpace(c.Param("id"))

	resp, err := s.productSvc.Update(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.audit(c, auditdomain.ActionProductUpdate, "product", resp.ID, map[string]any{
		"name":       resp.Name,
		"unit_price": resp.UnitPrice.StringFixed(2),
		"active":     resp.Active,
	})

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ArchiveProduct(c *gin.Context) {
	resp, err := s.productSvc.Archive(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.audit(c, auditdomain.ActionProductArchive, "product", resp.ID, nil)

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) AdjustProductStock(c *gin.Context) {
	var req productdomain.AdjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.ID = strings.TrimSpace(c.Param("id"))

	resp, err := s.productSvc.AdjustStock(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.audit(c, auditdomain.ActionStockAdjust, "product", resp.ID, map[string]any{
		"delta":  req.Delta,
		"reason": strings.TrimSpace(req.Reason),
		"stock":  resp.Stock,
	})

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
