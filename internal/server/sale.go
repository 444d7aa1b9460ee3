package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/pos/internal/audit/domain"
	obstracing "github.com/smallbiznis/pos/internal/observability/tracing"
	saledomain "github.com/smallbiznis/pos/internal/sale/domain"
	"github.com/smallbiznis/pos/pkg/db/pagination"
)

// CommitSale answers 201 for a new sale and 200 with Idempotent-Replayed
// when the key was already committed.
func (s *Server) CommitSale(c *gin.Context) {
	var req saledomain.CommitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.IdempotencyKey) == "" {
		req.IdempotencyKey = strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
	}
	c.Set(obstracing.IdempotencyKeyField, strings.TrimSpace(req.IdempotencyKey))

	result, err := s.saleSvc.Commit(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Set(obstracing.SaleIDField, result.Sale.ID)

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
		c.Header(HeaderIdempotentReplayed, "true")
		s.audit(c, auditdomain.ActionSaleReplay, "sale", result.Sale.ID, map[string]any{
			"idempotency_key": result.Sale.IdempotencyKey,
		})
	} else {
		s.audit(c, auditdomain.ActionSaleCommit, "sale", result.Sale.ID, map[string]any{
			"idempotency_key": result.Sale.IdempotencyKey,
			"grand_total":     result.Sale.GrandTotal,
			"currency":        result.Sale.Currency,
			"payment_method":  result.Sale.PaymentMethod,
			"lines":           len(result.Sale.Lines),
		})
	}

	c.JSON(status, gin.H{
		"data":     result.Sale,
		"warnings": result.Warnings,
		"lowStock": result.LowStock,
	})
}

func (s *Server) GetSaleByID(c *gin.Context) {
	resp, err := s.saleSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListSales(c *gin.Context) {
	var query struct {
		pagination.Pagination
		IdempotencyKey string `form:"idempotency_key"`
		ClientID       string `form:"client_id"`
		PaymentMethod  string `form:"payment_method"`
		Status         string `form:"status"`
		Currency       string `form:"currency"`
		CreatedFrom    string `form:"created_from"`
		CreatedTo      string `form:"created_to"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	// The register asks by key after a commit timed out.
	if key := strings.TrimSpace(query.IdempotencyKey); key != "" {
		resp, err := s.saleSvc.GetByIdempotencyKey(c.Request.Context(), key)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": resp})
		return
	}

	window, field, err := parseTimeWindow("created_from", query.CreatedFrom, "created_to", query.CreatedTo)
	if err != nil {
		AbortWithError(c, newValidationError(field, "invalid_"+field, "invalid "+field))
		return
	}

	resp, err := s.saleSvc.List(c.Request.Context(), saledomain.ListRequest{
		Pagination: pagination.Pagination{
			PageToken: strings.TrimSpace(query.PageToken),
			PageSize:  query.PageSize,
		},
		ClientID:      strings.TrimSpace(query.ClientID),
		PaymentMethod: strings.TrimSpace(query.PaymentMethod),
		Status:        strings.TrimSpace(query.Status),
		Currency:      strings.TrimSpace(query.Currency),
		CreatedFrom:   window.From,
		CreatedTo:     window.To,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Sales, "page_info": resp.PageInfo})
}
