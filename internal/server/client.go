package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/pos/internal/audit/domain"
	clientdomain "github.com/smallbiznis/pos/internal/client/domain"
	"github.com/smallbiznis/pos/pkg/db/pagination"
)

func (s *Server) CreateClient(c *gin.Context) {
	var req clientdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.catalogSvc.CreateClient(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.audit(c, auditdomain.ActionClientCreate, "client", resp.ID, map[string]any{
		"name":           resp.Name,
		"tax_id":         resp.TaxID,
		"phone":          resp.Phone,
		"classification": string(resp.Classification),
	})

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListClients(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Name           string `form:"name"`
		TaxID          string `form:"tax_id"`
		Classification string `form:"classification"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.clientSvc.List(c.Request.Context(), clientdomain.ListRequest{
		PageToken:      strings.TrimSpace(query.PageToken),
		PageSize:       query.PageSize,
		Name:           strings.TrimSpace(query.Name),
		TaxID:          strings.TrimSpace(query.TaxID),
		Classification: strings.TrimSpace(query.Classification),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Clients, "page_info": resp.PageInfo})
}

func (s *Server) GetClientByID(c *gin.Context) {
	resp, err := s.clientSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
