package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) GetCatalog(c *gin.Context) {
	snapshot, err := s.catalogSvc.Snapshot(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": snapshot})
}
