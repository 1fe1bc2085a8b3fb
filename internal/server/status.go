package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	orderdomain "github.com/santuri/tikiti/internal/order/domain"
)

func (s *Server) HandlePaymentStatus(c *gin.Context) {
	correlationID := strings.TrimSpace(c.Param("correlationId"))
	if correlationID == "" {
		AbortWithError(c, orderdomain.ErrNotFound)
		return
	}

	resp, err := s.statusSvc.Get(c.Request.Context(), correlationID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) HandlePaymentRefresh(c *gin.Context) {
	correlationID := strings.TrimSpace(c.Param("correlationId"))
	if correlationID == "" {
		AbortWithError(c, orderdomain.ErrNotFound)
		return
	}

	resp, err := s.statusSvc.Refresh(c.Request.Context(), correlationID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
