package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/santuri/tikiti/internal/audit/domain"
	orderdomain "github.com/santuri/tikiti/internal/order/domain"
	qrcode "github.com/skip2/go-qrcode"
)

func (s *Server) HandleListOrderTickets(c *gin.Context) {
	id, err := parseOrderID(c.Param("id"))
	if err != nil {
		AbortWithError(c, orderdomain.ErrNotFound)
		return
	}

	tickets, err := s.ticketSvc.ListByOrder(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tickets": tickets})
}

func (s *Server) HandleGetTicket(c *gin.Context) {
	ticket, err := s.ticketSvc.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, ticket)
}

// HandleTicketQR renders the ticket's QR token as a PNG for wallet screens
// and print-at-home.
func (s *Server) HandleTicketQR(c *gin.Context) {
	ticket, err := s.ticketSvc.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	png, err := qrcode.Encode(ticket.QRToken, qrcode.Medium, 256)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Data(http.StatusOK, "image/png", png)
}

type checkInRequest struct {
	QRToken string `json:"qr_token"`
}

// HandleTicketCheckIn marks a ticket as used at the gate. When a QR token is
// supplied it must match the stored one; a second check-in attempt conflicts.
func (s *Server) HandleTicketCheckIn(c *gin.Context) {
	var req checkInRequest
	_ = c.ShouldBindJSON(&req)

	ticket, err := s.ticketSvc.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if req.QRToken != "" && req.QRToken != ticket.QRToken {
		AbortWithError(c, orderdomain.ErrNotFound)
		return
	}

	checked, err := s.ticketSvc.CheckIn(c.Request.Context(), ticket.ID, time.Now().UTC())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.auditSvc.Record(c.Request.Context(), auditdomain.ActionTicketCheckedIn, "ticket", checked.ID, map[string]interface{}{
		"event_id": checked.EventID,
		"order_id": checked.OrderID.String(),
	})

	c.JSON(http.StatusOK, checked)
}
