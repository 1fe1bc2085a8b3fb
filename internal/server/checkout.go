package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	orderdomain "github.com/santuri/tikiti/internal/order/domain"
)

type checkoutItemRequest struct {
	EventID     string  `json:"event_id" binding:"required"`
	TierID      string  `json:"tier_id" binding:"required"`
	Quantity    int     `json:"quantity" binding:"required"`
	UnitPrice   float64 `json:"unit_price"`
	VariantName string  `json:"variant_name"`
}

type checkoutHolderRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

type checkoutRequest struct {
	Gateway       string                  `json:"gateway" binding:"required"`
	Items         []checkoutItemRequest   `json:"items" binding:"required"`
	TicketHolders []checkoutHolderRequest `json:"ticket_holders"`
	Contact       struct {
		FullName string `json:"full_name" binding:"required"`
		Email    string `json:"email" binding:"required"`
		Phone    string `json:"phone"`
	} `json:"contact" binding:"required"`
}

func (s *Server) HandleCheckout(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, orderdomain.ErrInvalidItems)
		return
	}

	items := make([]orderdomain.OrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, orderdomain.OrderItem{
			EventID:     item.EventID,
			TierID:      item.TierID,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			VariantName: item.VariantName,
		})
	}
	holders := make([]orderdomain.TicketHolder, 0, len(req.TicketHolders))
	for _, holder := range req.TicketHolders {
		holders = append(holders, orderdomain.TicketHolder{
			FullName: holder.FullName,
			Email:    holder.Email,
		})
	}

	resp, err := s.orderSvc.Checkout(c.Request.Context(), orderdomain.CheckoutRequest{
		Gateway:       req.Gateway,
		Items:         items,
		TicketHolders: holders,
		Contact: orderdomain.CheckoutContact{
			FullName: req.Contact.FullName,
			Email:    req.Contact.Email,
			Phone:    req.Contact.Phone,
		},
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (s *Server) HandleGetOrder(c *gin.Context) {
	id, err := parseOrderID(c.Param("id"))
	if err != nil {
		AbortWithError(c, orderdomain.ErrNotFound)
		return
	}

	order, err := s.orderSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

func (s *Server) HandleCancelOrder(c *gin.Context) {
	id, err := parseOrderID(c.Param("id"))
	if err != nil {
		AbortWithError(c, orderdomain.ErrNotFound)
		return
	}

	if err := s.orderSvc.Cancel(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

func parseOrderID(raw string) (snowflake.ID, error) {
	return snowflake.ParseString(raw)
}
