package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/santuri/tikiti/internal/audit/domain"
	gatewaydomain "github.com/santuri/tikiti/internal/gateway/domain"
	"github.com/santuri/tikiti/internal/gateway/mpesa"
	"go.uber.org/zap"
)

type mpesaAck struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

// HandleMpesaCallback receives the Daraja STK result. Daraja retries on any
// non-200, so every business outcome acknowledges with ResultCode 0; only a
// store outage is surfaced as a 500 to get the retry we actually want.
func (s *Server) HandleMpesaCallback(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusOK, mpesaAck{ResultCode: 0, ResultDesc: "Success"})
		return
	}

	ev, err := mpesa.ParseCallback(payload)
	if err != nil {
		// A malformed payload will not improve on retry. Keep it for the
		// audit trail and acknowledge.
		s.log.Warn("unparseable mpesa callback", zap.Error(err))
		s.auditSvc.Record(c.Request.Context(), auditdomain.ActionOrphanConfirmation, "callback", "", map[string]interface{}{
			"gateway": gatewaydomain.GatewayMpesa,
			"error":   err.Error(),
			"payload": string(payload),
		})
		c.JSON(http.StatusOK, mpesaAck{ResultCode: 0, ResultDesc: "Success"})
		return
	}

	if err := s.reconcile.Handle(c.Request.Context(), *ev); err != nil {
		s.log.Error("mpesa confirmation not applied", zap.Error(err))
		c.JSON(http.StatusInternalServerError, mpesaAck{ResultCode: 1, ResultDesc: "Internal Error"})
		return
	}

	c.JSON(http.StatusOK, mpesaAck{ResultCode: 0, ResultDesc: "Success"})
}

// HandlePaystackWebhook receives Paystack charge events. Unlike the M-Pesa
// callback this endpoint is signature-checked and reports errors honestly;
// Paystack retries on non-200.
func (s *Server) HandlePaystackWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		AbortWithError(c, gatewaydomain.ErrInvalidCallback)
		return
	}

	if err := s.paystack.VerifyWebhook(payload, c.Request.Header); err != nil {
		AbortWithError(c, err)
		return
	}

	ev, err := s.paystack.ParseWebhook(payload)
	if err != nil {
		if errors.Is(err, gatewaydomain.ErrEventIgnored) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}
		AbortWithError(c, err)
		return
	}

	if err := s.reconcile.Handle(c.Request.Context(), *ev); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
