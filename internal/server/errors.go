package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	gatewaydomain "github.com/santuri/tikiti/internal/gateway/domain"
	orderdomain "github.com/santuri/tikiti/internal/order/domain"
	ticketdomain "github.com/santuri/tikiti/internal/ticket/domain"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

// ErrorHandlingMiddleware converts domain errors collected during the
// request into the JSON error envelope. Handlers that already wrote a
// response are left alone.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case errors.Is(err, orderdomain.ErrNotFound),
		errors.Is(err, ticketdomain.ErrNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: err.Error(),
		}
	case errors.Is(err, orderdomain.ErrInvalidItems),
		errors.Is(err, orderdomain.ErrInvalidHolders),
		errors.Is(err, orderdomain.ErrInvalidContact),
		errors.Is(err, orderdomain.ErrInvalidGateway),
		errors.Is(err, gatewaydomain.ErrInvalidCallback):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: err.Error(),
		}
	case errors.Is(err, gatewaydomain.ErrInvalidSignature):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: err.Error(),
		}
	case errors.Is(err, orderdomain.ErrGatewayDisabled):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "gateway_disabled",
			Message: err.Error(),
		}
	case errors.Is(err, orderdomain.ErrNotCancellable),
		errors.Is(err, ticketdomain.ErrAlreadyCheckedIn):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case errors.Is(err, gatewaydomain.ErrGatewayUnavailable),
		errors.Is(err, gatewaydomain.ErrInitiateRejected):
		return http.StatusBadGateway, errorPayload{
			Type:    "gateway_error",
			Message: err.Error(),
		}
	case errors.Is(err, orderdomain.ErrStoreUnavailable),
		errors.Is(err, ticketdomain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "store unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}
