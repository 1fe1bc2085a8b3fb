package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	auditdomain "github.com/santuri/tikiti/internal/audit/domain"
	"github.com/santuri/tikiti/internal/config"
	"github.com/santuri/tikiti/internal/gateway/paystack"
	"github.com/santuri/tikiti/internal/logger"
	orderdomain "github.com/santuri/tikiti/internal/order/domain"
	"github.com/santuri/tikiti/internal/ratelimit"
	"github.com/santuri/tikiti/internal/reconcile"
	"github.com/santuri/tikiti/internal/status"
	ticketdomain "github.com/santuri/tikiti/internal/ticket/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.GinMiddleware(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(log *zap.Logger) *gin.Engine {
	return NewEngine(log)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine    *gin.Engine
	cfg       config.Config
	log       *zap.Logger
	orderSvc  orderdomain.Service
	ticketSvc ticketdomain.Issuer
	statusSvc *status.Service
	reconcile *reconcile.Engine
	paystack  *paystack.Adapter
	auditSvc  auditdomain.Recorder
	limiter   *ratelimit.TokenBucket
}

type ServerParams struct {
	fx.In

	Gin       *gin.Engine
	Cfg       config.Config
	Log       *zap.Logger
	OrderSvc  orderdomain.Service
	TicketSvc ticketdomain.Issuer
	StatusSvc *status.Service
	Reconcile *reconcile.Engine
	Paystack  *paystack.Adapter
	AuditSvc  auditdomain.Recorder
	Limiter   *ratelimit.TokenBucket `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:    p.Gin,
		cfg:       p.Cfg,
		log:       p.Log.Named("http.server"),
		orderSvc:  p.OrderSvc,
		ticketSvc: p.TicketSvc,
		statusSvc: p.StatusSvc,
		reconcile: p.Reconcile,
		paystack:  p.Paystack,
		auditSvc:  p.AuditSvc,
		limiter:   p.Limiter,
	}

	svc.registerAPIRoutes()
	svc.registerWebhookRoutes()

	return svc
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api/v1")

	api.POST("/orders", s.rateLimited("checkout", 1, 5), s.HandleCheckout)
	api.GET("/orders/:id", s.HandleGetOrder)
	api.POST("/orders/:id/cancel", s.HandleCancelOrder)
	api.GET("/orders/:id/tickets", s.HandleListOrderTickets)

	api.GET("/payments/status/:correlationId", s.rateLimited("status", 2, 10), s.HandlePaymentStatus)
	api.POST("/payments/status/:correlationId/refresh", s.rateLimited("refresh", 0.5, 3), s.HandlePaymentRefresh)

	api.GET("/tickets/:id", s.HandleGetTicket)
	api.GET("/tickets/:id/qr", s.HandleTicketQR)
	api.POST("/tickets/:id/checkin", s.HandleTicketCheckIn)
}

func (s *Server) registerWebhookRoutes() {
	hooks := s.engine.Group("/webhooks")

	hooks.POST("/mpesa", s.HandleMpesaCallback)
	hooks.POST("/paystack", s.HandlePaystackWebhook)
}

// rateLimited guards an endpoint with a per-IP token bucket. Without redis
// the limiter is nil and every request passes.
func (s *Server) rateLimited(scope string, rate float64, burst int) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := s.limiter.Allow(c.Request.Context(), "rl:"+scope+":"+c.ClientIP(), rate, burst)
		if err != nil {
			// Redis trouble should not take the API down.
			s.log.Warn("rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !res.Allowed {
			c.Header("Retry-After", res.RetryAfter.Truncate(time.Second).String())
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse{Error: errorPayload{
				Type:    "rate_limited",
				Message: "too many requests",
			}})
			return
		}
		c.Next()
	}
}
