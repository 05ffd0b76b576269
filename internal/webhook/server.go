package webhook

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/antaracrm/messaging-pipeline/internal/config"
	"github.com/antaracrm/messaging-pipeline/internal/jetstream"
	"github.com/antaracrm/messaging-pipeline/internal/storage"
	"github.com/antaracrm/messaging-pipeline/internal/usecase"
	"github.com/antaracrm/messaging-pipeline/pkg/logger"
)

// Server is the inbound HTTP surface: the chat provider webhook, the email
// provider event webhook, the campaign dispatch endpoint and the usual
// health/metrics plumbing.
type Server struct {
	engine         *gin.Engine
	srv            *http.Server
	js             jetstream.ClientInterface
	service        *usecase.PipelineService
	deadLetterRepo storage.DeadLetterRepo
	verifyToken    string
	organizationID string
	baseLogger     *zap.Logger
}

// NewServer builds the server and registers its routes.
func NewServer(
	cfg *config.Config,
	js jetstream.ClientInterface,
	service *usecase.PipelineService,
	deadLetterRepo storage.DeadLetterRepo,
	baseLogger *zap.Logger,
) *Server {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		engine:         engine,
		js:             js,
		service:        service,
		deadLetterRepo: deadLetterRepo,
		verifyToken:    cfg.Webhook.VerifyToken,
		organizationID: cfg.Organization.ID,
		baseLogger:     baseLogger.Named("webhook"),
	}
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	engine.Use(s.requestContextMiddleware())
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.engine.GET("/ready", s.handleReady)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.engine.Group("/v1")
	{
		v1.GET("/webhooks/chat", s.handleChatVerification)
		v1.POST("/webhooks/chat", s.handleChatWebhook)
		v1.POST("/webhooks/email", s.handleEmailEvents)
		v1.POST("/campaigns/dispatch", s.handleDispatch)
	}
}

// requestContextMiddleware stamps every request with a request id and a
// request-scoped logger.
func (s *Server) requestContextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := logger.WithRequestID(c.Request.Context(), requestID)
		ctx = logger.WithLogger(ctx, s.baseLogger.With(
			zap.String("request_id", requestID),
			zap.String("path", c.FullPath()),
		))
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Request-Id", requestID)
		c.Next()
	}
}

func (s *Server) handleReady(c *gin.Context) {
	conn := s.js.NatsConn()
	if conn == nil || !conn.IsConnected() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "nats disconnected"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.baseLogger.Info("HTTP server listening", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.baseLogger.Info("Shutting down HTTP server")
	return s.srv.Shutdown(ctx)
}
