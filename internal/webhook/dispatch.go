package webhook

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/antaracrm/messaging-pipeline/internal/model"
	"github.com/antaracrm/messaging-pipeline/internal/observer"
	"github.com/antaracrm/messaging-pipeline/internal/validator"
	"github.com/antaracrm/messaging-pipeline/pkg/logger"
)

// handleDispatch accepts a campaign dispatch request and runs it
// synchronously, returning the per-segment outcome.
func (s *Server) handleDispatch(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.FromContext(ctx)

	var req model.DispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		observer.IncWebhookRequest("dispatch", "malformed")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := validator.Validate(&req); err != nil {
		observer.IncWebhookRequest("dispatch", "invalid")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.OrganizationID != "" && req.OrganizationID != s.organizationID {
		observer.IncWebhookRequest("dispatch", "invalid")
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown organization"})
		return
	}
	if req.SendMode == model.SendModeScheduled && req.ScheduledAt == "" {
		observer.IncWebhookRequest("dispatch", "invalid")
		c.JSON(http.StatusBadRequest, gin.H{"error": "scheduled_at is required for scheduled mode"})
		return
	}

	result, err := s.service.Dispatch(ctx, req)
	if err != nil {
		log.Error("Dispatch request failed", zap.Error(err))
		observer.IncWebhookRequest("dispatch", "failed")
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	observer.IncWebhookRequest("dispatch", "ok")
	log.Info("Dispatch request completed",
		zap.Int("succeeded", result.Succeeded),
		zap.Strings("failed", result.Failed),
	)
	c.JSON(http.StatusOK, result)
}
