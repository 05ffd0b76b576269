package webhook

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/antaracrm/messaging-pipeline/internal/model"
	"github.com/antaracrm/messaging-pipeline/internal/observer"
	"github.com/antaracrm/messaging-pipeline/pkg/logger"
	"github.com/antaracrm/messaging-pipeline/pkg/utils"
)

// handleChatVerification answers the chat provider's subscription handshake.
func (s *Server) handleChatVerification(c *gin.Context) {
	mode := c.Query("mode")
	token := c.Query("verify_token")
	challenge := c.Query("challenge")

	if mode != "subscribe" || token != s.verifyToken {
		observer.IncWebhookRequest("chat_verify", "rejected")
		c.String(http.StatusForbidden, "verification failed")
		return
	}
	observer.IncWebhookRequest("chat_verify", "ok")
	c.String(http.StatusOK, challenge)
}

// handleChatWebhook consumes the provider's event envelope and republishes
// each message and status item onto the ingestion stream. The response is
// always 200 once the envelope was consumed; per-item failures are logged and
// dead-lettered, never surfaced, so the provider does not retry the batch.
func (s *Server) handleChatWebhook(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.FromContext(ctx)

	var envelope model.WebhookEnvelope
	if err := c.ShouldBindJSON(&envelope); err != nil {
		log.Warn("Malformed chat webhook envelope", zap.Error(err))
		observer.IncWebhookRequest("chat_event", "malformed")
		// Still 200: a malformed batch will not get better on retry.
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}

	for _, entry := range envelope.Entry {
		for _, change := range entry.Changes {
			if change.Field != "messages" {
				continue
			}
			s.publishInboundMessages(c, change.Value)
			s.publishStatusUpdates(c, change.Value)
		}
	}

	observer.IncWebhookRequest("chat_event", "ok")
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) publishInboundMessages(c *gin.Context, value model.WebhookValue) {
	ctx := c.Request.Context()
	log := logger.FromContext(ctx)

	// Profile names arrive in a parallel contacts[] list keyed by wa_id.
	names := make(map[string]string, len(value.Contacts))
	for _, contact := range value.Contacts {
		names[contact.WaID] = contact.Profile.Name
	}

	for _, item := range value.Messages {
		if item.Type != "" && item.Type != "text" {
			log.Debug("Skipping non-text inbound message",
				zap.String("provider_message_id", item.ID),
				zap.String("message_type", item.Type),
			)
			continue
		}
		payload := model.InboundMessagePayload{
			ProviderMessageID: item.ID,
			FromPhone:         item.From,
			DisplayName:       names[item.From],
			Text:              item.Text.Body,
			MessageType:       item.Type,
			Timestamp:         parseUnixSeconds(item.Timestamp),
		}
		s.publishEvent(c, string(model.V1InboundMessage), payload)
	}
}

func (s *Server) publishStatusUpdates(c *gin.Context, value model.WebhookValue) {
	for _, item := range value.Statuses {
		payload := model.InboundStatusPayload{
			ProviderMessageID: item.ID,
			Status:            item.Status,
			RecipientPhone:    item.RecipientID,
			Timestamp:         parseUnixSeconds(item.Timestamp),
		}
		s.publishEvent(c, string(model.V1InboundStatus), payload)
	}
}

// publishEvent hands one event to the ingestion buffer. A failed publish is
// written to the dead letter table so the event is not silently lost behind
// the unconditional 200.
func (s *Server) publishEvent(c *gin.Context, subject string, payload interface{}) {
	ctx := c.Request.Context()
	log := logger.FromContext(ctx)
	data := utils.MustMarshalJSON(payload)

	headers := map[string]string{
		"Request-Id": logger.RequestIDFromContext(ctx),
	}
	if err := s.js.Publish(subject, data, headers); err != nil {
		log.Error("Failed to publish webhook event, dead-lettering",
			zap.String("subject", subject),
			zap.Error(err),
		)
		observer.IncWebhookRequest("chat_event", "publish_failed")

		event := model.DeadLetterEvent{
			SourceSubject:   subject,
			LastError:       err.Error(),
			EventTimestamp:  utils.Now(),
			OriginalPayload: datatypes.JSON(data),
		}
		if saveErr := s.deadLetterRepo.Save(ctx, event); saveErr != nil {
			log.Error("Failed to persist dead letter event, event lost",
				zap.String("subject", subject),
				zap.Error(saveErr),
			)
		}
	}
}

// parseUnixSeconds parses the provider's string-typed unix timestamp; zero on
// absence or garbage.
func parseUnixSeconds(raw string) int64 {
	if raw == "" {
		return 0
	}
	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ts < 0 {
		return 0
	}
	return ts
}
