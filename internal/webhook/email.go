package webhook

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/antaracrm/messaging-pipeline/internal/model"
	"github.com/antaracrm/messaging-pipeline/internal/observer"
	"github.com/antaracrm/messaging-pipeline/pkg/logger"
	"github.com/antaracrm/messaging-pipeline/pkg/utils"
)

// handleEmailEvents consumes delivery lifecycle events from the email
// provider. It always answers 200, even when processing fails, to stop the
// provider from retrying forever; unprocessable events land in the dead
// letter table instead.
func (s *Server) handleEmailEvents(c *gin.Context) {
	ctx := c.Request.Context()
	log := logger.FromContext(ctx)

	var envelope model.EmailEventEnvelope
	if err := c.ShouldBindJSON(&envelope); err != nil {
		log.Warn("Malformed email event envelope", zap.Error(err))
		observer.IncWebhookRequest("email_event", "malformed")
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}

	log = log.With(zap.String("event_type", envelope.Type))

	var err error
	if envelope.Type == model.EmailEventReceived {
		// Inbound mail goes through forwarding rules, never to counters.
		to := ""
		if len(envelope.Data.To) > 0 {
			to = envelope.Data.To[0]
		}
		err = s.service.ForwardInboundEmail(ctx, to, envelope.Data.Subject, envelope.Data.Text)
	} else {
		_, err = s.service.ApplyEmailEvent(ctx, envelope.Type, envelope.Data.EmailID)
	}

	if err != nil {
		log.Error("Email event processing failed, dead-lettering", zap.Error(err))
		observer.IncWebhookRequest("email_event", "failed")

		event := model.DeadLetterEvent{
			SourceSubject:   "webhook.email." + envelope.Type,
			LastError:       err.Error(),
			EventTimestamp:  utils.Now(),
			OriginalPayload: datatypes.JSON(utils.MustMarshalJSON(envelope)),
		}
		if saveErr := s.deadLetterRepo.Save(ctx, event); saveErr != nil {
			log.Error("Failed to persist dead letter event, event lost", zap.Error(saveErr))
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}

	observer.IncWebhookRequest("email_event", "ok")
	c.JSON(http.StatusOK, gin.H{"success": true})
}
