package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/antaracrm/messaging-pipeline/internal/model"
	"github.com/antaracrm/messaging-pipeline/internal/observer"
	"github.com/antaracrm/messaging-pipeline/internal/storage"
	"github.com/antaracrm/messaging-pipeline/pkg/logger"
	"github.com/antaracrm/messaging-pipeline/pkg/utils"
)

// AutomationEngine matches a fired trigger against the stored automation
// definitions and executes their action lists. Failures are isolated twice
// over: one automation failing does not stop the others, and one action
// failing does not stop the remaining actions of its automation.
type AutomationEngine struct {
	automationRepo storage.AutomationRepo
	contactRepo    storage.ContactRepo
	messageRepo    storage.MessageRepo
	taskRepo       storage.TaskRepo
	chatSender     transportChatSender
	emailSender    transportEmailSender
}

// Narrow views of the transport interfaces, so tests can stub exactly what
// the engine touches.
type transportChatSender interface {
	SendText(ctx context.Context, to, text string) (string, error)
}

type transportEmailSender interface {
	Send(ctx context.Context, to []string, subject, body string) error
}

// NewAutomationEngine creates the engine.
func NewAutomationEngine(
	automationRepo storage.AutomationRepo,
	contactRepo storage.ContactRepo,
	messageRepo storage.MessageRepo,
	taskRepo storage.TaskRepo,
	chatSender transportChatSender,
	emailSender transportEmailSender,
) *AutomationEngine {
	return &AutomationEngine{
		automationRepo: automationRepo,
		contactRepo:    contactRepo,
		messageRepo:    messageRepo,
		taskRepo:       taskRepo,
		chatSender:     chatSender,
		emailSender:    emailSender,
	}
}

// Fire loads the active automations for a trigger and runs them in stored
// order against the subject contact. The returned error reports that at
// least one action failed; partial work stays committed.
func (e *AutomationEngine) Fire(ctx context.Context, trigger model.TriggerType, contactID, conversationID string) error {
	log := logger.FromContext(ctx)

	automations, err := e.automationRepo.FindActiveByTrigger(ctx, trigger)
	if err != nil {
		return fmt.Errorf("failed to load automations for trigger %s: %w", trigger, err)
	}
	if len(automations) == 0 {
		return nil
	}

	contact, err := e.contactRepo.FindByID(ctx, contactID)
	if err != nil {
		return fmt.Errorf("failed to load automation subject contact %s: %w", contactID, err)
	}

	var firstErr error
	for _, automation := range automations {
		if err := e.runAutomation(ctx, &automation, contact, conversationID); err != nil {
			log.Error("Automation execution failed",
				zap.String("automation_id", automation.ID),
				zap.String("automation_name", automation.Name),
				zap.Error(err),
			)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (e *AutomationEngine) runAutomation(ctx context.Context, automation *model.Automation, contact *model.Contact, conversationID string) error {
	log := logger.FromContext(ctx)

	actions, err := automation.DecodeActions()
	if err != nil {
		return err
	}

	var firstErr error
	for i, action := range actions {
		if err := e.executeAction(ctx, action, contact, conversationID); err != nil {
			observer.IncAutomationAction(action.Type, "failure")
			log.Error("Automation action failed",
				zap.String("automation_id", automation.ID),
				zap.Int("action_index", i),
				zap.String("action_type", action.Type),
				zap.Error(err),
			)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		observer.IncAutomationAction(action.Type, "success")
	}
	return firstErr
}

// executeAction dispatches a single action. Unknown kinds are logged and
// skipped; stored automations may predate this binary.
func (e *AutomationEngine) executeAction(ctx context.Context, action model.AutomationAction, contact *model.Contact, conversationID string) error {
	switch action.Type {
	case model.ActionCreateTask:
		return e.executeCreateTask(ctx, action.Config, contact)
	case model.ActionSendEmail:
		return e.executeSendEmail(ctx, action.Config, contact)
	case model.ActionSendChatMessage:
		return e.executeSendChatMessage(ctx, action.Config, contact, conversationID)
	default:
		logger.FromContext(ctx).Warn("Skipping unknown automation action type",
			zap.String("action_type", action.Type))
		return nil
	}
}

func (e *AutomationEngine) executeCreateTask(ctx context.Context, config json.RawMessage, contact *model.Contact) error {
	var cfg model.CreateTaskConfig
	if len(config) > 0 {
		if err := json.Unmarshal(config, &cfg); err != nil {
			return fmt.Errorf("malformed create_task config: %w", err)
		}
	}
	if cfg.Title == "" {
		cfg.Title = fmt.Sprintf("Follow up with %s", contact.DisplayName)
	}

	task := model.Task{
		ID:          uuid.NewString(),
		ContactID:   contact.ID,
		Title:       cfg.Title,
		Description: cfg.Description,
		Status:      model.TaskOpen,
	}
	if cfg.DueInHours > 0 {
		dueAt := utils.Now().Add(time.Duration(cfg.DueInHours) * time.Hour)
		task.DueAt = &dueAt
	}
	return e.taskRepo.Save(ctx, task)
}

func (e *AutomationEngine) executeSendEmail(ctx context.Context, config json.RawMessage, contact *model.Contact) error {
	var cfg model.SendEmailConfig
	if len(config) > 0 {
		if err := json.Unmarshal(config, &cfg); err != nil {
			return fmt.Errorf("malformed send_email config: %w", err)
		}
	}
	to := cfg.To
	if to == "" {
		to = contact.Email
	}
	if to == "" {
		return fmt.Errorf("send_email action has no recipient: contact %s has no email", contact.ID)
	}
	return e.emailSender.Send(ctx, []string{to}, cfg.Subject, cfg.Body)
}

func (e *AutomationEngine) executeSendChatMessage(ctx context.Context, config json.RawMessage, contact *model.Contact, conversationID string) error {
	var cfg model.SendChatMessageConfig
	if len(config) > 0 {
		if err := json.Unmarshal(config, &cfg); err != nil {
			return fmt.Errorf("malformed send_chat_message config: %w", err)
		}
	}
	if cfg.Text == "" {
		return fmt.Errorf("send_chat_message action has empty text")
	}
	to := cfg.To
	if to == "" {
		to = contact.PhoneNumber
	}
	if to == "" {
		return fmt.Errorf("send_chat_message action has no recipient: contact %s has no phone", contact.ID)
	}

	providerMessageID, err := e.chatSender.SendText(ctx, to, cfg.Text)
	if err != nil {
		return err
	}
	if conversationID != "" {
		if err := e.messageRepo.Save(ctx, model.Message{
			ConversationID:    conversationID,
			Direction:         model.DirectionOutbound,
			Content:           cfg.Text,
			ProviderMessageID: providerMessageID,
			Status:            model.StatusSent,
			MessageTimestamp:  utils.Now().Unix(),
		}); err != nil {
			// The send went out; a missing message row is log-worthy, not fatal.
			logger.FromContext(ctx).Warn("Failed to persist automation chat message",
				zap.String("conversation_id", conversationID),
				zap.Error(err),
			)
		}
	}
	return nil
}
