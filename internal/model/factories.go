package model

import (
	"encoding/json"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/datatypes"

	"github.com/antaracrm/messaging-pipeline/pkg/utils"
)

// RandomJSONB generates random JSON data for testing.
func RandomJSONB() datatypes.JSON {
	jsonData := map[string]interface{}{
		"key": gofakeit.Word(),
		"num": gofakeit.Number(1, 100),
	}
	bytes, _ := json.Marshal(jsonData)
	return datatypes.JSON(bytes)
}

func init() {
	gofakeit.Seed(time.Now().UnixNano())
}

// NewContact creates a Contact with fake data, optionally overridden.
func NewContact(overrideDefaults ...*Contact) *Contact {
	base := &Contact{
		ID:          gofakeit.UUID(),
		PhoneNumber: "+" + gofakeit.Numerify("##########"),
		DisplayName: gofakeit.Name(),
		Email:       gofakeit.Email(),
		LeadSource:  LeadSourceWhatsApp,
		CreatedAt:   utils.Now().Add(-time.Duration(gofakeit.Number(1, 100)) * time.Hour),
		UpdatedAt:   utils.Now(),
	}
	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		if ovr.ID != "" {
			base.ID = ovr.ID
		}
		if ovr.PhoneNumber != "" {
			base.PhoneNumber = ovr.PhoneNumber
		}
		if ovr.DisplayName != "" {
			base.DisplayName = ovr.DisplayName
		}
		if ovr.Email != "" {
			base.Email = ovr.Email
		}
		if ovr.LeadSource != "" {
			base.LeadSource = ovr.LeadSource
		}
	}
	return base
}

// NewConversation creates an open Conversation with fake data.
func NewConversation(contactID string, overrideDefaults ...*Conversation) *Conversation {
	base := &Conversation{
		ID:             gofakeit.UUID(),
		ContactID:      contactID,
		Channel:        ChannelWhatsApp,
		ChannelAddress: "+" + gofakeit.Numerify("##########"),
		Status:         ConversationOpen,
		BotActive:      true,
		WelcomeSent:    false,
		LastActivityAt: utils.Now(),
		CreatedAt:      utils.Now(),
		UpdatedAt:      utils.Now(),
	}
	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		if ovr.ID != "" {
			base.ID = ovr.ID
		}
		if ovr.Status != "" {
			base.Status = ovr.Status
		}
		if ovr.ChannelAddress != "" {
			base.ChannelAddress = ovr.ChannelAddress
		}
		base.BotActive = ovr.BotActive
		base.WelcomeSent = ovr.WelcomeSent
	}
	return base
}

// NewMessage creates an inbound Message with fake data.
func NewMessage(conversationID string) *Message {
	return &Message{
		ConversationID:    conversationID,
		Direction:         DirectionInbound,
		Content:           gofakeit.Sentence(6),
		ProviderMessageID: "wamid." + gofakeit.LetterN(24),
		Status:            StatusReceived,
		MessageTimestamp:  utils.Now().Unix(),
		CreatedAt:         utils.Now(),
		UpdatedAt:         utils.Now(),
	}
}

// NewCampaign creates a draft Campaign with fake data.
func NewCampaign(segmentID *string) *Campaign {
	return &Campaign{
		ID:        gofakeit.UUID(),
		Name:      gofakeit.BuzzWord() + " campaign",
		SegmentID: segmentID,
		Subject:   gofakeit.Sentence(4),
		Body:      gofakeit.Paragraph(1, 3, 8, " "),
		Status:    CampaignDraft,
		CreatedAt: utils.Now(),
		UpdatedAt: utils.Now(),
	}
}

// NewAutomation creates an active Automation with the given trigger and
// actions.
func NewAutomation(trigger TriggerType, actions []AutomationAction) *Automation {
	raw, _ := json.Marshal(actions)
	return &Automation{
		ID:          gofakeit.UUID(),
		Name:        gofakeit.BuzzWord() + " rule",
		TriggerType: trigger,
		Actions:     datatypes.JSON(raw),
		Active:      true,
		CreatedAt:   utils.Now(),
		UpdatedAt:   utils.Now(),
	}
}
