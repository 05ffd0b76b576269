package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestStatusAdvances(t *testing.T) {
	tests := []struct {
		from, next string
		want       bool
	}{
		{StatusReceived, StatusSent, true},
		{StatusSent, StatusDelivered, true},
		{StatusDelivered, StatusRead, true},
		{StatusSent, StatusFailed, true},
		{StatusDelivered, StatusSent, false},
		{StatusRead, StatusDelivered, false},
		// read and failed are both terminal, neither replaces the other.
		{StatusRead, StatusFailed, false},
		{StatusFailed, StatusRead, false},
		{StatusSent, StatusSent, false},
		// Empty or unknown current status accepts any known status.
		{"", StatusDelivered, true},
		{"imported", StatusDelivered, true},
		// Unknown target statuses never advance.
		{StatusSent, "vanished", false},
		{"", "vanished", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusAdvances(tt.from, tt.next),
			"StatusAdvances(%q, %q)", tt.from, tt.next)
	}
}

func TestMapToBaseEventType(t *testing.T) {
	tests := []struct {
		subject   string
		want      EventType
		wantFound bool
	}{
		{"v1.inbound.message", V1InboundMessage, true},
		{"v1.inbound.status", V1InboundStatus, true},
		{"v1.inbound.message.org-1", V1InboundMessage, true},
		{"v1.inbound.status.org-1", V1InboundStatus, true},
		{"v1.outbound.message", "", false},
		{"nodots", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, found := MapToBaseEventType(tt.subject)
		assert.Equal(t, tt.wantFound, found, "subject %q", tt.subject)
		assert.Equal(t, tt.want, got, "subject %q", tt.subject)
	}
}

func TestEventTypeVersionAndBase(t *testing.T) {
	assert.Equal(t, "v1", V1InboundMessage.GetVersion())
	assert.Equal(t, EventType("inbound.message"), V1InboundMessage.GetBaseType())

	unversioned := EventType("inbound.message")
	assert.Equal(t, "", unversioned.GetVersion())
	assert.Equal(t, unversioned, unversioned.GetBaseType())
}

func TestCounterColumnForEvent(t *testing.T) {
	col, ok := CounterColumnForEvent(EmailEventDelivered)
	assert.True(t, ok)
	assert.Equal(t, "total_delivered", col)

	col, ok = CounterColumnForEvent(EmailEventComplained)
	assert.True(t, ok)
	assert.Equal(t, "total_complained", col)

	// Inbound mail has no counter; it goes through forwarding rules.
	_, ok = CounterColumnForEvent(EmailEventReceived)
	assert.False(t, ok)

	_, ok = CounterColumnForEvent("email.unsubscribed")
	assert.False(t, ok)
}

func TestIsCounterColumn(t *testing.T) {
	assert.True(t, IsCounterColumn("total_opened"))
	assert.False(t, IsCounterColumn("total_sent"), "total_sent is set once at dispatch, not event-driven")
	assert.False(t, IsCounterColumn("status; DROP TABLE campaigns"))
}

func TestConversationBotState(t *testing.T) {
	contact := NewContact()

	conv := NewConversation(contact.ID)
	assert.Equal(t, BotStateAwaitingWelcome, conv.BotState())

	conv.WelcomeSent = true
	assert.Equal(t, BotStateMenuActive, conv.BotState())

	conv.BotActive = false
	assert.Equal(t, BotStateHandedOff, conv.BotState())

	// Handed off wins regardless of the welcome flag.
	conv.WelcomeSent = false
	assert.Equal(t, BotStateHandedOff, conv.BotState())
}

func TestAutomationDecodeActions(t *testing.T) {
	automation := NewAutomation(TriggerNewLead, []AutomationAction{
		{Type: ActionCreateTask},
		{Type: ActionSendEmail},
	})

	actions, err := automation.DecodeActions()
	require.NoError(t, err)
	require.Len(t, actions, 2)
	assert.Equal(t, ActionCreateTask, actions[0].Type)
	assert.Equal(t, ActionSendEmail, actions[1].Type)
}

func TestAutomationDecodeActions_Empty(t *testing.T) {
	automation := NewAutomation(TriggerNewLead, nil)
	automation.Actions = nil

	actions, err := automation.DecodeActions()
	assert.NoError(t, err)
	assert.Nil(t, actions)
}

func TestAutomationDecodeActions_Malformed(t *testing.T) {
	automation := NewAutomation(TriggerMessageReceived, nil)
	automation.Actions = datatypes.JSON(`{"not":"a list"}`)

	_, err := automation.DecodeActions()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), automation.ID)
}

func TestMessageMetadataToLastMetadata(t *testing.T) {
	metadata := MessageMetadata{
		StreamSequence:   42,
		ConsumerSequence: 7,
		Stream:           "crm_inbound",
		Consumer:         "crm_pipeline",
		MessageID:        "msg-42",
		MessageSubject:   string(V1InboundMessage),
		RequestID:        "req-1",
	}

	last := metadata.ToLastMetadata()
	assert.Equal(t, int64(42), last.StreamSequence)
	assert.Equal(t, int64(7), last.ConsumerSequence)
	assert.Equal(t, "crm_inbound", last.Stream)
	assert.Equal(t, "msg-42", last.MessageID)
	assert.Equal(t, "req-1", last.RequestID)
}
