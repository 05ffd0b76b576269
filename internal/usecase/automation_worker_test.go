package usecase

import (
	"testing"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/antaracrm/messaging-pipeline/internal/config"
	"github.com/antaracrm/messaging-pipeline/internal/model"
)

func TestAutomationWorker_SubmitRunsTask(t *testing.T) {
	engine, m := newTestEngine(t)
	ran := make(chan struct{}, 1)
	m.automationRepo.On("FindActiveByTrigger", mock.Anything, model.TriggerMessageReceived).
		Run(func(mock.Arguments) { ran <- struct{}{} }).
		Return([]model.Automation{}, nil)

	worker, err := NewAutomationWorker(config.AutomationWorkerPoolConfig{
		PoolSize:   2,
		QueueSize:  4,
		MaxBlock:   time.Second,
		ExpiryTime: time.Minute,
	}, engine, zap.NewNop())
	require.NoError(t, err)
	defer worker.Stop()

	require.NoError(t, worker.Submit(AutomationTaskData{
		Trigger:        model.TriggerMessageReceived,
		ContactID:      "contact-1",
		ConversationID: "conv-1",
		RequestID:      "req-1",
	}))

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("automation task never reached the engine")
	}
}

func TestAutomationWorker_SubmitSurfacesOverloadAfterMaxBlock(t *testing.T) {
	engine, m := newTestEngine(t)
	release := make(chan struct{})
	m.automationRepo.On("FindActiveByTrigger", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return([]model.Automation{}, nil)

	worker, err := NewAutomationWorker(config.AutomationWorkerPoolConfig{
		PoolSize:   1,
		QueueSize:  1,
		MaxBlock:   25 * time.Millisecond,
		ExpiryTime: time.Minute,
	}, engine, zap.NewNop())
	require.NoError(t, err)

	task := AutomationTaskData{
		Trigger:        model.TriggerMessageReceived,
		ContactID:      "contact-1",
		ConversationID: "conv-1",
	}

	// The first task occupies the only worker and parks inside the engine.
	require.NoError(t, worker.Submit(task))

	// The second attempt sits in the full queue until the deadline cuts it loose.
	err = worker.Submit(task)
	assert.ErrorIs(t, err, ants.ErrPoolOverload)

	close(release)
	worker.Stop()
}
