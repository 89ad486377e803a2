package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/telinga/telinga-backend/internal/errors"
	"github.com/telinga/telinga-backend/internal/model"
	"github.com/telinga/telinga-backend/internal/queue"
	"github.com/telinga/telinga-backend/internal/service"
)

func newIntakeService(repo *mockFeedbackRepo, q *mockQueue, signatureOK bool) *service.IntakeService {
	return &service.IntakeService{
		FeedbackRepo: repo,
		Queue:        q,
		Verifiers: map[model.Channel]service.SignatureVerifier{
			model.ChannelSMS: &stubVerifier{ok: signatureOK},
		},
		Logger: zap.NewNop(),
	}
}

func smsEvent(eventID string) *service.InboundEvent {
	return &service.InboundEvent{
		Channel:         model.ChannelSMS,
		Sender:          "+254700000001",
		Body:            "The app keeps crashing",
		ProviderEventID: eventID,
		ReceivedAt:      time.Now(),
	}
}

func TestIngestAcceptsAndEnqueues(t *testing.T) {
	repo := newMockFeedbackRepo()
	q := &mockQueue{}
	svc := newIntakeService(repo, q, true)

	id, err := svc.Ingest(context.Background(), smsEvent("SM1"))
	require.NoError(t, err)
	assert.NotZero(t, id)

	stored, _ := repo.GetByID(id)
	require.NotNil(t, stored)
	assert.Equal(t, model.FeedbackStatusReceived, stored.Status)
	assert.Equal(t, 1, q.topicCount(queue.TopicCorrelate))
}

func TestIngestRejectsInvalidSignature(t *testing.T) {
	repo := newMockFeedbackRepo()
	q := &mockQueue{}
	svc := newIntakeService(repo, q, false)

	_, err := svc.Ingest(context.Background(), smsEvent("SM1"))
	assert.ErrorIs(t, err, appErrors.ErrInvalidSignature)
	assert.Empty(t, repo.messages)
	assert.Zero(t, q.topicCount(queue.TopicCorrelate))
}

func TestIngestDropsDuplicateDelivery(t *testing.T) {
	repo := newMockFeedbackRepo()
	q := &mockQueue{}
	svc := newIntakeService(repo, q, true)

	_, err := svc.Ingest(context.Background(), smsEvent("SM1"))
	require.NoError(t, err)

	_, err = svc.Ingest(context.Background(), smsEvent("SM1"))
	require.Error(t, err)
	assert.True(t, appErrors.IsDuplicateEvent(err))

	assert.Len(t, repo.messages, 1)
	assert.Equal(t, 1, q.topicCount(queue.TopicCorrelate))
}

func TestIngestCacheMarkedOnlyAfterPersist(t *testing.T) {
	repo := &flakyFeedbackRepo{mockFeedbackRepo: newMockFeedbackRepo(), failures: 1}
	cache := newStubDedupeCache()
	q := &mockQueue{}
	svc := newIntakeService(repo.mockFeedbackRepo, q, true)
	svc.FeedbackRepo = repo
	svc.Cache = cache

	// The insert fails transiently. The cache must stay unmarked so the
	// provider's retry of the same event is not mistaken for a duplicate.
	_, err := svc.Ingest(context.Background(), smsEvent("SM1"))
	require.Error(t, err)
	assert.False(t, appErrors.IsDuplicateEvent(err))
	assert.Empty(t, cache.keys)

	// The retry lands.
	id, err := svc.Ingest(context.Background(), smsEvent("SM1"))
	require.NoError(t, err)
	stored, _ := repo.GetByID(id)
	require.NotNil(t, stored)
	assert.True(t, cache.keys["event:SM1"])

	// Now the cache short-circuits a genuine duplicate.
	_, err = svc.Ingest(context.Background(), smsEvent("SM1"))
	require.Error(t, err)
	assert.True(t, appErrors.IsDuplicateEvent(err))
	assert.Len(t, repo.messages, 1)
}

func TestIngestSucceedsWhenEnqueueFails(t *testing.T) {
	repo := newMockFeedbackRepo()
	q := &mockQueue{failNext: true}
	svc := newIntakeService(repo, q, true)

	id, err := svc.Ingest(context.Background(), smsEvent("SM1"))
	require.NoError(t, err)

	stored, _ := repo.GetByID(id)
	assert.NotNil(t, stored)
}
