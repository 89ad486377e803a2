// internal/service/intake_service.go
package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/telinga/telinga-backend/internal/channel"
	appErrors "github.com/telinga/telinga-backend/internal/errors"
	"github.com/telinga/telinga-backend/internal/metrics"
	"github.com/telinga/telinga-backend/internal/model"
	"github.com/telinga/telinga-backend/internal/queue"
	"github.com/telinga/telinga-backend/internal/repository"
)

// InboundEvent is a provider webhook normalized by the transport layer.
type InboundEvent struct {
	Channel         model.Channel
	Sender          string
	ThreadHint      string
	Body            string
	ProviderEventID string
	ReceivedAt      time.Time
	Signature       Signature
}

// Signature carries the material needed to verify provider authenticity.
// Twilio signs the request URL plus form params; the email provider signs
// the raw body.
type Signature struct {
	Header  string
	URL     string
	Params  map[string]string
	RawBody []byte
}

// SignatureVerifier checks provider authenticity for one channel.
type SignatureVerifier interface {
	Verify(e *InboundEvent) bool
}

// TwilioSignatureVerifier adapts the Twilio request validator.
type TwilioSignatureVerifier struct {
	Validator *channel.TwilioValidator
}

func (t *TwilioSignatureVerifier) Verify(e *InboundEvent) bool {
	return t.Validator.Verify(e.Signature.URL, e.Signature.Params, e.Signature.Header)
}

// EmailSignatureVerifier adapts the email webhook body-HMAC validator.
type EmailSignatureVerifier struct {
	Validator *channel.EmailWebhookValidator
}

func (t *EmailSignatureVerifier) Verify(e *InboundEvent) bool {
	return t.Validator.Verify(e.Signature.RawBody, e.Signature.Header)
}

const dedupeCacheTTL = 24 * time.Hour

// DedupeCache is an advisory fast path for duplicate detection. The unique
// insert in the database stays the authority; a cache miss or unavailable
// cache only costs a DB round trip.
type DedupeCache interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string, ttl time.Duration) error
}

// RedisDedupeCache backs DedupeCache with Redis.
type RedisDedupeCache struct {
	Client *redis.Client
}

func (c *RedisDedupeCache) Seen(ctx context.Context, key string) (bool, error) {
	n, err := c.Client.Exists(ctx, key).Result()
	return n > 0, err
}

func (c *RedisDedupeCache) Mark(ctx context.Context, key string, ttl time.Duration) error {
	return c.Client.Set(ctx, key, 1, ttl).Err()
}

// IntakeService authenticates and deduplicates inbound events, persists them
// as FeedbackMessages and hands them to the pipeline asynchronously. It never
// calls the classification service inline, so intake latency stays bounded.
type IntakeService struct {
	FeedbackRepo repository.FeedbackRepositoryInterface
	Queue        queue.Queue
	Verifiers    map[model.Channel]SignatureVerifier
	Cache        DedupeCache // optional fast-path dedupe cache
	Logger       *zap.Logger
}

// Ingest validates the event and persists it exactly once. On success the
// stored FeedbackMessage id is returned and a correlation task is enqueued.
func (s *IntakeService) Ingest(ctx context.Context, e *InboundEvent) (int, error) {
	if v, ok := s.Verifiers[e.Channel]; ok && !v.Verify(e) {
		s.Logger.Warn("webhook signature verification failed",
			zap.String("channel", string(e.Channel)),
			zap.String("provider_event_id", e.ProviderEventID))
		metrics.RecordInboundEvent(string(e.Channel), "invalid_signature")
		return 0, appErrors.ErrInvalidSignature
	}

	// Advisory fast path, read-only before the insert. Marking happens only
	// after the insert commits, so a transient insert failure cannot poison
	// the cache against the provider's retry.
	cacheKey := "event:" + e.ProviderEventID
	if s.Cache != nil {
		seen, err := s.Cache.Seen(ctx, cacheKey)
		if err == nil && seen {
			metrics.RecordInboundEvent(string(e.Channel), "duplicate")
			return 0, appErrors.NewDuplicateEvent(e.ProviderEventID)
		}
	}

	msg := &model.FeedbackMessage{
		Channel:         e.Channel,
		Sender:          e.Sender,
		Body:            e.Body,
		ProviderEventID: e.ProviderEventID,
		ThreadHint:      e.ThreadHint,
		ReceivedAt:      e.ReceivedAt,
	}
	if err := s.FeedbackRepo.CreateDedup(msg); err != nil {
		if appErrors.IsDuplicateEvent(err) {
			s.Logger.Info("duplicate webhook event dropped",
				zap.String("provider_event_id", e.ProviderEventID))
			metrics.RecordInboundEvent(string(e.Channel), "duplicate")
		}
		return 0, err
	}

	if s.Cache != nil {
		if err := s.Cache.Mark(ctx, cacheKey, dedupeCacheTTL); err != nil {
			s.Logger.Warn("failed to mark dedupe cache",
				zap.String("provider_event_id", e.ProviderEventID),
				zap.Error(err))
		}
	}

	if err := s.Queue.Publish(queue.TopicCorrelate, queue.CorrelateTask{FeedbackMessageID: msg.ID}); err != nil {
		// The message is persisted; surface the enqueue failure for triage
		// rather than failing the webhook, which would only produce a
		// duplicate on provider retry.
		s.Logger.Error("failed to enqueue correlation task",
			zap.Int("feedback_message_id", msg.ID),
			zap.Error(err))
	}

	metrics.RecordInboundEvent(string(e.Channel), "accepted")
	return msg.ID, nil
}
