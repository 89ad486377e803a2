// internal/service/pipeline_service.go
package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/telinga/telinga-backend/internal/classifier"
	"github.com/telinga/telinga-backend/internal/config"
	appErrors "github.com/telinga/telinga-backend/internal/errors"
	"github.com/telinga/telinga-backend/internal/repository"
)

// PipelineService drives one feedback message through correlation,
// classification, response selection and scheduling. It runs on the worker,
// off the intake path.
type PipelineService struct {
	FeedbackRepo repository.FeedbackRepositoryInterface
	Correlator   *CorrelatorService
	Classifier   classifier.Classifier
	Scheduler    *SchedulerService
	Responder    config.ResponderConfig
	Logger       *zap.Logger
}

// ProcessFeedback is idempotent per message: a replayed task finds the
// classification already recorded and does nothing more. Each message gets
// at most one classification and at most one triggered response.
func (s *PipelineService) ProcessFeedback(ctx context.Context, feedbackMessageID int) error {
	msg, err := s.FeedbackRepo.GetByID(feedbackMessageID)
	if err != nil {
		return err
	}
	if msg == nil {
		s.Logger.Warn("feedback message not found, dropping task",
			zap.Int("feedback_message_id", feedbackMessageID))
		return nil
	}
	if msg.Sentiment != nil {
		s.Logger.Info("feedback message already processed, skipping",
			zap.Int("feedback_message_id", msg.ID))
		return nil
	}

	customer, thread, err := s.Correlator.Correlate(msg)
	if err != nil {
		var unresolvable *appErrors.ErrUnresolvableSender
		if errors.As(err, &unresolvable) {
			// Non-retryable: surface for manual triage, do not requeue.
			s.Logger.Error("unresolvable sender, message needs manual triage",
				zap.Int("feedback_message_id", msg.ID),
				zap.String("sender", unresolvable.Sender),
				zap.String("channel", unresolvable.Channel))
			return nil
		}
		return err
	}

	result := s.Classifier.Classify(ctx, msg.Body)
	if err := s.FeedbackRepo.RecordClassification(msg.ID, result.Label, result.Confidence, result.Language); err != nil {
		return err
	}
	s.Logger.Info("feedback classified",
		zap.Int("feedback_message_id", msg.ID),
		zap.String("sentiment", result.Label),
		zap.Float64("confidence", result.Confidence),
		zap.String("language", result.Language))

	if msg.ResponseID != nil {
		return nil
	}

	threadCtx := ThreadContext{Channel: msg.Channel, MessageCount: thread.MessageCount}
	decision := SelectResponse(result, threadCtx, s.Responder, time.Now())
	followup := decision.Followup
	decision.Followup = nil

	scheduled, err := s.Scheduler.ScheduleDecision(decision, customer, msg)
	if err != nil {
		return err
	}
	if scheduled != nil {
		// Persist the response link before any follow-up action, so a task
		// replayed after a follow-up failure cannot schedule a second
		// response.
		if err := s.FeedbackRepo.SetResponseID(msg.ID, scheduled.ID); err != nil {
			return err
		}
	}
	if followup != nil {
		if _, err := s.Scheduler.ScheduleDecision(*followup, customer, msg); err != nil {
			return err
		}
	}
	return nil
}
