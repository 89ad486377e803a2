// internal/service/delivery_service.go
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/telinga/telinga-backend/internal/channel"
	"github.com/telinga/telinga-backend/internal/config"
	"github.com/telinga/telinga-backend/internal/metrics"
	"github.com/telinga/telinga-backend/internal/model"
	"github.com/telinga/telinga-backend/internal/repository"
)

// statusPollBatch bounds how many non-terminal records one sweep checks.
const statusPollBatch = 200

// DeliveryService dispatches claimed messages through the channel clients
// and reconciles provider delivery status from polling and push callbacks.
type DeliveryService struct {
	ScheduledRepo repository.ScheduledMessageRepositoryInterface
	DeliveryRepo  repository.DeliveryRecordRepositoryInterface
	CustomerRepo  repository.CustomerRepositoryInterface
	Channels      channel.Registry
	Cfg           config.PipelineConfig
	Logger        *zap.Logger
}

// mapProviderStatus translates a provider delivery status into the owning
// ScheduledMessage's terminal status. The second return is false for
// intermediate statuses (queued, sent).
func mapProviderStatus(status string) (string, bool) {
	switch status {
	case model.DeliveryStatusDelivered, model.DeliveryStatusRead:
		return model.ScheduledStatusDelivered, true
	case model.DeliveryStatusFailed, model.DeliveryStatusUndelivered:
		return model.ScheduledStatusFailed, true
	}
	return "", false
}

// Dispatch claims the message and sends it through its channel client with
// bounded exponential backoff. Losing the claim race is not an error: some
// other worker owns the message, or it was cancelled or is not yet due.
func (s *DeliveryService) Dispatch(ctx context.Context, scheduledMessageID int) error {
	claimed, err := s.ScheduledRepo.ClaimForDispatch(scheduledMessageID, time.Now())
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	msg, err := s.ScheduledRepo.GetByID(scheduledMessageID)
	if err != nil {
		return err
	}
	customer, err := s.CustomerRepo.GetByID(msg.CustomerID)
	if err != nil {
		return err
	}
	if customer == nil {
		_, terr := s.ScheduledRepo.TransitionStatus(msg.ID, model.ScheduledStatusDispatched, model.ScheduledStatusFailed, "customer not found")
		return terr
	}

	client, err := s.Channels.ClientFor(msg.Channel)
	if err != nil {
		_, terr := s.ScheduledRepo.TransitionStatus(msg.ID, model.ScheduledStatusDispatched, model.ScheduledStatusFailed, err.Error())
		if terr != nil {
			return terr
		}
		return nil
	}

	to := channel.Recipient(msg.Channel, customer)
	var lastErr error
	for attempt := 1; attempt <= s.Cfg.DispatchAttempts; attempt++ {
		providerID, err := client.Send(ctx, to, msg.Body)
		if err == nil {
			metrics.RecordDispatch(string(msg.Channel), true)
			record := &model.DeliveryRecord{
				ScheduledMessageID: msg.ID,
				ProviderMessageID:  providerID,
			}
			return s.DeliveryRepo.Create(record)
		}

		lastErr = err
		metrics.RecordDispatch(string(msg.Channel), false)
		s.Logger.Warn("dispatch attempt failed",
			zap.Int("scheduled_message_id", msg.ID),
			zap.Int("attempt", attempt),
			zap.Error(err))

		if attempt < s.Cfg.DispatchAttempts {
			backoff := s.Cfg.DispatchBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	// Attempts exhausted: terminal failure, not resubmitted automatically.
	if _, err := s.ScheduledRepo.TransitionStatus(msg.ID, model.ScheduledStatusDispatched, model.ScheduledStatusFailed, lastErr.Error()); err != nil {
		return err
	}
	metrics.RecordDeliveryOutcome(string(msg.Channel), model.ScheduledStatusFailed)
	return nil
}

// PollStatuses re-queries provider status for every non-terminal delivery
// record, then writes off dispatched messages that never got a delivery
// record. Idempotent and safe to run concurrently with itself and with push
// callbacks; each record is isolated, one failure never aborts the sweep.
func (s *DeliveryService) PollStatuses(ctx context.Context) error {
	records, err := s.DeliveryRepo.ListNonTerminal(statusPollBatch)
	if err != nil {
		return err
	}

	for _, rec := range records {
		if err := s.checkRecord(ctx, rec); err != nil {
			s.Logger.Warn("status check failed",
				zap.Int("delivery_record_id", rec.ID),
				zap.Error(err))
		}
	}
	return s.sweepStranded()
}

// sweepStranded reconciles messages claimed for dispatch whose worker died
// before creating a delivery record. The record-driven poll above never sees
// them; after StrandedAfter their outcome is unknowable.
func (s *DeliveryService) sweepStranded() error {
	cutoff := time.Now().Add(-s.Cfg.StrandedAfter)
	ids, err := s.ScheduledRepo.ListStrandedDispatched(cutoff, statusPollBatch)
	if err != nil {
		return err
	}

	for _, id := range ids {
		msg, err := s.ScheduledRepo.GetByID(id)
		if err != nil || msg == nil {
			continue
		}
		transitioned, err := s.ScheduledRepo.TransitionStatus(id, model.ScheduledStatusDispatched, model.ScheduledStatusUnknown, "no delivery record after dispatch")
		if err != nil {
			s.Logger.Warn("stranded message reconciliation failed",
				zap.Int("scheduled_message_id", id),
				zap.Error(err))
			continue
		}
		if transitioned {
			s.Logger.Warn("dispatched message has no delivery record, marking unknown",
				zap.Int("scheduled_message_id", id))
			metrics.RecordDeliveryOutcome(string(msg.Channel), model.ScheduledStatusUnknown)
		}
	}
	return nil
}

func (s *DeliveryService) checkRecord(ctx context.Context, rec *model.DeliveryRecord) error {
	msg, err := s.ScheduledRepo.GetByID(rec.ScheduledMessageID)
	if err != nil {
		return err
	}
	if msg == nil || model.TerminalScheduledStatus(msg.Status) {
		return nil
	}

	client, err := s.Channels.ClientFor(msg.Channel)
	if err != nil {
		return err
	}

	status, err := client.CheckStatus(ctx, rec.ProviderMessageID)
	if err != nil || status == "" {
		status = rec.Status // keep last known
	}
	if recordErr := s.DeliveryRepo.RecordCheck(rec.ID); recordErr != nil {
		return recordErr
	}

	if mapped, terminal := mapProviderStatus(status); terminal {
		return s.finalize(rec.ID, msg, status, mapped)
	}

	if _, err := s.DeliveryRepo.TransitionStatus(rec.ID, status); err != nil {
		return err
	}

	// No terminal status from the provider. After the configured number of
	// checks, stop asking and mark the outcome unknown.
	if rec.CheckAttempts+1 >= s.Cfg.StatusCheckCap {
		s.Logger.Warn("status checks exhausted, marking unknown",
			zap.Int("scheduled_message_id", msg.ID),
			zap.Int("check_attempts", rec.CheckAttempts+1))
		return s.finalize(rec.ID, msg, model.DeliveryStatusUnknown, model.ScheduledStatusUnknown)
	}
	return nil
}

// finalize applies a terminal provider status to the record and, when this
// path wins the race against a concurrent poll or callback, to the owning
// message. A transition out of a terminal state never happens.
func (s *DeliveryService) finalize(recordID int, msg *model.ScheduledMessage, providerStatus, msgStatus string) error {
	won, err := s.DeliveryRepo.TransitionStatus(recordID, providerStatus)
	if err != nil {
		return err
	}
	if !won {
		return nil
	}
	transitioned, err := s.ScheduledRepo.TransitionStatus(msg.ID, model.ScheduledStatusDispatched, msgStatus, "")
	if err != nil {
		return err
	}
	if transitioned {
		metrics.RecordDeliveryOutcome(string(msg.Channel), msgStatus)
	}
	return nil
}

// HandleStatusCallback ingests an asynchronous delivery-status push from a
// provider. Unknown provider message ids are logged and dropped.
func (s *DeliveryService) HandleStatusCallback(ctx context.Context, providerMessageID, providerStatus string) error {
	rec, err := s.DeliveryRepo.GetByProviderMessageID(providerMessageID)
	if err != nil {
		return err
	}
	if rec == nil {
		s.Logger.Warn("status callback for unknown provider message id",
			zap.String("provider_message_id", providerMessageID))
		return nil
	}

	mapped, terminal := mapProviderStatus(providerStatus)
	if !terminal {
		// Intermediate update; the terminal guard keeps finished records
		// untouched.
		_, err := s.DeliveryRepo.TransitionStatus(rec.ID, providerStatus)
		return err
	}

	msg, err := s.ScheduledRepo.GetByID(rec.ScheduledMessageID)
	if err != nil {
		return err
	}
	if msg == nil {
		return nil
	}
	return s.finalize(rec.ID, msg, providerStatus, mapped)
}
