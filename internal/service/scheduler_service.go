// internal/service/scheduler_service.go
package service

import (
	"time"

	"go.uber.org/zap"

	"github.com/telinga/telinga-backend/internal/model"
	"github.com/telinga/telinga-backend/internal/queue"
	"github.com/telinga/telinga-backend/internal/repository"
)

// dueScanBatch bounds how many due messages one sweep enqueues.
const dueScanBatch = 100

// SchedulerService turns decisions and batch-import requests into
// ScheduledMessage records and feeds due ones to the dispatch queue.
type SchedulerService struct {
	ScheduledRepo repository.ScheduledMessageRepositoryInterface
	MeetingRepo   repository.MeetingRequestRepositoryInterface
	CustomerRepo  repository.CustomerRepositoryInterface
	Renderer      *TemplateRenderer
	Queue         queue.Queue
	Logger        *zap.Logger
}

// ScheduleDecision persists the selector's decision. It returns the created
// ScheduledMessage for SendAutoResponse decisions, nil for NoAction.
func (s *SchedulerService) ScheduleDecision(d Decision, customer *model.Customer, msg *model.FeedbackMessage) (*model.ScheduledMessage, error) {
	var scheduled *model.ScheduledMessage

	switch d.Kind {
	case DecisionNoAction:
		// Human follow-up assumed.
	case DecisionSendAutoResponse:
		body, err := s.Renderer.Render(d.Template, customer)
		if err != nil {
			return nil, err
		}
		scheduled = &model.ScheduledMessage{
			AccountID:         customer.AccountID,
			CustomerID:        customer.ID,
			Channel:           msg.Channel,
			Body:              body,
			ScheduledAt:       time.Now(),
			FeedbackMessageID: &msg.ID,
		}
		if err := s.ScheduledRepo.Create(scheduled); err != nil {
			return nil, err
		}
		// Nudge dispatch instead of waiting for the next sweep. The claim
		// guard makes the extra task harmless.
		if err := s.Queue.Publish(queue.TopicDispatch, queue.DispatchTask{ScheduledMessageID: scheduled.ID}); err != nil {
			s.Logger.Warn("failed to enqueue dispatch task, sweep will pick it up",
				zap.Int("scheduled_message_id", scheduled.ID),
				zap.Error(err))
		}
	case DecisionProposeMeeting:
		meeting := &model.MeetingRequest{
			CustomerID:    customer.ID,
			SuggestedTime: d.SuggestedTime,
			Title:         "Feedback review with " + customer.FirstName + " " + customer.LastName,
		}
		if err := s.MeetingRepo.Create(meeting); err != nil {
			return nil, err
		}
		s.Logger.Info("meeting proposed",
			zap.Int("customer_id", customer.ID),
			zap.Time("suggested_time", d.SuggestedTime))
	}
	return scheduled, nil
}

// ImportRowResult reports per-row acceptance for a batch import.
type ImportRowResult struct {
	Line               int    `json:"line"`
	CustomerID         int    `json:"customer_id,omitempty"`
	ScheduledMessageID int    `json:"scheduled_message_id,omitempty"`
	Accepted           bool   `json:"accepted"`
	Error              string `json:"error,omitempty"`
}

// ImportBatch upserts each customer and schedules a templated first-contact
// message for the requested send time. Row failures are isolated: a bad row
// is rejected, its siblings proceed.
func (s *SchedulerService) ImportBatch(customers []model.Customer, template string, sendAt time.Time, accountID int) []ImportRowResult {
	results := make([]ImportRowResult, 0, len(customers))

	for i := range customers {
		c := &customers[i]
		result := ImportRowResult{Line: i + 1}

		if c.Phone == "" && c.Email == "" {
			result.Error = "row has neither phone number nor email"
			results = append(results, result)
			continue
		}

		c.AccountID = accountID
		if err := s.CustomerRepo.Upsert(c); err != nil {
			result.Error = err.Error()
			results = append(results, result)
			continue
		}
		result.CustomerID = c.ID

		body, err := s.Renderer.Render(template, c)
		if err != nil {
			result.Error = err.Error()
			results = append(results, result)
			continue
		}

		ch := model.ChannelEmail
		if c.Phone != "" {
			ch = model.ChannelSMS
		}
		scheduled := &model.ScheduledMessage{
			AccountID:   accountID,
			CustomerID:  c.ID,
			Channel:     ch,
			Body:        body,
			ScheduledAt: sendAt,
		}
		if err := s.ScheduledRepo.Create(scheduled); err != nil {
			result.Error = err.Error()
			results = append(results, result)
			continue
		}

		result.ScheduledMessageID = scheduled.ID
		result.Accepted = true
		results = append(results, result)
	}
	return results
}

// ScanDue enqueues a dispatch task for every pending message whose send time
// has arrived. Safe to run concurrently with itself: workers claim messages
// atomically, so a message enqueued twice is dispatched once.
func (s *SchedulerService) ScanDue(now time.Time) (int, error) {
	ids, err := s.ScheduledRepo.ListDueIDs(now, dueScanBatch)
	if err != nil {
		return 0, err
	}
	enqueued := 0
	for _, id := range ids {
		if err := s.Queue.Publish(queue.TopicDispatch, queue.DispatchTask{ScheduledMessageID: id}); err != nil {
			s.Logger.Warn("failed to enqueue due message",
				zap.Int("scheduled_message_id", id),
				zap.Error(err))
			continue
		}
		enqueued++
	}
	return enqueued, nil
}

// Cancel withdraws a pending message. Returns false once dispatch has
// claimed it; there is no retraction after dispatch, only compensating
// action.
func (s *SchedulerService) Cancel(id int) (bool, error) {
	return s.ScheduledRepo.Cancel(id)
}
