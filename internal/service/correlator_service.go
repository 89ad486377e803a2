// internal/service/correlator_service.go
package service

import (
	"go.uber.org/zap"

	appErrors "github.com/telinga/telinga-backend/internal/errors"
	"github.com/telinga/telinga-backend/internal/model"
	"github.com/telinga/telinga-backend/internal/repository"
)

// CorrelatorService maps an inbound FeedbackMessage to a Customer and
// ConversationThread.
type CorrelatorService struct {
	CustomerRepo repository.CustomerRepositoryInterface
	ThreadRepo   repository.ThreadRepositoryInterface
	FeedbackRepo repository.FeedbackRepositoryInterface
	Logger       *zap.Logger
}

// Correlate resolves the message's sender to a customer and thread, creating
// both just-in-time where the channel allows, and appends the message to the
// thread. Thread-reply events carrying a provider thread id resolve directly
// to the existing thread, bypassing identity lookup.
func (s *CorrelatorService) Correlate(msg *model.FeedbackMessage) (*model.Customer, *model.ConversationThread, error) {
	if msg.ThreadHint != "" {
		thread, err := s.ThreadRepo.GetByProviderThreadID(msg.ThreadHint)
		if err != nil {
			return nil, nil, err
		}
		if thread != nil {
			customer, err := s.CustomerRepo.GetByID(thread.CustomerID)
			if err != nil {
				return nil, nil, err
			}
			return customer, thread, s.append(msg, customer, thread)
		}
	}

	customer, err := s.lookupSender(msg)
	if err != nil {
		return nil, nil, err
	}
	if customer == nil {
		if msg.ThreadHint != "" {
			// A reply to a thread we do not know, from a sender we do not
			// know. Creating a customer from that would be guesswork.
			return nil, nil, appErrors.NewUnresolvableSender(msg.Sender, string(msg.Channel))
		}
		customer, err = s.createFromSender(msg)
		if err != nil {
			return nil, nil, err
		}
		s.Logger.Info("created customer from first inbound contact",
			zap.Int("customer_id", customer.ID),
			zap.String("channel", string(msg.Channel)))
	}

	thread, err := s.ThreadRepo.GetByCustomerAndChannel(customer.ID, msg.Channel)
	if err != nil {
		return nil, nil, err
	}
	if thread == nil {
		thread = &model.ConversationThread{
			CustomerID:       customer.ID,
			Channel:          msg.Channel,
			ProviderThreadID: msg.ThreadHint,
		}
		if err := s.ThreadRepo.Create(thread); err != nil {
			return nil, nil, err
		}
		return customer, thread, s.FeedbackRepo.AttachCorrelation(msg.ID, customer.ID, thread.ID)
	}
	return customer, thread, s.append(msg, customer, thread)
}

func (s *CorrelatorService) append(msg *model.FeedbackMessage, customer *model.Customer, thread *model.ConversationThread) error {
	if err := s.ThreadRepo.Touch(thread.ID); err != nil {
		return err
	}
	thread.MessageCount++
	return s.FeedbackRepo.AttachCorrelation(msg.ID, customer.ID, thread.ID)
}

func (s *CorrelatorService) lookupSender(msg *model.FeedbackMessage) (*model.Customer, error) {
	if msg.Sender == "" {
		return nil, nil
	}
	if msg.Channel == model.ChannelSMS {
		return s.CustomerRepo.GetByPhone(msg.Sender)
	}
	return s.CustomerRepo.GetByEmail(msg.Sender)
}

// createFromSender makes a minimal channel-first identity record.
func (s *CorrelatorService) createFromSender(msg *model.FeedbackMessage) (*model.Customer, error) {
	if msg.Sender == "" {
		return nil, appErrors.NewUnresolvableSender(msg.Sender, string(msg.Channel))
	}
	customer := &model.Customer{}
	if msg.Channel == model.ChannelSMS {
		customer.Phone = msg.Sender
	} else {
		customer.Email = msg.Sender
	}
	if err := s.CustomerRepo.Create(customer); err != nil {
		return nil, err
	}
	return customer, nil
}
