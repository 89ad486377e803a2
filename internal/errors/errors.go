// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
)

// ErrInvalidSignature means the inbound webhook failed provider authenticity
// verification. Non-retryable; the event is dropped.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// ErrDuplicateEvent means the provider event id was already processed.
type ErrDuplicateEvent struct {
	ProviderEventID string
}

func (e *ErrDuplicateEvent) Error() string {
	return fmt.Sprintf("event %s already processed", e.ProviderEventID)
}

func NewDuplicateEvent(providerEventID string) error {
	return &ErrDuplicateEvent{ProviderEventID: providerEventID}
}

// ErrUnresolvableSender means neither identity nor thread-hint lookup could
// map the sender to a customer. Non-retryable; surfaced for manual triage.
type ErrUnresolvableSender struct {
	Sender  string
	Channel string
}

func (e *ErrUnresolvableSender) Error() string {
	return fmt.Sprintf("sender %s on channel %s could not be resolved", e.Sender, e.Channel)
}

func NewUnresolvableSender(sender, channel string) error {
	return &ErrUnresolvableSender{Sender: sender, Channel: channel}
}

// ErrTemplate means a referenced customer field was empty with no default.
// Rejects the single row, never the whole batch.
type ErrTemplate struct {
	Placeholder string
}

func (e *ErrTemplate) Error() string {
	return fmt.Sprintf("template placeholder %q has no value for this customer", e.Placeholder)
}

func NewTemplateError(placeholder string) error {
	return &ErrTemplate{Placeholder: placeholder}
}

// ErrMessageNotFound is returned by status queries for unknown message ids.
type ErrMessageNotFound struct {
	MessageID int
}

func (e *ErrMessageNotFound) Error() string {
	return fmt.Sprintf("scheduled message with ID %d not found", e.MessageID)
}

func NewMessageNotFound(id int) error {
	return &ErrMessageNotFound{MessageID: id}
}

// IsDuplicateEvent reports whether err is an ErrDuplicateEvent.
func IsDuplicateEvent(err error) bool {
	var d *ErrDuplicateEvent
	return errors.As(err, &d)
}

// IsTemplateError reports whether err is an ErrTemplate.
func IsTemplateError(err error) bool {
	var t *ErrTemplate
	return errors.As(err, &t)
}
