// internal/controller/webhook_controller.go
package controller

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/telinga/telinga-backend/internal/errors"
	"github.com/telinga/telinga-backend/internal/model"
	"github.com/telinga/telinga-backend/internal/service"
)

// WebhookController terminates provider webhooks: inbound SMS, inbound email
// thread replies, and asynchronous delivery-status callbacks.
type WebhookController struct {
	IntakeService   *service.IntakeService
	DeliveryService *service.DeliveryService
	PublicBaseURL   string
	Logger          *zap.Logger
}

// InboundSMS handles the Twilio inbound-message webhook (form encoded).
// Twilio retries non-2xx responses, so duplicates answer 200 like accepts.
func (c *WebhookController) InboundSMS(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form body", http.StatusBadRequest)
		return
	}

	params := make(map[string]string, len(r.PostForm))
	for k := range r.PostForm {
		params[k] = r.PostForm.Get(k)
	}

	event := &service.InboundEvent{
		Channel:         model.ChannelSMS,
		Sender:          r.PostForm.Get("From"),
		Body:            r.PostForm.Get("Body"),
		ProviderEventID: r.PostForm.Get("MessageSid"),
		ReceivedAt:      time.Now(),
		Signature: service.Signature{
			Header: r.Header.Get("X-Twilio-Signature"),
			URL:    c.PublicBaseURL + r.URL.RequestURI(),
			Params: params,
		},
	}
	c.finishIngest(w, r, event)
}

// InboundEmail handles the email provider's thread-reply webhook (JSON body,
// HMAC of the raw body in X-Webhook-Signature).
func (c *WebhookController) InboundEmail(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "unreadable body", http.StatusBadRequest)
		return
	}

	var body struct {
		EventID  string `json:"event_id"`
		From     string `json:"from"`
		ThreadID string `json:"thread_id"`
		Text     string `json:"text"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	event := &service.InboundEvent{
		Channel:         model.ChannelEmail,
		Sender:          body.From,
		ThreadHint:      body.ThreadID,
		Body:            body.Text,
		ProviderEventID: body.EventID,
		ReceivedAt:      time.Now(),
		Signature: service.Signature{
			Header:  r.Header.Get("X-Webhook-Signature"),
			RawBody: raw,
		},
	}
	c.finishIngest(w, r, event)
}

func (c *WebhookController) finishIngest(w http.ResponseWriter, r *http.Request, event *service.InboundEvent) {
	id, err := c.IntakeService.Ingest(r.Context(), event)
	if err != nil {
		if errors.Is(err, appErrors.ErrInvalidSignature) {
			http.Error(w, "invalid signature", http.StatusForbidden)
			return
		}
		if appErrors.IsDuplicateEvent(err) {
			// Already stored on a previous delivery. Acknowledge so the
			// provider stops retrying.
			json.NewEncoder(w).Encode(map[string]interface{}{"status": "duplicate"})
			return
		}
		c.Logger.Error("intake failed", zap.Error(err))
		http.Error(w, "intake failed", http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":              "accepted",
		"feedback_message_id": id,
	})
}

// DeliveryStatus handles Twilio's status callback (form encoded). Unknown
// message ids are acknowledged and dropped.
func (c *WebhookController) DeliveryStatus(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form body", http.StatusBadRequest)
		return
	}

	sid := r.PostForm.Get("MessageSid")
	status := r.PostForm.Get("MessageStatus")
	if sid == "" || status == "" {
		http.Error(w, "missing MessageSid or MessageStatus", http.StatusBadRequest)
		return
	}

	if err := c.DeliveryService.HandleStatusCallback(r.Context(), sid, status); err != nil {
		c.Logger.Error("status callback failed",
			zap.String("provider_message_id", sid),
			zap.Error(err))
		http.Error(w, "callback failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
