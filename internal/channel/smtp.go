// internal/channel/smtp.go
package channel

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/smtp"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/telinga/telinga-backend/internal/model"
)

// SMTPEmailClient sends plain-text email over SMTP. SMTP has no status API,
// so an accepted message is reported delivered; thread-reply webhooks still
// update the record when the provider pushes one.
type SMTPEmailClient struct {
	from     string
	password string
	host     string
	port     string
	logger   *zap.Logger
}

func NewSMTPEmailClient(from, password, host, port string, logger *zap.Logger) *SMTPEmailClient {
	return &SMTPEmailClient{from: from, password: password, host: host, port: port, logger: logger}
}

func (s *SMTPEmailClient) Send(ctx context.Context, to, body string) (string, error) {
	subject := "Subject: A message from our team\r\n"
	mime := "MIME-version: 1.0;\nContent-Type: text/plain; charset=\"UTF-8\";\n\n"
	msg := []byte(subject + mime + body)

	auth := smtp.PlainAuth("", s.from, s.password, s.host)
	if err := smtp.SendMail(s.host+":"+s.port, auth, s.from, []string{to}, msg); err != nil {
		return "", err
	}

	id := "email-" + uuid.NewString()
	s.logger.Info("email sent", zap.String("to", to), zap.String("id", id))
	return id, nil
}

func (s *SMTPEmailClient) CheckStatus(ctx context.Context, providerMessageID string) (string, error) {
	return model.DeliveryStatusDelivered, nil
}

var _ Client = (*SMTPEmailClient)(nil)

// EmailWebhookValidator verifies the HMAC-SHA256 body signature the email
// provider attaches to thread-reply webhooks.
type EmailWebhookValidator struct {
	secret []byte
}

func NewEmailWebhookValidator(secret string) *EmailWebhookValidator {
	return &EmailWebhookValidator{secret: []byte(secret)}
}

func (v *EmailWebhookValidator) Verify(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
