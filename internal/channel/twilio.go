// internal/channel/twilio.go
package channel

import (
	"context"
	"strings"

	"github.com/twilio/twilio-go"
	twilioClient "github.com/twilio/twilio-go/client"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"
)

// TwilioSMSClient sends SMS and queries message status through Twilio.
type TwilioSMSClient struct {
	client *twilio.RestClient
	from   string
	logger *zap.Logger
}

func NewTwilioSMSClient(accountSID, authToken, from string, logger *zap.Logger) *TwilioSMSClient {
	rest := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioSMSClient{client: rest, from: from, logger: logger}
}

func (t *TwilioSMSClient) Send(ctx context.Context, to, body string) (string, error) {
	if !strings.HasPrefix(to, "+") {
		to = "+" + to
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(t.from)
	params.SetBody(body)

	msg, err := t.client.Api.CreateMessage(params)
	if err != nil {
		return "", err
	}
	if msg.Sid == nil {
		return "", nil
	}
	t.logger.Info("SMS sent", zap.String("to", to), zap.String("sid", *msg.Sid))
	return *msg.Sid, nil
}

func (t *TwilioSMSClient) CheckStatus(ctx context.Context, providerMessageID string) (string, error) {
	msg, err := t.client.Api.FetchMessage(providerMessageID, &twilioApi.FetchMessageParams{})
	if err != nil {
		return "", err
	}
	if msg.Status == nil {
		return "", nil
	}
	return strings.ToLower(*msg.Status), nil
}

var _ Client = (*TwilioSMSClient)(nil)

// TwilioValidator verifies the X-Twilio-Signature on inbound webhooks.
type TwilioValidator struct {
	validator twilioClient.RequestValidator
}

func NewTwilioValidator(authToken string) *TwilioValidator {
	return &TwilioValidator{validator: twilioClient.NewRequestValidator(authToken)}
}

func (v *TwilioValidator) Verify(url string, params map[string]string, signature string) bool {
	return v.validator.Validate(url, params, signature)
}
