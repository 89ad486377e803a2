// internal/classifier/openai_classifier.go
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/telinga/telinga-backend/internal/metrics"
)

type gptResponse struct {
	Sentiment  string  `json:"sentiment"`
	Confidence float64 `json:"confidence"`
	Language   string  `json:"language"`
}

// GPTClassifier labels feedback through the OpenAI chat-completion API.
type GPTClassifier struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float64
	timeout     time.Duration
	logger      *zap.Logger
}

func NewGPTClassifier(apiKey, model string, maxTokens int, temperature float64, timeout time.Duration, logger *zap.Logger) *GPTClassifier {
	return &GPTClassifier{
		client:      openai.NewClient(apiKey),
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		timeout:     timeout,
		logger:      logger,
	}
}

// Classify labels the text or returns the conservative fallback. Service
// errors and timeouts are recovered locally, never surfaced to the caller.
func (c *GPTClassifier) Classify(ctx context.Context, text string) Result {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	prompt := fmt.Sprintf(`Analyze the sentiment of the following customer feedback and detect its language.
Respond with a JSON object only, in this structure:
{"sentiment": "positive|neutral|negative", "confidence": 0.0, "language": "english"}

Examples:
Feedback: "I love this product!"
{"sentiment": "positive", "confidence": 0.95, "language": "english"}

Feedback: "This service is terrible."
{"sentiment": "negative", "confidence": 0.9, "language": "english"}

Feedback: "It's okay, nothing special."
{"sentiment": "neutral", "confidence": 0.8, "language": "english"}

Feedback: %q`, text)

	resp, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			MaxTokens:   c.maxTokens,
			Temperature: float32(c.temperature),
		},
	)
	if err != nil {
		c.logger.Warn("classification service call failed, using fallback", zap.Error(err))
		metrics.RecordClassification(Fallback().Label, true)
		return Fallback()
	}

	var parsed gptResponse
	raw := strings.TrimSpace(resp.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		c.logger.Warn("failed to parse classification response, using fallback",
			zap.Error(err),
			zap.String("response", raw))
		metrics.RecordClassification(Fallback().Label, true)
		return Fallback()
	}

	label, ok := NormalizeLabel(parsed.Sentiment)
	if !ok {
		c.logger.Warn("unexpected sentiment label, using fallback", zap.String("label", parsed.Sentiment))
		metrics.RecordClassification(Fallback().Label, true)
		return Fallback()
	}

	confidence := parsed.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	result := Result{
		Label:      label,
		Confidence: confidence,
		Language:   NormalizeLanguage(parsed.Language),
	}
	metrics.RecordClassification(result.Label, false)
	return result
}

var _ Classifier = (*GPTClassifier)(nil)
