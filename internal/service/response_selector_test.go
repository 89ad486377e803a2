package service_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telinga/telinga-backend/internal/classifier"
	"github.com/telinga/telinga-backend/internal/config"
	"github.com/telinga/telinga-backend/internal/model"
	"github.com/telinga/telinga-backend/internal/service"
)

var selectorConfig = config.ResponderConfig{
	NegativeThreshold:   0.7,
	EscalationTemplate:  "A live agent is on it.",
	AckPositiveTemplate: "Thanks for the kind words!",
	AckNeutralTemplate:  "Thanks, noted.",
}

func TestSelectResponseNegativeHighConfidence(t *testing.T) {
	result := classifier.Result{Label: model.SentimentNegative, Confidence: 0.9}
	threadCtx := service.ThreadContext{Channel: model.ChannelSMS}

	d := service.SelectResponse(result, threadCtx, selectorConfig, time.Now())
	assert.Equal(t, service.DecisionSendAutoResponse, d.Kind)
	assert.Equal(t, selectorConfig.EscalationTemplate, d.Template)
	assert.Nil(t, d.Followup)
}

func TestSelectResponseNegativeEmailProposesMeeting(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	result := classifier.Result{Label: model.SentimentNegative, Confidence: 0.85}
	threadCtx := service.ThreadContext{Channel: model.ChannelEmail}

	d := service.SelectResponse(result, threadCtx, selectorConfig, now)
	assert.Equal(t, service.DecisionSendAutoResponse, d.Kind)
	require.NotNil(t, d.Followup)
	assert.Equal(t, service.DecisionProposeMeeting, d.Followup.Kind)
	assert.Equal(t, now.Add(24*time.Hour), d.Followup.SuggestedTime)
}

func TestSelectResponseNegativeLowConfidenceAcknowledges(t *testing.T) {
	result := classifier.Result{Label: model.SentimentNegative, Confidence: 0.5}
	threadCtx := service.ThreadContext{Channel: model.ChannelEmail}

	d := service.SelectResponse(result, threadCtx, selectorConfig, time.Now())
	assert.Equal(t, service.DecisionSendAutoResponse, d.Kind)
	assert.Equal(t, selectorConfig.AckNeutralTemplate, d.Template)
	assert.Nil(t, d.Followup)
}

func TestSelectResponsePositive(t *testing.T) {
	result := classifier.Result{Label: model.SentimentPositive, Confidence: 0.95}

	d := service.SelectResponse(result, service.ThreadContext{Channel: model.ChannelSMS}, selectorConfig, time.Now())
	assert.Equal(t, service.DecisionSendAutoResponse, d.Kind)
	assert.Equal(t, selectorConfig.AckPositiveTemplate, d.Template)
}

func TestSelectResponseNeutral(t *testing.T) {
	result := classifier.Result{Label: model.SentimentNeutral, Confidence: 0.8}

	d := service.SelectResponse(result, service.ThreadContext{Channel: model.ChannelSMS}, selectorConfig, time.Now())
	assert.Equal(t, service.DecisionSendAutoResponse, d.Kind)
	assert.Equal(t, selectorConfig.AckNeutralTemplate, d.Template)
}

func TestSelectResponseUnclearIsNoAction(t *testing.T) {
	d := service.SelectResponse(classifier.Fallback(), service.ThreadContext{Channel: model.ChannelSMS}, selectorConfig, time.Now())
	assert.Equal(t, service.DecisionNoAction, d.Kind)
	assert.Nil(t, d.Followup)
}
