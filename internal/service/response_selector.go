// internal/service/response_selector.go
package service

import (
	"time"

	"github.com/telinga/telinga-backend/internal/classifier"
	"github.com/telinga/telinga-backend/internal/config"
	"github.com/telinga/telinga-backend/internal/model"
)

// DecisionKind is the closed set of automated reactions to a classified
// feedback message.
type DecisionKind int

const (
	DecisionNoAction DecisionKind = iota
	DecisionSendAutoResponse
	DecisionProposeMeeting
)

// Decision is the selector's output. Template is set for
// DecisionSendAutoResponse; SuggestedTime for DecisionProposeMeeting.
// Followup optionally carries a second decision (negative email feedback
// yields an escalation response and a meeting proposal).
type Decision struct {
	Kind          DecisionKind
	Template      string
	SuggestedTime time.Time
	Followup      *Decision
}

// ThreadContext is the slice of conversation state the selector looks at.
type ThreadContext struct {
	Channel      model.Channel
	MessageCount int
}

// meetingLeadTime is how far out a proposed follow-up meeting is suggested.
const meetingLeadTime = 24 * time.Hour

// SelectResponse decides how to react to a classification result. It is a
// pure function of its inputs; all persistence happens in the scheduler.
func SelectResponse(result classifier.Result, threadCtx ThreadContext, cfg config.ResponderConfig, now time.Time) Decision {
	switch result.Label {
	case model.SentimentNegative:
		if result.Confidence < cfg.NegativeThreshold {
			// Low-confidence negative reads like neutral: acknowledge only.
			return Decision{Kind: DecisionSendAutoResponse, Template: cfg.AckNeutralTemplate}
		}
		d := Decision{Kind: DecisionSendAutoResponse, Template: cfg.EscalationTemplate}
		if threadCtx.Channel == model.ChannelEmail {
			d.Followup = &Decision{
				Kind:          DecisionProposeMeeting,
				SuggestedTime: now.Add(meetingLeadTime),
			}
		}
		return d
	case model.SentimentPositive:
		return Decision{Kind: DecisionSendAutoResponse, Template: cfg.AckPositiveTemplate}
	case model.SentimentNeutral:
		return Decision{Kind: DecisionSendAutoResponse, Template: cfg.AckNeutralTemplate}
	default:
		// unclear: leave it to a human.
		return Decision{Kind: DecisionNoAction}
	}
}
