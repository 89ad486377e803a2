// internal/classifier/classifier.go
package classifier

import (
	"context"
	"strings"

	"github.com/telinga/telinga-backend/internal/model"
)

// LanguageUnknown is the sentinel for languages outside the supported set.
const LanguageUnknown = "unknown"

// Result is a normalized classification: a sentiment label from the fixed
// set, a confidence in [0,1] and a language code from the fixed code set.
type Result struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Language   string  `json:"language"`
}

// Fallback is the conservative default used when the classification service
// fails or times out. The pipeline proceeds instead of blocking.
func Fallback() Result {
	return Result{Label: model.SentimentUnclear, Confidence: 0, Language: LanguageUnknown}
}

// Classifier labels feedback text. Implementations must never return an
// error-shaped result: on any failure they return Fallback().
type Classifier interface {
	Classify(ctx context.Context, text string) Result
}

// languageCodes maps service language-detection output to the fixed code
// set. Detection output may be a name ("french") or already a code.
var languageCodes = map[string]string{
	"english":    "en",
	"en":         "en",
	"french":     "fr",
	"fr":         "fr",
	"spanish":    "es",
	"es":         "es",
	"german":     "de",
	"de":         "de",
	"portuguese": "pt",
	"pt":         "pt",
	"swahili":    "sw",
	"sw":         "sw",
	"arabic":     "ar",
	"ar":         "ar",
}

// NormalizeLanguage maps detection output to the fixed code set, or the
// "unknown" sentinel. It never fails.
func NormalizeLanguage(detected string) string {
	if code, ok := languageCodes[strings.ToLower(strings.TrimSpace(detected))]; ok {
		return code
	}
	return LanguageUnknown
}

// NormalizeLabel restricts a label to the fixed sentiment set.
func NormalizeLabel(label string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case model.SentimentPositive:
		return model.SentimentPositive, true
	case model.SentimentNeutral:
		return model.SentimentNeutral, true
	case model.SentimentNegative:
		return model.SentimentNegative, true
	case model.SentimentUnclear:
		return model.SentimentUnclear, true
	}
	return model.SentimentUnclear, false
}
