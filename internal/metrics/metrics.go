// internal/metrics/metrics.go
package metrics

import (
	"net/http"
	"strconv"

	"github.com/VictoriaMetrics/metrics"
)

// Handler serves the Prometheus exposition endpoint.
func Handler(w http.ResponseWriter, r *http.Request) {
	metrics.WritePrometheus(w, true)
}

// RecordInboundEvent records one webhook intake outcome. outcome is one of
// accepted, duplicate, invalid_signature.
func RecordInboundEvent(channel, outcome string) {
	name := `telinga_inbound_events_total{channel="` + channel + `",outcome="` + outcome + `"}`
	metrics.GetOrCreateCounter(name).Inc()
}

// RecordClassification records one classification gateway result.
func RecordClassification(label string, fallback bool) {
	name := `telinga_classifications_total{label="` + label + `",fallback="` + strconv.FormatBool(fallback) + `"}`
	metrics.GetOrCreateCounter(name).Inc()
}

// RecordDispatch records one dispatch attempt outcome per channel.
func RecordDispatch(channel string, success bool) {
	name := `telinga_dispatches_total{channel="` + channel + `",success="` + strconv.FormatBool(success) + `"}`
	metrics.GetOrCreateCounter(name).Inc()
}

// RecordDeliveryOutcome records the terminal status of a scheduled message.
func RecordDeliveryOutcome(channel, status string) {
	name := `telinga_delivery_outcomes_total{channel="` + channel + `",status="` + status + `"}`
	metrics.GetOrCreateCounter(name).Inc()
}
