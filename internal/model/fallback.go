package model

import (
	"encoding/json"
	"net/http"
	"time"
)

// Fallback reasons, also used as metric label values.
const (
	ReasonBackendUnavailable = "backend_unavailable"
	ReasonReadBodyFailed     = "read_body_failed"
	ReasonForwardFailed      = "forward_failed"
)

// FallbackMessage is the message field of every synthesized response.
const FallbackMessage = "Stub proxy response (real server unavailable)"

// TimestampLayout renders UTC time as ISO-8601 with microseconds and a trailing Z.
// The fraction is fixed width and printed even when it is zero.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

type fallbackBody struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// NewFallbackResponse builds the fixed 200 JSON response returned whenever
// the backend cannot serve a request.
func NewFallbackResponse(now time.Time, reason string) *ProxyResponse {
	// Marshaling a struct of strings cannot fail.
	body, _ := json.Marshal(fallbackBody{
		Status:    "ok",
		Message:   FallbackMessage,
		Timestamp: now.UTC().Format(TimestampLayout),
	})

	h := make(http.Header)
	h.Set("Content-Type", "application/json")

	return &ProxyResponse{
		StatusCode:     http.StatusOK,
		Header:         h,
		Body:           body,
		Fallback:       true,
		FallbackReason: reason,
	}
}
