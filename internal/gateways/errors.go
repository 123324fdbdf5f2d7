package gateway

import (
	"errors"
	"fmt"
)

var (
	ErrCircuitOpen       = errors.New("provider circuit open")
	ErrMalformedResponse = errors.New("malformed provider response")
)

// SendError is the one error type returned by the client. Message carries the
// provider's own error text when there is one.
type SendError struct {
	Op         string
	StatusCode int
	Code       int
	Type       string
	Message    string
	TraceID    string
	Err        error
}

func (e *SendError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("whatsapp %s: status %d: %s", e.Op, e.StatusCode, msg)
	}
	return fmt.Sprintf("whatsapp %s: %s", e.Op, msg)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// Transient reports failures worth counting against provider health:
// transport errors, throttling and 5xx responses.
func (e *SendError) Transient() bool {
	if errors.Is(e.Err, ErrCircuitOpen) {
		return false
	}
	if e.StatusCode == 0 {
		return e.Err != nil && !errors.Is(e.Err, ErrMalformedResponse)
	}
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// providerError is the error envelope of the Graph API.
type providerError struct {
	Error struct {
		Message   string `json:"message"`
		Type      string `json:"type"`
		Code      int    `json:"code"`
		FbTraceID string `json:"fbtrace_id"`
	} `json:"error"`
}
