package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/nimasrn/campaign-dispatcher/internal/model"
	"github.com/nimasrn/campaign-dispatcher/pkg/logger"
	"github.com/valyala/fasthttp"
)

type ProviderState int32

const (
	StateHealthy ProviderState = iota
	StateDegraded
	StateCircuitOpen
)

func stateString(state ProviderState) string {
	switch state {
	case StateHealthy:
		return "healthy"
	case StateDegraded:
		return "degraded"
	case StateCircuitOpen:
		return "circuit_open"
	default:
		return "unknown"
	}
}

type Config struct {
	BaseURL                 string
	Version                 string
	PhoneNumberID           string
	Token                   string
	Timeout                 time.Duration
	MaxConns                int
	ReadBufferSize          int
	WriteBufferSize         int
	CircuitBreakerThreshold int
	CircuitBreakerTimeout   time.Duration
	// Dial replaces the default TCP dialer, e.g. for a proxy or an
	// in-memory listener.
	Dial fasthttp.DialFunc
}

// SendResult is what the provider returns for an accepted message.
type SendResult struct {
	MessageID string
	Status    string
	Pricing   *model.Pricing
}

// sendResponse carries pricing either next to the message entry or at the
// top level, depending on the API version.
type sendResponse struct {
	Messages []struct {
		ID            string         `json:"id"`
		MessageStatus string         `json:"message_status"`
		Pricing       *model.Pricing `json:"pricing,omitempty"`
	} `json:"messages"`
	Pricing *model.Pricing `json:"pricing,omitempty"`
}

// Client talks to the WhatsApp Cloud API for one sender phone number. Sends
// are never retried: a second POST could deliver the message twice.
type Client struct {
	config  *Config
	http    *fasthttp.Client
	metrics *ProviderMetrics

	state            atomic.Int32
	circuitOpenUntil atomic.Int64
}

func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if config.BaseURL == "" {
		return nil, errors.New("base url is required")
	}
	if config.PhoneNumberID == "" || config.Token == "" {
		return nil, errors.New("phone number id and token are required")
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}

	client := &Client{
		config: config,
		http: &fasthttp.Client{
			Name:                "campaign-dispatcher",
			MaxConnsPerHost:     config.MaxConns,
			ReadTimeout:         config.Timeout,
			WriteTimeout:        config.Timeout,
			MaxIdleConnDuration: 60 * time.Second,
			ReadBufferSize:      config.ReadBufferSize,
			WriteBufferSize:     config.WriteBufferSize,
			Dial:                config.Dial,
		},
		metrics: NewProviderMetrics(),
	}
	client.state.Store(int32(StateHealthy))

	logger.Info("WhatsApp client initialized", "base_url", config.BaseURL, "version", config.Version, "phone_number_id", config.PhoneNumberID, "timeout", config.Timeout)

	return client, nil
}

func (c *Client) endpoint(path string) string {
	parts := []string{strings.TrimRight(c.config.BaseURL, "/")}
	if c.config.Version != "" {
		parts = append(parts, c.config.Version)
	}
	parts = append(parts, c.config.PhoneNumberID, path)
	return strings.Join(parts, "/")
}

func (c *Client) GetState() ProviderState {
	return ProviderState(c.state.Load())
}

// IsAvailable reports whether calls may go out. An open circuit lets a
// single trial request through once its timeout passed.
func (c *Client) IsAvailable() bool {
	if c.GetState() != StateCircuitOpen {
		return true
	}
	if time.Now().UnixNano() > c.circuitOpenUntil.Load() {
		c.state.CompareAndSwap(int32(StateCircuitOpen), int32(StateDegraded))
		return true
	}
	return false
}

func (c *Client) SendTemplate(ctx context.Context, msg TemplateMessage) (*SendResult, error) {
	return c.Send(ctx, msg)
}

// Send validates msg and posts it to the messages endpoint.
func (c *Client) Send(ctx context.Context, msg OutboundMessage) (*SendResult, error) {
	if err := msg.Validate(); err != nil {
		return nil, &SendError{Op: "send", Message: err.Error(), Err: err}
	}

	body, err := json.Marshal(msg.envelope())
	if err != nil {
		return nil, &SendError{Op: "send", Message: "failed to marshal request", Err: err}
	}

	response, err := c.call(ctx, "send", "/messages", "application/json", body)
	if err != nil {
		return nil, err
	}

	var resp sendResponse
	if err := json.Unmarshal(response, &resp); err != nil || len(resp.Messages) == 0 || resp.Messages[0].ID == "" {
		return nil, &SendError{Op: "send", Message: "response carries no message id", Err: ErrMalformedResponse}
	}

	pricing := resp.Messages[0].Pricing
	if pricing == nil {
		pricing = resp.Pricing
	}

	return &SendResult{
		MessageID: resp.Messages[0].ID,
		Status:    resp.Messages[0].MessageStatus,
		Pricing:   pricing,
	}, nil
}

// call performs one request and keeps the provider health up to date.
func (c *Client) call(ctx context.Context, op, path, contentType string, body []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &SendError{Op: op, Message: err.Error(), Err: err}
	}
	if !c.IsAvailable() {
		return nil, &SendError{Op: op, Message: "provider circuit is open", Err: ErrCircuitOpen}
	}

	start := time.Now()
	response, err := c.doRequest(ctx, op, path, contentType, body)
	latency := time.Since(start).Milliseconds()

	if err != nil {
		var se *SendError
		transient := errors.As(err, &se) && se.Transient()
		c.metrics.RecordFailure(transient)
		c.checkCircuitBreaker()
		logger.Warn("WhatsApp request failed", "op", op, "error", err, "latency_ms", latency)
		return nil, err
	}

	c.metrics.RecordSuccess(latency)
	if c.GetState() == StateDegraded {
		c.state.Store(int32(StateHealthy))
		logger.Info("WhatsApp provider recovered")
	}
	return response, nil
}

func (c *Client) doRequest(ctx context.Context, op, path, contentType string, body []byte) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.endpoint(strings.TrimPrefix(path, "/")))
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType(contentType)
	req.Header.Set("Authorization", "Bearer "+c.config.Token)
	req.SetBody(body)

	deadline := time.Now().Add(c.config.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return nil, &SendError{Op: op, Message: fmt.Sprintf("request failed: %v", err), Err: err}
	}

	statusCode := resp.StatusCode()
	if statusCode < 200 || statusCode >= 300 {
		return nil, parseProviderError(op, statusCode, resp.Body())
	}

	result := make([]byte, len(resp.Body()))
	copy(result, resp.Body())

	return result, nil
}

func parseProviderError(op string, statusCode int, body []byte) *SendError {
	se := &SendError{Op: op, StatusCode: statusCode}

	var pe providerError
	if err := json.Unmarshal(body, &pe); err == nil && pe.Error.Message != "" {
		se.Message = pe.Error.Message
		se.Type = pe.Error.Type
		se.Code = pe.Error.Code
		se.TraceID = pe.Error.FbTraceID
		return se
	}

	se.Message = strings.TrimSpace(string(body))
	if se.Message == "" {
		se.Message = fasthttp.StatusMessage(statusCode)
	}
	return se
}

func (c *Client) checkCircuitBreaker() {
	if c.config.CircuitBreakerThreshold <= 0 {
		return
	}
	consecutiveFails := c.metrics.ConsecutiveFails.Load()
	if consecutiveFails >= int32(c.config.CircuitBreakerThreshold) && c.GetState() != StateCircuitOpen {
		c.state.Store(int32(StateCircuitOpen))
		c.circuitOpenUntil.Store(time.Now().Add(c.config.CircuitBreakerTimeout).UnixNano())

		logger.Warn("Circuit breaker opened", "consecutive_fails", consecutiveFails, "timeout", c.config.CircuitBreakerTimeout)
	}
}

// Stats returns a snapshot of the provider health.
func (c *Client) Stats() ProviderStats {
	return ProviderStats{
		State:            stateString(c.GetState()),
		TotalRequests:    c.metrics.TotalRequests.Load(),
		SuccessfulReqs:   c.metrics.SuccessfulReqs.Load(),
		FailedReqs:       c.metrics.FailedReqs.Load(),
		SuccessRate:      c.metrics.SuccessRate(),
		AvgLatencyMs:     c.metrics.AvgLatencyMs(),
		P95LatencyMs:     c.metrics.P95LatencyMs(),
		LastLatencyMs:    c.metrics.LastLatencyMs.Load(),
		ConsecutiveFails: c.metrics.ConsecutiveFails.Load(),
	}
}
