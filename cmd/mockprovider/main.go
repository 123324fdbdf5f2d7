package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SendRequest is the subset of the Cloud API message body the mock reads.
type SendRequest struct {
	MessagingProduct string `json:"messaging_product" binding:"required"`
	To               string `json:"to" binding:"required"`
	Type             string `json:"type" binding:"required"`
	Template         *struct {
		Name     string `json:"name"`
		Language struct {
			Code string `json:"code"`
		} `json:"language"`
	} `json:"template,omitempty"`
}

type Pricing struct {
	Billable     bool   `json:"billable"`
	PricingModel string `json:"pricing_model"`
	Category     string `json:"category"`
}

type SendResponse struct {
	MessagingProduct string `json:"messaging_product"`
	Contacts         []struct {
		Input string `json:"input"`
		WaID  string `json:"wa_id"`
	} `json:"contacts"`
	Messages []struct {
		ID            string `json:"id"`
		MessageStatus string `json:"message_status,omitempty"`
	} `json:"messages"`
	Pricing *Pricing `json:"pricing,omitempty"`
}

type providerError struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	Code      int    `json:"code"`
	FbTraceID string `json:"fbtrace_id"`
}

// MockProvider simulates the WhatsApp Cloud API.
type MockProvider struct {
	mu          sync.RWMutex
	failureRate float64
	minDelay    time.Duration
	maxDelay    time.Duration
	withPricing bool
	rng         *rand.Rand
}

func NewMockProvider(failureRate float64, minDelay, maxDelay time.Duration, withPricing bool) *MockProvider {
	return &MockProvider{
		failureRate: failureRate,
		minDelay:    minDelay,
		maxDelay:    maxDelay,
		withPricing: withPricing,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (m *MockProvider) randomDelay() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	delta := m.maxDelay - m.minDelay
	if delta <= 0 {
		return m.minDelay
	}
	return m.minDelay + time.Duration(m.rng.Int63n(int64(delta)))
}

func (m *MockProvider) shouldFail() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rng.Float64() < m.failureRate
}

func (m *MockProvider) randomError() (int, providerError) {
	errs := []struct {
		status int
		err    providerError
	}{
		{http.StatusBadRequest, providerError{Message: "(#131026) Message undeliverable", Type: "OAuthException", Code: 131026}},
		{http.StatusBadRequest, providerError{Message: "(#132001) Template name does not exist in the translation", Type: "OAuthException", Code: 132001}},
		{http.StatusTooManyRequests, providerError{Message: "(#130429) Rate limit hit", Type: "OAuthException", Code: 130429}},
		{http.StatusInternalServerError, providerError{Message: "(#131000) Something went wrong", Type: "OAuthException", Code: 131000}},
	}
	m.mu.Lock()
	e := errs[m.rng.Intn(len(errs))]
	m.mu.Unlock()
	e.err.FbTraceID = strings.ReplaceAll(uuid.New().String(), "-", "")[:11]
	return e.status, e.err
}

type Handler struct {
	provider *MockProvider
}

func NewHandler(provider *MockProvider) *Handler {
	return &Handler{provider: provider}
}

func (h *Handler) authorized(c *gin.Context) bool {
	if !strings.HasPrefix(c.GetHeader("Authorization"), "Bearer ") {
		c.JSON(http.StatusUnauthorized, gin.H{"error": providerError{
			Message: "Invalid OAuth access token.",
			Type:    "OAuthException",
			Code:    190,
		}})
		return false
	}
	return true
}

// SendMessage handles POST /{version}/{phoneId}/messages.
func (h *Handler) SendMessage(c *gin.Context) {
	if !h.authorized(c) {
		return
	}

	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": providerError{
			Message: "(#100) Invalid parameter: " + err.Error(),
			Type:    "OAuthException",
			Code:    100,
		}})
		return
	}

	delay := h.provider.randomDelay()
	time.Sleep(delay)

	if h.provider.shouldFail() {
		status, perr := h.provider.randomError()
		log.Warn().
			Str("to", req.To).
			Int("code", perr.Code).
			Msg("Message rejected")
		c.JSON(status, gin.H{"error": perr})
		return
	}

	resp := SendResponse{MessagingProduct: "whatsapp"}
	resp.Contacts = append(resp.Contacts, struct {
		Input string `json:"input"`
		WaID  string `json:"wa_id"`
	}{Input: req.To, WaID: strings.TrimPrefix(req.To, "+")})
	resp.Messages = append(resp.Messages, struct {
		ID            string `json:"id"`
		MessageStatus string `json:"message_status,omitempty"`
	}{ID: "wamid." + uuid.New().String(), MessageStatus: "accepted"})

	h.provider.mu.RLock()
	if h.provider.withPricing {
		category := "utility"
		if req.Type == "template" {
			category = "marketing"
		}
		resp.Pricing = &Pricing{Billable: true, PricingModel: "CBP", Category: category}
	}
	h.provider.mu.RUnlock()

	log.Info().
		Str("to", req.To).
		Str("type", req.Type).
		Str("message_id", resp.Messages[0].ID).
		Dur("delay", delay).
		Msg("Message accepted")

	c.JSON(http.StatusOK, resp)
}

// UploadMedia handles POST /{version}/{phoneId}/media.
func (h *Handler) UploadMedia(c *gin.Context) {
	if !h.authorized(c) {
		return
	}

	if c.PostForm("messaging_product") != "whatsapp" {
		c.JSON(http.StatusBadRequest, gin.H{"error": providerError{
			Message: "(#100) The parameter messaging_product is required.",
			Type:    "OAuthException",
			Code:    100,
		}})
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": providerError{
			Message: "(#100) Param file must be a file with one of the following types",
			Type:    "OAuthException",
			Code:    100,
		}})
		return
	}

	id := fmt.Sprintf("%d", uuid.New().ID())
	log.Info().
		Str("filename", file.Filename).
		Int64("size", file.Size).
		Str("media_id", id).
		Msg("Media uploaded")

	c.JSON(http.StatusOK, gin.H{"id": id})
}

func (h *Handler) HealthCheck(c *gin.Context) {
	h.provider.mu.RLock()
	defer h.provider.mu.RUnlock()
	c.JSON(http.StatusOK, gin.H{
		"status":       "healthy",
		"timestamp":    time.Now(),
		"failure_rate": h.provider.failureRate,
	})
}

// UpdateConfig allows changing the failure rate at runtime.
func (h *Handler) UpdateConfig(c *gin.Context) {
	var config struct {
		FailureRate *float64 `json:"failure_rate"`
		WithPricing *bool    `json:"with_pricing"`
	}

	if err := c.ShouldBindJSON(&config); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	h.provider.mu.Lock()
	if config.FailureRate != nil && *config.FailureRate >= 0 && *config.FailureRate <= 1.0 {
		h.provider.failureRate = *config.FailureRate
		log.Info().Float64("rate", *config.FailureRate).Msg("Updated failure rate")
	}
	if config.WithPricing != nil {
		h.provider.withPricing = *config.WithPricing
	}
	rate, pricing := h.provider.failureRate, h.provider.withPricing
	h.provider.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"failure_rate": rate,
		"with_pricing": pricing,
	})
}

func SetupRouter(handler *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("Request processed")
	})

	router.POST("/:version/:phone/messages", handler.SendMessage)
	router.POST("/:version/:phone/media", handler.UploadMedia)
	router.GET("/health", handler.HealthCheck)
	router.PUT("/config", handler.UpdateConfig)

	return router
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	port := getEnv("PORT", "8081")
	failureRate := getEnvFloat("FAILURE_RATE", 0)
	minDelay := getEnvDuration("MIN_DELAY", 50*time.Millisecond)
	maxDelay := getEnvDuration("MAX_DELAY", 300*time.Millisecond)
	withPricing := getEnv("WITH_PRICING", "true") == "true"

	log.Info().
		Str("port", port).
		Float64("failure_rate", failureRate).
		Dur("min_delay", minDelay).
		Dur("max_delay", maxDelay).
		Msg("Starting mock WhatsApp provider")

	handler := NewHandler(NewMockProvider(failureRate, minDelay, maxDelay, withPricing))
	router := SetupRouter(handler)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
