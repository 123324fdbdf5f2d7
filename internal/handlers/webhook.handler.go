package handlers

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/nimasrn/campaign-dispatcher/internal/model"
	xhttp "github.com/nimasrn/campaign-dispatcher/pkg/http"
	"github.com/nimasrn/campaign-dispatcher/pkg/logger"
)

type WebhookService interface {
	Verify(mode, token, challenge string) (string, error)
	HandleStatuses(ctx context.Context, payload model.WebhookPayload) (int, error)
}
type WebhookHandler struct {
	svc WebhookService
}

// RegisterWebhookRoutes mounts the provider callback on the root router; the
// provider is configured with a fixed /webhook url.
func RegisterWebhookRoutes(r *router.Router, h *WebhookHandler) {
	r.GET("/webhook", h.Verify)
	r.POST("/webhook", h.Receive)
}

func NewWebhookHandler(webhookService WebhookService) *WebhookHandler {
	return &WebhookHandler{
		svc: webhookService,
	}
}

func (h *WebhookHandler) Verify(ctx *xhttp.RequestCtx) {
	challenge, err := h.svc.Verify(query(ctx, "hub.mode"), query(ctx, "hub.verify_token"), query(ctx, "hub.challenge"))
	if err != nil {
		logger.Warn("webhook verification rejected", "mode", query(ctx, "hub.mode"))
		ctx.Error(xhttp.StatusText(xhttp.StatusForbidden), xhttp.StatusForbidden)
		return
	}
	ctx.Response.SetStatusCode(xhttp.StatusOK)
	ctx.Response.SetBodyString(challenge)
}

func (h *WebhookHandler) Receive(ctx *xhttp.RequestCtx) {
	var payload model.WebhookPayload
	if err := readJSON(ctx, &payload); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	updated, err := h.svc.HandleStatuses(ctx, payload)
	if err != nil {
		// non-200 makes the provider redeliver; acks only move forward
		logger.Error("webhook statuses not fully applied", "updated", updated, "error", err)
		writeError(ctx, xhttp.StatusInternalServerError, xhttp.StatusText(xhttp.StatusInternalServerError))
		return
	}
	writeJSON(ctx, xhttp.StatusOK, map[string]int{"updated": updated})
}
