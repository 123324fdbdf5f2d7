package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/fasthttp/router"
	"github.com/nimasrn/campaign-dispatcher/internal/model"
	"github.com/nimasrn/campaign-dispatcher/internal/services"
	xhttp "github.com/nimasrn/campaign-dispatcher/pkg/http"
	"github.com/nimasrn/campaign-dispatcher/pkg/logger"
)

type CalendarService interface {
	Create(ctx context.Context, p model.CampaignCreateRequest) (*model.Campaign, error)
	Get(ctx context.Context, id int64) (*model.CampaignDetail, error)
	CreateTemplate(ctx context.Context, p model.TemplateCreateRequest) (*model.Template, error)
	Notifications(ctx context.Context, f model.NotifyFilter) ([]*model.Notify, error)
	Events(ctx context.Context, after string, count int64) ([]model.StreamEvent, error)
}
type CalendarHandler struct {
	svc CalendarService
}

func RegisterCalendarRoutes(e *router.Group, h *CalendarHandler) {
	e.POST("/calendars", h.CreateCalendar)
	e.GET("/calendars/{id}", h.GetCalendar)
	e.POST("/templates", h.CreateTemplate)
	e.GET("/notifications", h.ListNotifications)
	e.GET("/events", h.ListEvents)
}

func NewCalendarHandler(calendarService CalendarService) *CalendarHandler {
	return &CalendarHandler{
		svc: calendarService,
	}
}

type eventsResponse struct {
	Items []model.StreamEvent `json:"items"`
	Last  string              `json:"last"`
}

func (h *CalendarHandler) CreateCalendar(ctx *xhttp.RequestCtx) {
	var req model.CampaignCreateRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	campaign, err := h.svc.Create(ctx, req)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, campaign)
}

func (h *CalendarHandler) GetCalendar(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid id")
		return
	}

	detail, err := h.svc.Get(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, detail)
}

func (h *CalendarHandler) CreateTemplate(ctx *xhttp.RequestCtx) {
	var req model.TemplateCreateRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	tpl, err := h.svc.CreateTemplate(ctx, req)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, tpl)
}

func (h *CalendarHandler) ListNotifications(ctx *xhttp.RequestCtx) {
	var f model.NotifyFilter

	if v := query(ctx, "user_id"); v != "" {
		if id, e := strconv.ParseInt(v, 10, 64); e == nil {
			f.UserID = &id
		}
	}
	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Limit = n
		}
	}

	items, err := h.svc.Notifications(ctx, f)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, items)
}

func (h *CalendarHandler) ListEvents(ctx *xhttp.RequestCtx) {
	after := query(ctx, "after")

	var count int64
	if v := query(ctx, "count"); v != "" {
		if n, e := strconv.ParseInt(v, 10, 64); e == nil {
			count = n
		}
	}

	items, err := h.svc.Events(ctx, after, count)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}

	last := after
	if len(items) > 0 {
		last = items[len(items)-1].ID
	}
	writeJSON(ctx, xhttp.StatusOK, eventsResponse{Items: items, Last: last})
}

func writeServiceError(ctx *xhttp.RequestCtx, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidRequest), errors.Is(err, services.ErrUnknownZone):
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrNotFound), errors.Is(err, services.ErrTemplateNotFound):
		writeError(ctx, xhttp.StatusNotFound, err.Error())
	default:
		logger.Error("request failed", "path", string(ctx.Path()), "error", err)
		writeError(ctx, xhttp.StatusInternalServerError, xhttp.StatusText(xhttp.StatusInternalServerError))
	}
}

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	body := ctx.PostBody()
	return json.Unmarshal(body, dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, _ := json.Marshal(v)
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}

func pathInt64(ctx *xhttp.RequestCtx, name string) (int64, error) {
	v, _ := ctx.UserValue(name).(string)
	return strconv.ParseInt(v, 10, 64)
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}
