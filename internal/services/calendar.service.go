package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/nimasrn/campaign-dispatcher/internal/clock"
	"github.com/nimasrn/campaign-dispatcher/internal/model"
	"github.com/nimasrn/campaign-dispatcher/internal/queue"
	"github.com/nimasrn/campaign-dispatcher/internal/repository"
	"github.com/nimasrn/campaign-dispatcher/pkg/logger"
)

var (
	ErrInvalidRequest   = errors.New("invalid request")
	ErrUnknownZone      = errors.New("zone is not a dispatch region")
	ErrTemplateNotFound = errors.New("template not found")
	ErrNotFound         = errors.New("error notfound")
)

const (
	defaultEventCount = 100
	maxEventCount     = 500
)

type CampaignRepository interface {
	Create(ctx context.Context, campaign *model.Campaign, recipients []model.Recipient) (*model.Campaign, error)
	Get(ctx context.Context, id int64) (*model.Campaign, error)
	Progress(ctx context.Context, campaignID int64) (model.CampaignProgress, error)
}

type TemplateRepository interface {
	Create(ctx context.Context, t *model.Template) (*model.Template, error)
	Get(ctx context.Context, id int64) (*model.Template, error)
}

type NotifyRepository interface {
	List(ctx context.Context, f model.NotifyFilter) ([]*model.Notify, error)
}

type EventReader interface {
	Read(ctx context.Context, after string, count int64) ([]*queue.Message, error)
}

// CalendarService authors scheduled campaigns and exposes what the
// dispatcher reports about them.
type CalendarService struct {
	campaigns CampaignRepository
	templates TemplateRepository
	notifies  NotifyRepository
	events    EventReader
	zones     map[string]struct{}
}

// NewCalendarService builds the service. When regions is empty any zone is
// accepted.
func NewCalendarService(campaigns CampaignRepository, templates TemplateRepository, notifies NotifyRepository, events EventReader, regions []clock.Region) *CalendarService {
	zones := make(map[string]struct{}, len(regions))
	for _, r := range regions {
		zones[r.Zone] = struct{}{}
	}
	return &CalendarService{
		campaigns: campaigns,
		templates: templates,
		notifies:  notifies,
		events:    events,
		zones:     zones,
	}
}

func (s *CalendarService) Create(ctx context.Context, p model.CampaignCreateRequest) (*model.Campaign, error) {
	p.Title = strings.TrimSpace(p.Title)
	p.Zone = strings.TrimSpace(p.Zone)
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, err)
	}
	if len(s.zones) > 0 {
		if _, ok := s.zones[p.Zone]; !ok {
			return nil, ErrUnknownZone
		}
	}

	day, err := clock.Day(p.StartDate)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, err)
	}

	tpl, err := s.templates.Get(ctx, p.TemplateID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("get template: %w", err)
	}

	recipients := make([]model.Recipient, len(p.Recipients))
	for i, r := range p.Recipients {
		recipients[i] = model.Recipient{
			PersonID: r.PersonID,
			Name:     strings.TrimSpace(r.Name),
			Phone:    strings.TrimSpace(r.Phone),
			Status:   model.RecipientStatusPending,
		}
	}

	created, err := s.campaigns.Create(ctx, &model.Campaign{
		Title:       p.Title,
		Description: p.Description,
		StartDate:   day,
		TimeStart:   p.TimeStart,
		Category:    model.CategoryScheduled,
		Status:      model.CampaignStatusPending,
		UserID:      p.UserID,
		TemplateID:  tpl.ID,
		Zone:        p.Zone,
	}, recipients)
	if err != nil {
		return nil, fmt.Errorf("create campaign: %w", err)
	}

	logger.Info("Campaign scheduled", "campaign_id", created.ID, "zone", created.Zone, "date", p.StartDate, "time", p.TimeStart, "recipients", len(recipients))
	return created, nil
}

func (s *CalendarService) Get(ctx context.Context, id int64) (*model.CampaignDetail, error) {
	c, err := s.campaigns.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	progress, err := s.campaigns.Progress(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("campaign progress: %w", err)
	}
	return &model.CampaignDetail{Campaign: c, Progress: progress}, nil
}

func (s *CalendarService) CreateTemplate(ctx context.Context, p model.TemplateCreateRequest) (*model.Template, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, err)
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = p.ProviderName
	}
	return s.templates.Create(ctx, &model.Template{
		Name:         name,
		ProviderName: p.ProviderName,
		Language:     p.Language,
		Components:   p.Components,
		Message:      p.Message,
		File:         p.File,
	})
}

func (s *CalendarService) Notifications(ctx context.Context, f model.NotifyFilter) ([]*model.Notify, error) {
	return s.notifies.List(ctx, f)
}

// Events returns progress events published after the given stream id. An
// empty after reads from the start of the stream.
func (s *CalendarService) Events(ctx context.Context, after string, count int64) ([]model.StreamEvent, error) {
	if after == "" {
		after = "0"
	}
	if count <= 0 {
		count = defaultEventCount
	}
	if count > maxEventCount {
		count = maxEventCount
	}

	msgs, err := s.events.Read(ctx, after, count)
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}

	out := make([]model.StreamEvent, 0, len(msgs))
	for _, m := range msgs {
		var ev model.ProgressEvent
		if err := json.Unmarshal(m.Data, &ev); err != nil {
			logger.Warn("Skipping malformed event", "id", m.ID, "error", err)
			continue
		}
		out = append(out, model.StreamEvent{ID: m.ID, ProgressEvent: ev})
	}
	return out, nil
}
