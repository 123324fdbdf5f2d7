package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nimasrn/campaign-dispatcher/internal/clock"
	"github.com/nimasrn/campaign-dispatcher/internal/model"
	"github.com/nimasrn/campaign-dispatcher/internal/queue"
	"github.com/nimasrn/campaign-dispatcher/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCampaignRepository struct {
	mock.Mock
}

func (m *MockCampaignRepository) Create(ctx context.Context, c *model.Campaign, recipients []model.Recipient) (*model.Campaign, error) {
	args := m.Called(ctx, c, recipients)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Campaign), args.Error(1)
}

func (m *MockCampaignRepository) Get(ctx context.Context, id int64) (*model.Campaign, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Campaign), args.Error(1)
}

func (m *MockCampaignRepository) Progress(ctx context.Context, id int64) (model.CampaignProgress, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.CampaignProgress), args.Error(1)
}

type MockTemplateRepository struct {
	mock.Mock
}

func (m *MockTemplateRepository) Create(ctx context.Context, t *model.Template) (*model.Template, error) {
	args := m.Called(ctx, t)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Template), args.Error(1)
}

func (m *MockTemplateRepository) Get(ctx context.Context, id int64) (*model.Template, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Template), args.Error(1)
}

type MockNotifyRepository struct {
	mock.Mock
}

func (m *MockNotifyRepository) List(ctx context.Context, f model.NotifyFilter) ([]*model.Notify, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Notify), args.Error(1)
}

type MockEventReader struct {
	mock.Mock
}

func (m *MockEventReader) Read(ctx context.Context, after string, count int64) ([]*queue.Message, error) {
	args := m.Called(ctx, after, count)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*queue.Message), args.Error(1)
}

type calendarMocks struct {
	campaigns *MockCampaignRepository
	templates *MockTemplateRepository
	notifies  *MockNotifyRepository
	events    *MockEventReader
}

func newCalendarService() (*CalendarService, calendarMocks) {
	m := calendarMocks{
		campaigns: new(MockCampaignRepository),
		templates: new(MockTemplateRepository),
		notifies:  new(MockNotifyRepository),
		events:    new(MockEventReader),
	}
	regions := []clock.Region{{ID: 6, Name: "Colombia", Zone: "America/Bogota"}}
	return NewCalendarService(m.campaigns, m.templates, m.notifies, m.events, regions), m
}

func validCreateRequest() model.CampaignCreateRequest {
	return model.CampaignCreateRequest{
		Title:      " Campaña de junio ",
		StartDate:  "2024-06-01",
		TimeStart:  "09:00",
		Zone:       "America/Bogota",
		UserID:     7,
		TemplateID: 3,
		Recipients: []model.CampaignRecipientRequest{{PersonID: 1, Name: " Ana ", Phone: "+573001112233"}},
	}
}

func TestCalendarService_Create(t *testing.T) {
	svc, m := newCalendarService()
	ctx := context.Background()

	m.templates.On("Get", ctx, int64(3)).Return(&model.Template{ID: 3, Name: "Recordatorio"}, nil)
	m.campaigns.On("Create", ctx,
		mock.MatchedBy(func(c *model.Campaign) bool {
			return c.Title == "Campaña de junio" &&
				c.StartDate.Equal(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)) &&
				c.TimeStart == "09:00" &&
				c.Status == model.CampaignStatusPending &&
				c.Category == model.CategoryScheduled
		}),
		[]model.Recipient{{PersonID: 1, Name: "Ana", Phone: "+573001112233", Status: model.RecipientStatusPending}},
	).Return(&model.Campaign{ID: 11, Zone: "America/Bogota"}, nil)

	created, err := svc.Create(ctx, validCreateRequest())
	require.NoError(t, err)
	assert.Equal(t, int64(11), created.ID)

	m.templates.AssertExpectations(t)
	m.campaigns.AssertExpectations(t)
}

func TestCalendarService_Create_Rejects(t *testing.T) {
	t.Run("invalid time", func(t *testing.T) {
		svc, _ := newCalendarService()
		req := validCreateRequest()
		req.TimeStart = "9:00"

		_, err := svc.Create(context.Background(), req)
		assert.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("unknown zone", func(t *testing.T) {
		svc, _ := newCalendarService()
		req := validCreateRequest()
		req.Zone = "Europe/Madrid"

		_, err := svc.Create(context.Background(), req)
		assert.ErrorIs(t, err, ErrUnknownZone)
	})

	t.Run("missing template", func(t *testing.T) {
		svc, m := newCalendarService()
		m.templates.On("Get", mock.Anything, int64(3)).Return(nil, repository.ErrNotFound)

		_, err := svc.Create(context.Background(), validCreateRequest())
		assert.ErrorIs(t, err, ErrTemplateNotFound)
		m.campaigns.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestCalendarService_Get(t *testing.T) {
	svc, m := newCalendarService()
	ctx := context.Background()

	m.campaigns.On("Get", ctx, int64(11)).Return(&model.Campaign{ID: 11, Status: model.CampaignStatusInProgress}, nil)
	m.campaigns.On("Progress", ctx, int64(11)).Return(model.CampaignProgress{Pending: 1, Sent: 2}, nil)

	detail, err := svc.Get(ctx, 11)
	require.NoError(t, err)
	assert.Equal(t, int64(11), detail.ID)
	assert.Equal(t, int64(3), detail.Progress.Total())

	m.campaigns.On("Get", ctx, int64(12)).Return(nil, repository.ErrNotFound)
	_, err = svc.Get(ctx, 12)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCalendarService_CreateTemplate(t *testing.T) {
	svc, m := newCalendarService()
	ctx := context.Background()

	m.templates.On("Create", ctx, mock.MatchedBy(func(tpl *model.Template) bool {
		return tpl.Name == "cita_recordatorio" && tpl.Language == "es"
	})).Return(&model.Template{ID: 4}, nil)

	tpl, err := svc.CreateTemplate(ctx, model.TemplateCreateRequest{ProviderName: "cita_recordatorio", Language: "es"})
	require.NoError(t, err)
	assert.Equal(t, int64(4), tpl.ID)

	_, err = svc.CreateTemplate(ctx, model.TemplateCreateRequest{ProviderName: "x", Language: "es", Components: []byte("{")})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestCalendarService_Events(t *testing.T) {
	svc, m := newCalendarService()
	ctx := context.Background()

	m.events.On("Read", ctx, "0", int64(defaultEventCount)).Return([]*queue.Message{
		{ID: "1-0", Data: []byte(`{"type":"notify","calendarId":11,"title":"Campaña","inProgress":0,"total":3}`)},
		{ID: "2-0", Data: []byte(`not json`)},
		{ID: "3-0", Data: []byte(`{"type":"SMessage","calendarId":11,"title":"Campaña","inProgress":1,"total":3}`)},
	}, nil)

	events, err := svc.Events(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "1-0", events[0].ID)
	assert.Equal(t, model.EventNotify, events[0].Type)
	assert.Equal(t, int64(1), events[1].InProgress)

	m.events.On("Read", ctx, "3-0", int64(maxEventCount)).Return(nil, errors.New("redis down"))
	_, err = svc.Events(ctx, "3-0", 10_000)
	assert.Error(t, err)
}
