package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nimasrn/campaign-dispatcher/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockMessageAckRepository struct {
	mock.Mock
}

func (m *MockMessageAckRepository) UpdateAck(ctx context.Context, providerID string, ack model.MessageAck) (bool, error) {
	args := m.Called(ctx, providerID, ack)
	return args.Bool(0), args.Error(1)
}

type MockMessageStatusRepository struct {
	mock.Mock
}

func (m *MockMessageStatusRepository) Create(ctx context.Context, s *model.MessageStatus) (*model.MessageStatus, error) {
	args := m.Called(ctx, s)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MessageStatus), args.Error(1)
}

func payloadWith(statuses ...model.WebhookStatus) model.WebhookPayload {
	return model.WebhookPayload{
		Object: "whatsapp_business_account",
		Entry: []model.WebhookEntry{{
			Changes: []model.WebhookChange{{
				Field: "messages",
				Value: model.WebhookValue{MessagingProduct: "whatsapp", Statuses: statuses},
			}},
		}},
	}
}

func TestWebhookService_Verify(t *testing.T) {
	svc := NewWebhookService(nil, nil, "secret")

	challenge, err := svc.Verify("subscribe", "secret", "12345")
	require.NoError(t, err)
	assert.Equal(t, "12345", challenge)

	_, err = svc.Verify("subscribe", "wrong", "12345")
	assert.ErrorIs(t, err, ErrVerificationFailed)

	_, err = NewWebhookService(nil, nil, "").Verify("subscribe", "", "1")
	assert.ErrorIs(t, err, ErrVerificationFailed)
}

func TestWebhookService_HandleStatuses(t *testing.T) {
	acks := new(MockMessageAckRepository)
	statuses := new(MockMessageStatusRepository)
	svc := NewWebhookService(acks, statuses, "secret")
	ctx := context.Background()

	pricing := &model.Pricing{Billable: true, PricingModel: "CBP", Category: "marketing"}
	statuses.On("Create", ctx, mock.MatchedBy(func(s *model.MessageStatus) bool {
		return s.ProviderMessageID == "wamid.1" && s.Status == "delivered" &&
			s.Pricing == pricing && s.CreatedAt.Equal(time.Unix(1717250400, 0))
	})).Return(&model.MessageStatus{ID: 1}, nil)
	statuses.On("Create", ctx, mock.MatchedBy(func(s *model.MessageStatus) bool {
		return s.ProviderMessageID == "wamid.2"
	})).Return(&model.MessageStatus{ID: 2}, nil)

	acks.On("UpdateAck", ctx, "wamid.1", model.MessageAckDelivered).Return(true, nil)
	acks.On("UpdateAck", ctx, "wamid.2", model.MessageAckSent).Return(false, nil)

	updated, err := svc.HandleStatuses(ctx, payloadWith(
		model.WebhookStatus{ID: "wamid.1", Status: "delivered", Timestamp: "1717250400", RecipientID: "573001112233", Pricing: pricing},
		model.WebhookStatus{ID: "wamid.2", Status: "sent", Timestamp: "1717250401"},
		model.WebhookStatus{ID: "wamid.3", Status: "deleted"},
	))
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	acks.AssertExpectations(t)
	statuses.AssertExpectations(t)
	acks.AssertNotCalled(t, "UpdateAck", ctx, "wamid.3", mock.Anything)
}

func TestWebhookService_HandleStatuses_ContinuesAfterError(t *testing.T) {
	acks := new(MockMessageAckRepository)
	statuses := new(MockMessageStatusRepository)
	svc := NewWebhookService(acks, statuses, "secret")
	ctx := context.Background()

	statuses.On("Create", ctx, mock.MatchedBy(func(s *model.MessageStatus) bool {
		return s.ProviderMessageID == "wamid.1"
	})).Return(nil, errors.New("db down"))
	statuses.On("Create", ctx, mock.MatchedBy(func(s *model.MessageStatus) bool {
		return s.ProviderMessageID == "wamid.2"
	})).Return(&model.MessageStatus{ID: 2}, nil)
	acks.On("UpdateAck", ctx, "wamid.2", model.MessageAckRead).Return(true, nil)

	updated, err := svc.HandleStatuses(ctx, payloadWith(
		model.WebhookStatus{ID: "wamid.1", Status: "sent"},
		model.WebhookStatus{ID: "wamid.2", Status: "read"},
	))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	assert.Equal(t, 1, updated)
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestHealthService_Check(t *testing.T) {
	ok := NewHealthService(map[string]Pinger{"postgres": stubPinger{}, "redis": nil})
	assert.NoError(t, ok.Check(context.Background()))

	down := NewHealthService(map[string]Pinger{"redis": stubPinger{err: errors.New("refused")}})
	err := down.Check(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis")
}
