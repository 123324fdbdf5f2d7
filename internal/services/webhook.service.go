package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nimasrn/campaign-dispatcher/internal/model"
	"github.com/nimasrn/campaign-dispatcher/pkg/logger"
)

var ErrVerificationFailed = errors.New("webhook verification failed")

type MessageAckRepository interface {
	UpdateAck(ctx context.Context, providerID string, ack model.MessageAck) (bool, error)
}

type MessageStatusRepository interface {
	Create(ctx context.Context, s *model.MessageStatus) (*model.MessageStatus, error)
}

// WebhookService applies provider status callbacks to the local message
// trace.
type WebhookService struct {
	messages    MessageAckRepository
	statuses    MessageStatusRepository
	verifyToken string
}

func NewWebhookService(messages MessageAckRepository, statuses MessageStatusRepository, verifyToken string) *WebhookService {
	return &WebhookService{
		messages:    messages,
		statuses:    statuses,
		verifyToken: verifyToken,
	}
}

// Verify answers the provider's subscription handshake with the challenge.
func (s *WebhookService) Verify(mode, token, challenge string) (string, error) {
	if s.verifyToken == "" || mode != "subscribe" || token != s.verifyToken {
		return "", ErrVerificationFailed
	}
	return challenge, nil
}

// HandleStatuses records every status of the payload and raises the ack of
// the matching message. It returns how many messages changed.
func (s *WebhookService) HandleStatuses(ctx context.Context, payload model.WebhookPayload) (int, error) {
	var (
		updated int
		errs    []error
	)

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, st := range change.Value.Statuses {
				ack, ok := model.AckFromStatus(st.Status)
				if !ok {
					logger.Debug("Ignoring unknown message status", "provider_message_id", st.ID, "status", st.Status)
					continue
				}

				_, err := s.statuses.Create(ctx, &model.MessageStatus{
					ProviderMessageID: st.ID,
					Status:            st.Status,
					RecipientPhone:    st.RecipientID,
					Pricing:           st.Pricing,
					CreatedAt:         statusTime(st.Timestamp),
				})
				if err != nil {
					errs = append(errs, fmt.Errorf("store status of %s: %w", st.ID, err))
					continue
				}

				changed, err := s.messages.UpdateAck(ctx, st.ID, ack)
				if err != nil {
					errs = append(errs, fmt.Errorf("update ack of %s: %w", st.ID, err))
					continue
				}
				if changed {
					updated++
				}
			}
		}
	}

	return updated, errors.Join(errs...)
}

func statusTime(ts string) time.Time {
	sec, err := strconv.ParseInt(ts, 10, 64)
	if err != nil || sec <= 0 {
		return time.Now().UTC()
	}
	return time.Unix(sec, 0).UTC()
}
