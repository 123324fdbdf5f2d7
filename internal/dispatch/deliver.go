package dispatch

import (
	"context"
	"time"

	"github.com/nimasrn/campaign-dispatcher/internal/model"
	"github.com/nimasrn/campaign-dispatcher/pkg/logger"
	"github.com/nimasrn/campaign-dispatcher/pkg/prom"
)

const acceptedStatus = "accepted"

// deliver sends one recipient its message and returns the outcome to store.
// It never panics and never returns Pending.
func (s *Scheduler) deliver(ctx context.Context, zone string, rec *model.PendingRecipient, media mediaCache) (status model.RecipientStatus) {
	status = model.RecipientStatusNotSent
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Send panicked", "recipient_id", rec.ID, "campaign_id", rec.CampaignID, "panic", r)
			status = model.RecipientStatusNotSent
		}

		elapsed := time.Since(start)
		prom.ObserveSendDuration(elapsed.Seconds(), zone)
		if status == model.RecipientStatusSent {
			prom.IncSend(zone, "sent")
			s.metrics.RecordSent(elapsed)
		} else {
			prom.IncSend(zone, "not_sent")
			s.metrics.RecordNotSent(elapsed)
		}
	}()

	if s.guard != nil {
		providerID, delivered, err := s.guard.Delivered(ctx, rec.ID)
		if err != nil {
			logger.Warn("Delivery guard unavailable", "recipient_id", rec.ID, "error", err)
		} else if delivered {
			logger.Info("Recipient already accepted by provider, not sending again", "recipient_id", rec.ID, "provider_message_id", providerID)
			return model.RecipientStatusSent
		}
	}

	r, err := s.render(ctx, rec, media)
	if err != nil {
		logger.Warn("Failed to build message", "recipient_id", rec.ID, "campaign_id", rec.CampaignID, "error", err)
		return model.RecipientStatusNotSent
	}

	local, err := s.messages.Create(ctx, r.local)
	if err != nil {
		logger.Warn("Failed to store local message", "recipient_id", rec.ID, "error", err)
	}

	res, err := s.gateway.SendTemplate(ctx, r.message)
	if err != nil {
		logger.Warn("Message not sent", "recipient_id", rec.ID, "campaign_id", rec.CampaignID, "phone", rec.Phone, "error", err)
		return model.RecipientStatusNotSent
	}

	if local != nil {
		err = s.messages.AttachProviderID(ctx, local.ID, &model.MessageStatus{
			ProviderMessageID: res.MessageID,
			Status:            acceptedStatus,
			RecipientPhone:    rec.Phone,
			Pricing:           res.Pricing,
		})
		if err != nil {
			logger.Warn("Failed to attach provider id", "message_id", local.ID, "provider_message_id", res.MessageID, "error", err)
		}
	}

	if s.guard != nil {
		if err := s.guard.MarkDelivered(ctx, rec.ID, res.MessageID); err != nil {
			logger.Warn("Failed to mark recipient delivered", "recipient_id", rec.ID, "error", err)
		}
	}

	logger.Debug("Message sent", "recipient_id", rec.ID, "campaign_id", rec.CampaignID, "provider_message_id", res.MessageID)
	return model.RecipientStatusSent
}
