package dispatch

import (
	"context"
	"time"

	"github.com/nimasrn/campaign-dispatcher/internal/gateways"
	"github.com/nimasrn/campaign-dispatcher/internal/model"
)

// CampaignStore is the persistence the scheduler needs. Every call is atomic
// on its own and visible to the next one.
type CampaignStore interface {
	FindDueCampaign(ctx context.Context, day time.Time, clock, zone string) (*model.Campaign, error)
	ActivateCampaign(ctx context.Context, id int64) (bool, error)
	ListPendingRecipients(ctx context.Context, zone string) ([]*model.PendingRecipient, error)
	RecordOutcome(ctx context.Context, recipientID int64, status model.RecipientStatus) error
	CountPending(ctx context.Context, campaignID int64) (int64, error)
	CountRecipients(ctx context.Context, campaignID int64) (int64, error)
	CompleteCampaign(ctx context.Context, id int64) (bool, error)
}

type MessagingGateway interface {
	SendTemplate(ctx context.Context, msg gateway.TemplateMessage) (*gateway.SendResult, error)
	UploadMedia(ctx context.Context, path string, kind model.MediaKind) (string, error)
}

type NotificationSink interface {
	Record(ctx context.Context, n model.Notify) error
	Emit(event model.ProgressEvent)
}

// MessageLog keeps the local trace of every outbound message.
type MessageLog interface {
	Create(ctx context.Context, msg *model.Message) (*model.Message, error)
	AttachProviderID(ctx context.Context, id int64, status *model.MessageStatus) error
}

// DeliveryGuard remembers recipients the provider already accepted, so a
// recipient whose outcome could not be stored is not messaged twice.
type DeliveryGuard interface {
	Delivered(ctx context.Context, recipientID int64) (string, bool, error)
	MarkDelivered(ctx context.Context, recipientID int64, providerMessageID string) error
}
