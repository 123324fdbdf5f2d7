package model

import "time"

// MessageAck mirrors the provider's delivery state of an outbound message.
type MessageAck int

const (
	MessageAckNone MessageAck = iota
	MessageAckSent
	MessageAckDelivered
	MessageAckRead
	MessageAckFailed
)

// AckFromStatus maps a webhook status string to an ack value.
func AckFromStatus(status string) (MessageAck, bool) {
	switch status {
	case "sent":
		return MessageAckSent, true
	case "delivered":
		return MessageAckDelivered, true
	case "read":
		return MessageAckRead, true
	case "failed":
		return MessageAckFailed, true
	}
	return MessageAckNone, false
}

type MediaKind string

const (
	MediaKindImage    MediaKind = "image"
	MediaKindVideo    MediaKind = "video"
	MediaKindDocument MediaKind = "document"
	MediaKindText     MediaKind = "text"
)

// Message is the local trace of an outbound message.
type Message struct {
	ID         int64      `json:"id"`
	ProviderID string     `json:"provider_id"`
	Number     string     `json:"number"`
	Body       string     `json:"body"`
	MediaType  MediaKind  `json:"media_type"`
	MediaURL   string     `json:"media_url,omitempty"`
	MediaID    string     `json:"media_id,omitempty"`
	FromMe     bool       `json:"from_me"`
	Ack        MessageAck `json:"ack"`
	PersonID   int64      `json:"person_id"`
	UserID     int64      `json:"user_id"`
	CreatedAt  time.Time  `json:"created_at"`
}

type Pricing struct {
	Billable     bool   `json:"billable"`
	PricingModel string `json:"pricing_model"`
	Category     string `json:"category"`
	Type         string `json:"type,omitempty"`
}

// MessageStatus is one provider status observation for a message.
type MessageStatus struct {
	ID                int64     `json:"id"`
	ProviderMessageID string    `json:"provider_message_id"`
	Status            string    `json:"status"`
	RecipientPhone    string    `json:"recipient_phone"`
	Pricing           *Pricing  `json:"pricing,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}
