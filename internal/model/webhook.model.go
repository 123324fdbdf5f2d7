package model

// WebhookPayload is the body of a provider status callback.
type WebhookPayload struct {
	Object string         `json:"object"`
	Entry  []WebhookEntry `json:"entry"`
}

type WebhookEntry struct {
	ID      string          `json:"id"`
	Changes []WebhookChange `json:"changes"`
}

type WebhookChange struct {
	Field string       `json:"field"`
	Value WebhookValue `json:"value"`
}

type WebhookValue struct {
	MessagingProduct string          `json:"messaging_product"`
	Statuses         []WebhookStatus `json:"statuses"`
}

type WebhookStatus struct {
	ID          string   `json:"id"`
	Status      string   `json:"status"`
	Timestamp   string   `json:"timestamp"`
	RecipientID string   `json:"recipient_id"`
	Pricing     *Pricing `json:"pricing,omitempty"`
}
