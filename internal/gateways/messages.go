package gateway

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nimasrn/campaign-dispatcher/internal/model"
)

const (
	messagingProduct = "whatsapp"
	maxTextLength    = 4096
)

// OutboundMessage is one of TextMessage, TemplateMessage or MediaMessage.
type OutboundMessage interface {
	Validate() error
	envelope() *envelope
}

type envelope struct {
	MessagingProduct string        `json:"messaging_product"`
	RecipientType    string        `json:"recipient_type"`
	To               string        `json:"to"`
	Type             string        `json:"type"`
	Text             *textBody     `json:"text,omitempty"`
	Template         *templateBody `json:"template,omitempty"`
	Image            *MediaRef     `json:"image,omitempty"`
	Video            *MediaRef     `json:"video,omitempty"`
	Document         *MediaRef     `json:"document,omitempty"`
}

type textBody struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

type templateBody struct {
	Name       string      `json:"name"`
	Language   language    `json:"language"`
	Components []Component `json:"components,omitempty"`
}

type language struct {
	Code string `json:"code"`
}

// MediaRef points at media either by uploaded id or public link.
type MediaRef struct {
	ID       string `json:"id,omitempty"`
	Link     string `json:"link,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
}

func (m *MediaRef) validate() error {
	if m == nil || (m.ID == "" && m.Link == "") {
		return errors.New("media requires an id or a link")
	}
	return nil
}

type Component struct {
	Type       string      `json:"type"`
	SubType    string      `json:"sub_type,omitempty"`
	Index      json.Number `json:"index,omitempty"`
	Parameters []Parameter `json:"parameters,omitempty"`
}

type Parameter struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	Payload  string    `json:"payload,omitempty"`
	Image    *MediaRef `json:"image,omitempty"`
	Video    *MediaRef `json:"video,omitempty"`
	Document *MediaRef `json:"document,omitempty"`
}

// ParseComponents decodes a stored template components payload.
func ParseComponents(raw []byte) ([]Component, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var components []Component
	if err := json.Unmarshal(raw, &components); err != nil {
		return nil, fmt.Errorf("template components: %w", err)
	}
	return components, nil
}

type TextMessage struct {
	To         string
	Body       string
	PreviewURL bool
}

func (m TextMessage) Validate() error {
	if m.To == "" {
		return errors.New("text message: recipient is required")
	}
	if m.Body == "" {
		return errors.New("text message: body is required")
	}
	if len(m.Body) > maxTextLength {
		return fmt.Errorf("text message: body longer than %d bytes", maxTextLength)
	}
	return nil
}

func (m TextMessage) envelope() *envelope {
	return &envelope{
		MessagingProduct: messagingProduct,
		RecipientType:    "individual",
		To:               m.To,
		Type:             "text",
		Text:             &textBody{PreviewURL: m.PreviewURL, Body: m.Body},
	}
}

type TemplateMessage struct {
	To         string
	Name       string
	Language   string
	Components []Component
}

func (m TemplateMessage) Validate() error {
	if m.To == "" {
		return errors.New("template message: recipient is required")
	}
	if m.Name == "" {
		return errors.New("template message: name is required")
	}
	if m.Language == "" {
		return errors.New("template message: language is required")
	}
	for i, c := range m.Components {
		if c.Type == "" {
			return fmt.Errorf("template message: component %d has no type", i)
		}
		for _, p := range c.Parameters {
			var err error
			switch p.Type {
			case "image":
				err = p.Image.validate()
			case "video":
				err = p.Video.validate()
			case "document":
				err = p.Document.validate()
			case "":
				err = errors.New("parameter has no type")
			}
			if err != nil {
				return fmt.Errorf("template message: component %d: %w", i, err)
			}
		}
	}
	return nil
}

func (m TemplateMessage) envelope() *envelope {
	return &envelope{
		MessagingProduct: messagingProduct,
		RecipientType:    "individual",
		To:               m.To,
		Type:             "template",
		Template: &templateBody{
			Name:       m.Name,
			Language:   language{Code: m.Language},
			Components: m.Components,
		},
	}
}

type MediaMessage struct {
	To    string
	Kind  model.MediaKind
	Media MediaRef
}

func (m MediaMessage) Validate() error {
	if m.To == "" {
		return errors.New("media message: recipient is required")
	}
	switch m.Kind {
	case model.MediaKindImage, model.MediaKindVideo, model.MediaKindDocument:
	default:
		return fmt.Errorf("media message: unsupported kind %q", m.Kind)
	}
	if err := m.Media.validate(); err != nil {
		return fmt.Errorf("media message: %w", err)
	}
	return nil
}

func (m MediaMessage) envelope() *envelope {
	e := &envelope{
		MessagingProduct: messagingProduct,
		RecipientType:    "individual",
		To:               m.To,
		Type:             string(m.Kind),
	}
	media := m.Media
	switch m.Kind {
	case model.MediaKindImage:
		e.Image = &media
	case model.MediaKindVideo:
		e.Video = &media
	case model.MediaKindDocument:
		e.Document = &media
	}
	return e
}
