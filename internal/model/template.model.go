package model

import (
	"encoding/json"
	"errors"
)

// Template is a message definition registered with the provider.
type Template struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`          // display name
	ProviderName string          `json:"provider_name"` // name registered with the provider
	Language     string          `json:"language"`
	Components   json.RawMessage `json:"components,omitempty"`
	Message      string          `json:"message"`
	File         string          `json:"file,omitempty"`
}

func (t Template) HasMedia() bool {
	return t.File != ""
}

type TemplateCreateRequest struct {
	Name         string          `json:"name"`
	ProviderName string          `json:"provider_name"`
	Language     string          `json:"language"`
	Components   json.RawMessage `json:"components"`
	Message      string          `json:"message"`
	File         string          `json:"file"`
}

func (p TemplateCreateRequest) Validate() error {
	if p.ProviderName == "" {
		return errors.New("provider_name is required")
	}
	if p.Language == "" {
		return errors.New("language is required")
	}
	if len(p.Components) > 0 && !json.Valid(p.Components) {
		return errors.New("components must be valid json")
	}
	return nil
}
