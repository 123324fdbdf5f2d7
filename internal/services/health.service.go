package services

import (
	"context"
	"fmt"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthService struct {
	checks map[string]Pinger
}

// NewHealthService checks each named dependency; nil entries are skipped.
func NewHealthService(checks map[string]Pinger) *HealthService {
	return &HealthService{checks: checks}
}

func (s *HealthService) Check(ctx context.Context) error {
	for name, p := range s.checks {
		if p == nil {
			continue
		}
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}
