package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nimasrn/campaign-dispatcher/pkg/logger"
	"github.com/nimasrn/campaign-dispatcher/pkg/redis"
)

const deliveredKeyPrefix = "delivered:recipient:"

type RedisDeliveryGuard struct {
	redis redis.RedisAdapter
	ttl   time.Duration
}

func NewRedisDeliveryGuard(adapter redis.RedisAdapter, ttl time.Duration) *RedisDeliveryGuard {
	return &RedisDeliveryGuard{redis: adapter, ttl: ttl}
}

func deliveredKey(recipientID int64) string {
	return fmt.Sprintf("%s%d", deliveredKeyPrefix, recipientID)
}

func (g *RedisDeliveryGuard) Delivered(ctx context.Context, recipientID int64) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	val, err := g.redis.Get(deliveredKey(recipientID))
	if err != nil {
		if errors.Is(err, redis.NilError) {
			return "", false, nil
		}
		return "", false, err
	}
	return string(val), true, nil
}

// MarkDelivered stores the provider id of recipientID. The first marker wins;
// a later one for the same recipient is ignored.
func (g *RedisDeliveryGuard) MarkDelivered(ctx context.Context, recipientID int64, providerMessageID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stored, err := g.redis.SetNX(deliveredKey(recipientID), []byte(providerMessageID), g.ttl)
	if err != nil {
		return err
	}
	if !stored {
		logger.Warn("Recipient already marked delivered", "recipient_id", recipientID, "provider_message_id", providerMessageID)
	}
	return nil
}
