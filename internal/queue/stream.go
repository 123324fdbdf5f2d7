package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nimasrn/campaign-dispatcher/pkg/redis"
)

// Message is one entry of a stream.
type Message struct {
	ID        string
	Data      []byte
	Metadata  map[string]string
	Timestamp time.Time
}

type StreamConfig struct {
	Name   string
	MaxLen int64
}

// Stream is an append-only Redis stream. Readers keep their own position.
type Stream struct {
	adapter redis.RedisAdapter
	config  StreamConfig
}

func NewStream(adapter redis.RedisAdapter, config StreamConfig) (*Stream, error) {
	if adapter == nil {
		return nil, fmt.Errorf("redis adapter is required")
	}
	if config.Name == "" {
		return nil, fmt.Errorf("stream name is required")
	}
	return &Stream{adapter: adapter, config: config}, nil
}

func (s *Stream) Name() string {
	return s.config.Name
}

// Publish appends data to the stream and trims it to roughly MaxLen entries.
func (s *Stream) Publish(ctx context.Context, data []byte, metadata map[string]string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	values := map[string]interface{}{
		"data":      string(data),
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	}
	for k, v := range metadata {
		values["meta_"+k] = v
	}

	id, err := s.adapter.XAdd(s.config.Name, values)
	if err != nil {
		return "", fmt.Errorf("failed to publish message: %w", err)
	}

	if s.config.MaxLen > 0 {
		_ = s.adapter.XTrimApprox(s.config.Name, s.config.MaxLen)
	}

	return id, nil
}

// PublishJSON publishes a JSON-encoded message
func (s *Stream) PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return s.Publish(ctx, jsonData, metadata)
}

// Read returns up to count entries published after the entry id after. Use
// "0" to read from the beginning.
func (s *Stream) Read(ctx context.Context, after string, count int64) ([]*Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if after == "" {
		after = "0"
	}

	entries, err := s.adapter.XRead(s.config.Name, after, count)
	if err != nil {
		return nil, fmt.Errorf("failed to read stream: %w", err)
	}

	out := make([]*Message, 0, len(entries))
	for _, e := range entries {
		out = append(out, streamMessageToMessage(e))
	}
	return out, nil
}

func (s *Stream) Len() (int64, error) {
	return s.adapter.XLen(s.config.Name)
}

func streamMessageToMessage(streamMsg redis.StreamMessage) *Message {
	msg := &Message{
		ID:       streamMsg.ID,
		Metadata: make(map[string]string),
	}

	for k, v := range streamMsg.Values {
		val, ok := v.(string)
		if !ok {
			continue
		}
		switch {
		case k == "data":
			msg.Data = []byte(val)
		case k == "timestamp":
			if ts, err := time.Parse(time.RFC3339Nano, val); err == nil {
				msg.Timestamp = ts
			}
		case strings.HasPrefix(k, "meta_"):
			msg.Metadata[strings.TrimPrefix(k, "meta_")] = val
		}
	}

	return msg
}
