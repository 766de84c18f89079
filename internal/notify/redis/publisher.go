package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/orderwatch/internal/domain"
)

// stateMessage is the wire shape published to the configured channel.
type stateMessage struct {
	OrderHash string             `json:"order_hash"`
	Valid     bool               `json:"valid"`
	Reason    domain.RejectReason `json:"reason,omitempty"`
	State     *domain.RelevantState `json:"relevant_state,omitempty"`
}

// Publisher broadcasts delivered order states over Redis Pub/Sub. It is
// meant to be wired as (or alongside) a watcher's domain.Subscriber.
type Publisher struct {
	rdb     *redis.Client
	channel string
}

// NewPublisher creates a Publisher that publishes to the given channel on
// the connection owned by c.
func NewPublisher(c *Client, channel string) *Publisher {
	return &Publisher{rdb: c.Underlying(), channel: channel}
}

// Publish encodes state as JSON and publishes it to the configured channel.
func (p *Publisher) Publish(ctx context.Context, state domain.OrderState) error {
	msg := stateMessage{
		OrderHash: state.OrderHash.Hex(),
		Valid:     state.Valid,
		Reason:    state.Reason,
	}
	if state.Valid {
		rs := state.RelevantState
		msg.State = &rs
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("redis: marshal state message: %w", err)
	}
	if err := p.rdb.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", p.channel, err)
	}
	return nil
}
