package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"
	"go.uber.org/zap"

	"github.com/aidar/taskhub/internal/domain"
)

const (
	channelPrefix  = "taskhub:activity:"
	publishTimeout = 5 * time.Second
	relayBackoff   = time.Second
)

// ChannelFor returns the valkey channel carrying a project's activity
func ChannelFor(entry *domain.ActivityLog) string {
	return channelPrefix + entry.ProjectID.String()
}

// ValkeyBroadcaster publishes activity to valkey so that every API instance can fan it out locally.
// Per-project ordering holds because one channel carries one project.
type ValkeyBroadcaster struct {
	client valkey.Client
}

// NewValkeyBroadcaster creates a broadcaster on top of a valkey client
func NewValkeyBroadcaster(client valkey.Client) *ValkeyBroadcaster {
	return &ValkeyBroadcaster{client: client}
}

// Publish sends the entry to the project's channel
func (b *ValkeyBroadcaster) Publish(ctx context.Context, entry *domain.ActivityLog) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode activity: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	cmd := b.client.B().Publish().Channel(ChannelFor(entry)).Message(string(payload)).Build()
	if err := b.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to publish activity: %w", err)
	}

	return nil
}

// Relay feeds activity received from valkey into the local hub
type Relay struct {
	client valkey.Client
	hub    *Hub
	logger *zap.Logger
}

// NewRelay creates a relay from valkey into hub
func NewRelay(client valkey.Client, hub *Hub, logger *zap.Logger) *Relay {
	return &Relay{
		client: client,
		hub:    hub,
		logger: logger,
	}
}

// Run subscribes to every project channel until ctx is cancelled, resubscribing after connection loss
func (r *Relay) Run(ctx context.Context) error {
	cmd := r.client.B().Psubscribe().Pattern(channelPrefix + "*").Build()

	for {
		err := r.client.Receive(ctx, cmd, r.handle)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Warn("activity relay disconnected", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(relayBackoff):
		}
	}
}

func (r *Relay) handle(msg valkey.PubSubMessage) {
	var entry domain.ActivityLog
	if err := json.Unmarshal([]byte(msg.Message), &entry); err != nil {
		r.logger.Warn("skipping malformed activity message",
			zap.String("channel", msg.Channel),
			zap.Error(err),
		)
		return
	}

	_ = r.hub.Publish(context.Background(), &entry)
}
