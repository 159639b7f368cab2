// Package notify fans user-facing notifications out to whatever surface
// is listening (CLI output, a future UI bridge) over an in-process
// pub/sub bus.
package notify

import (
	"context"
	"encoding/json"

	"maxwell-extraction/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const topic = "notifications"

// Notification is one user-facing toast. ActionURL deep-links into the
// suggestion queue UI; following it never approves or rejects anything.
type Notification struct {
	Message      string `json:"message"`
	ManuscriptID string `json:"manuscript_id"`
	DurationMs   int    `json:"duration_ms"`
	ActionURL    string `json:"action_url,omitempty"`
}

// Notifier is the sink consumed by the reconciler.
type Notifier interface {
	Notify(n Notification)
}

// Bus is a watermill gochannel-backed Notifier with any number of
// subscribers. Delivery is best-effort and in-process.
type Bus struct {
	pubsub *gochannel.GoChannel
	log    logger.ILogger
}

func NewBus(log logger.ILogger) *Bus {
	if log == nil {
		log = logger.NewNopLogger()
	}
	pubsub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64},
		watermill.NewStdLogger(false, false),
	)
	return &Bus{pubsub: pubsub, log: log}
}

// Notify publishes one notification to every subscriber.
func (b *Bus) Notify(n Notification) {
	payload, err := json.Marshal(n)
	if err != nil {
		b.log.Error("NotifyBus", "Failed to marshal notification", map[string]interface{}{"error": err.Error()})
		return
	}

	if err := b.pubsub.Publish(topic, message.NewMessage(watermill.NewUUID(), payload)); err != nil {
		b.log.Error("NotifyBus", "Failed to publish notification", map[string]interface{}{"error": err.Error()})
	}
}

// Subscribe returns a channel of decoded notifications. The channel
// closes when ctx is cancelled or the bus shuts down.
func (b *Bus) Subscribe(ctx context.Context) (<-chan Notification, error) {
	messages, err := b.pubsub.Subscribe(ctx, topic)
	if err != nil {
		return nil, err
	}

	out := make(chan Notification, 16)
	go func() {
		defer close(out)
		for msg := range messages {
			var n Notification
			if err := json.Unmarshal(msg.Payload, &n); err != nil {
				b.log.Warn("NotifyBus", "Dropping undecodable notification", map[string]interface{}{"error": err.Error()})
				msg.Ack()
				continue
			}
			msg.Ack()
			select {
			case out <- n:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// Close shuts the bus down and closes all subscriber channels.
func (b *Bus) Close() error {
	return b.pubsub.Close()
}
