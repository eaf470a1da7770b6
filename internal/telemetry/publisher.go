package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"temperaturebox/internal/logger"
	"temperaturebox/internal/service"
)

// Publisher forwards every status change of a subscription to the broker
// as a retained message, one topic per box.
type Publisher struct {
	client Client
	prefix string
	log    *logger.Logger
}

func NewPublisher(client Client, prefix string, log *logger.Logger) *Publisher {
	if log == nil {
		log = logger.Nop()
	}
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = "tempbox"
	}
	return &Publisher{client: client, prefix: prefix, log: log}
}

// Topic is the retained status topic of a box.
func (p *Publisher) Topic(box int) string {
	return fmt.Sprintf("%s/box/%d/status", p.prefix, box)
}

// Run publishes until ctx is done or the subscription channel closes.
func (p *Publisher) Run(ctx context.Context, sub service.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events:
			if !ok {
				return
			}
			p.Publish(ev)
		}
	}
}

// Publish sends one event. Failures are logged and the event is dropped.
func (p *Publisher) Publish(ev service.StatusChanged) {
	payload, err := json.Marshal(ev)
	if err != nil {
		p.log.Errorw("telemetry_marshal_failed", "box", ev.BoxID, "err", err)
		return
	}
	topic := p.Topic(ev.BoxID)
	if err := p.client.Publish(topic, 0, true, payload); err != nil {
		p.log.Warnw("telemetry_publish_failed", "box", ev.BoxID, "topic", topic, "err", err)
	}
}
