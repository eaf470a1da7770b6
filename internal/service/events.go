package service

import (
	"errors"
	"sync"
	"time"

	"temperaturebox/internal/logger"
	"temperaturebox/internal/models"

	"github.com/google/uuid"
)

// StatusChanged is emitted on every status change or sample of a box.
// Type is one of the models.Event* constants, or empty for a plain
// status refresh such as a queued start. Operator names who issued the
// command behind a START, STOP or EDIT event.
type StatusChanged struct {
	BoxID      int             `json:"box_id"`
	BoxName    string          `json:"box_name"`
	Type       string          `json:"type,omitempty"`
	Status     models.Status   `json:"status"`
	Step       int             `json:"step,omitempty"`
	Text       string          `json:"status_text"`
	Reading    *models.Reading `json:"reading,omitempty"`
	Elapsed    float64         `json:"elapsed_s,omitempty"` // seconds since run start
	Error      string          `json:"error,omitempty"`
	Operator   string          `json:"operator,omitempty"`
	OperatorID int             `json:"operator_id,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

var ErrSubscriptionNotFound = errors.New("subscription not found")

// Subscription receives events until it is unsubscribed or the broker stops.
type Subscription struct {
	ID     string
	Events <-chan StatusChanged
}

type subscriber struct {
	once sync.Once
	ch   chan StatusChanged
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.ch) })
}

// Broker fans events out to subscribers. Publish never blocks: an event is
// dropped for a subscriber whose buffer is full.
type Broker struct {
	mu      sync.RWMutex
	subs    map[string]*subscriber
	stopped bool
	log     *logger.Logger
}

func NewBroker(log *logger.Logger) *Broker {
	if log == nil {
		log = logger.Nop()
	}
	return &Broker{subs: make(map[string]*subscriber), log: log}
}

// Subscribe registers a receiver with the given buffer size.
func (b *Broker) Subscribe(buffer int) Subscription {
	if buffer < 1 {
		buffer = 1
	}
	s := &subscriber{ch: make(chan StatusChanged, buffer)}
	id := uuid.NewString()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		s.close()
	} else {
		b.subs[id] = s
	}
	return Subscription{ID: id, Events: s.ch}
}

func (b *Broker) Unsubscribe(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.subs[id]
	if !ok {
		return ErrSubscriptionNotFound
	}
	delete(b.subs, id)
	s.close()
	return nil
}

func (b *Broker) Publish(ev StatusChanged) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, s := range b.subs {
		select {
		case s.ch <- ev:
		default:
			b.log.Warnw("event_dropped", "subscription", id, "box", ev.BoxID, "type", ev.Type)
		}
	}
}

// Stop closes every subscription. Later subscriptions are closed at once.
func (b *Broker) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopped = true
	for id, s := range b.subs {
		s.close()
		delete(b.subs, id)
	}
}
