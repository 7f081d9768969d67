package messaging

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// Publisher sends one outbound message.
type Publisher interface {
	Publish(topic string, payload any) error
}

// Bus is an in-memory broker. Messages are JSON encoded exactly like the MQTT
// messenger does and delivered synchronously, which makes it the transport for
// runs without a broker and for tests.
type Bus struct {
	mu   sync.RWMutex
	subs map[string][]func([]byte)
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string][]func([]byte))}
}

// Publish delivers payload to every handler of topic.
func (b *Bus) Publish(topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", topic, err)
	}
	b.mu.RLock()
	handlers := b.subs[topic]
	b.mu.RUnlock()
	for _, h := range handlers {
		h(data)
	}
	return nil
}

// Handle registers a raw handler for topic.
func (b *Bus) Handle(topic string, h func([]byte)) {
	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], h)
	b.mu.Unlock()
}

// Subscribe stores every message on topic into slot.
func (b *Bus) Subscribe(topic string, slot *Slot) error {
	b.Handle(topic, slot.Store)
	return nil
}

func (b *Bus) Close() error { return nil }

// Tee publishes to every publisher and joins their errors.
type Tee []Publisher

func (t Tee) Publish(topic string, payload any) error {
	var errs []error
	for _, p := range t {
		if err := p.Publish(topic, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
