package messaging

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

const (
	defaultConnectTimeout = 10 * time.Second
	disconnectQuiesceMs   = 250
)

// ErrTimeout is returned when the broker does not acknowledge in time.
var ErrTimeout = errors.New("mqtt operation timed out")

// Client is the part of the paho client the messenger uses.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
	Disconnect(quiesce uint)
}

// Config describes the broker connection.
type Config struct {
	Broker         string
	ClientID       string
	ConnectTimeout time.Duration
}

// MQTTMessenger publishes JSON payloads and feeds subscribed topics into slots.
type MQTTMessenger struct {
	client  Client
	timeout time.Duration

	mu   sync.Mutex
	subs map[string]*Slot
}

// NewMQTTMessenger wraps an already connected client.
func NewMQTTMessenger(client Client) *MQTTMessenger {
	return &MQTTMessenger{client: client, timeout: defaultConnectTimeout, subs: make(map[string]*Slot)}
}

// Dial connects to the broker. The client reconnects on its own and restores
// subscriptions after every reconnect.
func Dial(cfg Config) (*MQTTMessenger, error) {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	m := &MQTTMessenger{timeout: cfg.ConnectTimeout, subs: make(map[string]*Slot)}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetOrderMatters(false)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.WithError(err).Warn("MQTT connection lost")
	})
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		log.WithField("broker", cfg.Broker).Info("Connected to MQTT broker")
		m.resubscribe()
	})

	client := mqtt.NewClient(opts)
	m.client = client
	token := client.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		return nil, fmt.Errorf("connect to %s: %w", cfg.Broker, ErrTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.Broker, err)
	}
	return m, nil
}

// Publish encodes payload as JSON and hands it to the client. It does not wait
// for the broker; delivery failures are logged when the token completes.
func (m *MQTTMessenger) Publish(topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", topic, err)
	}
	token := m.client.Publish(topic, 0, false, data)
	go func() {
		<-token.Done()
		if err := token.Error(); err != nil {
			log.WithError(err).WithField("topic", topic).Warn("MQTT publish failed")
		}
	}()
	return nil
}

// Subscribe stores every message received on topic into slot.
func (m *MQTTMessenger) Subscribe(topic string, slot *Slot) error {
	m.mu.Lock()
	m.subs[topic] = slot
	m.mu.Unlock()
	return m.subscribe(topic, slot)
}

func (m *MQTTMessenger) subscribe(topic string, slot *Slot) error {
	token := m.client.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		slot.Store(msg.Payload())
	})
	if !token.WaitTimeout(m.timeout) {
		return fmt.Errorf("subscribe %s: %w", topic, ErrTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	return nil
}

func (m *MQTTMessenger) resubscribe() {
	m.mu.Lock()
	subs := make(map[string]*Slot, len(m.subs))
	for t, s := range m.subs {
		subs[t] = s
	}
	m.mu.Unlock()

	for topic, slot := range subs {
		if err := m.subscribe(topic, slot); err != nil {
			log.WithError(err).WithField("topic", topic).Error("Failed to restore subscription")
		}
	}
}

// Close unsubscribes from every topic and disconnects.
func (m *MQTTMessenger) Close() error {
	m.mu.Lock()
	topics := make([]string, 0, len(m.subs))
	for t := range m.subs {
		topics = append(topics, t)
	}
	m.subs = make(map[string]*Slot)
	m.mu.Unlock()

	var err error
	if len(topics) > 0 {
		token := m.client.Unsubscribe(topics...)
		if !token.WaitTimeout(m.timeout) {
			err = fmt.Errorf("unsubscribe: %w", ErrTimeout)
		} else if tErr := token.Error(); tErr != nil {
			err = fmt.Errorf("unsubscribe: %w", tErr)
		}
	}
	m.client.Disconnect(disconnectQuiesceMs)
	return err
}
