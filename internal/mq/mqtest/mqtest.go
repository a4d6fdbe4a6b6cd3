// Package mqtest provides in-memory stand-ins for the MQTT client used by
// handler and publisher tests.
package mqtest

import (
	"context"
	"encoding/json"
	"errors"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"rtb-engine/internal/interfaces"
	"sync"
)

type Published struct {
	Topic    string
	Payload  []byte
	Retained bool
}

// Client records every publish and subscription.
type Client struct {
	mu            sync.Mutex
	published     []Published
	subscriptions map[string]mqtt.MessageHandler
	Err           error
	connected     bool
}

func NewClient() *Client {
	return &Client{
		subscriptions: make(map[string]mqtt.MessageHandler),
		connected:     true,
	}
}

func (c *Client) record(p Published) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Err != nil {
		return c.Err
	}
	c.published = append(c.published, p)
	return nil
}

func (c *Client) Publish(topic string, payload []byte) error {
	return c.record(Published{Topic: topic, Payload: payload})
}

func (c *Client) PublishJson(topic string, data interface{}) error {
	payload, err := json.Marshal(map[string]interface{}{"data": data, "source": "RTB"})
	if err != nil {
		return err
	}
	return c.record(Published{Topic: topic, Payload: payload})
}

func (c *Client) PublishRetained(topic string, data interface{}) error {
	if data == nil {
		return c.record(Published{Topic: topic, Retained: true})
	}
	payload, err := json.Marshal(map[string]interface{}{"data": data, "source": "RTB"})
	if err != nil {
		return err
	}
	return c.record(Published{Topic: topic, Payload: payload, Retained: true})
}

func (c *Client) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return errors.New("not connected")
	}
	c.subscriptions[topic] = handler
	return nil
}

func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = true
	return nil
}

func (c *Client) Disconnect(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *Client) Published() []Published {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Published(nil), c.published...)
}

func (c *Client) Subscriptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	topics := make([]string, 0, len(c.subscriptions))
	for topic := range c.subscriptions {
		topics = append(topics, topic)
	}
	return topics
}

var _ interfaces.IMqClient = (*Client)(nil)

// Message is a minimal mqtt.Message.
type Message struct {
	TopicName string
	Body      []byte
}

func NewMessage(topic string, payload []byte) *Message {
	return &Message{TopicName: topic, Body: payload}
}

func (m *Message) Duplicate() bool   { return false }
func (m *Message) Qos() byte         { return 1 }
func (m *Message) Retained() bool    { return false }
func (m *Message) Topic() string     { return m.TopicName }
func (m *Message) MessageID() uint16 { return 0 }
func (m *Message) Payload() []byte   { return m.Body }
func (m *Message) Ack()              {}

var _ mqtt.Message = (*Message)(nil)
