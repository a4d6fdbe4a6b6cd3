package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/avast/retry-go/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"rtb-engine/internal/config/components"
	"rtb-engine/internal/interfaces"
	"sync/atomic"
	"time"
)

type Client struct {
	client    mqtt.Client
	config    components.MQTTConfigImpl
	logger    zerolog.Logger
	connected atomic.Bool
}

func NewClient(cfg components.MQTTConfigImpl, logger zerolog.Logger) *Client {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.GetUrl())

	// a fixed id would let two engine instances kick each other off the broker
	opts.SetClientID(fmt.Sprintf("%s-%s", cfg.ClientID, uuid.NewString()[:8]))

	if cfg.Username != "" && cfg.Password != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetKeepAlive(cfg.KeepAlive)
	opts.SetAutoReconnect(cfg.AutoReconnect)
	opts.SetMaxReconnectInterval(cfg.MaxReconnectInterval)
	opts.SetCleanSession(cfg.CleanSession)

	mqttClient := &Client{
		config: cfg,
		logger: logger,
	}

	opts.SetOnConnectHandler(mqttClient.onConnect)
	opts.SetConnectionLostHandler(mqttClient.onConnectionLost)

	mqttClient.client = mqtt.NewClient(opts)

	return mqttClient
}

// Connect dials the broker, retrying with backoff until ctx ends or the
// configured attempts are used up.
func (c *Client) Connect(ctx context.Context) error {
	err := retry.Do(func() error {
		token := c.client.Connect()

		select {
		case <-token.Done():
			if token.Error() != nil {
				return fmt.Errorf("error connecting to MQTT broker %s: %w", c.config.GetUrl(), token.Error())
			}
			c.connected.Store(true)
			return nil
		case <-ctx.Done():
			return retry.Unrecoverable(fmt.Errorf("connection to MQTT broker timed out: %w", ctx.Err()))
		}
	},
		retry.Context(ctx),
		retry.Attempts(uint(c.config.ConnectAttempts)),
		retry.Delay(1*time.Second),
		retry.MaxDelay(c.config.MaxReconnectInterval),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn().Err(err).Uint("attempt", n+1).Msg("MQTT connect failed, retrying")
		}),
	)
	return err
}

func (c *Client) Disconnect(ctx context.Context) {
	if !c.IsConnected() {
		c.logger.Warn().Msg("MQTT client is not connected, nothing to disconnect")
		return
	}

	c.client.Disconnect(250)

	select {
	case <-ctx.Done():
		c.logger.Warn().Msg("MQTT client disconnect timed out")
	default:
		c.connected.Store(false)
		c.logger.Info().Msg("MQTT client disconnected successfully")
	}
}

func (c *Client) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	if !c.client.IsConnected() {
		return fmt.Errorf("MQTT client is not connected, cannot subscribe to topic %s", topic)
	}

	token := c.client.Subscribe(topic, qos, handler)
	token.Wait()

	if token.Error() != nil {
		return fmt.Errorf("error subscribing to topic %s: %w", topic, token.Error())
	}

	c.logger.Info().Str("topic", topic).Msg("Added topic subscription")

	return nil
}

func (c *Client) PublishWithOptions(topic string, payload []byte, options *MessageOptions) error {
	if !c.IsConnected() {
		return fmt.Errorf("MQTT client is not connected")
	}

	token := c.client.Publish(topic, options.Qos, options.Retained, payload)
	if !token.WaitTimeout(options.Timeout) {
		return fmt.Errorf("publish to topic %s timed out after %s", topic, options.Timeout)
	}

	if token.Error() != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, token.Error())
	}

	c.logger.Debug().
		Str("topic", topic).
		Int("payload_size", len(payload)).
		Bool("retained", options.Retained).
		Msg("Successfully published message")

	return nil
}

func (c *Client) options(retained bool) *MessageOptions {
	options := DefaultMessageOptions()
	options.Qos = c.config.QoS
	options.Timeout = c.config.PublishTimeout
	options.Retained = retained
	return options
}

// Publish sends a raw payload, used for radio frames.
func (c *Client) Publish(topic string, payload []byte) error {
	return c.PublishWithOptions(topic, payload, c.options(false))
}

func (c *Client) PublishJson(topic string, data interface{}) error {
	return c.publishMessage(topic, data, c.options(false))
}

// PublishRetained publishes data so late subscribers receive the last value.
// A nil data clears the retained message.
func (c *Client) PublishRetained(topic string, data interface{}) error {
	if data == nil {
		return c.PublishWithOptions(topic, nil, c.options(true))
	}
	return c.publishMessage(topic, data, c.options(true))
}

func (c *Client) publishMessage(topic string, data interface{}, options *MessageOptions) error {
	payload, err := json.Marshal(Message{
		Data:   data,
		Source: options.Source,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	return c.PublishWithOptions(topic, payload, options)
}

func (c *Client) IsConnected() bool {
	return c.connected.Load() && c.client.IsConnected()
}

func (c *Client) onConnect(client mqtt.Client) {
	c.connected.Store(true)

	c.logger.Info().
		Str("broker", c.config.GetUrl()).
		Msg("Successfully connected to broker")
}

func (c *Client) onConnectionLost(client mqtt.Client, err error) {
	c.connected.Store(false)
	c.logger.Warn().Err(err).Msg("Lost connection to broker")
}

var _ interfaces.IMqClient = (*Client)(nil)
