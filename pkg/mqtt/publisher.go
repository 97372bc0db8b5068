// Package mqtt publishes channel-state and call activity to an MQTT broker,
// grounded on madpsy-ka9q_ubersdr/mqtt_publisher.go's use of
// github.com/eclipse/paho.mqtt.golang: client options, auto-reconnect,
// fire-and-forget publishes checked for errors in a background goroutine.
package mqtt

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/go-trunk/trunkcore/pkg/channelstate"
	"github.com/go-trunk/trunkcore/pkg/logger"
)

// Config holds MQTT publisher configuration
type Config struct {
	Enabled     bool
	Broker      string
	TopicPrefix string
	ClientID    string
	Username    string
	Password    string
	QoS         byte
	Retained    bool
}

// Publisher handles MQTT event publishing
type Publisher struct {
	config Config
	log    *logger.Logger
	client paho.Client
}

// ChannelStatePayload mirrors one channelstate.Event transition for MQTT
// subscribers.
type ChannelStatePayload struct {
	Channel   string    `json:"channel"`
	Type      string    `json:"type"`
	State     string    `json:"state"`
	Timestamp time.Time `json:"timestamp"`
}

// CallEventPayload mirrors one channelstate.CallEvent for MQTT subscribers.
type CallEventPayload struct {
	ID          string    `json:"id"`
	Channel     string    `json:"channel"`
	Type        string    `json:"type"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	Details     string    `json:"details"`
	FrequencyHz float64   `json:"frequency_hz,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// TrafficAllocationPayload mirrors a TrafficChannelAllocationEvent.
type TrafficAllocationPayload struct {
	SourceChannel string    `json:"source_channel"`
	Channel       string    `json:"channel"`
	FrequencyHz   float64   `json:"frequency_hz"`
	From          string    `json:"from"`
	To            string    `json:"to"`
	Timestamp     time.Time `json:"timestamp"`
}

// New creates a new MQTT publisher
func New(config Config, log *logger.Logger) *Publisher {
	if log == nil {
		log = logger.New(logger.Config{Level: "info", Format: "text"})
	}

	return &Publisher{
		config: config,
		log:    log.WithComponent("mqtt"),
	}
}

// Start connects to the configured broker. A disabled publisher is a no-op.
func (p *Publisher) Start(ctx context.Context) error {
	if !p.config.Enabled {
		p.log.Info("MQTT publisher disabled")
		return nil
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(p.config.Broker)
	clientID := p.config.ClientID
	if clientID == "" {
		clientID = generateClientID()
	}
	opts.SetClientID(clientID)

	if p.config.Username != "" {
		opts.SetUsername(p.config.Username)
	}
	if p.config.Password != "" {
		opts.SetPassword(p.config.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(10 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(paho.Client) {
		p.log.Info("MQTT connected", logger.String("broker", p.config.Broker))
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		p.log.Warn("MQTT connection lost", logger.Error(err))
	})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if token.WaitTimeout(5*time.Second) && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	go func() {
		<-ctx.Done()
		p.Stop()
	}()

	return nil
}

// Stop disconnects from the broker.
func (p *Publisher) Stop() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}

// PublishChannelState publishes a channel-state transition.
func (p *Publisher) PublishChannelState(channel string, event channelstate.Event) error {
	payload := ChannelStatePayload{
		Channel:   channel,
		Type:      event.Type.String(),
		State:     event.State.String(),
		Timestamp: time.Now(),
	}
	return p.publish(p.formatTopic(fmt.Sprintf("channel/%s/state", channel)), payload)
}

// PublishCallEvent publishes a call-event observed on channel.
func (p *Publisher) PublishCallEvent(channel string, call channelstate.CallEvent) error {
	payload := CallEventPayload{
		ID:          call.ID,
		Channel:     channel,
		Type:        call.Type.String(),
		From:        call.From,
		To:          call.To,
		Details:     call.Details,
		FrequencyHz: call.FrequencyHz,
		Timestamp:   time.Now(),
	}
	return p.publish(p.formatTopic(fmt.Sprintf("channel/%s/call", channel)), payload)
}

// PublishTrafficAllocation publishes a traffic-channel grant originating
// from sourceChannel.
func (p *Publisher) PublishTrafficAllocation(sourceChannel string, alloc channelstate.TrafficChannelAllocationEvent) error {
	payload := TrafficAllocationPayload{
		SourceChannel: sourceChannel,
		Channel:       alloc.Channel,
		FrequencyHz:   alloc.FrequencyHz,
		From:          alloc.Call.From,
		To:            alloc.Call.To,
		Timestamp:     time.Now(),
	}
	return p.publish(p.formatTopic("traffic_channel_allocations"), payload)
}

// publish publishes an event to a topic
func (p *Publisher) publish(topic string, event interface{}) error {
	if !p.config.Enabled {
		return nil
	}

	payload, err := p.serializeEvent(event)
	if err != nil {
		p.log.Error("Failed to serialize event",
			logger.String("topic", topic),
			logger.Error(err))
		return err
	}

	if p.client == nil {
		p.log.Debug("MQTT client not connected, dropping event",
			logger.String("topic", topic))
		return nil
	}

	token := p.client.Publish(topic, p.config.QoS, p.config.Retained, payload)
	go func() {
		if token.Wait() && token.Error() != nil {
			p.log.Error("Failed to publish MQTT event",
				logger.String("topic", topic),
				logger.Error(token.Error()))
		}
	}()

	return nil
}

// serializeEvent serializes an event to JSON
func (p *Publisher) serializeEvent(event interface{}) ([]byte, error) {
	return json.Marshal(event)
}

// formatTopic formats a topic with the configured prefix
func (p *Publisher) formatTopic(suffix string) string {
	prefix := strings.TrimSuffix(p.config.TopicPrefix, "/")
	if prefix == "" {
		return suffix
	}
	return fmt.Sprintf("%s/%s", prefix, suffix)
}

func generateClientID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return "trunkcore_" + hex.EncodeToString(b)
}
