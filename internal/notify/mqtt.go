package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/recycling-rewards/internal/config"
	"github.com/fairyhunter13/recycling-rewards/internal/model"
)

// collectionQoS is at-least-once: the operator may see a request twice but
// never zero times once the broker acknowledged it.
const collectionQoS byte = 1

// publisher is the part of mqtt.Client the notifier uses.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTNotifier publishes collection requests as JSON to a broker topic.
type MQTTNotifier struct {
	client publisher
	topic  string
}

// NewMQTTNotifier connects to cfg.MQTTBroker and returns a notifier
// publishing on cfg.MQTTTopic.
func NewMQTTNotifier(cfg config.NotifyConfig) (*MQTTNotifier, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.MQTTBroker)
	opts.SetClientID(cfg.MQTTClientID)
	opts.SetUsername(cfg.MQTTUsername)
	opts.SetPassword(cfg.MQTTPassword)
	opts.SetCleanSession(true)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetConnectTimeout(cfg.Timeout)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(time.Minute)

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Info().Str("broker", cfg.MQTTBroker).Msg("mqtt client connected")
	})
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Warn().Err(err).Str("broker", cfg.MQTTBroker).Msg("mqtt connection lost")
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.Timeout) {
		return nil, fmt.Errorf("connect to mqtt broker %s: timed out after %s", cfg.MQTTBroker, cfg.Timeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to mqtt broker %s: %w", cfg.MQTTBroker, err)
	}

	return newMQTTNotifier(client, cfg.MQTTTopic), nil
}

func newMQTTNotifier(client publisher, topic string) *MQTTNotifier {
	return &MQTTNotifier{client: client, topic: topic}
}

func (n *MQTTNotifier) Notify(ctx context.Context, req model.CollectionRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode collection request: %w", err)
	}

	token := n.client.Publish(n.topic, collectionQoS, false, payload)
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("publish to %s: %w", n.topic, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("publish to %s: %w", n.topic, ctx.Err())
	}
}

// Close disconnects from the broker, waiting briefly for in-flight publishes.
func (n *MQTTNotifier) Close() {
	n.client.Disconnect(250)
	log.Info().Str("topic", n.topic).Msg("mqtt notifier disconnected")
}
