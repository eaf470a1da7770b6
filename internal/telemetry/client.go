// Package telemetry mirrors box status changes to an MQTT broker.
package telemetry

import (
	"errors"
	"fmt"
	"time"

	"temperaturebox/internal/logger"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 5 * time.Second
	disconnectWait = 250 // milliseconds
)

var ErrConnectTimeout = errors.New("mqtt connect timed out")

// Client is the part of an MQTT connection the publisher needs.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Disconnect()
}

type ClientOpts struct {
	Broker   string
	ClientID string
}

// PahoClient is a Client backed by the Eclipse Paho library.
type PahoClient struct {
	client paho.Client
}

var _ Client = (*PahoClient)(nil)

// Connect dials the broker and waits for the session to come up.
func Connect(opts ClientOpts, log *logger.Logger) (*PahoClient, error) {
	if log == nil {
		log = logger.Nop()
	}

	pahoOpts := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetOnConnectHandler(func(paho.Client) {
			log.Infow("mqtt_connected", "broker", opts.Broker)
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Warnw("mqtt_connection_lost", "broker", opts.Broker, "err", err)
		}).
		SetAutoReconnect(true).
		SetKeepAlive(10 * time.Second).
		SetConnectTimeout(connectTimeout)

	client := paho.NewClient(pahoOpts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("%w: %s", ErrConnectTimeout, opts.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", opts.Broker, err)
	}
	return &PahoClient{client: client}, nil
}

func (c *PahoClient) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publishing to topic %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing to topic %s: %w", topic, err)
	}
	return nil
}

func (c *PahoClient) Disconnect() {
	c.client.Disconnect(disconnectWait)
}
