package ingest

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Message is one delivery from the bus.
type Message struct {
	Topic     string
	Payload   []byte
	Duplicate bool
}

type Handler func(Message)

// Conn is a live bus connection.
type Conn interface {
	Subscribe(topic string, qos byte, handler Handler) error
	IsConnected() bool
	Close()
}

// Dialer opens bus connections. onLost fires at most once per connection when
// the transport drops.
type Dialer interface {
	Dial(ctx context.Context, onLost func(error)) (Conn, error)
}

// MQTTDialer connects to an MQTT broker with paho. Automatic reconnection is
// disabled; the connector's monitor owns reconnects.
type MQTTDialer struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	ConnectTimeout time.Duration
}

func (d *MQTTDialer) Dial(ctx context.Context, onLost func(error)) (Conn, error) {
	timeout := d.ConnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(d.Broker)
	opts.SetClientID(d.ClientID)
	if d.Username != "" {
		opts.SetUsername(d.Username)
		opts.SetPassword(d.Password)
	}
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	opts.SetConnectTimeout(timeout)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		if onLost != nil {
			onLost(err)
		}
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		client.Disconnect(0)
		return nil, fmt.Errorf("mqtt connect %s: %w", d.Broker, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", d.Broker, err)
	}
	return &mqttConn{client: client, timeout: timeout}, nil
}

type mqttConn struct {
	client  mqtt.Client
	timeout time.Duration
}

func (c *mqttConn) Subscribe(topic string, qos byte, handler Handler) error {
	token := c.client.Subscribe(topic, qos, func(_ mqtt.Client, m mqtt.Message) {
		handler(Message{Topic: m.Topic(), Payload: m.Payload(), Duplicate: m.Duplicate()})
	})
	if !token.WaitTimeout(c.timeout) {
		return fmt.Errorf("mqtt subscribe %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt subscribe %s: %w", topic, err)
	}
	return nil
}

func (c *mqttConn) IsConnected() bool {
	return c.client.IsConnectionOpen()
}

func (c *mqttConn) Close() {
	c.client.Disconnect(250)
}
