package stream

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// NATSConn is the part of *nats.Conn the publisher needs.
type NATSConn interface {
	Publish(subject string, data []byte) error
}

func NewNATSPublisher(nc NATSConn, session string) *Publisher {
	return &Publisher{session: session, send: nc.Publish, now: time.Now}
}

// MQTTClient is the part of mqtt.Client the publisher needs.
type MQTTClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

var errPublishTimeout = errors.New("mqtt publish timeout")

// NewMQTTPublisher publishes on Topic(subject) and waits up to timeout
// for each delivery at the given QoS.
func NewMQTTPublisher(c MQTTClient, session string, qos byte, timeout time.Duration) *Publisher {
	return &Publisher{
		session: session,
		now:     time.Now,
		send: func(subject string, payload []byte) error {
			token := c.Publish(Topic(subject), qos, false, payload)
			if !token.WaitTimeout(timeout) {
				return errPublishTimeout
			}
			return token.Error()
		},
	}
}

// ConnectMQTT opens an auto-reconnecting MQTT client.
func ConnectMQTT(broker, clientID string, log *slog.Logger) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)

	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(mqtt.Client) {
		log.Info("mqtt connected", slog.String("broker", broker))
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warn("mqtt connection lost, reconnecting", slog.Any("err", err))
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connect to %s: timeout", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", broker, err)
	}
	return client, nil
}
