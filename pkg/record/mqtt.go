package record

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/eclipse/paho.golang/paho"
	"github.com/google/uuid"
)

// publishTimeout bounds how long a single record may stall acquisition
// when the broker is slow or gone.
const publishTimeout = time.Second

var _ Sink = (*MQTT)(nil)

// MQTT publishes each record line to <topic>/<kind> on an MQTT v5
// broker.
type MQTT struct {
	client *paho.Client
	topic  string
	qos    byte
}

// DialMQTT connects to broker ("host:port") and returns a ready sink.
func DialMQTT(ctx context.Context, broker, topic string, qos byte) (*MQTT, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", broker)
	if err != nil {
		return nil, fmt.Errorf("failed to dial MQTT broker: %w", err)
	}

	clientID := "gasmox-" + uuid.NewString()
	client := paho.NewClient(paho.ClientConfig{
		ClientID: clientID,
		Conn:     conn,
	})

	if _, err := client.Connect(ctx, &paho.Connect{
		ClientID:   clientID,
		CleanStart: true,
		KeepAlive:  30,
	}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}

	return &MQTT{client: client, topic: topic, qos: qos}, nil
}

// Write publishes one record.
func (s *MQTT) Write(r Record) error {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	_, err := s.client.Publish(ctx, &paho.Publish{
		QoS:     s.qos,
		Topic:   s.topic + "/" + r.Kind(),
		Payload: []byte(r.String()),
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s record: %w", r.Kind(), err)
	}
	return nil
}

// Close sends DISCONNECT and tears down the connection.
func (s *MQTT) Close() error {
	return s.client.Disconnect(&paho.Disconnect{ReasonCode: 0})
}
