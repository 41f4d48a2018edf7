package record

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/eclipse/paho.golang/paho"
	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const brokerAddr = "127.0.0.1:18837"

func startBroker(t *testing.T) {
	t.Helper()

	broker := mochi.New(nil)
	require.NoError(t, broker.AddHook(&auth.AllowHook{}, nil))
	require.NoError(t, broker.AddListener(listeners.NewTCP(listeners.Config{
		Type:    "tcp",
		Address: brokerAddr,
	})))
	require.NoError(t, broker.Serve())
	t.Cleanup(func() { _ = broker.Close() })
}

type published struct {
	topic   string
	payload string
}

// subscribe attaches a plain MQTT client to the test broker and streams
// everything matching filter.
func subscribe(ctx context.Context, t *testing.T, filter string) <-chan published {
	t.Helper()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", brokerAddr)
	require.NoError(t, err)

	got := make(chan published, 8)
	client := paho.NewClient(paho.ClientConfig{
		ClientID: "gasmox-test-sub",
		Conn:     conn,
		OnPublishReceived: []func(paho.PublishReceived) (bool, error){
			func(pr paho.PublishReceived) (bool, error) {
				got <- published{pr.Packet.Topic, string(pr.Packet.Payload)}
				return true, nil
			},
		},
	})

	_, err = client.Connect(ctx, &paho.Connect{
		ClientID:   "gasmox-test-sub",
		CleanStart: true,
		KeepAlive:  30,
	})
	require.NoError(t, err)

	_, err = client.Subscribe(ctx, &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{{Topic: filter, QoS: 1}},
	})
	require.NoError(t, err)

	t.Cleanup(func() { _ = client.Disconnect(&paho.Disconnect{ReasonCode: 0}) })

	return got
}

func TestMQTT_PublishesRecords(t *testing.T) {
	startBroker(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got := subscribe(ctx, t, "gasmox/#")

	sink, err := DialMQTT(ctx, brokerAddr, "gasmox", 1)
	require.NoError(t, err)

	rec := Ratio{Elapsed: 1200 * time.Millisecond, Sensor: 0x76, Value: 1.5}
	require.NoError(t, sink.Write(rec))

	select {
	case p := <-got:
		assert.Equal(t, "gasmox/RATIO", p.topic)
		assert.Equal(t, "RATIO,1200,0x76,1.500000", p.payload)
	case <-ctx.Done():
		t.Fatal("no message before timeout")
	}

	assert.NoError(t, sink.Close())
}

func TestDialMQTT_NoBroker(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := DialMQTT(ctx, "127.0.0.1:1", "gasmox", 0)
	assert.Error(t, err)
}
