//go:build integration

package events_test

import (
	"encoding/json"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/sentinel/internal/events"
	"github.com/tphakala/sentinel/internal/logger"
	"github.com/tphakala/sentinel/internal/testutil/containers"
)

func TestMQTTForwarder_DeliversThroughBroker(t *testing.T) {
	broker, err := containers.NewMosquittoContainer(t.Context(), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = broker.Terminate(t.Context()) })

	log := logger.Discard()
	publisher, err := events.ConnectMQTT(events.MQTTConfig{
		Broker:   broker.BrokerURL(),
		ClientID: "sentinel-publisher",
	}, log)
	require.NoError(t, err)
	t.Cleanup(func() { publisher.Disconnect(250) })

	subscriber, err := events.ConnectMQTT(events.MQTTConfig{
		Broker:   broker.BrokerURL(),
		ClientID: "sentinel-subscriber",
	}, log)
	require.NoError(t, err)
	t.Cleanup(func() { subscriber.Disconnect(250) })

	received := make(chan []byte, 1)
	token := subscriber.Subscribe("sentinel/entities/#", 1, func(_ paho.Client, msg paho.Message) {
		assert.Equal(t, "sentinel/entities/alert/created", msg.Topic())
		received <- msg.Payload()
	})
	require.True(t, token.WaitTimeout(5*time.Second))
	require.NoError(t, token.Error())

	bus := events.NewBus(8, log)
	defer bus.Stop()
	bus.Subscribe(events.NewMQTTForwarder(publisher, "sentinel/entities", log).Handle)

	bus.Publish(&events.EntityEvent{
		Type:      events.EventCreated,
		Resource:  "alert",
		ID:        42,
		Namespace: "tenant-a",
		Principal: "alice",
		Timestamp: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	})

	select {
	case payload := <-received:
		var got events.EntityEvent
		require.NoError(t, json.Unmarshal(payload, &got))
		assert.Equal(t, uint(42), got.ID)
		assert.Equal(t, "tenant-a", got.Namespace)
	case <-time.After(10 * time.Second):
		t.Fatal("event was not delivered through the broker")
	}
}
