package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageBuilder_Build(t *testing.T) {
	msg, err := NewMessage().
		WithKey("washer-1").
		WithEventType("reservation.created").
		WithCorrelationID("req-1").
		WithSchemaVersion("1").
		WithSource("reservations").
		WithValue(map[string]string{"id": "r1"}).
		Build()
	require.NoError(t, err)

	assert.Equal(t, "washer-1", msg.Key)
	assert.Equal(t, "reservation.created", msg.GetEventType())
	assert.Equal(t, "req-1", msg.GetCorrelationID())
	assert.NotEmpty(t, msg.GetEventID())
	assert.NotEmpty(t, msg.Headers[HeaderTimestamp])

	var payload map[string]string
	require.NoError(t, msg.DecodeValue(&payload))
	assert.Equal(t, "r1", payload["id"])
}

func TestMessageBuilder_EncodingError(t *testing.T) {
	_, err := NewMessage().WithKey("k").WithValue(make(chan int)).Build()
	assert.Error(t, err)
}

func TestMessageBuilder_EmptyCorrelationSkipped(t *testing.T) {
	msg, err := NewMessage().WithKey("k").WithValue(1).WithCorrelationID("").Build()
	require.NoError(t, err)
	_, ok := msg.Headers[HeaderCorrelationID]
	assert.False(t, ok)
}
