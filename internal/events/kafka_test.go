package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/smallbiznis/qrdine/pkg/telemetry/correlation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestNewEventCarriesCorrelation(t *testing.T) {
	ctx := correlation.ContextWithCorrelationID(context.Background(), "corr-1")
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("IST", 19800))

	evt, err := New(ctx, TypeOrderCreated, "7", "1001", at, map[string]string{"status": "new"})
	require.NoError(t, err)

	assert.NotEmpty(t, evt.ID)
	assert.Equal(t, "corr-1", evt.CorrelationID)
	assert.Equal(t, time.UTC, evt.OccurredAt.Location())
	assert.JSONEq(t, `{"status":"new"}`, string(evt.Data))
}

func TestKafkaPublisherWritesEnvelope(t *testing.T) {
	writer := &fakeWriter{}
	pub := newKafkaPublisher(writer, zap.NewNop())

	evt, err := New(context.Background(), TypeInvoiceGenerated, "7", "55", time.Now(), map[string]string{"invoice_no": "INV-000001"})
	require.NoError(t, err)

	require.NoError(t, pub.Publish(context.Background(), evt))
	require.Len(t, writer.messages, 1)

	msg := writer.messages[0]
	assert.Equal(t, "7", string(msg.Key))
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, "invoice.generated", string(msg.Headers[0].Value))

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, evt.ID, decoded.ID)
	assert.Equal(t, "55", decoded.SubjectID)

	require.NoError(t, pub.Close())
	assert.True(t, writer.closed)
}

func TestKafkaPublisherReturnsWriteError(t *testing.T) {
	writer := &fakeWriter{err: errors.New("broker down")}
	pub := newKafkaPublisher(writer, zap.NewNop())

	err := pub.Publish(context.Background(), Event{ID: "x", Type: TypeOrderCreated})
	assert.EqualError(t, err, "broker down")
}
