package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/regdocs/regdocs-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func body(t *testing.T, eventType, correlationID string, data interface{}) []byte {
	t.Helper()
	event, err := NewEvent(eventType, "test", correlationID, data)
	require.NoError(t, err)
	b, err := json.Marshal(event)
	require.NoError(t, err)
	return b
}

func TestRouter_Dispatch(t *testing.T) {
	var got PackageDeletedEvent
	var gotCorrelation string

	router := NewRouter(logger.Nop())
	router.Handle(EventPackageDeleted, func(ctx context.Context, event *Event) error {
		gotCorrelation = CorrelationID(ctx)
		return event.UnmarshalData(&got)
	})

	d := router.Dispatch(context.Background(), body(t, EventPackageDeleted, "req-9", PackageDeletedEvent{PackageID: "pkg-1"}), 0)

	assert.Equal(t, Ack, d)
	assert.Equal(t, "pkg-1", got.PackageID)
	assert.Equal(t, "req-9", gotCorrelation)
}

func TestRouter_Dispositions(t *testing.T) {
	failing := func(context.Context, *Event) error { return errors.New("boom") }

	tests := []struct {
		name     string
		body     []byte
		attempts int
		want     Disposition
	}{
		{name: "malformed body", body: []byte("{"), want: DeadLetter},
		{name: "unknown event type", body: body(t, "something.else", "", nil), want: Ack},
		{name: "first failure", body: body(t, EventExtractionCompleted, "", nil), want: Requeue},
		{name: "failure below limit", body: body(t, EventExtractionCompleted, "", nil), attempts: MaxDeliveryAttempts - 1, want: Requeue},
		{name: "failure at limit", body: body(t, EventExtractionCompleted, "", nil), attempts: MaxDeliveryAttempts, want: DeadLetter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := NewRouter(logger.Nop())
			router.Handle(EventExtractionCompleted, failing)
			assert.Equal(t, tt.want, router.Dispatch(context.Background(), tt.body, tt.attempts))
		})
	}
}

func TestDeliveryAttempts(t *testing.T) {
	tests := []struct {
		name    string
		headers amqp.Table
		want    int
	}{
		{name: "no headers", headers: nil, want: 0},
		{name: "quorum delivery count", headers: amqp.Table{"x-delivery-count": int64(2)}, want: 2},
		{name: "x-death count", headers: amqp.Table{"x-death": []interface{}{amqp.Table{"count": int64(4)}}}, want: 4},
		{name: "unrelated headers", headers: amqp.Table{"x-other": "v"}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, deliveryAttempts(tt.headers))
		})
	}
}

func TestDisposition_String(t *testing.T) {
	assert.Equal(t, "ack", Ack.String())
	assert.Equal(t, "requeue", Requeue.String())
	assert.Equal(t, "dead_letter", DeadLetter.String())
}

func TestEvent_RoundTrip(t *testing.T) {
	event, err := NewEvent(EventProfileRecomputed, "profile-service", "corr", ProfileRecomputedEvent{
		PackageID: "pkg-1", Score: 83, Status: "warning", Trigger: "edit",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, event.ID)

	var data ProfileRecomputedEvent
	require.NoError(t, event.UnmarshalData(&data))
	assert.Equal(t, 83, data.Score)
	assert.Equal(t, "edit", data.Trigger)
}
