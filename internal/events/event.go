package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/qrdine/pkg/telemetry/correlation"
)

// Type names a domain event published on the orders topic.
type Type string

const (
	TypeOrderCreated       Type = "order.created"
	TypeOrderStatusChanged Type = "order.status_changed"
	TypeInvoiceGenerated   Type = "invoice.generated"
)

// Event is the envelope written to the broker.
type Event struct {
	ID            string          `json:"id"`
	Type          Type            `json:"type"`
	RestaurantID  string          `json:"restaurant_id"`
	SubjectID     string          `json:"subject_id"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	TraceID       string          `json:"trace_id,omitempty"`
	Data          json.RawMessage `json:"data"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// New builds an event envelope, carrying the correlation and trace ids found on ctx.
func New(ctx context.Context, typ Type, restaurantID, subjectID string, occurredAt time.Time, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	_, cid := correlation.EnsureCorrelationID(ctx)
	traceID, _ := correlation.TraceIDs(ctx)

	return Event{
		ID:            ulid.Make().String(),
		Type:          typ,
		RestaurantID:  restaurantID,
		SubjectID:     subjectID,
		CorrelationID: cid,
		TraceID:       traceID,
		Data:          data,
		OccurredAt:    occurredAt.UTC(),
	}, nil
}

// Publisher delivers domain events. Callers publish after commit and treat
// failures as non-fatal.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}
