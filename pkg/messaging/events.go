package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	// Published by OCR workers outside this service
	EventExtractionCompleted = "documents.extraction.completed"

	// Published after every profile recomputation
	EventProfileRecomputed = "profile.recomputed"
	EventPackageDeleted    = "profile.package.deleted"
)

// Exchange names
const (
	ExchangeDocumentEvents = "documents.events"
	ExchangeProfileEvents  = "profile.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// ExtractionCompletedEvent carries one extraction result produced by an
// external worker. Result is an ExtractionResult object in its wire form.
type ExtractionCompletedEvent struct {
	PackageID string          `json:"package_id"`
	Processor string          `json:"processor"`
	Result    json.RawMessage `json:"result"`
}

// ProfileRecomputedEvent is published whenever a package's profile and
// compliance report were rebuilt from its current results.
type ProfileRecomputedEvent struct {
	PackageID     string `json:"package_id"`
	FullName      string `json:"full_name"`
	Score         int    `json:"score"`
	Status        string `json:"status"`
	Summary       string `json:"summary"`
	DocumentCount int    `json:"document_count"`
	FailedCount   int    `json:"failed_count"`
	Trigger       string `json:"trigger"`
}

// PackageDeletedEvent is published when a package is discarded
type PackageDeletedEvent struct {
	PackageID string `json:"package_id"`
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return uuid.NewString()
}
