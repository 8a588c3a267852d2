package consumers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/regdocs/regdocs-backend/internal/docprocessing/domain"
	"github.com/regdocs/regdocs-backend/internal/docprocessing/service"
	apperrors "github.com/regdocs/regdocs-backend/pkg/errors"
	"github.com/regdocs/regdocs-backend/pkg/logger"
	"github.com/regdocs/regdocs-backend/pkg/messaging"
)

// component tags consumer log lines
const component = "extraction-consumer"

// ResultApplier stores an externally produced extraction result
type ResultApplier interface {
	ApplyResult(ctx context.Context, packageID string, result domain.ExtractionResult, processor string) (*service.Snapshot, error)
}

// ExtractionConsumer ingests extraction results published by external OCR workers
type ExtractionConsumer struct {
	consumer *messaging.Consumer
	applier  ResultApplier
	logger   *logger.Logger
}

// NewExtractionConsumer creates a consumer bound to the document events exchange
func NewExtractionConsumer(rmq *messaging.RabbitMQ, queueName string, applier ResultApplier, log *logger.Logger) (*ExtractionConsumer, error) {
	log = log.WithComponent(component)
	consumer, err := messaging.NewConsumer(rmq, queueName, log)
	if err != nil {
		return nil, err
	}

	if err := consumer.Subscribe(messaging.ExchangeDocumentEvents, "documents.extraction.#"); err != nil {
		return nil, err
	}

	c := &ExtractionConsumer{
		consumer: consumer,
		applier:  applier,
		logger:   log,
	}
	consumer.RegisterHandler(messaging.EventExtractionCompleted, c.HandleExtractionCompleted)

	return c, nil
}

// NewHandler creates the event handler without a broker connection
func NewHandler(applier ResultApplier, log *logger.Logger) *ExtractionConsumer {
	return &ExtractionConsumer{applier: applier, logger: log.WithComponent(component)}
}

// Start starts consuming messages
func (c *ExtractionConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

// HandleExtractionCompleted applies one result. Events that can never succeed
// (unknown package, malformed result) are dropped instead of redelivered.
func (c *ExtractionConsumer) HandleExtractionCompleted(ctx context.Context, event *messaging.Event) error {
	var data messaging.ExtractionCompletedEvent
	if err := event.UnmarshalData(&data); err != nil {
		c.logger.Error().Err(err).Str("event_id", event.ID).Msg("malformed extraction event, dropping")
		return nil
	}

	var result domain.ExtractionResult
	if err := json.Unmarshal(data.Result, &result); err != nil {
		c.logger.Error().Err(err).
			Str("event_id", event.ID).
			Str("package_id", data.PackageID).
			Msg("malformed extraction result, dropping")
		return nil
	}

	snap, err := c.applier.ApplyResult(ctx, data.PackageID, result, data.Processor)
	if err != nil {
		if isPermanent(err) {
			c.logger.Warn().Err(err).
				Str("package_id", data.PackageID).
				Str("file_id", result.FileID).
				Msg("extraction result rejected, dropping")
			return nil
		}
		return fmt.Errorf("apply extraction result: %w", err)
	}

	c.logger.Info().
		Str("package_id", data.PackageID).
		Str("file_id", result.FileID).
		Str("processor", data.Processor).
		Int("score", snap.Report.Score).
		Msg("received extraction result")
	return nil
}

func isPermanent(err error) bool {
	return errors.Is(err, apperrors.ErrNotFound) || errors.Is(err, apperrors.ErrValidation)
}
