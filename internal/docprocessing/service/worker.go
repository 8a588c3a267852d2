package service

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/regdocs/regdocs-backend/internal/docprocessing/domain"
	"github.com/regdocs/regdocs-backend/internal/docprocessing/storage"
	apperrors "github.com/regdocs/regdocs-backend/pkg/errors"
	"github.com/regdocs/regdocs-backend/pkg/messaging"
)

// workerComponent tags extraction worker log lines
const workerComponent = "extraction-worker"

// job is one uploaded file waiting for extraction.
// The worker owns data and zeroes it when done.
type job struct {
	packageID     string
	file          domain.UploadedFile
	data          []byte
	requestedBy   string
	correlationID string
}

// Upload registers a file in the package and queues it for extraction.
// The caller hands over ownership of data.
func (s *Service) Upload(ctx context.Context, packageID, fileName string, data []byte, hint domain.DocumentType, requestedBy string) (*domain.UploadedFile, error) {
	if len(data) == 0 {
		storage.ZeroBytes(data)
		return nil, apperrors.Validation(map[string]string{"file": "empty"})
	}
	if hint != "" && !hint.Valid() {
		storage.ZeroBytes(data)
		return nil, apperrors.Validation(map[string]string{"document_type": "unknown document type"})
	}
	if _, err := s.load(ctx, packageID); err != nil {
		storage.ZeroBytes(data)
		return nil, err
	}

	file := domain.UploadedFile{
		FileID:     storage.GenerateID(),
		FileName:   fileName,
		Size:       len(data),
		Hint:       hint,
		Status:     domain.FileStatusPending,
		UploadedAt: s.now(),
	}
	if err := s.store.AddFile(packageID, file); err != nil {
		storage.ZeroBytes(data)
		return nil, mapStoreError(err)
	}

	j := job{
		packageID:     packageID,
		file:          file,
		data:          data,
		requestedBy:   requestedBy,
		correlationID: messaging.CorrelationID(ctx),
	}
	select {
	case s.jobs <- j:
	default:
		_ = s.store.RemoveFile(packageID, file.FileID)
		storage.ZeroBytes(data)
		return nil, apperrors.Unavailable("extraction queue is full")
	}
	s.metrics.SetQueueDepth(len(s.jobs))

	s.log.Info().
		Str("package_id", packageID).
		Str("file_id", file.FileID).
		Str("hint", string(hint)).
		Int("size", file.Size).
		Msg("document queued for extraction")
	return &file, nil
}

// Run processes queued uploads one at a time until ctx is cancelled.
// Consecutive processor calls are spaced by the inter-call delay so the
// vision backend is never hit concurrently.
func (s *Service) Run(ctx context.Context) error {
	s.log.WithComponent(workerComponent).Info().Dur("inter_call_delay", s.interCallDelay).Msg("extraction worker started")
	var lastCall time.Time
	for {
		select {
		case <-ctx.Done():
			s.drain()
			return nil
		case j := <-s.jobs:
			s.metrics.SetQueueDepth(len(s.jobs))
			if !lastCall.IsZero() {
				if err := sleep(ctx, s.interCallDelay-time.Since(lastCall)); err != nil {
					storage.ZeroBytes(j.data)
					s.drain()
					return nil
				}
			}
			s.process(ctx, j)
			lastCall = time.Now()
		}
	}
}

// drain zeroes the bytes of jobs that will never run
func (s *Service) drain() {
	for {
		select {
		case j := <-s.jobs:
			storage.ZeroBytes(j.data)
		default:
			s.metrics.SetQueueDepth(0)
			return
		}
	}
}

func (s *Service) process(ctx context.Context, j job) {
	log := s.log.WithComponent(workerComponent).WithPackageID(j.packageID)
	if j.correlationID != "" {
		ctx = messaging.WithCorrelationID(ctx, j.correlationID)
	}

	if err := s.store.SetFileStatus(j.packageID, j.file.FileID, domain.FileStatusProcessing); err != nil {
		storage.ZeroBytes(j.data)
		s.metrics.IncrementExtraction("none", "discarded")
		log.Info().Str("file_id", j.file.FileID).Msg("file removed before extraction, skipping")
		return
	}

	start := time.Now()
	payload, procName, err := s.extract(ctx, j)

	// Uploaded scans must not outlive extraction
	storage.ZeroBytes(j.data)
	imageDeletedAt := s.now()
	duration := time.Since(start)

	if ctx.Err() != nil {
		log.Warn().Str("file_id", j.file.FileID).Msg("extraction interrupted by shutdown")
		return
	}

	result := domain.ExtractionResult{FileID: j.file.FileID, FileName: j.file.FileName}
	if err != nil {
		result.Error = err.Error()
	} else {
		result.Data = payload
	}

	if err := s.store.CompleteFile(j.packageID, result, statusOf(result)); err != nil {
		s.metrics.IncrementExtraction(procName, "discarded")
		log.Info().Str("file_id", j.file.FileID).Msg("file removed during extraction, result discarded")
		return
	}
	s.persist(ctx, j.packageID, result)
	s.writeAudit(ctx, j, result, procName, duration, imageDeletedAt)

	log.Info().
		Str("file_id", j.file.FileID).
		Str("processor", procName).
		Str("document_type", string(result.DocumentType())).
		Bool("succeeded", result.Error == "").
		Int64("duration_ms", duration.Milliseconds()).
		Msg("document extraction finished")

	if _, err := s.Recompute(ctx, j.packageID, TriggerExtraction); err != nil {
		log.Warn().Err(err).Msg("recompute after extraction failed")
	}
}

// extract tries every capable processor in registry order until one succeeds.
// When all of them fail the first error is reported: later processors are
// fallbacks and their rejections would hide the actual cause.
func (s *Service) extract(ctx context.Context, j job) (domain.DocumentPayload, string, error) {
	processors := s.registry.FindProcessors(j.file.Hint)
	if len(processors) == 0 {
		return nil, "none", fmt.Errorf("no processor available for document type: %s", j.file.Hint)
	}

	var firstErr error
	firstName := ""
	for _, proc := range processors {
		start := time.Now()
		payload, err := proc.Process(ctx, j.data, j.file.Hint)
		s.metrics.ObserveExtractionLatency(proc.Name(), time.Since(start))
		if err == nil {
			s.metrics.IncrementExtraction(proc.Name(), "success")
			return payload, proc.Name(), nil
		}

		s.metrics.IncrementExtraction(proc.Name(), "failure")
		s.log.Warn().Err(err).
			Str("file_id", j.file.FileID).
			Str("processor", proc.Name()).
			Msg("processor failed, trying next")
		if firstErr == nil {
			firstErr, firstName = err, proc.Name()
		}
		if ctx.Err() != nil {
			break
		}
	}
	return nil, firstName, firstErr
}

func (s *Service) writeAudit(ctx context.Context, j job, result domain.ExtractionResult, procName string, duration time.Duration, imageDeletedAt time.Time) {
	if s.audit == nil {
		return
	}
	docType := result.DocumentType()
	if docType == "" {
		docType = j.file.Hint
	}
	entry := &domain.ProcessingAuditEntry{
		PackageID:            j.packageID,
		FileID:               j.file.FileID,
		DocumentType:         string(docType),
		Processor:            procName,
		RequestedBy:          j.requestedBy,
		Succeeded:            result.Error == "",
		FieldsExtracted:      extractedFields(result.Data),
		ProcessingDurationMs: duration.Milliseconds(),
		ImageDeletedAt:       imageDeletedAt,
	}
	if err := s.audit.Insert(ctx, entry); err != nil {
		s.log.Error().Err(err).Str("file_id", j.file.FileID).Msg("failed to write document processing audit log")
	}
}

// extractedFields lists the names of non-empty payload fields, never their values
func extractedFields(p domain.DocumentPayload) []string {
	if p == nil {
		return []string{}
	}
	raw, err := domain.MarshalPayload(p)
	if err != nil {
		return []string{}
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return []string{}
	}

	keys := make([]string, 0, len(fields))
	for k, v := range fields {
		if k == "type" || v == nil || v == "" {
			continue
		}
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
