package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/regdocs/regdocs-backend/internal/docprocessing/domain"
	"github.com/regdocs/regdocs-backend/internal/docprocessing/metrics"
	"github.com/regdocs/regdocs-backend/internal/docprocessing/processor"
	"github.com/regdocs/regdocs-backend/internal/docprocessing/storage"
	"github.com/regdocs/regdocs-backend/internal/profile"
	apperrors "github.com/regdocs/regdocs-backend/pkg/errors"
	"github.com/regdocs/regdocs-backend/pkg/logger"
	"github.com/regdocs/regdocs-backend/pkg/messaging"
)

// Recompute triggers
const (
	TriggerExtraction = "extraction"
	TriggerBroker     = "broker"
	TriggerEdit       = "edit"
	TriggerRemoval    = "removal"
)

// ResultStore persists extraction results beyond the in-memory package store
type ResultStore interface {
	Upsert(ctx context.Context, packageID string, result domain.ExtractionResult) error
	ListByPackage(ctx context.Context, packageID string) ([]domain.ExtractionResult, error)
	Delete(ctx context.Context, packageID, fileID string) error
	DeletePackage(ctx context.Context, packageID string) error
}

// AuditLog records processing events
type AuditLog interface {
	Insert(ctx context.Context, entry *domain.ProcessingAuditEntry) error
}

// EventPublisher publishes domain events
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// Snapshot is the derived view of a package: its files, results in priority
// order, the merged profile and the compliance report.
type Snapshot struct {
	PackageID string                    `json:"package_id"`
	Files     []domain.UploadedFile     `json:"files"`
	Results   []domain.ExtractionResult `json:"results"`
	Profile   profile.UserProfile       `json:"profile"`
	Report    profile.ComplianceReport  `json:"report"`
	CreatedAt time.Time                 `json:"created_at"`
	UpdatedAt time.Time                 `json:"updated_at"`
}

// Evaluation is the outcome of evaluating a set of results without a package
type Evaluation struct {
	Results []domain.ExtractionResult `json:"results"`
	Profile profile.UserProfile       `json:"profile"`
	Report  profile.ComplianceReport  `json:"report"`
}

// Service orchestrates the package lifecycle: upload -> extract -> merge -> evaluate.
// Derived views are rebuilt from the full result set on every change.
type Service struct {
	registry  *processor.Registry
	store     *storage.PackageStore
	results   ResultStore
	audit     AuditLog
	publisher EventPublisher
	metrics   *metrics.Metrics
	log       *logger.Logger

	jobs           chan job
	interCallDelay time.Duration
	now            func() time.Time
}

// Option configures optional collaborators of the service
type Option func(*Service)

// WithResultStore enables write-through persistence of results
func WithResultStore(r ResultStore) Option {
	return func(s *Service) { s.results = r }
}

// WithAuditLog enables the processing audit trail
func WithAuditLog(a AuditLog) Option {
	return func(s *Service) { s.audit = a }
}

// WithPublisher enables profile events
func WithPublisher(p EventPublisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithMetrics enables pipeline metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithInterCallDelay sets the pause between consecutive processor calls
func WithInterCallDelay(d time.Duration) Option {
	return func(s *Service) { s.interCallDelay = d }
}

// WithQueueSize bounds the number of uploads waiting for extraction
func WithQueueSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.jobs = make(chan job, n)
		}
	}
}

// WithClock overrides the clock used for timestamps and expiry checks
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new profile service
func NewService(registry *processor.Registry, store *storage.PackageStore, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		registry: registry,
		store:    store,
		log:      log,
		jobs:     make(chan job, 64),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreatePackage starts a new, empty applicant package
func (s *Service) CreatePackage(ctx context.Context) *domain.Package {
	pkg := s.store.CreatePackage()
	s.log.Info().Str("package_id", pkg.ID).Msg("package created")
	return pkg
}

// Snapshot returns the current derived view of a package.
// Packages evicted from memory are restored from the result store.
func (s *Service) Snapshot(ctx context.Context, packageID string) (*Snapshot, error) {
	pkg, err := s.load(ctx, packageID)
	if err != nil {
		return nil, err
	}
	return s.derive(pkg), nil
}

// Evaluate merges and scores an arbitrary set of results. Nothing is stored.
func (s *Service) Evaluate(results []domain.ExtractionResult) Evaluation {
	sorted := profile.SortResults(results)
	p := profile.MergeProfiles(sorted)
	return Evaluation{
		Results: sorted,
		Profile: p,
		Report:  profile.EvaluateComplianceAt(p, s.now()),
	}
}

// ApplyResult stores a result produced outside the local pipeline, e.g. by an
// external OCR worker, and recomputes the package.
func (s *Service) ApplyResult(ctx context.Context, packageID string, result domain.ExtractionResult, processorName string) (*Snapshot, error) {
	if result.FileID == "" {
		return nil, apperrors.Validation(map[string]string{"fileId": "required"})
	}
	if _, err := s.load(ctx, packageID); err != nil {
		return nil, err
	}

	if !s.store.HasFile(packageID, result.FileID) {
		err := s.store.AddFile(packageID, domain.UploadedFile{
			FileID:     result.FileID,
			FileName:   result.FileName,
			Hint:       result.DocumentType(),
			Status:     domain.FileStatusProcessing,
			UploadedAt: s.now(),
		})
		if err != nil {
			return nil, mapStoreError(err)
		}
	}

	if err := s.store.CompleteFile(packageID, result, statusOf(result)); err != nil {
		return nil, mapStoreError(err)
	}
	s.metrics.IncrementExtraction(processorName, outcomeOf(result))
	s.persist(ctx, packageID, result)

	return s.Recompute(ctx, packageID, TriggerBroker)
}

// EditResult replaces the payload of a result with user-corrected data.
// The payload type may differ from the original one.
func (s *Service) EditResult(ctx context.Context, packageID, fileID string, payload domain.DocumentPayload) (*Snapshot, error) {
	if payload == nil {
		return nil, apperrors.Validation(map[string]string{"type": "required"})
	}
	if err := processor.ValidatePayload(payload); err != nil {
		return nil, apperrors.Validation(map[string]string{string(payload.Type()): err.Error()})
	}
	if _, err := s.load(ctx, packageID); err != nil {
		return nil, err
	}

	updated, err := s.store.ReplaceResult(packageID, fileID, payload)
	if err != nil {
		return nil, mapStoreError(err)
	}
	if err := s.store.SetFileStatus(packageID, fileID, domain.FileStatusCompleted); err != nil && !errors.Is(err, storage.ErrFileNotFound) {
		return nil, mapStoreError(err)
	}
	s.persist(ctx, packageID, updated)

	return s.Recompute(ctx, packageID, TriggerEdit)
}

// RemoveFile drops a document and its result. A result still being
// extracted for the file is discarded when it arrives.
func (s *Service) RemoveFile(ctx context.Context, packageID, fileID string) (*Snapshot, error) {
	if _, err := s.load(ctx, packageID); err != nil {
		return nil, err
	}
	if err := s.store.RemoveFile(packageID, fileID); err != nil {
		return nil, mapStoreError(err)
	}
	if s.results != nil {
		if err := s.results.Delete(ctx, packageID, fileID); err != nil {
			s.log.Error().Err(err).Str("package_id", packageID).Str("file_id", fileID).Msg("failed to delete stored result")
		}
	}

	return s.Recompute(ctx, packageID, TriggerRemoval)
}

// DeletePackage discards a package and everything derived from it
func (s *Service) DeletePackage(ctx context.Context, packageID string) error {
	if _, err := s.load(ctx, packageID); err != nil {
		return err
	}
	s.store.DeletePackage(packageID)

	if s.results != nil {
		if err := s.results.DeletePackage(ctx, packageID); err != nil {
			return fmt.Errorf("delete stored results: %w", err)
		}
	}
	s.publish(ctx, messaging.EventPackageDeleted, messaging.PackageDeletedEvent{PackageID: packageID})
	s.log.Info().Str("package_id", packageID).Msg("package deleted")
	return nil
}

// Recompute rebuilds the profile and compliance report of a package from its
// complete current result set and announces the outcome.
func (s *Service) Recompute(ctx context.Context, packageID, trigger string) (*Snapshot, error) {
	pkg, err := s.store.GetPackage(packageID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	snap := s.derive(pkg)

	s.metrics.ObserveRecompute(trigger, string(snap.Report.Status), snap.Report.Score)
	s.publish(ctx, messaging.EventProfileRecomputed, recomputedEvent(snap, trigger))

	s.log.Debug().
		Str("package_id", packageID).
		Str("trigger", trigger).
		Int("score", snap.Report.Score).
		Str("status", string(snap.Report.Status)).
		Msg("profile recomputed")
	return snap, nil
}

func (s *Service) derive(pkg *domain.Package) *Snapshot {
	sorted := profile.SortResults(pkg.Results)
	p := profile.MergeProfiles(sorted)
	return &Snapshot{
		PackageID: pkg.ID,
		Files:     pkg.Files,
		Results:   sorted,
		Profile:   p,
		Report:    profile.EvaluateComplianceAt(p, s.now()),
		CreatedAt: pkg.CreatedAt,
		UpdatedAt: pkg.UpdatedAt,
	}
}

// load returns the package from memory, falling back to the result store
func (s *Service) load(ctx context.Context, packageID string) (*domain.Package, error) {
	pkg, err := s.store.GetPackage(packageID)
	if err == nil {
		return pkg, nil
	}
	if !errors.Is(err, storage.ErrPackageNotFound) || s.results == nil {
		return nil, mapStoreError(err)
	}

	results, err := s.results.ListByPackage(ctx, packageID)
	if err != nil {
		return nil, fmt.Errorf("restore package: %w", err)
	}
	if len(results) == 0 {
		return nil, apperrors.NotFound("package")
	}

	now := s.now()
	files := make([]domain.UploadedFile, len(results))
	for i, r := range results {
		files[i] = domain.UploadedFile{
			FileID:     r.FileID,
			FileName:   r.FileName,
			Hint:       r.DocumentType(),
			Status:     statusOf(r),
			UploadedAt: now,
		}
	}
	restored := s.store.Restore(&domain.Package{
		ID:        packageID,
		Files:     files,
		Results:   results,
		CreatedAt: now,
	})
	s.log.Info().Str("package_id", packageID).Int("results", len(results)).Msg("package restored from database")
	return restored, nil
}

func (s *Service) persist(ctx context.Context, packageID string, result domain.ExtractionResult) {
	if s.results == nil {
		return
	}
	if err := s.results.Upsert(ctx, packageID, result); err != nil {
		s.log.Error().Err(err).
			Str("package_id", packageID).
			Str("file_id", result.FileID).
			Msg("failed to persist extraction result")
	}
}

func (s *Service) publish(ctx context.Context, eventType string, data interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, eventType, data); err != nil {
		s.log.Warn().Err(err).Str("event_type", eventType).Msg("failed to publish event")
	}
}

func recomputedEvent(snap *Snapshot, trigger string) messaging.ProfileRecomputedEvent {
	failed := 0
	for _, r := range snap.Results {
		if r.Error != "" {
			failed++
		}
	}
	return messaging.ProfileRecomputedEvent{
		PackageID:     snap.PackageID,
		FullName:      snap.Profile.FullName,
		Score:         snap.Report.Score,
		Status:        string(snap.Report.Status),
		Summary:       snap.Report.Summary,
		DocumentCount: len(snap.Results),
		FailedCount:   failed,
		Trigger:       trigger,
	}
}

func statusOf(r domain.ExtractionResult) domain.FileStatus {
	if r.Error != "" {
		return domain.FileStatusFailed
	}
	return domain.FileStatusCompleted
}

func outcomeOf(r domain.ExtractionResult) string {
	if r.Error != "" {
		return "failure"
	}
	return "success"
}

func mapStoreError(err error) error {
	switch {
	case errors.Is(err, storage.ErrPackageNotFound):
		return apperrors.NotFound("package")
	case errors.Is(err, storage.ErrFileNotFound):
		return apperrors.NotFound("document")
	default:
		return err
	}
}
