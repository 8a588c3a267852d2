package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/regdocs/regdocs-backend/internal/docprocessing/domain"
	"github.com/regdocs/regdocs-backend/pkg/database"
)

// auditRow mirrors domain.ProcessingAuditEntry with a scannable array column
type auditRow struct {
	ID                   string         `db:"id"`
	PackageID            string         `db:"package_id"`
	FileID               string         `db:"file_id"`
	DocumentType         string         `db:"document_type"`
	Processor            string         `db:"processor"`
	RequestedBy          string         `db:"requested_by"`
	Succeeded            bool           `db:"succeeded"`
	FieldsExtracted      pq.StringArray `db:"fields_extracted"`
	ProcessingDurationMs int64          `db:"processing_duration_ms"`
	ImageDeletedAt       time.Time      `db:"image_deleted_at"`
	CreatedAt            time.Time      `db:"created_at"`
}

// AuditRepository records every document processing event.
// Only metadata is stored, never document contents.
type AuditRepository struct {
	db *database.DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *database.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Insert writes one audit entry, assigning its ID and creation time
func (r *AuditRepository) Insert(ctx context.Context, entry *domain.ProcessingAuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	query := `
		INSERT INTO document_processing_audit (
			id, package_id, file_id, document_type, processor, requested_by,
			succeeded, fields_extracted, processing_duration_ms, image_deleted_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		entry.ID, entry.PackageID, entry.FileID, entry.DocumentType, entry.Processor,
		entry.RequestedBy, entry.Succeeded, pq.Array(entry.FieldsExtracted),
		entry.ProcessingDurationMs, entry.ImageDeletedAt,
	).Scan(&entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// ListByPackage returns the audit trail of a package, oldest first
func (r *AuditRepository) ListByPackage(ctx context.Context, packageID string) ([]domain.ProcessingAuditEntry, error) {
	var rows []auditRow
	query := `
		SELECT id, package_id, file_id, document_type, processor, requested_by, succeeded,
			fields_extracted, processing_duration_ms, image_deleted_at, created_at
		FROM document_processing_audit
		WHERE package_id = $1
		ORDER BY created_at, id
	`
	if err := r.db.SelectContext(ctx, &rows, query, packageID); err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}

	entries := make([]domain.ProcessingAuditEntry, len(rows))
	for i, row := range rows {
		entries[i] = domain.ProcessingAuditEntry{
			ID:                   row.ID,
			PackageID:            row.PackageID,
			FileID:               row.FileID,
			DocumentType:         row.DocumentType,
			Processor:            row.Processor,
			RequestedBy:          row.RequestedBy,
			Succeeded:            row.Succeeded,
			FieldsExtracted:      []string(row.FieldsExtracted),
			ProcessingDurationMs: row.ProcessingDurationMs,
			ImageDeletedAt:       row.ImageDeletedAt,
			CreatedAt:            row.CreatedAt,
		}
	}
	return entries, nil
}
