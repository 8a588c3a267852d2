package repository

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"time"

	"github.com/regdocs/regdocs-backend/internal/docprocessing/domain"
	"github.com/regdocs/regdocs-backend/pkg/database"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrations returns the schema migrations for the profile service
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// resultRow is the stored form of an ExtractionResult
type resultRow struct {
	PackageID    string         `db:"package_id"`
	FileID       string         `db:"file_id"`
	FileName     string         `db:"file_name"`
	DocumentType sql.NullString `db:"document_type"`
	Data         []byte         `db:"data"`
	Error        string         `db:"error"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func (r resultRow) toDomain() (domain.ExtractionResult, error) {
	payload, err := domain.UnmarshalPayload(r.Data)
	if err != nil {
		return domain.ExtractionResult{}, fmt.Errorf("result %s/%s: %w", r.PackageID, r.FileID, err)
	}
	return domain.ExtractionResult{
		FileID:   r.FileID,
		FileName: r.FileName,
		Data:     payload,
		Error:    r.Error,
	}, nil
}

// ResultRepository persists extraction results so packages survive restarts
type ResultRepository struct {
	db *database.DB
}

// NewResultRepository creates a new result repository
func NewResultRepository(db *database.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// Upsert stores a result, replacing any earlier result for the same file
func (r *ResultRepository) Upsert(ctx context.Context, packageID string, result domain.ExtractionResult) error {
	var (
		docType sql.NullString
		data    any
	)
	if result.Data != nil {
		raw, err := domain.MarshalPayload(result.Data)
		if err != nil {
			return fmt.Errorf("encode payload: %w", err)
		}
		docType = sql.NullString{String: string(result.Data.Type()), Valid: true}
		data = raw
	}

	query := `
		INSERT INTO extraction_results (package_id, file_id, file_name, document_type, data, error)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (package_id, file_id) DO UPDATE SET
			file_name = EXCLUDED.file_name,
			document_type = EXCLUDED.document_type,
			data = EXCLUDED.data,
			error = EXCLUDED.error,
			updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, query,
		packageID, result.FileID, result.FileName, docType, data, result.Error,
	)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return fmt.Errorf("upsert extraction result: %w", err)
	}
	return nil
}

// ListByPackage returns the stored results of a package in insertion order
func (r *ResultRepository) ListByPackage(ctx context.Context, packageID string) ([]domain.ExtractionResult, error) {
	var rows []resultRow
	query := `
		SELECT package_id, file_id, file_name, document_type, data, error, created_at, updated_at
		FROM extraction_results
		WHERE package_id = $1
		ORDER BY created_at, file_id
	`
	if err := r.db.SelectContext(ctx, &rows, query, packageID); err != nil {
		return nil, fmt.Errorf("list extraction results: %w", err)
	}

	results := make([]domain.ExtractionResult, 0, len(rows))
	for _, row := range rows {
		res, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

// Delete removes the result of a single file
func (r *ResultRepository) Delete(ctx context.Context, packageID, fileID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM extraction_results WHERE package_id = $1 AND file_id = $2`,
		packageID, fileID,
	)
	if err != nil {
		return fmt.Errorf("delete extraction result: %w", err)
	}
	return nil
}

// DeletePackage removes every result of a package
func (r *ResultRepository) DeletePackage(ctx context.Context, packageID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM extraction_results WHERE package_id = $1`, packageID)
	if err != nil {
		return fmt.Errorf("delete package results: %w", err)
	}
	return nil
}
