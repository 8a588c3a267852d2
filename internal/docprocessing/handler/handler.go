package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/regdocs/regdocs-backend/internal/docprocessing/domain"
	"github.com/regdocs/regdocs-backend/internal/docprocessing/service"
	"github.com/regdocs/regdocs-backend/internal/profile"
	apperrors "github.com/regdocs/regdocs-backend/pkg/errors"
	"github.com/regdocs/regdocs-backend/pkg/httputil"
	"github.com/regdocs/regdocs-backend/pkg/logger"
	"github.com/regdocs/regdocs-backend/pkg/messaging"
)

// DefaultMaxUploadSize caps a single uploaded scan
const DefaultMaxUploadSize = 20 << 20 // 20MB

// maxJSONBody caps edit and evaluate request bodies
const maxJSONBody = 1 << 20

// AuditLister reads the processing audit trail of a package
type AuditLister interface {
	ListByPackage(ctx context.Context, packageID string) ([]domain.ProcessingAuditEntry, error)
}

// Handler handles HTTP requests for applicant packages and profiles
type Handler struct {
	service       *service.Service
	audit         AuditLister
	maxUploadSize int64
	log           *logger.Logger
}

// NewHandler creates a new profile handler. audit may be nil when no
// database is configured.
func NewHandler(svc *service.Service, audit AuditLister, maxUploadSize int64, log *logger.Logger) *Handler {
	if maxUploadSize <= 0 {
		maxUploadSize = DefaultMaxUploadSize
	}
	return &Handler{
		service:       svc,
		audit:         audit,
		maxUploadSize: maxUploadSize,
		log:           log,
	}
}

// Routes registers the API endpoints on r
func (h *Handler) Routes(r chi.Router) {
	r.Route("/packages", func(r chi.Router) {
		r.Post("/", h.CreatePackage)
		r.Route("/{packageId}", func(r chi.Router) {
			r.Get("/", h.GetPackage)
			r.Delete("/", h.DeletePackage)
			r.Post("/documents", h.Upload)
			r.Put("/documents/{fileId}", h.EditDocument)
			r.Delete("/documents/{fileId}", h.RemoveDocument)
			r.Get("/profile", h.GetProfile)
			r.Get("/compliance", h.GetCompliance)
			r.Get("/template-fields", h.GetTemplateFields)
			r.Get("/audit", h.GetAudit)
		})
	})
	r.Post("/profile/evaluate", h.Evaluate)
	r.Post("/validate/snils", h.ValidateSnils)
}

// CreatePackage handles POST /packages
func (h *Handler) CreatePackage(w http.ResponseWriter, r *http.Request) {
	httputil.Created(w, h.service.CreatePackage(r.Context()))
}

// GetPackage handles GET /packages/{packageId}
// Returns files, results in priority order, the merged profile and the report.
func (h *Handler) GetPackage(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Snapshot(r.Context(), chi.URLParam(r, "packageId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, localizeSnapshot(r.Context(), snap))
}

// DeletePackage handles DELETE /packages/{packageId}
func (h *Handler) DeletePackage(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeletePackage(r.Context(), chi.URLParam(r, "packageId")); err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.NoContent(w)
}

// Upload handles POST /packages/{packageId}/documents
// Accepts multipart form with:
// - file: the document scan (JPEG/PNG) or a plain-text file
// - document_type: optional hint, one of passport, diploma, qualification, snils, raw
//
// The file is queued for extraction and the response returns immediately.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)

	// Keep the whole form in memory: scans must never touch the disk
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.ErrorLocalized(w, r, apperrors.PayloadTooLarge(h.maxUploadSize))
			return
		}
		httputil.ErrorLocalized(w, r, apperrors.BadRequest("invalid multipart form"))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.ErrorLocalized(w, r, apperrors.Validation(map[string]string{"file": "this field is required"}))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	ctx := messaging.WithCorrelationID(r.Context(), httputil.GetRequestID(r.Context()))
	uploaded, err := h.service.Upload(ctx,
		chi.URLParam(r, "packageId"),
		header.Filename,
		data,
		domain.DocumentType(r.FormValue("document_type")),
		httputil.GetUserID(r.Context()),
	)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusAccepted, uploaded)
}

// EditDocument handles PUT /packages/{packageId}/documents/{fileId}
// The body is a typed payload, e.g. {"type":"diploma","lastName":"..."}.
func (h *Handler) EditDocument(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.ErrorLocalized(w, r, apperrors.PayloadTooLarge(maxJSONBody))
			return
		}
		h.fail(w, r, err)
		return
	}

	payload, err := domain.UnmarshalPayload(body)
	if err != nil {
		httputil.ErrorLocalized(w, r, apperrors.Validation(map[string]string{"type": err.Error()}))
		return
	}

	snap, err := h.service.EditResult(r.Context(), chi.URLParam(r, "packageId"), chi.URLParam(r, "fileId"), payload)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, localizeSnapshot(r.Context(), snap))
}

// RemoveDocument handles DELETE /packages/{packageId}/documents/{fileId}
func (h *Handler) RemoveDocument(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.RemoveFile(r.Context(), chi.URLParam(r, "packageId"), chi.URLParam(r, "fileId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, localizeSnapshot(r.Context(), snap))
}

// GetProfile handles GET /packages/{packageId}/profile
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Snapshot(r.Context(), chi.URLParam(r, "packageId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, snap.Profile)
}

// GetCompliance handles GET /packages/{packageId}/compliance
// Labels, messages and the summary follow the request locale.
func (h *Handler) GetCompliance(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Snapshot(r.Context(), chi.URLParam(r, "packageId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, localizeReport(r.Context(), snap.Report))
}

// GetTemplateFields handles GET /packages/{packageId}/template-fields
func (h *Handler) GetTemplateFields(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Snapshot(r.Context(), chi.URLParam(r, "packageId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, profile.TemplateFields(snap.Profile))
}

// GetAudit handles GET /packages/{packageId}/audit
func (h *Handler) GetAudit(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		httputil.ErrorLocalized(w, r, apperrors.Unavailable("audit trail requires a database"))
		return
	}
	entries, err := h.audit.ListByPackage(r.Context(), chi.URLParam(r, "packageId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if entries == nil {
		entries = []domain.ProcessingAuditEntry{}
	}
	httputil.JSON(w, http.StatusOK, entries)
}

// EvaluateRequest is the body of POST /profile/evaluate
type EvaluateRequest struct {
	Results []domain.ExtractionResult `json:"results" validate:"max=100"`
}

// Evaluate handles POST /profile/evaluate
// Merges and scores the posted results without storing anything.
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)

	var req EvaluateRequest
	if err := httputil.DecodeJSONLocalized(r, &req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	eval := h.service.Evaluate(req.Results)
	eval.Report = localizeReport(r.Context(), eval.Report)
	httputil.JSON(w, http.StatusOK, eval)
}

// SnilsRequest is the body of POST /validate/snils
type SnilsRequest struct {
	Snils string `json:"snils" validate:"required,max=32"`
}

// ValidateSnils handles POST /validate/snils
// The checksum is advisory and does not affect the compliance report.
func (h *Handler) ValidateSnils(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)

	var req SnilsRequest
	if err := httputil.DecodeJSONLocalized(r, &req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.ErrorLocalized(w, r, err)
		return
	}

	httputil.JSON(w, http.StatusOK, localizeSnilsCheck(r.Context(), req.Snils, domain.CheckSnils(req.Snils)))
}

// fail writes err as a localized response. Unexpected errors are logged.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		h.log.WithRequestID(httputil.GetRequestID(r.Context())).
			WithUserID(httputil.GetUserID(r.Context())).
			Error().Err(err).
			Str("path", r.URL.Path).
			Msg("request failed")
	}
	httputil.ErrorLocalized(w, r, err)
}
