package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/regdocs/regdocs-backend/internal/docprocessing/domain"
	"github.com/regdocs/regdocs-backend/internal/docprocessing/handler"
	"github.com/regdocs/regdocs-backend/internal/docprocessing/processor"
	"github.com/regdocs/regdocs-backend/internal/docprocessing/service"
	"github.com/regdocs/regdocs-backend/internal/docprocessing/storage"
	"github.com/regdocs/regdocs-backend/pkg/httputil"
	"github.com/regdocs/regdocs-backend/pkg/i18n"
	"github.com/regdocs/regdocs-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProcessor extracts a passport from every upload
type stubProcessor struct{}

func (stubProcessor) Name() string                         { return "stub" }
func (stubProcessor) CanProcess(domain.DocumentType) bool { return true }
func (stubProcessor) Process(context.Context, []byte, domain.DocumentType) (domain.DocumentPayload, error) {
	return domain.PassportPayload{LastName: "Иванов", FirstName: "Иван", MiddleName: "Иванович"}, nil
}

type stubAudit struct{ entries []domain.ProcessingAuditEntry }

func (a stubAudit) ListByPackage(context.Context, string) ([]domain.ProcessingAuditEntry, error) {
	return a.entries, nil
}

type failingAudit struct{}

func (failingAudit) ListByPackage(context.Context, string) ([]domain.ProcessingAuditEntry, error) {
	return nil, errors.New("connection reset by peer")
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

type apiClient struct {
	t      *testing.T
	server *httptest.Server
}

func newAPI(t *testing.T, audit handler.AuditLister, maxUpload int64) *apiClient {
	t.Helper()
	store := storage.NewPackageStore(0)
	t.Cleanup(store.Close)

	svc := service.NewService(processor.NewRegistry(stubProcessor{}), store, logger.Nop(),
		service.WithClock(func() time.Time { return time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC) }))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = svc.Run(ctx)
	}()

	r := chi.NewRouter()
	r.Use(httputil.RequestID)
	r.Use(i18n.Middleware)
	r.Route("/api/v1", handler.NewHandler(svc, audit, maxUpload, logger.Nop()).Routes)

	server := httptest.NewServer(r)
	t.Cleanup(func() {
		server.Close()
		cancel()
		<-done
	})
	return &apiClient{t: t, server: server}
}

func (c *apiClient) do(method, path, contentType string, body []byte, headers ...string) (int, envelope) {
	c.t.Helper()
	req, err := http.NewRequest(method, c.server.URL+"/api/v1"+path, bytes.NewReader(body))
	require.NoError(c.t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	var env envelope
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(c.t, json.NewDecoder(resp.Body).Decode(&env))
	}
	return resp.StatusCode, env
}

func (c *apiClient) createPackage() string {
	c.t.Helper()
	code, env := c.do(http.MethodPost, "/packages", "", nil)
	require.Equal(c.t, http.StatusCreated, code)
	var pkg domain.Package
	require.NoError(c.t, json.Unmarshal(env.Data, &pkg))
	return pkg.ID
}

func (c *apiClient) upload(pkgID, fileName string, content []byte, hint string) (int, envelope) {
	c.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if hint != "" {
		require.NoError(c.t, mw.WriteField("document_type", hint))
	}
	if content != nil {
		fw, err := mw.CreateFormFile("file", fileName)
		require.NoError(c.t, err)
		_, err = fw.Write(content)
		require.NoError(c.t, err)
	}
	require.NoError(c.t, mw.Close())
	return c.do(http.MethodPost, "/packages/"+pkgID+"/documents", mw.FormDataContentType(), buf.Bytes())
}

type checkJSON struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Message string `json:"message"`
}

type reportJSON struct {
	Score   int         `json:"score"`
	Status  string      `json:"status"`
	Summary string      `json:"summary"`
	Checks  []checkJSON `json:"checks"`
}

type snapshotJSON struct {
	PackageID string                `json:"package_id"`
	Files     []domain.UploadedFile `json:"files"`
	Results   []json.RawMessage     `json:"results"`
	Profile   struct {
		FullName string `json:"full_name"`
	} `json:"profile"`
	Report reportJSON `json:"report"`
}

func (c *apiClient) snapshot(pkgID string, headers ...string) snapshotJSON {
	c.t.Helper()
	code, env := c.do(http.MethodGet, "/packages/"+pkgID, "", nil, headers...)
	require.Equal(c.t, http.StatusOK, code)
	var snap snapshotJSON
	require.NoError(c.t, json.Unmarshal(env.Data, &snap))
	return snap
}

func TestHandler_PackageLifecycle(t *testing.T) {
	api := newAPI(t, nil, 0)
	pkgID := api.createPackage()

	snap := api.snapshot(pkgID)
	assert.Equal(t, pkgID, snap.PackageID)
	assert.Equal(t, "unknown candidate", snap.Profile.FullName)
	assert.Equal(t, 0, snap.Report.Score)
	assert.Equal(t, "upload documents to begin verification", snap.Report.Summary)

	code, env := api.upload(pkgID, "passport.jpg", []byte("\xff\xd8\xff scan"), "passport")
	require.Equal(t, http.StatusAccepted, code)
	var file domain.UploadedFile
	require.NoError(t, json.Unmarshal(env.Data, &file))
	assert.Equal(t, "passport.jpg", file.FileName)
	assert.Equal(t, domain.DocumentTypePassport, file.Hint)

	require.Eventually(t, func() bool {
		s := api.snapshot(pkgID)
		return len(s.Files) == 1 && s.Files[0].Status == domain.FileStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	snap = api.snapshot(pkgID)
	assert.Equal(t, "Иванов Иван Иванович", snap.Profile.FullName)
	require.Len(t, snap.Results, 1)

	code, env = api.do(http.MethodGet, "/packages/"+pkgID+"/template-fields", "", nil)
	require.Equal(t, http.StatusOK, code)
	var fields map[string]string
	require.NoError(t, json.Unmarshal(env.Data, &fields))
	assert.Equal(t, "Иванов Иван Иванович", fields["full_name"])
	assert.Equal(t, "Иванов", fields["passport_last_name"])

	code, _ = api.do(http.MethodDelete, "/packages/"+pkgID, "", nil)
	assert.Equal(t, http.StatusNoContent, code)
	code, _ = api.do(http.MethodGet, "/packages/"+pkgID, "", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestHandler_EditAndRemoveDocument(t *testing.T) {
	api := newAPI(t, nil, 0)
	pkgID := api.createPackage()

	_, env := api.upload(pkgID, "scan.jpg", []byte("scan"), "")
	var file domain.UploadedFile
	require.NoError(t, json.Unmarshal(env.Data, &file))
	require.Eventually(t, func() bool {
		return len(api.snapshot(pkgID).Results) == 1
	}, 2*time.Second, 10*time.Millisecond)

	body := []byte(`{"type":"diploma","lastName":"Петрова","firstName":"Анна"}`)
	code, env := api.do(http.MethodPut, "/packages/"+pkgID+"/documents/"+file.FileID, "application/json", body)
	require.Equal(t, http.StatusOK, code)
	var snap snapshotJSON
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	assert.Equal(t, "Петрова Анна", snap.Profile.FullName)
	assert.Empty(t, snap.Files[0].Hint, "edits keep the original upload hint")

	code, env = api.do(http.MethodPut, "/packages/"+pkgID+"/documents/"+file.FileID, "application/json", []byte(`{"type":"drivers_license"}`))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	code, env = api.do(http.MethodDelete, "/packages/"+pkgID+"/documents/"+file.FileID, "", nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	assert.Empty(t, snap.Results)

	code, env = api.do(http.MethodDelete, "/packages/"+pkgID+"/documents/"+file.FileID, "", nil, "Accept-Language", "ru")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "документ: не найдено", env.Error.Message)
}

func TestHandler_UploadErrors(t *testing.T) {
	api := newAPI(t, nil, 1024)
	pkgID := api.createPackage()

	code, env := api.upload(pkgID, "", nil, "passport")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	code, env = api.upload(pkgID, "big.jpg", bytes.Repeat([]byte("x"), 8192), "")
	assert.Equal(t, http.StatusRequestEntityTooLarge, code)
	assert.Equal(t, "PAYLOAD_TOO_LARGE", env.Error.Code)

	code, env = api.upload(pkgID, "x.jpg", []byte("x"), "drivers_license")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "unknown document type", env.Error.Details["document_type"])

	code, env = api.upload("does-not-exist", "x.jpg", []byte("x"), "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestHandler_ComplianceIsLocalized(t *testing.T) {
	api := newAPI(t, nil, 0)
	pkgID := api.createPackage()

	code, env := api.do(http.MethodGet, "/packages/"+pkgID+"/compliance", "", nil, "Accept-Language", "ru-RU,ru;q=0.9")
	require.Equal(t, http.StatusOK, code)

	var report reportJSON
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, "загрузите документы, чтобы начать проверку", report.Summary)
	require.NotEmpty(t, report.Checks)
	assert.Equal(t, "passport", report.Checks[0].ID)
	assert.Equal(t, "Паспорт", report.Checks[0].Label)

	code, env = api.do(http.MethodGet, "/packages/"+pkgID+"/compliance?lang=en", "", nil, "Accept-Language", "ru")
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &report))
	assert.Equal(t, "Passport", report.Checks[0].Label)
	assert.Equal(t, "passport is missing", report.Checks[0].Message)
}

func TestHandler_Evaluate(t *testing.T) {
	api := newAPI(t, nil, 0)

	body := []byte(`{"results":[
		{"fileId":"d","fileName":"d.jpg","data":{"type":"diploma","lastName":"Смирнов","firstName":"Олег"}},
		{"fileId":"p","fileName":"p.jpg","data":{"type":"passport","lastName":"Смирнов","firstName":"Олег"}},
		{"fileId":"x","fileName":"x.jpg","data":null,"error":"timeout"}
	]}`)
	code, env := api.do(http.MethodPost, "/profile/evaluate", "application/json", body)
	require.Equal(t, http.StatusOK, code)

	var eval struct {
		Results []struct {
			FileID string `json:"fileId"`
		} `json:"results"`
		Profile struct {
			FullName string `json:"full_name"`
		} `json:"profile"`
		Report struct {
			Status string `json:"status"`
		} `json:"report"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &eval))
	require.Len(t, eval.Results, 3)
	assert.Equal(t, "p", eval.Results[0].FileID)
	assert.Equal(t, "d", eval.Results[1].FileID)
	assert.Equal(t, "Смирнов Олег", eval.Profile.FullName)
	assert.Equal(t, "error", eval.Report.Status)

	code, env = api.do(http.MethodPost, "/profile/evaluate", "application/json", []byte(`{"results":[{"fileId":"a","data":{"lastName":"x"}}]}`))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "BAD_REQUEST", env.Error.Code)
}

func TestHandler_ValidateSnils(t *testing.T) {
	api := newAPI(t, nil, 0)

	tests := []struct {
		name      string
		body      string
		lang      string
		wantCode  int
		valid     bool
		message   string
		formatted string
	}{
		{name: "valid", body: `{"snils":"11223344595"}`, wantCode: http.StatusOK, valid: true, formatted: "112-233-445 95"},
		{name: "bad checksum", body: `{"snils":"112-233-445 96"}`, lang: "ru", wantCode: http.StatusOK, message: "Неверная контрольная сумма СНИЛС"},
		{name: "too short", body: `{"snils":"123"}`, lang: "en", wantCode: http.StatusOK, message: "SNILS must contain exactly 11 digits"},
		{name: "missing", body: `{}`, wantCode: http.StatusBadRequest},
		{name: "not json", body: `snils`, wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var headers []string
			if tt.lang != "" {
				headers = []string{"Accept-Language", tt.lang}
			}
			code, env := api.do(http.MethodPost, "/validate/snils", "application/json", []byte(tt.body), headers...)
			require.Equal(t, tt.wantCode, code)
			if code != http.StatusOK {
				return
			}

			var res domain.SnilsCheckResult
			require.NoError(t, json.Unmarshal(env.Data, &res))
			assert.Equal(t, tt.valid, res.Valid)
			assert.Equal(t, tt.formatted, res.Formatted)
			assert.Equal(t, tt.message, res.Message)
		})
	}
}

func TestHandler_Audit(t *testing.T) {
	code, env := newAPI(t, nil, 0).do(http.MethodGet, "/packages/any/audit", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "SERVICE_UNAVAILABLE", env.Error.Code)

	audit := stubAudit{entries: []domain.ProcessingAuditEntry{{ID: "a1", PackageID: "pkg", Processor: "vlm", Succeeded: true}}}
	code, env = newAPI(t, audit, 0).do(http.MethodGet, "/packages/pkg/audit", "", nil)
	require.Equal(t, http.StatusOK, code)
	var entries []domain.ProcessingAuditEntry
	require.NoError(t, json.Unmarshal(env.Data, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "vlm", entries[0].Processor)
}

func TestHandler_UnexpectedErrorIsLoggedWithUser(t *testing.T) {
	store := storage.NewPackageStore(0)
	t.Cleanup(store.Close)
	svc := service.NewService(processor.NewRegistry(stubProcessor{}), store, logger.Nop())

	var buf bytes.Buffer
	h := handler.NewHandler(svc, failingAudit{}, 0, logger.NewWithWriter("test", &buf))

	r := chi.NewRouter()
	r.Use(httputil.RequestID)
	r.Use(i18n.Middleware)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(httputil.WithUserID(r.Context(), "user-9")))
		})
	})
	r.Route("/api/v1", h.Routes)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/packages/pkg/audit", nil)
	req.Header.Set("X-Request-ID", "req-5")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "request failed", line["message"])
	assert.Equal(t, "req-5", line["request_id"])
	assert.Equal(t, "user-9", line["user_id"])
	assert.Equal(t, "connection reset by peer", line["error"])
}
