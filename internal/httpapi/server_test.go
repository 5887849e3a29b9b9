package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/scancore/engine/internal/domain"
	"github.com/scancore/engine/internal/orchestrator"
	"github.com/scancore/engine/internal/tenant"
)

type fakeOrchestrator struct {
	submitted domain.ScanRequest
	jobID     uuid.UUID
	submitErr error
	job       domain.ScanJob
}

func (f *fakeOrchestrator) Submit(_ context.Context, req domain.ScanRequest) (uuid.UUID, error) {
	f.submitted = req
	if f.submitErr != nil {
		return uuid.Nil, f.submitErr
	}
	return f.jobID, nil
}
func (f *fakeOrchestrator) Cancel(uuid.UUID) error { return nil }
func (f *fakeOrchestrator) Query(uuid.UUID) (domain.ScanJob, error) {
	return f.job, nil
}
func (f *fakeOrchestrator) Stream(uuid.UUID) (<-chan domain.ScanEvent, error) {
	ch := make(chan domain.ScanEvent)
	close(ch)
	return ch, nil
}

type fakeResultStore struct{}

func (fakeResultStore) QueryHistory(context.Context, uuid.UUID, time.Time, time.Time) ([]domain.ComplianceHistoryPoint, error) {
	return nil, nil
}

type fakeAuditReader struct{}

func (fakeAuditReader) QueryAudit(context.Context, uuid.UUID, int, int) ([]domain.AuditEvent, error) {
	return nil, nil
}

type fakeRegistryReloader struct {
	reloaded bool
	err      error
}

func (f *fakeRegistryReloader) ReloadDefaults() error {
	f.reloaded = true
	return f.err
}

func testServer(t *testing.T, orch *fakeOrchestrator) (*Server, tenant.Principal, string) {
	t.Helper()
	principal := tenant.Principal{TenantID: uuid.New(), UserID: uuid.New()}
	resolver := &tenant.StaticResolver{Tokens: map[string]tenant.Principal{"tok": principal}}
	s := NewServer(orch, fakeResultStore{}, fakeAuditReader{}, &fakeRegistryReloader{}, resolver, zap.NewNop(), []string{"*"})
	return s, principal, "tok"
}

func TestHandleSubmitReturns202(t *testing.T) {
	orch := &fakeOrchestrator{jobID: uuid.New()}
	s, principal, tok := testServer(t, orch)

	body := `{"scan_type":"website","target":{"url":"https://example.nl"}}`
	req := httptest.NewRequest(http.MethodPost, "/v1/scans", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Equal(t, orch.jobID.String(), out["job_id"])
	require.Equal(t, principal.TenantID, orch.submitted.TenantID)
}

func TestHandleSubmitRejectedLicenseReturns403(t *testing.T) {
	orch := &fakeOrchestrator{submitErr: &orchestrator.Rejection{Code: "RejectedLicense", Reason: "expired"}}
	s, _, tok := testServer(t, orch)

	req := httptest.NewRequest(http.MethodPost, "/v1/scans", strings.NewReader(`{"scan_type":"website"}`))
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandleRegistryReloadReturns200(t *testing.T) {
	orch := &fakeOrchestrator{jobID: uuid.New()}
	s, _, _ := testServer(t, orch)

	req := httptest.NewRequest(http.MethodPost, "/admin/registry/reload", nil)
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, s.registry.(*fakeRegistryReloader).reloaded)
}

func TestHandleSubmitMissingTokenUnauthorized(t *testing.T) {
	orch := &fakeOrchestrator{jobID: uuid.New()}
	s, _, _ := testServer(t, orch)

	req := httptest.NewRequest(http.MethodPost, "/v1/scans", strings.NewReader(`{"scan_type":"website"}`))
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
