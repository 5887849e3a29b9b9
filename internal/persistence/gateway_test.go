package persistence

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/scancore/engine/internal/domain"
)

func newMockGateway(t *testing.T) (*Gateway, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewWithDB(db, zap.NewNop()), mock
}

func TestSaveJobInsertsIgnoringConflict(t *testing.T) {
	g, mock := newMockGateway(t)
	job := domain.ScanJob{JobID: uuid.New(), TenantID: uuid.New(), ScanType: "code", State: domain.JobQueued}

	mock.ExpectExec("INSERT INTO scan_jobs").
		WithArgs(job.JobID, job.TenantID, job.ScanType, string(job.State), job.ProgressPct).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, g.SaveJob(context.Background(), job))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendFindingsIsTransactional(t *testing.T) {
	g, mock := newMockGateway(t)
	jobID := uuid.New()
	finding := domain.Finding{FindingID: uuid.New(), JobID: jobID, RuleID: "email", Severity: "Medium"}

	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO findings").
		ExpectExec().
		WithArgs(finding.FindingID, jobID, finding.Type, finding.Category, string(finding.Severity), finding.Location, finding.Excerpt, finding.Confidence, finding.RuleID, finding.PIIKind).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, g.AppendFindings(context.Background(), jobID, []domain.Finding{finding}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteScanCommitsResultAndHistoryInOneTransaction(t *testing.T) {
	g, mock := newMockGateway(t)
	result := domain.ScanResult{JobID: uuid.New(), TenantID: uuid.New(), ScanType: "code"}
	point := domain.ComplianceHistoryPoint{TenantID: result.TenantID, At: time.Now()}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO scan_results").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectPrepare("INSERT INTO findings")
	mock.ExpectExec("INSERT INTO compliance_history").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, g.CompleteScan(context.Background(), result, point))
	require.NoError(t, mock.ExpectationsWereMet())
}
