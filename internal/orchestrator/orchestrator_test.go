package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/scancore/engine/internal/config"
	"github.com/scancore/engine/internal/domain"
	"github.com/scancore/engine/internal/registry"
	"github.com/scancore/engine/internal/scanengine"
)

type allowAllLicense struct{}

func (allowAllLicense) CanSubmit(context.Context, domain.ScanRequest) error { return nil }
func (allowAllLicense) ReserveQuota(context.Context, uuid.UUID, string) (string, error) {
	return uuid.New().String(), nil
}
func (allowAllLicense) CommitQuota(context.Context, string)  {}
func (allowAllLicense) ReleaseQuota(context.Context, string) {}
func (allowAllLicense) TouchSession(context.Context, uuid.UUID, uuid.UUID) error {
	return nil
}

type stubScanner struct {
	scanType  config.ScanType
	retrySafe bool
	run       func(ctx context.Context) (<-chan domain.ScanEvent, error)
}

func (s *stubScanner) ScanType() config.ScanType { return s.scanType }
func (s *stubScanner) RetrySafe() bool           { return s.retrySafe }
func (s *stubScanner) Run(ctx context.Context, _ domain.ScanRequest, _ *registry.Snapshot) (<-chan domain.ScanEvent, error) {
	return s.run(ctx)
}

type nopSink struct{}

func (nopSink) Finalize(context.Context, *domain.ScanJob, []domain.ScanEvent) {}

func testConfig() *config.Config {
	return &config.Config{
		WorkerGlobalPoolSize:       4,
		WorkerPerTypeCaps:         map[config.ScanType]int{config.ScanTypeDPIA: 2},
		QueueMaxAdmitted:           100,
		QueueBackpressureThreshold: 80,
		DeadlinesPerTypeMs:         map[config.ScanType]int64{config.ScanTypeDPIA: 2000},
		RetriesMaxAttempts:         2,
		RetriesBackoffMsBase:       10,
	}
}

func TestSubmitRunsToSucceeded(t *testing.T) {
	reg := scanengine.NewRegistry()
	reg.Register(&stubScanner{
		scanType:  config.ScanTypeDPIA,
		retrySafe: false,
		run: func(ctx context.Context) (<-chan domain.ScanEvent, error) {
			ch := make(chan domain.ScanEvent, 2)
			ch <- domain.ProgressEvent(50, "working")
			ch <- domain.DoneEvent(false, map[string]int{"files_scanned": 1}, nil)
			close(ch)
			return ch, nil
		},
	})

	o := New(testConfig(), zap.NewNop(), allowAllLicense{}, reg, registry.New(), nopSink{}, nil)
	o.Start()
	defer o.Stop()

	jobID, err := o.Submit(context.Background(), domain.ScanRequest{
		TenantID: uuid.New(),
		ScanType: string(config.ScanTypeDPIA),
		Target:   domain.ScanTarget{QuestionnaireAnswers: map[string][]int{"x": {1}}},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		job, err := o.Query(jobID)
		return err == nil && job.State.IsTerminal()
	}, time.Second, 5*time.Millisecond)

	job, err := o.Query(jobID)
	require.NoError(t, err)
	require.Equal(t, domain.JobSucceeded, job.State)
}

func TestSubmitUnknownScanTypeRejected(t *testing.T) {
	reg := scanengine.NewRegistry()
	o := New(testConfig(), zap.NewNop(), allowAllLicense{}, reg, registry.New(), nopSink{}, nil)

	_, err := o.Submit(context.Background(), domain.ScanRequest{
		TenantID: uuid.New(),
		ScanType: "not-a-real-type",
	})
	require.Error(t, err)
	rej, ok := err.(*Rejection)
	require.True(t, ok)
	require.Equal(t, "RejectedUnknownScanType", rej.Code)
}

func TestCancelQueuedJobGoesDirectlyToCancelled(t *testing.T) {
	reg := scanengine.NewRegistry()
	blocking := make(chan struct{})
	reg.Register(&stubScanner{
		scanType:  config.ScanTypeDPIA,
		retrySafe: false,
		run: func(ctx context.Context) (<-chan domain.ScanEvent, error) {
			<-blocking
			ch := make(chan domain.ScanEvent)
			close(ch)
			return ch, nil
		},
	})

	cfg := testConfig()
	cfg.WorkerPerTypeCaps[config.ScanTypeDPIA] = 0 // New raises a cap of 0 to 1; the job stays Queued because Start is never called

	o := New(cfg, zap.NewNop(), allowAllLicense{}, reg, registry.New(), nopSink{}, nil)
	// dispatch loop intentionally not started: job stays Queued.

	jobID, err := o.Submit(context.Background(), domain.ScanRequest{
		TenantID: uuid.New(),
		ScanType: string(config.ScanTypeDPIA),
	})
	require.NoError(t, err)

	require.NoError(t, o.Cancel(jobID))

	job, err := o.Query(jobID)
	require.NoError(t, err)
	require.Equal(t, domain.JobCancelled, job.State)

	close(blocking)
}
