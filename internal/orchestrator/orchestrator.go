package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scancore/engine/internal/config"
	"github.com/scancore/engine/internal/domain"
	"github.com/scancore/engine/internal/scanengine"
)

// Orchestrator is the central scheduler (C4): admission queue, fixed-size
// worker pool with per-scan-type caps, and the active job table. One
// Orchestrator is built per process and started once.
type Orchestrator struct {
	cfg      *config.Config
	logger   *zap.Logger
	license  LicenseGate
	scanners *scanengine.Registry
	snapshot SnapshotSource
	sink     ResultSink
	recorder JobRecorder

	queue *admissionQueue

	mu     sync.Mutex
	active map[uuid.UUID]*admittedJob

	// per-scan-type concurrency caps, enforced with buffered-channel
	// semaphores so a job waits in queue rather than blocking a worker.
	typeSem map[config.ScanType]chan struct{}
	// global worker pool bound.
	globalSem chan struct{}

	wakeCh   chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New builds an Orchestrator. Submit enqueues jobs at any time; Start must
// be called once for queued jobs to be dispatched to workers.
func New(cfg *config.Config, logger *zap.Logger, license LicenseGate, scanners *scanengine.Registry, snapshot SnapshotSource, sink ResultSink, recorder JobRecorder) *Orchestrator {
	typeSem := make(map[config.ScanType]chan struct{}, len(cfg.WorkerPerTypeCaps))
	for t, limit := range cfg.WorkerPerTypeCaps {
		if limit <= 0 {
			limit = 1
		}
		typeSem[t] = make(chan struct{}, limit)
	}
	global := cfg.WorkerGlobalPoolSize
	if global <= 0 {
		global = 1
	}
	return &Orchestrator{
		cfg:       cfg,
		logger:    logger,
		license:   license,
		scanners:  scanners,
		snapshot:  snapshot,
		sink:      sink,
		recorder:  recorder,
		queue:     newAdmissionQueue(),
		active:    make(map[uuid.UUID]*admittedJob),
		typeSem:   typeSem,
		globalSem: make(chan struct{}, global),
		wakeCh:    make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
	}
}

// Start launches the dispatch loop that pulls from the admission queue
// and hands jobs to free workers, respecting the global and per-type caps.
func (o *Orchestrator) Start() {
	o.wg.Add(1)
	go o.dispatchLoop()
}

// Stop signals the dispatch loop to exit and waits for it and for every
// in-flight job to finish. It does not cancel in-flight jobs; each runs
// until it completes, is cancelled, or reaches its deadline.
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() { close(o.stopCh) })
	o.wg.Wait()
}

func (o *Orchestrator) wake() {
	select {
	case o.wakeCh <- struct{}{}:
	default:
	}
}

// Submit performs synchronous admission: license/region gating, quota
// pre-increment, then enqueue with state=Queued. Returns the assigned
// job_id, or a *Rejection for every expected refusal path.
func (o *Orchestrator) Submit(ctx context.Context, req domain.ScanRequest) (uuid.UUID, error) {
	scanType := config.ScanType(req.ScanType)
	if _, ok := o.scanners.Get(scanType); !ok {
		return uuid.Nil, rejectedUnknownScanType(req.ScanType)
	}

	if o.queue.Len() >= o.backpressureThreshold() {
		return uuid.Nil, rejectedConcurrency("admission queue above backpressure threshold")
	}

	if err := o.license.CanSubmit(ctx, req); err != nil {
		return uuid.Nil, rejectedLicense(err.Error())
	}
	if err := o.license.TouchSession(ctx, req.TenantID, req.Principal.UserID); err != nil {
		return uuid.Nil, rejectedConcurrency(err.Error())
	}

	reservation, err := o.license.ReserveQuota(ctx, req.TenantID, req.ScanType)
	if err != nil {
		return uuid.Nil, rejectedQuota(err.Error())
	}

	jobID := uuid.New()
	if req.RequestID == uuid.Nil {
		req.RequestID = jobID
	}
	now := time.Now()
	job := domain.ScanJob{
		JobID:    jobID,
		TenantID: req.TenantID,
		ScanType: req.ScanType,
		State:    domain.JobQueued,
	}

	aj := &admittedJob{
		job:         job,
		req:         req,
		reservation: reservation,
		done:        make(chan struct{}),
		submittedAt: now,
	}

	o.mu.Lock()
	o.active[jobID] = aj
	o.mu.Unlock()

	if o.recorder != nil {
		_ = o.recorder.SaveJob(ctx, job)
	}

	o.queue.Push(req.TenantID, jobID)
	o.wake()

	return jobID, nil
}

func (o *Orchestrator) backpressureThreshold() int {
	pct := o.cfg.QueueBackpressureThreshold
	if pct <= 0 || pct > 100 {
		pct = 80
	}
	return o.cfg.QueueMaxAdmitted * pct / 100
}

// Cancel is idempotent. A Queued job moves directly to Cancelled; a
// Running job's context is cancelled and the worker transitions it to
// Cancelled once it observes ctx.Done (bounded by the cancellation
// observation latency).
func (o *Orchestrator) Cancel(jobID uuid.UUID) error {
	o.mu.Lock()
	aj, ok := o.active[jobID]
	o.mu.Unlock()
	if !ok {
		return ErrJobNotFound
	}

	o.mu.Lock()
	state := aj.job.State
	o.mu.Unlock()

	if state.IsTerminal() {
		return nil // idempotent: already terminal, nothing to do
	}

	if state == domain.JobQueued {
		if o.queue.Remove(aj.job.TenantID, jobID) {
			o.finishLocked(aj, domain.JobCancelled)
			o.license.ReleaseQuota(context.Background(), aj.reservation)
			return nil
		}
		// lost the race: job was just popped off the queue and is
		// transitioning to Running; fall through to context cancel.
	}

	if aj.cancel != nil {
		aj.cancel()
	}
	return nil
}

// Query returns the current externally-visible job state.
func (o *Orchestrator) Query(jobID uuid.UUID) (domain.ScanJob, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	aj, ok := o.active[jobID]
	if !ok {
		return domain.ScanJob{}, ErrJobNotFound
	}
	return aj.job, nil
}

// Stream returns a lazy sequence of ScanEvent for a job, terminating the
// returned channel when the job reaches a terminal state. Restartable
// only while the job remains in the active table (its retention window).
func (o *Orchestrator) Stream(jobID uuid.UUID) (<-chan domain.ScanEvent, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	aj, ok := o.active[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	sub := make(chan domain.ScanEvent, 64)
	aj.subscribers = append(aj.subscribers, sub)
	return sub, nil
}

func (o *Orchestrator) dispatchLoop() {
	defer o.wg.Done()
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-o.stopCh:
			return
		case <-o.wakeCh:
			o.drainQueue()
		case <-ticker.C:
			o.drainQueue()
		}
	}
}

// drainQueue admits as many queued jobs as the global and per-type
// semaphores currently allow, without blocking the dispatch loop when
// capacity runs out.
func (o *Orchestrator) drainQueue() {
	for {
		jobID, ok := o.queue.Pop()
		if !ok {
			return
		}

		o.mu.Lock()
		aj, exists := o.active[jobID]
		o.mu.Unlock()
		if !exists {
			continue
		}

		scanType := config.ScanType(aj.req.ScanType)
		sem := o.typeSem[scanType]

		select {
		case o.globalSem <- struct{}{}:
		default:
			o.queue.Push(aj.job.TenantID, jobID) // push back, no global capacity
			return
		}

		select {
		case sem <- struct{}{}:
		default:
			<-o.globalSem
			o.queue.Push(aj.job.TenantID, jobID) // push back, type at cap
			return
		}

		o.wg.Add(1)
		go o.runJob(aj, sem)
	}
}

func (o *Orchestrator) runJob(aj *admittedJob, typeSlot chan struct{}) {
	defer o.wg.Done()
	defer func() { <-o.globalSem }()
	defer func() { <-typeSlot }()

	scanType := config.ScanType(aj.req.ScanType)
	deadline := time.Duration(o.cfg.DeadlinesPerTypeMs[scanType]) * time.Millisecond
	if deadline <= 0 {
		deadline = 10 * time.Minute
	}

	ctx, cancel := context.WithTimeout(context.Background(), deadline)
	o.mu.Lock()
	aj.cancel = cancel
	aj.job.State = domain.JobAdmitted
	o.mu.Unlock()
	defer cancel()

	o.transition(aj, domain.JobAdmitted)
	o.transition(aj, domain.JobRunning)
	started := time.Now()
	o.mu.Lock()
	aj.job.StartedAt = &started
	o.mu.Unlock()

	snap := o.snapshot.Snapshot()
	scanner, ok := o.scanners.Get(scanType)
	if !ok {
		o.fail(aj, ctx)
		return
	}

	maxAttempts := o.cfg.RetriesMaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var collected []domain.ScanEvent
	var finalErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			// Rule-engine and data-detection errors never retry; only a
			// scanner that declares itself retry-safe (a transient
			// infra error) gets another attempt, with exponential
			// backoff starting at the configured base and quadrupling
			// on each further attempt (500ms, 2s at the default base).
			if !scanner.RetrySafe() {
				break
			}
			backoff := (time.Duration(o.cfg.RetriesBackoffMsBase) * time.Millisecond) << (2 * uint(attempt-2))
			select {
			case <-ctx.Done():
				finalErr = ctx.Err()
				goto settled
			case <-time.After(backoff):
			}
		}

		events, err := scanner.Run(ctx, aj.req, snap)
		if err != nil {
			finalErr = err
			if ctx.Err() != nil {
				break // no point retrying past cancellation/deadline
			}
			continue
		}

		collected = nil
		for ev := range events {
			collected = append(collected, ev)
			o.broadcast(aj, ev)
			o.updateProgress(aj, ev)
		}
		finalErr = nil
		break
	}

settled:
	switch {
	case ctx.Err() == context.Canceled:
		o.finishWithResult(aj, domain.JobCancelled, collected)
	case ctx.Err() == context.DeadlineExceeded:
		o.finishWithResult(aj, domain.JobTimedOut, collected)
	case finalErr != nil:
		o.finishWithResult(aj, domain.JobFailed, collected)
	default:
		o.finishWithResult(aj, domain.JobSucceeded, collected)
	}

	o.license.CommitQuota(context.Background(), aj.reservation)
}

func (o *Orchestrator) fail(aj *admittedJob, ctx context.Context) {
	o.finishWithResult(aj, domain.JobFailed, nil)
	o.license.CommitQuota(context.Background(), aj.reservation)
}

func (o *Orchestrator) transition(aj *admittedJob, state domain.JobState) {
	o.mu.Lock()
	aj.job.State = state
	o.mu.Unlock()
	if o.recorder != nil {
		_ = o.recorder.UpdateJobState(context.Background(), aj.job.JobID, state, time.Now())
	}
}

func (o *Orchestrator) updateProgress(aj *admittedJob, ev domain.ScanEvent) {
	if ev.Kind != domain.EventProgress {
		return
	}
	o.mu.Lock()
	aj.job.ProgressPct = ev.ProgressPct
	o.mu.Unlock()
}

func (o *Orchestrator) broadcast(aj *admittedJob, ev domain.ScanEvent) {
	o.mu.Lock()
	subs := append([]chan domain.ScanEvent(nil), aj.subscribers...)
	o.mu.Unlock()
	for _, s := range subs {
		select {
		case s <- ev:
		default:
		}
	}
}

func (o *Orchestrator) finishWithResult(aj *admittedJob, state domain.JobState, events []domain.ScanEvent) {
	o.finishLocked(aj, state)
	if o.sink != nil {
		o.mu.Lock()
		job := aj.job
		o.mu.Unlock()
		o.sink.Finalize(context.Background(), &job, events)
	}
}

func (o *Orchestrator) finishLocked(aj *admittedJob, state domain.JobState) {
	now := time.Now()
	o.mu.Lock()
	aj.job.State = state
	aj.job.FinishedAt = &now
	subs := append([]chan domain.ScanEvent(nil), aj.subscribers...)
	o.mu.Unlock()

	if o.recorder != nil {
		_ = o.recorder.UpdateJobState(context.Background(), aj.job.JobID, state, now)
	}
	for _, s := range subs {
		close(s)
	}
	close(aj.done)
}
