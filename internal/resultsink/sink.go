// Package resultsink wires the orchestrator's ResultSink contract to the
// actual pipeline: fold the job's event stream into a canonical result
// (C6), score it (C7), persist it durably (C8), and record an audit trail
// entry — the one place all four packages meet, so none of them import
// each other directly.
package resultsink

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scancore/engine/internal/aggregator"
	"github.com/scancore/engine/internal/audit"
	"github.com/scancore/engine/internal/collaborators"
	"github.com/scancore/engine/internal/compliance"
	"github.com/scancore/engine/internal/domain"
	"github.com/scancore/engine/internal/registry"
)

// Persister is the narrow slice of persistence.Gateway this sink drives.
type Persister interface {
	CompleteScan(ctx context.Context, result domain.ScanResult, point domain.ComplianceHistoryPoint) error
}

// Sink implements orchestrator.ResultSink.
type Sink struct {
	snapshot         func() *registry.Snapshot
	persister        Persister
	auditor          *audit.Recorder
	webhook          collaborators.WebhookSender
	principleWeights map[registry.ComplianceCategory]float64
	logger           *zap.Logger
}

func New(snapshot func() *registry.Snapshot, persister Persister, auditor *audit.Recorder, webhook collaborators.WebhookSender, principleWeights map[registry.ComplianceCategory]float64, logger *zap.Logger) *Sink {
	if principleWeights == nil {
		principleWeights = compliance.UniformWeights()
	}
	return &Sink{
		snapshot:         snapshot,
		persister:        persister,
		auditor:          auditor,
		webhook:          webhook,
		principleWeights: principleWeights,
		logger:           logger,
	}
}

// Finalize aggregates, scores and persists one terminal job's outcome.
// Persistence failures are logged, not returned — the orchestrator has
// already moved the job to its terminal state and callers poll Query, not
// this method, for the outcome.
func (s *Sink) Finalize(ctx context.Context, job *domain.ScanJob, events []domain.ScanEvent) {
	snap := s.snapshot()
	result := aggregator.Aggregate(*job, events, snap)

	scores, overall := compliance.Score(result, snap.Weights, s.principleWeights)
	result.PrincipleScores = scores
	result.ComplianceScore = overall

	point := domain.ComplianceHistoryPoint{
		TenantID:        job.TenantID,
		At:              time.Now(),
		OverallScore:    overall,
		ComponentScores: scores,
		SourceJobID:     job.JobID,
	}

	if err := s.persister.CompleteScan(ctx, result, point); err != nil {
		s.logger.Error("resultsink: persist scan result failed",
			zap.String("job_id", job.JobID.String()), zap.Error(err))
	}

	if s.auditor != nil {
		_ = s.auditor.RecordAction(ctx, job.TenantID, uuid.Nil,
			"scan.completed", job.ScanType, string(job.State), map[string]string{
				"job_id": job.JobID.String(),
			})
	}

	if s.webhook != nil {
		if payload, err := json.Marshal(result); err == nil {
			if err := s.webhook.Send(ctx, job.JobID.String(), payload); err != nil {
				s.logger.Warn("resultsink: webhook delivery failed",
					zap.String("job_id", job.JobID.String()), zap.Error(err))
			}
		}
	}
}
