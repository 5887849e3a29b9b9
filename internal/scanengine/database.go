package scanengine

import (
	"context"
	"fmt"

	"github.com/scancore/engine/internal/config"
	"github.com/scancore/engine/internal/detect"
	"github.com/scancore/engine/internal/domain"
	"github.com/scancore/engine/internal/registry"
)

// TableSampler discovers tables via a DSN and samples up to budget rows
// per table. The concrete implementation (postgres_sampler.go) keeps its
// own connection pool per tenant-supplied DSN, never the persistence
// gateway's own pool.
type TableSampler interface {
	ListTables(ctx context.Context, dsn string) ([]string, error)
	SampleTable(ctx context.Context, dsn, table string, budget int) (detect.TableSample, error)
	Close() error
}

// DatabaseScanner discovers a DSN's schema catalog, applies the tabular
// analyzer under the selected scan-mode budget, and emits column-level
// findings plus total table and row counts. FAST/SMART/DEEP differ only
// in sample size.
type DatabaseScanner struct {
	sampler TableSampler
}

func NewDatabaseScanner(sampler TableSampler) *DatabaseScanner {
	return &DatabaseScanner{sampler: sampler}
}

func (s *DatabaseScanner) ScanType() config.ScanType { return config.ScanTypeDatabase }
func (s *DatabaseScanner) RetrySafe() bool            { return true }

func (s *DatabaseScanner) Run(ctx context.Context, req domain.ScanRequest, snap *registry.Snapshot) (<-chan domain.ScanEvent, error) {
	if req.Target.DSN == "" {
		return nil, fmt.Errorf("scanengine: database scan requires a dsn")
	}
	ch := make(chan domain.ScanEvent, 32)
	go s.run(ctx, req, snap, ch)
	return ch, nil
}

func (s *DatabaseScanner) run(ctx context.Context, req domain.ScanRequest, snap *registry.Snapshot, ch chan<- domain.ScanEvent) {
	defer close(ch)

	mode := detect.ScanMode(req.Options.ScanMode)
	if mode == "" {
		mode = detect.ScanModeSmart
	}
	budget := detect.RowsPerTable(mode)

	tables, err := s.sampler.ListTables(ctx, req.Target.DSN)
	if err != nil {
		emitChan(ctx, ch, domain.DiagnosticEvent(domain.DiagLevelError, "list tables failed: "+err.Error()))
		emitChan(ctx, ch, domain.DoneEvent(true, map[string]int{"tables_sampled": 0, "rows_sampled": 0}, nil))
		return
	}

	rowsSampled := 0
	partial := false

	for i, table := range tables {
		select {
		case <-ctx.Done():
			partial = true
			goto done
		default:
		}

		sample, err := s.sampler.SampleTable(ctx, req.Target.DSN, table, budget)
		if err != nil {
			if !emitChan(ctx, ch, domain.DiagnosticEvent(domain.DiagLevelWarning, "sample failed for "+table+": "+err.Error())) {
				partial = true
				goto done
			}
			continue
		}

		rowsSampled += len(sample.Rows)
		classifications := detect.AnalyzeTable(req.RequestID, sample, snap, req.Options.RegionSet)
		for _, c := range classifications {
			for _, f := range c.Findings {
				if !emitChan(ctx, ch, domain.FindingEvent(f)) {
					partial = true
					goto done
				}
			}
		}

		if !emitChan(ctx, ch, domain.ProgressEvent((i+1)*100/max1(len(tables)), fmt.Sprintf("sampled table %d/%d", i+1, len(tables)))) {
			partial = true
			goto done
		}
	}

done:
	emitChan(ctx, ch, domain.DoneEvent(partial, map[string]int{
		"tables_sampled": len(tables),
		"rows_sampled":   rowsSampled,
	}, nil))
}

var _ Scanner = (*DatabaseScanner)(nil)
