package scanengine

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/scancore/engine/internal/config"
	"github.com/scancore/engine/internal/detect"
	"github.com/scancore/engine/internal/domain"
	"github.com/scancore/engine/internal/registry"
)

type fakeTableSampler struct {
	tables  []string
	samples map[string]detect.TableSample
}

func (f *fakeTableSampler) ListTables(context.Context, string) ([]string, error) {
	return f.tables, nil
}

func (f *fakeTableSampler) SampleTable(_ context.Context, _ string, table string, _ int) (detect.TableSample, error) {
	return f.samples[table], nil
}

func (f *fakeTableSampler) Close() error { return nil }

func TestDatabaseScannerReportsTablesSampled(t *testing.T) {
	sampler := &fakeTableSampler{
		tables: []string{"users", "orders"},
		samples: map[string]detect.TableSample{
			"users":  {Table: "users", Columns: []string{"email"}, Rows: [][]string{{"a@b.com"}}},
			"orders": {Table: "orders", Columns: []string{"id"}, Rows: [][]string{{"1"}}},
		},
	}
	scanner := NewDatabaseScanner(sampler)
	snap := registry.New().Snapshot()

	req := domain.ScanRequest{
		RequestID: uuid.New(),
		ScanType:  string(config.ScanTypeDatabase),
		Target:    domain.ScanTarget{DSN: "postgres://tenant/db"},
	}

	events, err := scanner.Run(context.Background(), req, snap)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	var done *domain.DoneSummary
	for ev := range events {
		if ev.Kind == domain.EventDone {
			done = ev.Done
		}
	}
	if done == nil {
		t.Fatal("expected a terminal done event")
	}
	if done.Hints["tables_sampled"] != 2 {
		t.Errorf("expected tables_sampled=2, got %d", done.Hints["tables_sampled"])
	}
	if done.Hints["rows_sampled"] != 2 {
		t.Errorf("expected rows_sampled=2, got %d", done.Hints["rows_sampled"])
	}
}
