package detect

import (
	"github.com/google/uuid"
	"github.com/scancore/engine/internal/domain"
	"github.com/scancore/engine/internal/registry"
)

// ScanMode selects the database scanner's read budget.
type ScanMode string

const (
	ScanModeFast  ScanMode = "FAST"
	ScanModeSmart ScanMode = "SMART"
	ScanModeDeep  ScanMode = "DEEP"
)

// RowsPerTable returns the sample budget for a scan mode.
func RowsPerTable(mode ScanMode) int {
	switch mode {
	case ScanModeFast:
		return 100
	case ScanModeDeep:
		return 500
	default:
		return 300
	}
}

// minConfirmedMatches is the minimum number of cell matches required
// before a column is classified by its majority pii_kind.
const minConfirmedMatches = 3

// TableSample is one table's sampled rows, cell values already as text.
type TableSample struct {
	Table   string
	Columns []string
	Rows    [][]string
}

// ColumnClassification is the tabular analyzer's per-column verdict.
type ColumnClassification struct {
	Table      string
	Column     string
	PIIKind    string
	Confirmed  int
	Findings   []domain.Finding
}

// AnalyzeTable classifies every column of a sample by running the text
// scanner over each cell and taking the majority pii_kind, requiring at
// least minConfirmedMatches confirmed hits to claim a column.
func AnalyzeTable(jobID uuid.UUID, sample TableSample, snap *registry.Snapshot, regionSet []string) []ColumnClassification {
	counts := make([]map[string]int, len(sample.Columns))
	findingsByCol := make([][]domain.Finding, len(sample.Columns))
	for i := range counts {
		counts[i] = map[string]int{}
	}

	for _, row := range sample.Rows {
		for colIdx, cell := range row {
			if colIdx >= len(sample.Columns) {
				continue
			}
			location := sample.Table + "." + sample.Columns[colIdx]
			cellFindings := ScanText(jobID, []byte(cell), location, snap, regionSet)
			for _, f := range cellFindings {
				counts[colIdx][f.PIIKind]++
				findingsByCol[colIdx] = append(findingsByCol[colIdx], f)
			}
		}
	}

	var out []ColumnClassification
	for i, col := range sample.Columns {
		kind, n := majority(counts[i])
		if n < minConfirmedMatches {
			continue
		}
		out = append(out, ColumnClassification{
			Table:     sample.Table,
			Column:    col,
			PIIKind:   kind,
			Confirmed: n,
			Findings:  dedupByPIIKind(findingsByCol[i], kind),
		})
	}
	return out
}

func majority(counts map[string]int) (string, int) {
	best, bestN := "", 0
	for k, n := range counts {
		if n > bestN {
			best, bestN = k, n
		}
	}
	return best, bestN
}

func dedupByPIIKind(findings []domain.Finding, kind string) []domain.Finding {
	var out []domain.Finding
	for _, f := range findings {
		if f.PIIKind == kind {
			out = append(out, f)
		}
	}
	return out
}
