package compliance

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scancore/engine/internal/domain"
	"github.com/scancore/engine/internal/registry"
)

// HistoryStore is the narrow persistence view C7 needs: append a
// trajectory point and read back a tenant's range. The durable
// implementation is persistence.Gateway; the functions below also accept
// the in-memory implementation for tests.
type HistoryStore interface {
	AppendHistory(ctx context.Context, point domain.ComplianceHistoryPoint) error
	QueryHistory(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]domain.ComplianceHistoryPoint, error)
}

// MemoryHistoryStore is a concurrency-safe in-memory HistoryStore.
type MemoryHistoryStore struct {
	mu     sync.RWMutex
	points map[uuid.UUID][]domain.ComplianceHistoryPoint
}

func NewMemoryHistoryStore() *MemoryHistoryStore {
	return &MemoryHistoryStore{points: make(map[uuid.UUID][]domain.ComplianceHistoryPoint)}
}

func (m *MemoryHistoryStore) AppendHistory(_ context.Context, point domain.ComplianceHistoryPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points[point.TenantID] = append(m.points[point.TenantID], point)
	return nil
}

// QueryHistory returns a consistent point-in-time snapshot copy of the
// tenant's trajectory within [from, to], safe to call concurrently with
// AppendHistory.
func (m *MemoryHistoryStore) QueryHistory(_ context.Context, tenantID uuid.UUID, from, to time.Time) ([]domain.ComplianceHistoryPoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.ComplianceHistoryPoint, 0, len(m.points[tenantID]))
	for _, p := range m.points[tenantID] {
		if !p.At.Before(from) && !p.At.After(to) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out, nil
}

// AppendTrajectoryPoint builds and stores one (tenant_id, now, overall,
// per_principle, job_id) trajectory entry for a finalized scan.
func AppendTrajectoryPoint(ctx context.Context, store HistoryStore, tenantID, jobID uuid.UUID, overall float64, perPrinciple map[registry.ComplianceCategory]float64) error {
	return store.AppendHistory(ctx, domain.ComplianceHistoryPoint{
		TenantID:        tenantID,
		At:              time.Now(),
		OverallScore:    overall,
		ComponentScores: perPrinciple,
		SourceJobID:     jobID,
	})
}

const forecastWindowDays = 90

// ForecastInput is the raw day-downsampled sequence and summary
// statistics C7 exposes to an external forecasting collaborator. The
// engine computes these but never predicts a future point itself.
type ForecastInput struct {
	TenantID  uuid.UUID
	Days      []DayPoint
	Mean      float64
	Slope     float64 // simple linear fit, score-per-day
	Variance  float64
}

type DayPoint struct {
	Day   time.Time // truncated to UTC midnight
	Score float64   // mean of all points within the day
}

// BuildForecastInput downsamples the last 90 days of a tenant's history
// to one point per day (mean within day) and computes mean/slope/variance
// over the resulting series. Safe to call concurrently; reads a
// consistent snapshot via the store's own query semantics.
func BuildForecastInput(ctx context.Context, store HistoryStore, tenantID uuid.UUID, now time.Time) (ForecastInput, error) {
	from := now.AddDate(0, 0, -forecastWindowDays)
	points, err := store.QueryHistory(ctx, tenantID, from, now)
	if err != nil {
		return ForecastInput{}, err
	}

	byDay := make(map[int64][]float64)
	for _, p := range points {
		day := p.At.UTC().Truncate(24 * time.Hour).Unix()
		byDay[day] = append(byDay[day], p.OverallScore)
	}

	days := make([]int64, 0, len(byDay))
	for d := range byDay {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })

	series := make([]DayPoint, 0, len(days))
	for _, d := range days {
		vals := byDay[d]
		sum := 0.0
		for _, v := range vals {
			sum += v
		}
		series = append(series, DayPoint{Day: time.Unix(d, 0).UTC(), Score: sum / float64(len(vals))})
	}

	mean, slope, variance := summaryStats(series)
	return ForecastInput{TenantID: tenantID, Days: series, Mean: mean, Slope: slope, Variance: variance}, nil
}

// summaryStats computes the mean, the slope of an ordinary least-squares
// fit against day index, and the population variance of a day-downsampled
// series.
func summaryStats(series []DayPoint) (mean, slope, variance float64) {
	n := float64(len(series))
	if n == 0 {
		return 0, 0, 0
	}

	var sumY float64
	for _, p := range series {
		sumY += p.Score
	}
	mean = sumY / n

	if n < 2 {
		return mean, 0, 0
	}

	var sumX, sumXY, sumXX, sumDevSq float64
	for i, p := range series {
		x := float64(i)
		sumX += x
		sumXY += x * p.Score
		sumXX += x * x
		sumDevSq += (p.Score - mean) * (p.Score - mean)
	}
	denom := n*sumXX - sumX*sumX
	if denom != 0 {
		slope = (n*sumXY - sumX*sumY) / denom
	}
	variance = sumDevSq / n

	return mean, slope, math.Abs(variance)
}
