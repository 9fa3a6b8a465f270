package stats

import (
	"sync"

	"golang.org/x/exp/slices"
)

type TrendPoint struct {
	Tick                int64
	OnTimePercentage    float64
	AverageDelayMinutes float64
	OpenConflicts       int
}

// Trend keeps the most recent points of the punctuality history
type Trend struct {
	mutex  sync.Mutex
	limit  int
	points []TrendPoint
}

func NewTrend(limit int) *Trend {
	return &Trend{limit: limit}
}

func (t *Trend) Add(dashboard DashboardStats) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	t.points = append(t.points, TrendPoint{
		Tick:                dashboard.Tick,
		OnTimePercentage:    dashboard.OnTimePercentage,
		AverageDelayMinutes: dashboard.AverageDelayMinutes,
		OpenConflicts:       dashboard.OpenConflicts,
	})

	if t.limit > 0 && len(t.points) > t.limit {
		t.points = slices.Delete(t.points, 0, len(t.points)-t.limit)
	}
}

func (t *Trend) Points() []TrendPoint {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	return slices.Clone(t.points)
}
