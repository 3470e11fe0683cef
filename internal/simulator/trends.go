package simulator

import (
	"fmt"
	"math"

	"github.com/minewatch/emergency/internal/model"
)

// TrendSummary condenses a sensor's recent history for export consumers.
type TrendSummary struct {
	SensorID       string             `json:"sensor_id"`
	CurrentValue   float64            `json:"current_value"`
	Unit           string             `json:"unit"`
	TrendDirection string             `json:"trend_direction"` // increasing | decreasing | stable
	TrendPercent   float64            `json:"trend_percentage"`
	RecentAverage  float64            `json:"recent_average"`
	Volatility     float64            `json:"volatility"`
	Status         model.SensorStatus `json:"status"`
	ReadingsCount  int                `json:"readings_count"`
}

// Trend compares the mean of the last 10 readings against the 10 before
// them; a ±10% shift counts as a trend.
func (s *Simulator) Trend(sensorID string) (TrendSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[sensorID]; !ok {
		return TrendSummary{}, fmt.Errorf("unknown sensor %q", sensorID)
	}
	h := s.history[sensorID]
	if len(h) < 2 {
		return TrendSummary{}, fmt.Errorf("insufficient history for %q", sensorID)
	}

	recent := values(h[max(0, len(h)-10):])
	older := recent
	if len(h) >= 20 {
		older = values(h[len(h)-20 : len(h)-10])
	}

	recentAvg := mean(recent)
	olderAvg := mean(older)

	direction := "stable"
	trendPct := 0.0
	switch {
	case olderAvg > 0 && recentAvg > olderAvg*1.1:
		direction = "increasing"
		trendPct = (recentAvg - olderAvg) / olderAvg * 100
	case olderAvg > 0 && recentAvg < olderAvg*0.9:
		direction = "decreasing"
		trendPct = (olderAvg - recentAvg) / olderAvg * 100
	}

	last := h[len(h)-1]
	return TrendSummary{
		SensorID:       sensorID,
		CurrentValue:   last.Value,
		Unit:           last.Unit,
		TrendDirection: direction,
		TrendPercent:   math.Round(trendPct*100) / 100,
		RecentAverage:  math.Round(recentAvg*100) / 100,
		Volatility:     math.Round(stddev(recent)*100) / 100,
		Status:         last.Status,
		ReadingsCount:  len(h),
	}, nil
}

func values(readings []model.SensorReading) []float64 {
	out := make([]float64, len(readings))
	for i, r := range readings {
		out[i] = r.Value
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		ss += (x - m) * (x - m)
	}
	return math.Sqrt(ss / float64(len(xs)))
}
