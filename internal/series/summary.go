package series

import (
	"context"

	"github.com/DataDog/sketches-go/ddsketch"

	"github.com/xtxerr/blockvol/internal/types"
)

// VolumeSummary describes the volume distribution over a range. Like
// Envelope, IsCached appears only when the cache served the samples.
type VolumeSummary struct {
	IsCached bool `json:"isCached,omitempty"`

	Count int64   `json:"count"`
	Sum   int64   `json:"sum"`
	Min   int64   `json:"min"`
	Max   int64   `json:"max"`
	Avg   float64 `json:"avg"`

	P50 float64 `json:"p50"`
	P90 float64 `json:"p90"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

// Summarize resolves the range through the same cache-then-fallback path as
// Encoded and reduces the volumes to a percentile summary.
func (s *Service) Summarize(ctx context.Context, rng types.Range) (VolumeSummary, error) {
	samples, cached, err := s.samples(ctx, rng)
	if err != nil {
		return VolumeSummary{}, err
	}

	summary := VolumeSummary{IsCached: cached}
	if len(samples) == 0 {
		return summary, nil
	}

	sketch, err := ddsketch.NewDefaultDDSketch(s.accuracy)
	if err != nil {
		return VolumeSummary{}, err
	}

	summary.Min = samples[0].Volume
	summary.Max = samples[0].Volume

	for _, sm := range samples {
		summary.Count++
		summary.Sum += sm.Volume
		if sm.Volume < summary.Min {
			summary.Min = sm.Volume
		}
		if sm.Volume > summary.Max {
			summary.Max = sm.Volume
		}
		if err := sketch.Add(float64(sm.Volume)); err != nil {
			return VolumeSummary{}, err
		}
	}

	summary.Avg = float64(summary.Sum) / float64(summary.Count)

	quantiles, err := sketch.GetValuesAtQuantiles([]float64{0.50, 0.90, 0.95, 0.99})
	if err != nil {
		return VolumeSummary{}, err
	}
	summary.P50 = quantiles[0]
	summary.P90 = quantiles[1]
	summary.P95 = quantiles[2]
	summary.P99 = quantiles[3]

	return summary, nil
}
