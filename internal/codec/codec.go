// Package codec implements the reversible delta encoding applied to block
// volume series before they leave the service.
//
// A series of (epoch, volume) samples is represented by the absolute values
// of the first sample plus signed per-field deltas for every subsequent
// sample. Epochs in a valid series are non-decreasing; volumes may move in
// either direction, so volume deltas are signed.
package codec

import (
	"github.com/xtxerr/blockvol/internal/errors"
	"github.com/xtxerr/blockvol/internal/types"
)

// EncodedSeries is the compact delta representation of a sample series.
// The zero value is the encoding of the empty series.
type EncodedSeries struct {
	// Count is the number of samples in the original series.
	Count int `json:"count"`

	// BaseEpoch and BaseVolume are the absolute values of the first
	// sample. Both are zero when Count is zero.
	BaseEpoch  int64 `json:"baseEpoch"`
	BaseVolume int64 `json:"baseVolume"`

	// EpochDeltas and VolumeDeltas carry one signed delta per sample
	// after the first, in series order. Both have length Count-1 for a
	// non-empty series.
	EpochDeltas  []int64 `json:"epochDeltas"`
	VolumeDeltas []int64 `json:"volumeDeltas"`
}

// Encode compresses an ordered sample series into its delta representation.
// The input must already be sorted by ascending epoch; empty and
// single-sample inputs are valid.
func Encode(samples []types.Sample) EncodedSeries {
	if len(samples) == 0 {
		return EncodedSeries{
			EpochDeltas:  []int64{},
			VolumeDeltas: []int64{},
		}
	}

	es := EncodedSeries{
		Count:        len(samples),
		BaseEpoch:    samples[0].Epoch,
		BaseVolume:   samples[0].Volume,
		EpochDeltas:  make([]int64, 0, len(samples)-1),
		VolumeDeltas: make([]int64, 0, len(samples)-1),
	}

	prev := samples[0]
	for _, s := range samples[1:] {
		es.EpochDeltas = append(es.EpochDeltas, s.Epoch-prev.Epoch)
		es.VolumeDeltas = append(es.VolumeDeltas, s.Volume-prev.Volume)
		prev = s
	}

	return es
}

// Decode reconstructs the original sample series by accumulating deltas
// onto the base pair. It fails with a malformed-series error when the delta
// counts disagree with the declared Count.
func Decode(es EncodedSeries) ([]types.Sample, error) {
	if err := es.validate(); err != nil {
		return nil, err
	}

	if es.Count == 0 {
		return []types.Sample{}, nil
	}

	samples := make([]types.Sample, 0, es.Count)
	cur := types.Sample{Epoch: es.BaseEpoch, Volume: es.BaseVolume}
	samples = append(samples, cur)

	for i := range es.EpochDeltas {
		cur.Epoch += es.EpochDeltas[i]
		cur.Volume += es.VolumeDeltas[i]
		samples = append(samples, cur)
	}

	return samples, nil
}

// validate checks the series metadata against its delta payload.
func (es EncodedSeries) validate() error {
	if es.Count < 0 {
		return errors.NewMalformedSeries("negative count %d", es.Count)
	}
	if len(es.EpochDeltas) != len(es.VolumeDeltas) {
		return errors.NewMalformedSeries("epoch deltas %d != volume deltas %d",
			len(es.EpochDeltas), len(es.VolumeDeltas))
	}

	want := es.Count - 1
	if es.Count == 0 {
		want = 0
	}
	if len(es.EpochDeltas) != want {
		return errors.NewMalformedSeries("count %d requires %d deltas, got %d",
			es.Count, want, len(es.EpochDeltas))
	}

	return nil
}
