// Package types holds the data model shared by the cache, upstream, and
// series components: samples, raw cache rows, and request ranges.
package types

import (
	"fmt"
	"strconv"
	"time"
)

// DefaultWindow is the number of blocks returned when a request carries no
// usable range. Both the cache and the upstream client apply it; nothing in
// the system ever issues an unbounded read.
const DefaultWindow = 100

// Sample is a single (epoch, volume) observation.
type Sample struct {
	// Epoch is the observation time as a unix timestamp in seconds.
	Epoch int64 `json:"epoch"`

	// Volume is the number of transactions observed in the block.
	Volume int64 `json:"volume"`
}

// Row is a raw cache row as stored in the transactions table.
type Row struct {
	BlockID   int64  `json:"block_id"`
	Volume    int64  `json:"volume"`
	CreatedAt string `json:"created_at"`
}

// Range is a requested block-id range. Bounded is false when either bound
// was missing or unparseable; consumers then fall back to DefaultWindow.
type Range struct {
	Start   int64
	End     int64
	Bounded bool
}

// ParseRange builds a Range from raw query-string values. Both values must
// parse as integers for the range to be bounded; anything else yields an
// unbounded range rather than an error.
func ParseRange(start, end string) Range {
	s, serr := strconv.ParseInt(start, 10, 64)
	e, eerr := strconv.ParseInt(end, 10, 64)
	if serr != nil || eerr != nil {
		return Range{}
	}
	return Range{Start: s, End: e, Bounded: true}
}

// String returns a human-readable representation for logging.
func (r Range) String() string {
	if !r.Bounded {
		return fmt.Sprintf("default[%d]", DefaultWindow)
	}
	return fmt.Sprintf("[%d,%d]", r.Start, r.End)
}

// timestampLayouts are the accepted created_at formats, tried in order.
// The cache ingester writes the first form; upstream records use RFC 3339.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
}

// EpochFromTimestamp converts a created_at timestamp to a unix epoch in
// seconds. Every data source goes through this one conversion so that the
// ordering of samples cannot depend on where they came from.
func EpochFromTimestamp(ts string) (int64, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, ts); err == nil {
			return t.Unix(), nil
		}
	}
	return 0, fmt.Errorf("unrecognized timestamp %q", ts)
}

// RowToSample converts a raw cache row to a Sample.
func RowToSample(r Row) (Sample, error) {
	epoch, err := EpochFromTimestamp(r.CreatedAt)
	if err != nil {
		return Sample{}, fmt.Errorf("row %d: %w", r.BlockID, err)
	}
	return Sample{Epoch: epoch, Volume: r.Volume}, nil
}
