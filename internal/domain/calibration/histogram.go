// Package calibration relates rating gaps to observed outcome frequency.
package calibration

import (
	"errors"
	"math"
)

// ErrInvalidWidth is returned for a non-positive bucket width.
var ErrInvalidWidth = errors.New("bucket width must be positive")

// Bucket counts matches whose gap fell below UpperBound and above the
// previous bucket's bound.
type Bucket struct {
	UpperBound float64 `json:"upper_bound"`
	Count      int     `json:"count"`
	Sum        float64 `json:"sum"`
}

// Rate is the observed frequency with which the higher rated side won.
// Draws count half. Empty buckets report NaN.
func (b Bucket) Rate() float64 {
	if b.Count == 0 {
		return math.NaN()
	}
	return b.Sum / float64(b.Count)
}

// Histogram is a growing table of fixed-width buckets.
type Histogram struct {
	width   float64
	buckets []Bucket
}

// New returns a histogram with a single bucket bounded by width.
func New(width float64) (*Histogram, error) {
	if !(width > 0) || math.IsInf(width, 0) {
		return nil, ErrInvalidWidth
	}
	return &Histogram{width: width, buckets: []Bucket{{UpperBound: width}}}, nil
}

// Width returns the bucket width.
func (h *Histogram) Width() float64 { return h.width }

// Observe records one match with absolute rating gap gap. indicator is 1
// when the higher rated side won, 0 when it lost and 0.5 on a draw.
func (h *Histogram) Observe(gap, indicator float64) {
	gap = math.Abs(gap)
	for gap >= h.buckets[len(h.buckets)-1].UpperBound {
		last := h.buckets[len(h.buckets)-1].UpperBound
		h.buckets = append(h.buckets, Bucket{UpperBound: last + h.width})
	}
	i := int(gap / h.width)
	// float rounding can land one bucket off near a bound
	for i > 0 && h.buckets[i-1].UpperBound > gap {
		i--
	}
	for h.buckets[i].UpperBound <= gap {
		i++
	}
	h.buckets[i].Count++
	h.buckets[i].Sum += indicator
}

// Buckets returns a copy of the table in ascending bound order.
func (h *Histogram) Buckets() []Bucket {
	out := make([]Bucket, len(h.buckets))
	copy(out, h.buckets)
	return out
}

// Total returns the number of observed matches.
func (h *Histogram) Total() int {
	n := 0
	for _, b := range h.buckets {
		n += b.Count
	}
	return n
}
