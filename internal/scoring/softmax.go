package scoring

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var ErrEmptyScores = errors.New("empty score vector")

// Interpretation is the calibrated reading of one score vector.
type Interpretation struct {
	Index        int
	Confidence   float64
	Distribution []float64
}

// Softmax normalizes scores into a probability distribution. The maximum is
// subtracted before exponentiating so large magnitudes don't overflow.
func Softmax(scores []float32) []float64 {
	out := make([]float64, len(scores))
	if len(scores) == 0 {
		return out
	}

	hi := float64(scores[0])
	for _, s := range scores[1:] {
		if float64(s) > hi {
			hi = float64(s)
		}
	}

	var sum float64
	for i, s := range scores {
		out[i] = math.Exp(float64(s) - hi)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// Argmax returns the index of the largest value, the lowest index on ties,
// or -1 for an empty slice.
func Argmax(p []float64) int {
	if len(p) == 0 {
		return -1
	}
	best := 0
	for i := 1; i < len(p); i++ {
		if p[i] > p[best] {
			best = i
		}
	}
	return best
}

// Percent expresses a probability as a percentage rounded to 2 decimals.
func Percent(p float64) float64 {
	return math.Round(p*100*100) / 100
}

// Interpret applies softmax, selects the top class and its confidence.
func Interpret(scores []float32) (Interpretation, error) {
	if len(scores) == 0 {
		return Interpretation{}, ErrEmptyScores
	}
	for i, s := range scores {
		f := float64(s)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Interpretation{}, fmt.Errorf("score %d is not finite: %v", i, s)
		}
	}

	dist := Softmax(scores)
	idx := Argmax(dist)
	return Interpretation{
		Index:        idx,
		Confidence:   Percent(dist[idx]),
		Distribution: dist,
	}, nil
}

// TopK returns up to k indices ordered by probability, ties by index.
func TopK(p []float64, k int) []int {
	idx := make([]int, len(p))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return p[idx[a]] > p[idx[b]]
	})
	if k < len(idx) {
		idx = idx[:k]
	}
	return idx
}
