// Package metrics holds the scoring formulas. Every function is pure; missing
// inputs produce a neutral value or ok=false, never an error.
package metrics

import (
	"math"

	"github.com/kazz187/taskpulse/internal/instance"
)

// Relief is the derived relief triple persisted on a completed instance.
type Relief struct {
	Net            float64
	Serendipity    float64
	Disappointment float64
}

// NetRelief is actual − expected relief. Both are taken as already being on
// the 0–100 scale; no rescaling is applied.
func NetRelief(expected, actual float64) float64 {
	return actual - expected
}

// ReliefFactors splits a net relief into its positive and negative parts, so
// at most one of them is non-zero.
func ReliefFactors(net float64) (serendipity, disappointment float64) {
	return math.Max(0, net), math.Max(0, -net)
}

// ComputeRelief returns the relief triple when both expected and actual
// relief are present.
func ComputeRelief(predicted, actual instance.Attributes) (Relief, bool) {
	expected, ok := predicted.Float(instance.AttrExpectedRelief)
	if !ok {
		return Relief{}, false
	}
	got, ok := actual.Float(instance.AttrActualRelief)
	if !ok {
		return Relief{}, false
	}
	net := NetRelief(expected, got)
	s, d := ReliefFactors(net)
	return Relief{Net: net, Serendipity: s, Disappointment: d}, true
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
