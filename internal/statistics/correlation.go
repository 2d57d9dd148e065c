package statistics

import (
	"math"
	"sort"
)

// Pearson computes the Pearson correlation coefficient between x and y.
// Returns NaN when the slices differ in length, hold fewer than two
// points, or either series has zero variance.
func Pearson(x, y []float64) float64 {
	n := len(x)
	if n != len(y) || n < 2 {
		return math.NaN()
	}

	mx := mean(x)
	my := mean(y)

	var cov, varX, varY float64
	for i := 0; i < n; i++ {
		dx := x[i] - mx
		dy := y[i] - my
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}

	if varX == 0 || varY == 0 {
		return math.NaN()
	}
	return cov / math.Sqrt(varX*varY)
}

// Spearman computes the Spearman rank correlation: Pearson over the
// ranks of the inputs, with ties assigned their average rank.
func Spearman(x, y []float64) float64 {
	if len(x) != len(y) || len(x) < 2 {
		return math.NaN()
	}
	return Pearson(ranks(x), ranks(y))
}

// ranks assigns 1-based fractional ranks, averaging over ties.
func ranks(values []float64) []float64 {
	n := len(values)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })

	out := make([]float64, n)
	i := 0
	for i < n {
		j := i
		for j+1 < n && values[idx[j+1]] == values[idx[i]] {
			j++
		}
		// Average rank for the tie group [i, j].
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			out[idx[k]] = avg
		}
		i = j + 1
	}
	return out
}

// MAE computes the mean absolute error between predicted and actual.
// Returns NaN for mismatched or empty input.
func MAE(predicted, actual []float64) float64 {
	n := len(predicted)
	if n != len(actual) || n == 0 {
		return math.NaN()
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += math.Abs(predicted[i] - actual[i])
	}
	return sum / float64(n)
}

// SignedBias computes mean(predicted - actual). Positive means the
// predictor runs generous, negative means harsh.
func SignedBias(predicted, actual []float64) float64 {
	n := len(predicted)
	if n != len(actual) || n == 0 {
		return math.NaN()
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += predicted[i] - actual[i]
	}
	return sum / float64(n)
}

// AgreementWithin computes the fraction of pairs whose absolute
// difference is at most tol.
func AgreementWithin(predicted, actual []float64, tol float64) float64 {
	n := len(predicted)
	if n != len(actual) || n == 0 {
		return math.NaN()
	}
	hits := 0
	for i := 0; i < n; i++ {
		if math.Abs(predicted[i]-actual[i]) <= tol {
			hits++
		}
	}
	return float64(hits) / float64(n)
}
