// Package model fits the fixed-feature linear demand model and projects it forward.
package model

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrNoTrainingRows is returned by Fit when the design matrix is empty.
var ErrNoTrainingRows = errors.New("no training rows")

// rcond is the relative cutoff below which singular values are treated as zero.
const rcond = 1e-10

// perfectFitTolerance bounds the residual sum of squares accepted as an exact fit
// when the target has no variance. Both tolerances scale with max(1, n·mean²).
const perfectFitTolerance = 1e-9

// zeroVarianceTolerance bounds SStot treated as a constant target, absorbing the
// rounding error of the mean.
const zeroVarianceTolerance = 1e-12

// Linear is an ordinary least squares model with intercept.
type Linear struct {
	Coef      []float64 // one per features.Schema column
	Intercept float64
	R2        float64 // in-sample coefficient of determination, may be negative
	Rows      int     // training rows
}

// Fit solves min ||y - (Xb + c)||² for b and c.
//
// X and y are centred, so the intercept is ymean - xmean·b. The coefficients are
// the minimum-norm solution from a thin SVD, which keeps rank-deficient designs
// (constant or collinear columns) well defined.
func Fit(X [][]float64, y []float64) (*Linear, error) {
	n := len(y)
	if n == 0 || len(X) == 0 {
		return nil, ErrNoTrainingRows
	}
	if len(X) != n {
		return nil, fmt.Errorf("design has %d rows, target has %d", len(X), n)
	}
	p := len(X[0])
	for i, row := range X {
		if len(row) != p {
			return nil, fmt.Errorf("row %d has %d columns, want %d", i, len(row), p)
		}
	}

	xmean := make([]float64, p)
	var ymean float64
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			xmean[j] += X[i][j]
		}
		ymean += y[i]
	}
	for j := range xmean {
		xmean[j] /= float64(n)
	}
	ymean /= float64(n)

	xc := mat.NewDense(n, p, nil)
	yc := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			xc.Set(i, j, X[i][j]-xmean[j])
		}
		yc.SetVec(i, y[i]-ymean)
	}

	coef := make([]float64, p)

	var svd mat.SVD
	if !svd.Factorize(xc, mat.SVDThin) {
		return nil, errors.New("svd factorization failed")
	}
	if rank := svd.Rank(rcond); rank > 0 {
		var b mat.VecDense
		svd.SolveVecTo(&b, yc, rank)
		for j := 0; j < p; j++ {
			coef[j] = b.AtVec(j)
		}
	}

	intercept := ymean
	for j := 0; j < p; j++ {
		intercept -= xmean[j] * coef[j]
	}

	m := &Linear{Coef: coef, Intercept: intercept, Rows: n}

	pred := make([]float64, n)
	for i := range X {
		pred[i] = m.Predict(X[i])
	}
	m.R2 = R2(y, pred)

	return m, nil
}

// Predict evaluates the model on one feature row.
func (m *Linear) Predict(row []float64) float64 {
	v := m.Intercept
	for j, c := range m.Coef {
		v += c * row[j]
	}
	return v
}

// ClampedR2 returns R2 floored at zero.
func (m *Linear) ClampedR2() float64 {
	return ClampR2(m.R2)
}

// R2 computes 1 - SSres/SStot.
// Returns 0 for fewer than two observations. With zero target variance it
// returns 1 for an exact fit and 0 otherwise.
func R2(actual, predicted []float64) float64 {
	n := len(actual)
	if n <= 1 || len(predicted) != n {
		return 0
	}

	var mean float64
	for _, v := range actual {
		mean += v
	}
	mean /= float64(n)

	var ssRes, ssTot float64
	for i, v := range actual {
		d := v - predicted[i]
		ssRes += d * d
		t := v - mean
		ssTot += t * t
	}

	scale := math.Max(1, float64(n)*mean*mean)
	if ssTot <= zeroVarianceTolerance*scale {
		if ssRes <= perfectFitTolerance*scale {
			return 1
		}
		return 0
	}
	return 1 - ssRes/ssTot
}

// ClampR2 floors r2 at zero. NaN maps to zero.
func ClampR2(r2 float64) float64 {
	if math.IsNaN(r2) || r2 < 0 {
		return 0
	}
	return r2
}
