package statmodel

import (
	"fmt"
	"math"
)

// Varimax applies an orthogonal varimax rotation to a p x k loading
// matrix using pairwise planar rotations. It returns the rotated
// loadings and the accumulated k x k rotation matrix, so factor scores
// can be rotated consistently. Non-convergence within maxIter is an
// error: the historical reports never carried a half-rotated solution.
func Varimax(loadings [][]float64, maxIter int, tol float64) ([][]float64, [][]float64, error) {
	if len(loadings) == 0 {
		return nil, nil, fmt.Errorf("empty loading matrix")
	}
	nVars := len(loadings)
	nFactors := len(loadings[0])

	rotated := make([][]float64, nVars)
	for i := range loadings {
		if len(loadings[i]) != nFactors {
			return nil, nil, fmt.Errorf("ragged loading matrix at row %d", i)
		}
		rotated[i] = append([]float64(nil), loadings[i]...)
	}
	rotation := identity(nFactors)
	if nFactors < 2 {
		return rotated, rotation, nil
	}

	for iter := 0; iter < maxIter; iter++ {
		prev := cloneMatrix(rotation)

		for i := 0; i < nFactors; i++ {
			for j := i + 1; j < nFactors; j++ {
				var a, bSum, cSum, dSum float64
				for v := 0; v < nVars; v++ {
					x := rotated[v][i]
					y := rotated[v][j]
					u := x*x - y*y
					w := 2 * x * y
					a += u
					bSum += w
					cSum += u*u - w*w
					dSum += 2 * u * w
				}
				num := dSum - 2*a*bSum/float64(nVars)
				den := cSum - (a*a-bSum*bSum)/float64(nVars)
				phi := 0.25 * math.Atan2(num, den)

				cosPhi := math.Cos(phi)
				sinPhi := math.Sin(phi)
				for v := 0; v < nVars; v++ {
					x := rotated[v][i]
					y := rotated[v][j]
					rotated[v][i] = cosPhi*x + sinPhi*y
					rotated[v][j] = -sinPhi*x + cosPhi*y
				}

				plane := identity(nFactors)
				plane[i][i] = cosPhi
				plane[j][j] = cosPhi
				plane[i][j] = sinPhi
				plane[j][i] = -sinPhi
				rotation = matMul(rotation, plane)
			}
		}

		if matricesClose(rotation, prev, tol) {
			return rotated, rotation, nil
		}
	}
	return nil, nil, fmt.Errorf("varimax rotation did not converge in %d iterations", maxIter)
}

func identity(n int) [][]float64 {
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
		m[i][i] = 1
	}
	return m
}

func cloneMatrix(m [][]float64) [][]float64 {
	out := make([][]float64, len(m))
	for i := range m {
		out[i] = append([]float64(nil), m[i]...)
	}
	return out
}

func matMul(a, b [][]float64) [][]float64 {
	n := len(a)
	inner := len(b)
	cols := len(b[0])
	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		out[i] = make([]float64, cols)
		for j := 0; j < cols; j++ {
			s := 0.0
			for k := 0; k < inner; k++ {
				s += a[i][k] * b[k][j]
			}
			out[i][j] = s
		}
	}
	return out
}

func matricesClose(a, b [][]float64, tol float64) bool {
	for i := range a {
		for j := range a[i] {
			if math.Abs(a[i][j]-b[i][j]) > tol {
				return false
			}
		}
	}
	return true
}
