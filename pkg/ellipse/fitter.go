package ellipse

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"eosrecon/pkg/geometry"
)

// MinPoints is the smallest point count the direct conic fit accepts; five
// points determine a conic up to scale.
const MinPoints = 5

// DefaultDedupEpsilon is the default distance, in input units (typically
// pixels), below which two annotation points are treated as duplicates.
// Near-duplicate points destabilize the scatter matrices and must not be
// silently kept.
const DefaultDedupEpsilon = 1.0

// ErrInsufficientPoints is returned when fewer than MinPoints points remain
// after deduplication.
var ErrInsufficientPoints = errors.New("insufficient points for ellipse fit")

// ErrSingularMatrix is returned when the linear scatter matrix is singular,
// which happens for collinear or coincident input points.
var ErrSingularMatrix = errors.New("singular scatter matrix")

// ErrNoValidEllipse is returned when no eigenvector satisfies the ellipse
// discriminant constraint; the point set does not resemble an ellipse closely
// enough for the closed-form method.
var ErrNoValidEllipse = errors.New("no valid ellipse for point set")

// Fitter performs direct least-squares ellipse fits. The only state is the
// deduplication epsilon; a Fitter holds nothing between calls and the zero
// value disables deduplication.
type Fitter struct {
	// DedupEpsilon is the distance below which input points are collapsed
	// before fitting. Zero or negative disables deduplication.
	DedupEpsilon float64
}

// NewFitter returns a fitter with the default deduplication epsilon.
func NewFitter() *Fitter {
	return &Fitter{DedupEpsilon: DefaultDedupEpsilon}
}

// Fit runs the default fitter on the point set.
func Fit(points geometry.PointSet) (*Parameters, error) {
	return NewFitter().Fit(points)
}

// Fit computes the best-fit ellipse through the point set.
//
// The fit follows Halir and Flusser's stable split of Fitzgibbon's method:
// the design matrix is partitioned into a quadratic part D1 = [x² xy y²] and
// a linear part D2 = [x y 1], the scatter blocks S1 = D1ᵀD1, S2 = D1ᵀD2,
// S3 = D2ᵀD2 are formed, the linear coefficients are eliminated through
// T = -S3⁻¹S2ᵀ, and the quadratic coefficients come from the eigenvector of
// the reduced 3x3 system C1⁻¹(S1 + S2·T) that satisfies the ellipse
// constraint 4·a1·a3 - a2² > 0.
func (f *Fitter) Fit(points geometry.PointSet) (*Parameters, error) {
	if f.DedupEpsilon > 0 {
		points = points.Dedup(f.DedupEpsilon)
	}
	n := len(points)
	if n < MinPoints {
		return nil, fmt.Errorf("%w: need %d points, have %d", ErrInsufficientPoints, MinPoints, n)
	}

	d1 := mat.NewDense(n, 3, nil)
	d2 := mat.NewDense(n, 3, nil)
	for i, p := range points {
		d1.Set(i, 0, p.X*p.X)
		d1.Set(i, 1, p.X*p.Y)
		d1.Set(i, 2, p.Y*p.Y)
		d2.Set(i, 0, p.X)
		d2.Set(i, 1, p.Y)
		d2.Set(i, 2, 1)
	}

	var s1, s2, s3 mat.Dense
	s1.Mul(d1.T(), d1)
	s2.Mul(d1.T(), d2)
	s3.Mul(d2.T(), d2)

	// T = -S3⁻¹·S2ᵀ.
	var t mat.Dense
	if err := t.Solve(&s3, s2.T()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingularMatrix, err)
	}
	t.Scale(-1, &t)

	// Reduced system M = C1⁻¹·(S1 + S2·T) with the constraint matrix
	// C1 = [[0,0,2],[0,-1,0],[2,0,0]], so C1⁻¹ swaps and scales rows.
	var m mat.Dense
	m.Mul(&s2, &t)
	m.Add(&s1, &m)
	reduced := mat.NewDense(3, 3, nil)
	for j := 0; j < 3; j++ {
		reduced.Set(0, j, m.At(2, j)/2)
		reduced.Set(1, j, -m.At(1, j))
		reduced.Set(2, j, m.At(0, j)/2)
	}

	var eig mat.Eigen
	if ok := eig.Factorize(reduced, mat.EigenRight); !ok {
		return nil, fmt.Errorf("%w: eigendecomposition failed", ErrNoValidEllipse)
	}
	var vecs mat.CDense
	eig.VectorsTo(&vecs)

	quad := selectEllipseVector(&vecs)
	if quad == nil {
		return nil, fmt.Errorf("%w: no eigenvector satisfies 4·a1·a3 - a2² > 0", ErrNoValidEllipse)
	}

	// Recover the linear coefficients from the eliminated block.
	var lin mat.VecDense
	lin.MulVec(&t, mat.NewVecDense(3, quad))

	conic := normalizeConic(Conic{
		A: quad[0], B: quad[1], C: quad[2],
		D: lin.AtVec(0), E: lin.AtVec(1), F: lin.AtVec(2),
	})
	return conicToParameters(conic)
}

// selectEllipseVector returns the quadratic coefficients of the eigenvector
// satisfying the ellipse discriminant constraint, or nil when none qualifies.
// For well-posed input exactly one eigenvector qualifies; with several, the
// one with the strongest normalized discriminant wins.
func selectEllipseVector(vecs *mat.CDense) []float64 {
	var best []float64
	bestCond := 0.0
	_, cols := vecs.Dims()
	for j := 0; j < cols; j++ {
		var re [3]float64
		var im, norm float64
		for i := 0; i < 3; i++ {
			v := vecs.At(i, j)
			re[i] = real(v)
			im += imag(v) * imag(v)
			norm += real(v) * real(v)
		}
		if norm == 0 || im > 1e-12*norm {
			continue
		}
		cond := (4*re[0]*re[2] - re[1]*re[1]) / norm
		if cond > 0 && cond > bestCond {
			best = []float64{re[0], re[1], re[2]}
			bestCond = cond
		}
	}
	return best
}

// normalizeConic scales the coefficients to unit norm with A > 0 so that
// algebraic residuals are comparable across fits.
func normalizeConic(c Conic) Conic {
	norm := math.Sqrt(c.A*c.A + c.B*c.B + c.C*c.C + c.D*c.D + c.E*c.E + c.F*c.F)
	if norm == 0 {
		return c
	}
	scale := 1 / norm
	if c.A < 0 {
		scale = -scale
	}
	c.A *= scale
	c.B *= scale
	c.C *= scale
	c.D *= scale
	c.E *= scale
	c.F *= scale
	return c
}

// conicToParameters converts implicit-conic coefficients to geometric ellipse
// parameters. The center is the stationary point of the quadratic form; the
// axes and rotation come from the eigendecomposition of the 2x2 form matrix.
func conicToParameters(c Conic) (*Parameters, error) {
	det := 4*c.A*c.C - c.B*c.B
	if det <= 0 {
		return nil, fmt.Errorf("%w: conic discriminant %g is not elliptic", ErrNoValidEllipse, det)
	}
	xc := (c.B*c.E - 2*c.C*c.D) / det
	yc := (c.B*c.D - 2*c.A*c.E) / det

	// Constant term after translating the conic to its center.
	f0 := c.Evaluate(xc, yc)
	if f0 >= 0 {
		return nil, fmt.Errorf("%w: degenerate conic with no real points", ErrNoValidEllipse)
	}

	var es mat.EigenSym
	form := mat.NewSymDense(2, []float64{c.A, c.B / 2, c.B / 2, c.C})
	if ok := es.Factorize(form, true); !ok {
		return nil, fmt.Errorf("%w: quadratic form decomposition failed", ErrNoValidEllipse)
	}
	vals := es.Values(nil)
	if vals[0] <= 0 {
		return nil, fmt.Errorf("%w: quadratic form is not positive definite", ErrNoValidEllipse)
	}
	var axes mat.Dense
	es.VectorsTo(&axes)

	// Eigenvalues are ascending, so the first eigenpair is the major axis.
	semiMajor := math.Sqrt(-f0 / vals[0])
	semiMinor := math.Sqrt(-f0 / vals[1])
	angle := math.Atan2(axes.At(1, 0), axes.At(0, 0))
	angle = math.Mod(angle, math.Pi)
	if angle < 0 {
		angle += math.Pi
	}

	return &Parameters{
		Center:    geometry.NewPoint2D(xc, yc),
		SemiMajor: semiMajor,
		SemiMinor: semiMinor,
		Angle:     angle,
		Conic:     c,
	}, nil
}
