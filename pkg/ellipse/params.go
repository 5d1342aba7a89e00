// Package ellipse implements direct least-squares ellipse fitting using the
// Fitzgibbon method in the numerically stable Halir-Flusser formulation. The
// fit is closed form: one generalized eigenproblem, no iteration and no
// initial guess.
package ellipse

import (
	"math"

	"eosrecon/pkg/geometry"
)

// Conic holds the six coefficients of the implicit conic
// A·x² + B·xy + C·y² + D·x + E·y + F = 0, normalized to unit Euclidean norm
// with A > 0.
type Conic struct {
	A float64 `yaml:"a" json:"a"`
	B float64 `yaml:"b" json:"b"`
	C float64 `yaml:"c" json:"c"`
	D float64 `yaml:"d" json:"d"`
	E float64 `yaml:"e" json:"e"`
	F float64 `yaml:"f" json:"f"`
}

// Evaluate returns the algebraic value of the conic at (x, y). Points on the
// curve evaluate to zero.
func (c Conic) Evaluate(x, y float64) float64 {
	return c.A*x*x + c.B*x*y + c.C*y*y + c.D*x + c.E*y + c.F
}

// residualAt returns the gradient-normalized (Sampson) distance of a point
// from the conic, a first-order approximation of the perpendicular distance.
func (c Conic) residualAt(x, y float64) float64 {
	v := math.Abs(c.Evaluate(x, y))
	gx := 2*c.A*x + c.B*y + c.D
	gy := c.B*x + 2*c.C*y + c.E
	g := math.Hypot(gx, gy)
	if g < 1e-12 {
		return v
	}
	return v / g
}

// Parameters is a fitted ellipse in geometric form together with the raw
// conic coefficients it was derived from.
type Parameters struct {
	// Center is the ellipse center in the input coordinate space.
	Center geometry.Point2D `yaml:"center" json:"center"`

	// SemiMajor and SemiMinor are the semi-axis lengths, SemiMajor >= SemiMinor > 0.
	SemiMajor float64 `yaml:"semiMajor" json:"semiMajor"`
	SemiMinor float64 `yaml:"semiMinor" json:"semiMinor"`

	// Angle is the rotation of the major axis in radians, normalized to [0, pi).
	Angle float64 `yaml:"angle" json:"angle"`

	// Conic holds the underlying implicit-conic coefficients.
	Conic Conic `yaml:"conic" json:"conic"`
}

// Eccentricity returns the eccentricity of the ellipse.
func (p *Parameters) Eccentricity() float64 {
	ratio := p.SemiMinor / p.SemiMajor
	return math.Sqrt(1 - ratio*ratio)
}

// PointAt returns the point on the ellipse at parametric angle t.
func (p *Parameters) PointAt(t float64) geometry.Point2D {
	cos, sin := math.Cos(p.Angle), math.Sin(p.Angle)
	u := p.SemiMajor * math.Cos(t)
	v := p.SemiMinor * math.Sin(t)
	return geometry.Point2D{
		X: p.Center.X + u*cos - v*sin,
		Y: p.Center.Y + u*sin + v*cos,
	}
}

// FitError returns the mean and maximum gradient-normalized residual of the
// given points against the fitted conic. Both are zero for points exactly on
// the ellipse.
func (p *Parameters) FitError(points geometry.PointSet) (mean, max float64, err error) {
	if len(points) == 0 {
		return 0, 0, geometry.ErrEmptyPointSet
	}
	var sum float64
	for _, pt := range points {
		r := p.Conic.residualAt(pt.X, pt.Y)
		sum += r
		if r > max {
			max = r
		}
	}
	return sum / float64(len(points)), max, nil
}
