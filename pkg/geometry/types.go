// Package geometry provides the basic value types shared by the calibration,
// reconstruction, and fitting packages: 3D positions, 2D image points, Euler
// orientations, and ordered point sets.
package geometry

import (
	"math"
)

// Position represents a point or vector in the shared 3D reconstruction frame.
// Coordinates are in meters.
type Position struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
	Z float64 `yaml:"z" json:"z"`
}

// NewPosition creates a new Position.
func NewPosition(x, y, z float64) Position {
	return Position{X: x, Y: y, Z: z}
}

// Add returns the component-wise sum of two positions.
func (p Position) Add(other Position) Position {
	return Position{X: p.X + other.X, Y: p.Y + other.Y, Z: p.Z + other.Z}
}

// Sub returns the component-wise difference of two positions.
func (p Position) Sub(other Position) Position {
	return Position{X: p.X - other.X, Y: p.Y - other.Y, Z: p.Z - other.Z}
}

// Scale returns the position scaled by a factor.
func (p Position) Scale(factor float64) Position {
	return Position{X: p.X * factor, Y: p.Y * factor, Z: p.Z * factor}
}

// Magnitude returns the Euclidean length of the position vector.
func (p Position) Magnitude() float64 {
	return math.Sqrt(p.X*p.X + p.Y*p.Y + p.Z*p.Z)
}

// Normalize returns the unit vector in the direction of p.
// The zero vector is returned unchanged.
func (p Position) Normalize() Position {
	m := p.Magnitude()
	if m == 0 {
		return p
	}
	return p.Scale(1 / m)
}

// DistanceTo returns the Euclidean distance to another position.
func (p Position) DistanceTo(other Position) float64 {
	return p.Sub(other).Magnitude()
}

// IsFinite reports whether all three coordinates are finite.
func (p Position) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) &&
		!math.IsNaN(p.Y) && !math.IsInf(p.Y, 0) &&
		!math.IsNaN(p.Z) && !math.IsInf(p.Z, 0)
}

// Point2D represents a point in one image's pixel-derived physical plane.
// Coordinates are in meters unless a caller explicitly works in pixels.
type Point2D struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
}

// NewPoint2D creates a new Point2D.
func NewPoint2D(x, y float64) Point2D {
	return Point2D{X: x, Y: y}
}

// Add returns the component-wise sum of two points.
func (p Point2D) Add(other Point2D) Point2D {
	return Point2D{X: p.X + other.X, Y: p.Y + other.Y}
}

// Sub returns the component-wise difference of two points.
func (p Point2D) Sub(other Point2D) Point2D {
	return Point2D{X: p.X - other.X, Y: p.Y - other.Y}
}

// Scale returns the point scaled by a factor.
func (p Point2D) Scale(factor float64) Point2D {
	return Point2D{X: p.X * factor, Y: p.Y * factor}
}

// Magnitude returns the Euclidean length of the point treated as a vector.
func (p Point2D) Magnitude() float64 {
	return math.Hypot(p.X, p.Y)
}

// DistanceTo returns the Euclidean distance to another point.
func (p Point2D) DistanceTo(other Point2D) float64 {
	return math.Hypot(p.X-other.X, p.Y-other.Y)
}

// Orientation describes an image plane's rotation relative to the reference
// frame as an Euler-angle triple in degrees. Orientations are currently fixed
// per plane role rather than measured.
type Orientation struct {
	RX float64 `yaml:"rx" json:"rx"`
	RY float64 `yaml:"ry" json:"ry"`
	RZ float64 `yaml:"rz" json:"rz"`
}

// Apply rotates a vector by the orientation's Euler angles, applying the
// rotations in Z, Y, X order (extrinsic frame axes).
func (o Orientation) Apply(v Position) Position {
	rx := o.RX * math.Pi / 180
	ry := o.RY * math.Pi / 180
	rz := o.RZ * math.Pi / 180

	// Rotate about X.
	cos, sin := math.Cos(rx), math.Sin(rx)
	v = Position{X: v.X, Y: cos*v.Y - sin*v.Z, Z: sin*v.Y + cos*v.Z}

	// Rotate about Y.
	cos, sin = math.Cos(ry), math.Sin(ry)
	v = Position{X: cos*v.X + sin*v.Z, Y: v.Y, Z: -sin*v.X + cos*v.Z}

	// Rotate about Z.
	cos, sin = math.Cos(rz), math.Sin(rz)
	return Position{X: cos*v.X - sin*v.Y, Y: sin*v.X + cos*v.Y, Z: v.Z}
}

// Bounds is the axis-aligned bounding box of a point set.
type Bounds struct {
	MinX float64 `yaml:"minX" json:"minX"`
	MinY float64 `yaml:"minY" json:"minY"`
	MaxX float64 `yaml:"maxX" json:"maxX"`
	MaxY float64 `yaml:"maxY" json:"maxY"`
}

// Width returns the horizontal extent of the bounds.
func (b Bounds) Width() float64 { return b.MaxX - b.MinX }

// Height returns the vertical extent of the bounds.
func (b Bounds) Height() float64 { return b.MaxY - b.MinY }

// Contains reports whether the point lies inside or on the bounds.
func (b Bounds) Contains(p Point2D) bool {
	return p.X >= b.MinX && p.X <= b.MaxX && p.Y >= b.MinY && p.Y <= b.MaxY
}
