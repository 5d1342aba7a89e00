package geometry

import (
	"errors"
)

// ErrEmptyPointSet is returned by aggregate queries on a point set with no points.
var ErrEmptyPointSet = errors.New("point set is empty")

// PointSet is an ordered collection of 2D points, typically one per user
// annotation. Insertion order is preserved for display purposes but is
// irrelevant to fitting. Points are never deduplicated implicitly; callers
// that need deduplication use Dedup with an epsilon of their choosing.
type PointSet []Point2D

// NewPointSet creates a point set from the given points.
func NewPointSet(points ...Point2D) PointSet {
	ps := make(PointSet, len(points))
	copy(ps, points)
	return ps
}

// Add appends a point and returns the extended set.
func (ps PointSet) Add(p Point2D) PointSet {
	return append(ps, p)
}

// Len returns the number of points in the set.
func (ps PointSet) Len() int { return len(ps) }

// Centroid returns the arithmetic mean of all points.
func (ps PointSet) Centroid() (Point2D, error) {
	if len(ps) == 0 {
		return Point2D{}, ErrEmptyPointSet
	}
	var sumX, sumY float64
	for _, p := range ps {
		sumX += p.X
		sumY += p.Y
	}
	n := float64(len(ps))
	return Point2D{X: sumX / n, Y: sumY / n}, nil
}

// Bounds returns the tight axis-aligned bounding box of the set.
func (ps PointSet) Bounds() (Bounds, error) {
	if len(ps) == 0 {
		return Bounds{}, ErrEmptyPointSet
	}
	b := Bounds{MinX: ps[0].X, MinY: ps[0].Y, MaxX: ps[0].X, MaxY: ps[0].Y}
	for _, p := range ps[1:] {
		if p.X < b.MinX {
			b.MinX = p.X
		}
		if p.X > b.MaxX {
			b.MaxX = p.X
		}
		if p.Y < b.MinY {
			b.MinY = p.Y
		}
		if p.Y > b.MaxY {
			b.MaxY = p.Y
		}
	}
	return b, nil
}

// Dedup returns a new set with points closer than epsilon to an earlier
// point removed. Order of the surviving points is preserved.
func (ps PointSet) Dedup(epsilon float64) PointSet {
	out := make(PointSet, 0, len(ps))
	for _, p := range ps {
		dup := false
		for _, q := range out {
			if p.DistanceTo(q) < epsilon {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, p)
		}
	}
	return out
}

// Coordinates returns the X and Y coordinates as parallel slices, in order.
func (ps PointSet) Coordinates() (xs, ys []float64) {
	xs = make([]float64, len(ps))
	ys = make([]float64, len(ps))
	for i, p := range ps {
		xs[i] = p.X
		ys[i] = p.Y
	}
	return xs, ys
}
