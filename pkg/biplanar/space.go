// Package biplanar implements the dual-plane geometric reconstruction engine
// for EOS-style biplanar X-ray acquisitions. From two calibrated, orthogonally
// mounted image planes it establishes a shared 3D frame anchored at the
// isocenter and converts measurements between that frame and each plane's 2D
// coordinates.
package biplanar

import (
	"errors"
	"fmt"
	"math"

	"eosrecon/pkg/calibration"
	"eosrecon/pkg/geometry"
)

// ErrDegenerateGeometry is returned when a projection or inverse projection
// denominator is zero or near zero. The input point lies outside the valid
// imaging volume; there is nothing to retry.
var ErrDegenerateGeometry = errors.New("degenerate geometry: projection denominator near zero")

// ErrGeometryNotComputed is returned when Project or InverseProject is called
// before CalculateGeometry.
var ErrGeometryNotComputed = errors.New("geometry not computed: call CalculateGeometry first")

// DefaultDenominatorEpsilon is the threshold below which a perspective
// denominator is treated as degenerate, in meters.
const DefaultDenominatorEpsilon = 1e-9

// Summary is a read-only snapshot of the derived reconstruction geometry,
// exposed for diagnostics and testing.
type Summary struct {
	SourceFrontal   geometry.Position `yaml:"sourceFrontal"`
	SourceLateral   geometry.Position `yaml:"sourceLateral"`
	OriginFrontal   geometry.Position `yaml:"originFrontal"`
	OriginLateral   geometry.Position `yaml:"originLateral"`
	PatientPosition geometry.Position `yaml:"patientPosition"`

	// DSTIFrontal and DSTILateral are the source-to-isocenter distances in
	// meters, repeated here so a summary is self-contained.
	DSTIFrontal float64 `yaml:"dstiFrontal"`
	DSTILateral float64 `yaml:"dstiLateral"`

	SpaceObjects map[string]geometry.Position `yaml:"spaceObjects,omitempty"`
}

// DualPlaneSpace owns the two calibrated planes of one reconstruction session
// and the 3D geometry derived from them. Derived state is computed by
// CalculateGeometry and is immutable until geometry is recomputed. A
// DualPlaneSpace is not safe for concurrent recomputation; independent
// sessions should use independent instances.
type DualPlaneSpace struct {
	frontal *calibration.CalibratedPlane
	lateral *calibration.CalibratedPlane

	patientOffset geometry.Position
	denomEpsilon  float64

	computed        bool
	sourceFrontal   geometry.Position
	sourceLateral   geometry.Position
	originFrontal   geometry.Position
	originLateral   geometry.Position
	patientPosition geometry.Position

	objects map[string]geometry.Position
}

// NewDualPlaneSpace creates a reconstruction session from a frontal and a
// lateral calibrated plane. The planes must carry the matching roles.
func NewDualPlaneSpace(frontal, lateral *calibration.CalibratedPlane) (*DualPlaneSpace, error) {
	if frontal == nil || lateral == nil {
		return nil, fmt.Errorf("both planes are required")
	}
	if frontal.Role != calibration.Frontal {
		return nil, fmt.Errorf("frontal slot holds %s plane", frontal.Role)
	}
	if lateral.Role != calibration.Lateral {
		return nil, fmt.Errorf("lateral slot holds %s plane", lateral.Role)
	}
	return &DualPlaneSpace{
		frontal:      frontal,
		lateral:      lateral,
		denomEpsilon: DefaultDenominatorEpsilon,
		objects:      make(map[string]geometry.Position),
	}, nil
}

// SetPatientOffset sets an offset of the patient position from the isocenter.
// It takes effect at the next CalculateGeometry call.
func (s *DualPlaneSpace) SetPatientOffset(offset geometry.Position) {
	s.patientOffset = offset
}

// SetDenominatorEpsilon overrides the degenerate-geometry threshold.
// Non-positive values restore the default.
func (s *DualPlaneSpace) SetDenominatorEpsilon(eps float64) {
	if eps <= 0 {
		eps = DefaultDenominatorEpsilon
	}
	s.denomEpsilon = eps
}

// Frontal returns the frontal plane descriptor.
func (s *DualPlaneSpace) Frontal() *calibration.CalibratedPlane { return s.frontal }

// Lateral returns the lateral plane descriptor.
func (s *DualPlaneSpace) Lateral() *calibration.CalibratedPlane { return s.lateral }

// CalculateGeometry derives the 3D reconstruction frame from the two planes:
// the frontal source on the negative Z axis, the lateral source on the
// negative X axis, each image rectangle centered on the isocenter and
// perpendicular to its source ray, and the patient position at the isocenter
// plus any configured offset. The call is idempotent. When the two
// source-to-isocenter distances differ, each axis is computed independently;
// no reconciliation between the planes is attempted.
func (s *DualPlaneSpace) CalculateGeometry() error {
	s.sourceFrontal = geometry.NewPosition(0, 0, -s.frontal.SourceToIsocenter)
	s.sourceLateral = geometry.NewPosition(-s.lateral.SourceToIsocenter, 0, 0)

	s.originFrontal = planeOrigin(s.frontal)
	s.originLateral = planeOrigin(s.lateral)

	s.patientPosition = s.patientOffset
	s.computed = true
	return nil
}

// planeOrigin returns the 3D location of the plane's pixel (0,0). The image
// rectangle is centered on the isocenter; its row axis is the plane
// orientation applied to +X and its column axis the orientation applied to -Y
// (image rows grow downward while the frame's Y grows upward).
func planeOrigin(p *calibration.CalibratedPlane) geometry.Position {
	rowAxis := p.Orientation.Apply(geometry.NewPosition(1, 0, 0))
	colAxis := p.Orientation.Apply(geometry.NewPosition(0, -1, 0))
	halfRow := rowAxis.Scale(p.PhysicalWidth / 2)
	halfCol := colAxis.Scale(p.PhysicalHeight / 2)
	return halfRow.Add(halfCol).Scale(-1)
}

// Project maps a 3D point's in-plane coordinates to the two image planes by
// perspective division against the corresponding source distance. xReal is
// projected onto the frontal plane and zReal onto the lateral plane, both in
// meters.
func (s *DualPlaneSpace) Project(xReal, zReal float64) (xProj, zProj float64, err error) {
	if !s.computed {
		return 0, 0, ErrGeometryNotComputed
	}
	df := s.frontal.SourceToIsocenter
	dl := s.lateral.SourceToIsocenter

	denomF := df + zReal
	if math.Abs(denomF) < s.denomEpsilon {
		return 0, 0, fmt.Errorf("%w: frontal denominator %g for zReal=%g", ErrDegenerateGeometry, denomF, zReal)
	}
	denomL := dl + xReal
	if math.Abs(denomL) < s.denomEpsilon {
		return 0, 0, fmt.Errorf("%w: lateral denominator %g for xReal=%g", ErrDegenerateGeometry, denomL, xReal)
	}

	xProj = xReal / denomF * df
	zProj = zReal / denomL * dl
	return xProj, zProj, nil
}

// InverseProject recovers the 3D in-plane coordinates from the two plane
// projections. It is the exact algebraic inverse of Project: solving
//
//	xProj = xReal·Df/(Df+zReal)
//	zProj = zReal·Dl/(Dl+xReal)
//
// for (xReal, zReal) gives
//
//	xReal = xProj·Dl·(Df+zProj) / (Df·Dl − xProj·zProj)
//	zReal = zProj·Df·(Dl+xProj) / (Df·Dl − xProj·zProj)
//
// so the Project/InverseProject round trip is identity up to floating-point
// error.
func (s *DualPlaneSpace) InverseProject(xProj, zProj float64) (xReal, zReal float64, err error) {
	if !s.computed {
		return 0, 0, ErrGeometryNotComputed
	}
	df := s.frontal.SourceToIsocenter
	dl := s.lateral.SourceToIsocenter

	denom := df*dl - xProj*zProj
	if math.Abs(denom) < s.denomEpsilon {
		return 0, 0, fmt.Errorf("%w: shared denominator %g for projection (%g, %g)", ErrDegenerateGeometry, denom, xProj, zProj)
	}

	xReal = xProj * dl * (df + zProj) / denom
	zReal = zProj * df * (dl + xProj) / denom
	return xReal, zReal, nil
}

// AddSpaceObject registers a named 3D landmark with the session. Space
// objects are pure bookkeeping; they have no geometric side effects and carry
// no ownership over rendering.
func (s *DualPlaneSpace) AddSpaceObject(name string, pos geometry.Position) {
	s.objects[name] = pos
}

// RemoveSpaceObject removes a named landmark if present.
func (s *DualPlaneSpace) RemoveSpaceObject(name string) {
	delete(s.objects, name)
}

// ClearSpaceObjects removes all registered landmarks.
func (s *DualPlaneSpace) ClearSpaceObjects() {
	s.objects = make(map[string]geometry.Position)
}

// SpaceObject looks up a named landmark.
func (s *DualPlaneSpace) SpaceObject(name string) (geometry.Position, bool) {
	pos, ok := s.objects[name]
	return pos, ok
}

// SpaceObjectCount returns the number of registered landmarks.
func (s *DualPlaneSpace) SpaceObjectCount() int { return len(s.objects) }

// GeometrySummary returns a snapshot of all derived geometry. The returned
// value is independent of the session; mutating it has no effect.
func (s *DualPlaneSpace) GeometrySummary() (Summary, error) {
	if !s.computed {
		return Summary{}, ErrGeometryNotComputed
	}
	objects := make(map[string]geometry.Position, len(s.objects))
	for name, pos := range s.objects {
		objects[name] = pos
	}
	return Summary{
		SourceFrontal:   s.sourceFrontal,
		SourceLateral:   s.sourceLateral,
		OriginFrontal:   s.originFrontal,
		OriginLateral:   s.originLateral,
		PatientPosition: s.patientPosition,
		DSTIFrontal:     s.frontal.SourceToIsocenter,
		DSTILateral:     s.lateral.SourceToIsocenter,
		SpaceObjects:    objects,
	}, nil
}
