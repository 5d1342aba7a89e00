// Package calibration holds the per-image calibration descriptor consumed by
// the biplanar reconstruction engine. Raw tag values are extracted upstream by
// the DICOM-reading collaborator; this package validates them, normalizes
// units to meters, and derives the physical extent of each image plane.
package calibration

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"eosrecon/pkg/geometry"
)

// PlaneRole identifies which of the two EOS acquisition planes an image
// belongs to.
type PlaneRole int

const (
	// Frontal is the anteroposterior plane; its source sits on the Z axis.
	Frontal PlaneRole = iota
	// Lateral is the side plane; its source sits on the X axis.
	Lateral
)

// String returns the lower-case role name.
func (r PlaneRole) String() string {
	switch r {
	case Frontal:
		return "frontal"
	case Lateral:
		return "lateral"
	default:
		return fmt.Sprintf("PlaneRole(%d)", int(r))
	}
}

// ParsePlaneRole converts a role name to a PlaneRole.
func ParsePlaneRole(s string) (PlaneRole, error) {
	switch s {
	case "frontal", "FRONTAL":
		return Frontal, nil
	case "lateral", "LATERAL":
		return Lateral, nil
	default:
		return 0, fmt.Errorf("unknown plane role %q", s)
	}
}

// MarshalYAML encodes the role as its name.
func (r PlaneRole) MarshalYAML() (interface{}, error) {
	return r.String(), nil
}

// UnmarshalYAML decodes a role name.
func (r *PlaneRole) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	role, err := ParsePlaneRole(s)
	if err != nil {
		return err
	}
	*r = role
	return nil
}

// CalibrationError reports a missing or invalid calibration field. The
// upstream collaborator must signal absent tags rather than substituting
// defaults, so every construction failure is attributable to one field.
type CalibrationError struct {
	// Role is the plane whose calibration was rejected.
	Role PlaneRole

	// Field is the raw record field that failed validation.
	Field string

	// Reason explains the failure (missing, non-positive, non-finite).
	Reason string
}

// Error implements the error interface.
func (e *CalibrationError) Error() string {
	return fmt.Sprintf("calibration for %s plane: field %s %s", e.Role, e.Field, e.Reason)
}

// RawCalibration is the record supplied by the external DICOM-reading
// collaborator for one image. Distances are in millimeters as found in the
// source tags. Numeric fields are pointers so that an absent tag is
// distinguishable from a zero value.
type RawCalibration struct {
	// SourceToIsocenterMM is the distance from the X-ray source to the
	// isocenter in millimeters (DSTI).
	SourceToIsocenterMM *float64 `yaml:"sourceToIsocenterDistanceMm"`

	// PixelSpacingXMM and PixelSpacingYMM are the physical size of one pixel
	// in millimeters along each image axis. Spacing is assumed uniform across
	// the detector; non-uniform spacing is not supported.
	PixelSpacingXMM *float64 `yaml:"pixelSpacingXMm"`
	PixelSpacingYMM *float64 `yaml:"pixelSpacingYMm"`

	// WidthPx and HeightPx are the image dimensions in pixels.
	WidthPx  *int `yaml:"widthPx"`
	HeightPx *int `yaml:"heightPx"`

	// Role identifies the acquisition plane.
	Role PlaneRole `yaml:"role"`
}

// CalibratedPlane is the validated, meter-normalized calibration for one
// image plane. It is a pure value object: immutable after construction, with
// no side effects.
type CalibratedPlane struct {
	// Role identifies the acquisition plane.
	Role PlaneRole

	// SourceToIsocenter is the DSTI in meters.
	SourceToIsocenter float64

	// PixelSpacingX and PixelSpacingY are meters per pixel.
	PixelSpacingX float64
	PixelSpacingY float64

	// WidthPx and HeightPx are the image dimensions in pixels.
	WidthPx  int
	HeightPx int

	// PhysicalWidth and PhysicalHeight are the detector extents in meters,
	// computed as pixel spacing times pixel count.
	PhysicalWidth  float64
	PhysicalHeight float64

	// Orientation is the plane's fixed Euler rotation relative to the
	// reconstruction frame, assigned by role.
	Orientation geometry.Orientation
}

const mmPerMeter = 1000.0

// orientationForRole returns the hardcoded plane orientation. Automatic
// orientation detection from image tags is an explicit non-goal; the lateral
// plane is rotated 90 degrees about Y so its column axis runs along -Z.
func orientationForRole(role PlaneRole) geometry.Orientation {
	if role == Lateral {
		return geometry.Orientation{RY: 90}
	}
	return geometry.Orientation{}
}

// NewCalibratedPlane validates a raw calibration record and produces the
// meter-normalized plane descriptor. Any missing, non-positive, or non-finite
// numeric field yields a *CalibrationError.
func NewCalibratedPlane(raw RawCalibration) (*CalibratedPlane, error) {
	if err := checkFloatField(raw.Role, "sourceToIsocenterDistanceMm", raw.SourceToIsocenterMM); err != nil {
		return nil, err
	}
	if err := checkFloatField(raw.Role, "pixelSpacingXMm", raw.PixelSpacingXMM); err != nil {
		return nil, err
	}
	if err := checkFloatField(raw.Role, "pixelSpacingYMm", raw.PixelSpacingYMM); err != nil {
		return nil, err
	}
	if err := checkIntField(raw.Role, "widthPx", raw.WidthPx); err != nil {
		return nil, err
	}
	if err := checkIntField(raw.Role, "heightPx", raw.HeightPx); err != nil {
		return nil, err
	}

	p := &CalibratedPlane{
		Role:              raw.Role,
		SourceToIsocenter: *raw.SourceToIsocenterMM / mmPerMeter,
		PixelSpacingX:     *raw.PixelSpacingXMM / mmPerMeter,
		PixelSpacingY:     *raw.PixelSpacingYMM / mmPerMeter,
		WidthPx:           *raw.WidthPx,
		HeightPx:          *raw.HeightPx,
		Orientation:       orientationForRole(raw.Role),
	}
	p.PhysicalWidth = p.PixelSpacingX * float64(p.WidthPx)
	p.PhysicalHeight = p.PixelSpacingY * float64(p.HeightPx)
	return p, nil
}

// LoadCalibratedPlane reads a raw calibration record from a YAML file and
// validates it.
func LoadCalibratedPlane(path string) (*CalibratedPlane, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading calibration file: %w", err)
	}
	var raw RawCalibration
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("error parsing calibration file %s: %w", path, err)
	}
	return NewCalibratedPlane(raw)
}

// PixelToPhysical converts pixel coordinates on this plane to physical plane
// coordinates in meters, measured from the image origin (pixel 0,0).
func (p *CalibratedPlane) PixelToPhysical(px, py float64) geometry.Point2D {
	return geometry.Point2D{X: px * p.PixelSpacingX, Y: py * p.PixelSpacingY}
}

// PhysicalToPixel converts physical plane coordinates in meters back to
// pixel coordinates.
func (p *CalibratedPlane) PhysicalToPixel(pt geometry.Point2D) (px, py float64) {
	return pt.X / p.PixelSpacingX, pt.Y / p.PixelSpacingY
}

func checkFloatField(role PlaneRole, field string, v *float64) error {
	if v == nil {
		return &CalibrationError{Role: role, Field: field, Reason: "is missing"}
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) {
		return &CalibrationError{Role: role, Field: field, Reason: "is not finite"}
	}
	if *v <= 0 {
		return &CalibrationError{Role: role, Field: field, Reason: fmt.Sprintf("must be positive, got %g", *v)}
	}
	return nil
}

func checkIntField(role PlaneRole, field string, v *int) error {
	if v == nil {
		return &CalibrationError{Role: role, Field: field, Reason: "is missing"}
	}
	if *v <= 0 {
		return &CalibrationError{Role: role, Field: field, Reason: fmt.Sprintf("must be positive, got %d", *v)}
	}
	return nil
}
