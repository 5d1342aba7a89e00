package calibration

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

// validRaw returns a complete raw record drawn from the clinical sample used
// throughout the test suite.
func validRaw(role PlaneRole) RawCalibration {
	dsti := 987.0
	if role == Lateral {
		dsti = 918.0
	}
	return RawCalibration{
		SourceToIsocenterMM: floatPtr(dsti),
		PixelSpacingXMM:     floatPtr(0.254),
		PixelSpacingYMM:     floatPtr(0.254),
		WidthPx:             intPtr(1800),
		HeightPx:            intPtr(3600),
		Role:                role,
	}
}

func TestNewCalibratedPlane(t *testing.T) {
	p, err := NewCalibratedPlane(validRaw(Frontal))
	if err != nil {
		t.Fatalf("NewCalibratedPlane failed: %v", err)
	}

	t.Run("UnitConversion", func(t *testing.T) {
		if p.SourceToIsocenter != 0.987 {
			t.Errorf("SourceToIsocenter = %v m, want 0.987", p.SourceToIsocenter)
		}
		if p.PixelSpacingX != 0.254/1000 {
			t.Errorf("PixelSpacingX = %v m/px", p.PixelSpacingX)
		}
	})

	t.Run("PhysicalExtent", func(t *testing.T) {
		// Physical width is exactly spacing times pixel count.
		if p.PhysicalWidth != p.PixelSpacingX*float64(p.WidthPx) {
			t.Errorf("PhysicalWidth = %v, want %v", p.PhysicalWidth, p.PixelSpacingX*float64(p.WidthPx))
		}
		if p.PhysicalHeight != p.PixelSpacingY*float64(p.HeightPx) {
			t.Errorf("PhysicalHeight = %v", p.PhysicalHeight)
		}
	})

	t.Run("OrientationByRole", func(t *testing.T) {
		if p.Orientation.RY != 0 {
			t.Errorf("frontal orientation = %+v, want identity", p.Orientation)
		}
		lat, err := NewCalibratedPlane(validRaw(Lateral))
		if err != nil {
			t.Fatalf("lateral plane failed: %v", err)
		}
		if lat.Orientation.RY != 90 {
			t.Errorf("lateral orientation = %+v, want RY=90", lat.Orientation)
		}
	})
}

func TestCalibrationValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*RawCalibration)
		field  string
	}{
		{"MissingDSTI", func(r *RawCalibration) { r.SourceToIsocenterMM = nil }, "sourceToIsocenterDistanceMm"},
		{"MissingSpacingX", func(r *RawCalibration) { r.PixelSpacingXMM = nil }, "pixelSpacingXMm"},
		{"ZeroSpacingX", func(r *RawCalibration) { r.PixelSpacingXMM = floatPtr(0) }, "pixelSpacingXMm"},
		{"NegativeSpacingY", func(r *RawCalibration) { r.PixelSpacingYMM = floatPtr(-0.2) }, "pixelSpacingYMm"},
		{"NaNDSTI", func(r *RawCalibration) { r.SourceToIsocenterMM = floatPtr(math.NaN()) }, "sourceToIsocenterDistanceMm"},
		{"InfDSTI", func(r *RawCalibration) { r.SourceToIsocenterMM = floatPtr(math.Inf(1)) }, "sourceToIsocenterDistanceMm"},
		{"MissingWidth", func(r *RawCalibration) { r.WidthPx = nil }, "widthPx"},
		{"ZeroHeight", func(r *RawCalibration) { r.HeightPx = intPtr(0) }, "heightPx"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw := validRaw(Frontal)
			tc.mutate(&raw)
			_, err := NewCalibratedPlane(raw)
			if err == nil {
				t.Fatal("expected a calibration error")
			}
			var calErr *CalibrationError
			if !errors.As(err, &calErr) {
				t.Fatalf("error is %T, want *CalibrationError", err)
			}
			if calErr.Field != tc.field {
				t.Errorf("error names field %q, want %q", calErr.Field, tc.field)
			}
			if calErr.Role != Frontal {
				t.Errorf("error names role %v, want frontal", calErr.Role)
			}
		})
	}
}

func TestPixelPhysicalConversion(t *testing.T) {
	p, err := NewCalibratedPlane(validRaw(Frontal))
	if err != nil {
		t.Fatalf("NewCalibratedPlane failed: %v", err)
	}
	pt := p.PixelToPhysical(100, 200)
	if math.Abs(pt.X-100*p.PixelSpacingX) > 1e-15 {
		t.Errorf("PixelToPhysical x = %v", pt.X)
	}
	px, py := p.PhysicalToPixel(pt)
	if math.Abs(px-100) > 1e-9 || math.Abs(py-200) > 1e-9 {
		t.Errorf("PhysicalToPixel round trip = (%v, %v)", px, py)
	}
}

func TestLoadCalibratedPlane(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "frontal.yaml")
	doc := `sourceToIsocenterDistanceMm: 987.0
pixelSpacingXMm: 0.254
pixelSpacingYMm: 0.254
widthPx: 1800
heightPx: 3600
role: frontal
`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatalf("failed to write calibration file: %v", err)
	}

	p, err := LoadCalibratedPlane(path)
	if err != nil {
		t.Fatalf("LoadCalibratedPlane failed: %v", err)
	}
	if p.Role != Frontal || p.SourceToIsocenter != 0.987 {
		t.Errorf("loaded plane = %+v", p)
	}

	t.Run("MissingFieldInFile", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.yaml")
		if err := os.WriteFile(bad, []byte("role: lateral\nwidthPx: 100\n"), 0644); err != nil {
			t.Fatalf("failed to write file: %v", err)
		}
		_, err := LoadCalibratedPlane(bad)
		var calErr *CalibrationError
		if !errors.As(err, &calErr) {
			t.Fatalf("error is %v, want *CalibrationError", err)
		}
	})

	t.Run("UnknownRole", func(t *testing.T) {
		bad := filepath.Join(dir, "role.yaml")
		if err := os.WriteFile(bad, []byte("role: oblique\n"), 0644); err != nil {
			t.Fatalf("failed to write file: %v", err)
		}
		if _, err := LoadCalibratedPlane(bad); err == nil {
			t.Error("expected an error for an unknown role")
		}
	})
}
