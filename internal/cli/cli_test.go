package cli

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"eosrecon/pkg/biplanar"
)

// writeCalibration writes a calibration YAML file and returns its path.
func writeCalibration(t *testing.T, dir, role string, dstiMM float64) string {
	t.Helper()
	doc := fmt.Sprintf(`sourceToIsocenterDistanceMm: %g
pixelSpacingXMm: 0.254
pixelSpacingYMm: 0.254
widthPx: 1800
heightPx: 3600
role: %s
`, dstiMM, role)
	path := filepath.Join(dir, role+".yaml")
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatalf("failed to write calibration file: %v", err)
	}
	return path
}

// runCommand executes the CLI with the given arguments and returns stdout.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestLoadPoints(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "points.csv")
	data := "x,y\n1.5,2.5\n3.0,-4.0\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("failed to write points file: %v", err)
	}

	points, err := loadPoints(path)
	if err != nil {
		t.Fatalf("loadPoints failed: %v", err)
	}
	if points.Len() != 2 {
		t.Fatalf("loaded %d points, want 2", points.Len())
	}
	if points[0].X != 1.5 || points[1].Y != -4.0 {
		t.Errorf("points = %+v", points)
	}

	t.Run("NonNumericRow", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.csv")
		if err := os.WriteFile(bad, []byte("1,2\nx,zzz\n"), 0644); err != nil {
			t.Fatalf("failed to write file: %v", err)
		}
		if _, err := loadPoints(bad); err == nil {
			t.Error("expected an error for a non-numeric body row")
		}
	})
}

func TestParseCoordPair(t *testing.T) {
	a, b, err := parseCoordPair(" 0.12, -0.05")
	if err != nil {
		t.Fatalf("parseCoordPair failed: %v", err)
	}
	if a != 0.12 || b != -0.05 {
		t.Errorf("parseCoordPair = (%v, %v)", a, b)
	}
	if _, _, err := parseCoordPair("1;2"); err == nil {
		t.Error("expected an error for a malformed pair")
	}
	if _, _, err := parseCoordPair("1,two"); err == nil {
		t.Error("expected an error for a non-numeric component")
	}
}

func TestGeometryCommand(t *testing.T) {
	dir := t.TempDir()
	frontal := writeCalibration(t, dir, "frontal", 987)
	lateral := writeCalibration(t, dir, "lateral", 918)

	out, err := runCommand(t,
		"--config", filepath.Join(dir, "absent.yaml"),
		"geometry", "--frontal", frontal, "--lateral", lateral, "--check-roundtrip")
	if err != nil {
		t.Fatalf("geometry command failed: %v\n%s", err, out)
	}

	var summary biplanar.Summary
	if err := yaml.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("output is not a YAML summary: %v\n%s", err, out)
	}
	if math.Abs(summary.SourceFrontal.Z+0.987) > 1e-9 {
		t.Errorf("sourceFrontal = %+v", summary.SourceFrontal)
	}
	if math.Abs(summary.SourceLateral.X+0.918) > 1e-9 {
		t.Errorf("sourceLateral = %+v", summary.SourceLateral)
	}
}

func TestFitCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "points.csv")

	var b strings.Builder
	for i := 0; i < 16; i++ {
		theta := 2 * math.Pi * float64(i) / 16
		fmt.Fprintf(&b, "%g,%g\n", 10+5*math.Cos(theta), 15+5*math.Sin(theta))
	}
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		t.Fatalf("failed to write points file: %v", err)
	}

	out, err := runCommand(t, "--config", filepath.Join(dir, "absent.yaml"), "fit", path)
	if err != nil {
		t.Fatalf("fit command failed: %v\n%s", err, out)
	}

	var report fitReport
	if err := yaml.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("output is not a YAML report: %v\n%s", err, out)
	}
	if math.Abs(report.Parameters.Center.X-10) > 1e-6 || math.Abs(report.Parameters.Center.Y-15) > 1e-6 {
		t.Errorf("fitted center = %+v", report.Parameters.Center)
	}
	if math.Abs(report.Parameters.SemiMajor-5) > 1e-6 {
		t.Errorf("fitted semiMajor = %v", report.Parameters.SemiMajor)
	}
	if report.PointCount != 16 {
		t.Errorf("pointCount = %d", report.PointCount)
	}
}

func TestLandmarkCommand(t *testing.T) {
	dir := t.TempDir()
	frontal := writeCalibration(t, dir, "frontal", 987)
	lateral := writeCalibration(t, dir, "lateral", 918)

	// A point on the isocenter axis projects to itself, so the landmark must
	// come back at the stated frontal x and lateral z.
	out, err := runCommand(t,
		"--config", filepath.Join(dir, "absent.yaml"),
		"landmark",
		"--frontal", frontal, "--lateral", lateral,
		"--frontal-point", "0.0,0.10",
		"--lateral-point", "0.0,0.10",
		"--name", "T12")
	if err != nil {
		t.Fatalf("landmark command failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "T12") {
		t.Errorf("output does not mention the landmark name:\n%s", out)
	}
}

func TestFitCommandErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "few.csv")
	if err := os.WriteFile(path, []byte("0,0\n1,1\n2,2\n"), 0644); err != nil {
		t.Fatalf("failed to write points file: %v", err)
	}
	if _, err := runCommand(t, "--config", filepath.Join(dir, "absent.yaml"), "fit", path); err == nil {
		t.Error("fitting three points should fail")
	}
}
