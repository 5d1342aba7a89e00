package cli

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"eosrecon/pkg/biplanar"
	"eosrecon/pkg/calibration"
	"eosrecon/pkg/config"
	"eosrecon/pkg/ellipse"
	"eosrecon/pkg/geometry"
)

// newSpace builds a reconstruction session from two calibration files and
// computes its geometry.
func (r *Root) newSpace(frontalPath, lateralPath string) (*biplanar.DualPlaneSpace, error) {
	frontal, err := calibration.LoadCalibratedPlane(frontalPath)
	if err != nil {
		return nil, err
	}
	lateral, err := calibration.LoadCalibratedPlane(lateralPath)
	if err != nil {
		return nil, err
	}

	space, err := biplanar.NewDualPlaneSpace(frontal, lateral)
	if err != nil {
		return nil, err
	}
	space.SetDenominatorEpsilon(r.cfg.Geometry.DenominatorEpsilon)
	space.SetPatientOffset(geometry.NewPosition(
		r.cfg.Geometry.PatientOffset.X,
		r.cfg.Geometry.PatientOffset.Y,
		r.cfg.Geometry.PatientOffset.Z,
	))
	if err := space.CalculateGeometry(); err != nil {
		return nil, err
	}
	return space, nil
}

func newGeometryCmd(root *Root) *cobra.Command {
	var (
		frontalPath    string
		lateralPath    string
		checkRoundTrip bool
	)

	cmd := &cobra.Command{
		Use:   "geometry",
		Short: "Reconstruct 3D geometry from two calibration records",
		Long: `Load the frontal and lateral calibration records, derive the 3D source
positions, image-plane origins, and patient position, and print the geometry
summary as YAML. With --check-roundtrip the projection/inverse-projection
round trip is verified over a grid inside the imaging volume.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			space, err := root.newSpace(frontalPath, lateralPath)
			if err != nil {
				return err
			}

			summary, err := space.GeometrySummary()
			if err != nil {
				return err
			}
			root.log.Info("geometry computed",
				"dsti_frontal", summary.DSTIFrontal,
				"dsti_lateral", summary.DSTILateral,
			)

			if checkRoundTrip {
				worst, err := roundTripCheck(space, root.cfg.Geometry.RoundTripCheckExtent)
				if err != nil {
					return err
				}
				root.log.Info("round-trip check", "worst_error_m", worst)
				if worst > root.cfg.Geometry.RoundTripTolerance {
					return fmt.Errorf("round-trip self-check failed: worst error %g m exceeds %g m",
						worst, root.cfg.Geometry.RoundTripTolerance)
				}
			}

			out, err := yaml.Marshal(summary)
			if err != nil {
				return err
			}
			cmd.Print(string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&frontalPath, "frontal", "", "frontal calibration YAML file")
	cmd.Flags().StringVar(&lateralPath, "lateral", "", "lateral calibration YAML file")
	cmd.Flags().BoolVar(&checkRoundTrip, "check-roundtrip", false, "verify project/inverse-project round trip on a grid")
	cmd.MarkFlagRequired("frontal")
	cmd.MarkFlagRequired("lateral")

	return cmd
}

// roundTripCheck projects and inverse-projects a grid of in-volume points and
// returns the worst absolute recovery error in meters.
func roundTripCheck(space *biplanar.DualPlaneSpace, extent float64) (float64, error) {
	const steps = 11
	worst := 0.0
	for i := 0; i < steps; i++ {
		for j := 0; j < steps; j++ {
			x := -extent + 2*extent*float64(i)/(steps-1)
			z := -extent + 2*extent*float64(j)/(steps-1)
			xp, zp, err := space.Project(x, z)
			if err != nil {
				return 0, err
			}
			xr, zr, err := space.InverseProject(xp, zp)
			if err != nil {
				return 0, err
			}
			if e := math.Abs(xr - x); e > worst {
				worst = e
			}
			if e := math.Abs(zr - z); e > worst {
				worst = e
			}
		}
	}
	return worst, nil
}

// fitReport is the YAML document printed by the fit command.
type fitReport struct {
	Parameters *ellipse.Parameters `yaml:"parameters"`
	MeanError  float64             `yaml:"meanError"`
	MaxError   float64             `yaml:"maxError"`
	PointCount int                 `yaml:"pointCount"`
}

func newFitCmd(root *Root) *cobra.Command {
	var epsilon float64

	cmd := &cobra.Command{
		Use:   "fit <points.csv>",
		Short: "Fit an ellipse to annotated 2D points",
		Long: `Fit an ellipse to a set of 2D image points using the direct least-squares
conic method. The input file holds one x,y pair per row. Prints the fitted
parameters and the residual statistics as YAML.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			points, err := loadPoints(args[0])
			if err != nil {
				return err
			}

			if epsilon < 0 {
				epsilon = root.cfg.Fitting.DedupEpsilon
			}
			fitter := &ellipse.Fitter{DedupEpsilon: epsilon}
			params, err := fitter.Fit(points)
			if err != nil {
				return err
			}

			mean, max, err := params.FitError(points)
			if err != nil {
				return err
			}
			root.log.Info("ellipse fitted",
				"points", points.Len(),
				"mean_error", mean,
				"max_error", max,
			)

			out, err := yaml.Marshal(fitReport{
				Parameters: params,
				MeanError:  mean,
				MaxError:   max,
				PointCount: points.Len(),
			})
			if err != nil {
				return err
			}
			cmd.Print(string(out))
			return nil
		},
	}

	cmd.Flags().Float64Var(&epsilon, "epsilon", -1, "deduplication distance in input units (default from config)")

	return cmd
}

func newLandmarkCmd(root *Root) *cobra.Command {
	var (
		frontalPath  string
		lateralPath  string
		frontalCoord string
		lateralCoord string
		name         string
	)

	cmd := &cobra.Command{
		Use:   "landmark",
		Short: "Recover a 3D landmark from its two plane projections",
		Long: `Inverse-project a measurement made on both images back into the shared 3D
frame. --frontal-point is the landmark's projected coordinates on the frontal
plane (x,y in meters) and --lateral-point on the lateral plane (z,y in
meters); the in-plane x and z components drive the inverse projection and the
vertical component is taken from the frontal plane.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			space, err := root.newSpace(frontalPath, lateralPath)
			if err != nil {
				return err
			}

			xProj, yProj, err := parseCoordPair(frontalCoord)
			if err != nil {
				return fmt.Errorf("invalid --frontal-point: %w", err)
			}
			zProj, _, err := parseCoordPair(lateralCoord)
			if err != nil {
				return fmt.Errorf("invalid --lateral-point: %w", err)
			}

			xReal, zReal, err := space.InverseProject(xProj, zProj)
			if err != nil {
				return err
			}
			pos := geometry.NewPosition(xReal, yProj, zReal)
			space.AddSpaceObject(name, pos)
			root.log.Info("landmark reconstructed", "name", name,
				"x", pos.X, "y", pos.Y, "z", pos.Z)

			out, err := yaml.Marshal(map[string]geometry.Position{name: pos})
			if err != nil {
				return err
			}
			cmd.Print(string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&frontalPath, "frontal", "", "frontal calibration YAML file")
	cmd.Flags().StringVar(&lateralPath, "lateral", "", "lateral calibration YAML file")
	cmd.Flags().StringVar(&frontalCoord, "frontal-point", "", "projected point on the frontal plane as x,y in meters")
	cmd.Flags().StringVar(&lateralCoord, "lateral-point", "", "projected point on the lateral plane as z,y in meters")
	cmd.Flags().StringVar(&name, "name", "landmark", "name to register the landmark under")
	cmd.MarkFlagRequired("frontal")
	cmd.MarkFlagRequired("lateral")
	cmd.MarkFlagRequired("frontal-point")
	cmd.MarkFlagRequired("lateral-point")

	return cmd
}

// parseCoordPair parses "a,b" into two floats.
func parseCoordPair(s string) (a, b float64, err error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected two comma-separated values, got %q", s)
	}
	a, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, err
	}
	b, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

func newConfigCmd(root *Root) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration settings",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := yaml.Marshal(root.cfg)
			if err != nil {
				return err
			}
			cmd.Print(string(out))
			return nil
		},
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(root.configPath); err == nil {
				return fmt.Errorf("config file %s already exists", root.configPath)
			}
			if err := config.CreateDefaultConfigFile(root.configPath); err != nil {
				return err
			}
			cmd.Printf("wrote %s\n", root.configPath)
			return nil
		},
	}

	cmd.AddCommand(showCmd, initCmd)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println("eosrecon v1.0.0")
		},
	}
}
