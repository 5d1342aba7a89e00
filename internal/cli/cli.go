// Package cli implements the eosrecon command line interface: diagnostic
// commands around the dual-plane reconstruction engine and the direct ellipse
// fitter. The CLI is a thin shell; all numerical work lives under pkg.
package cli

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"eosrecon/internal/logging"
	"eosrecon/pkg/config"
	"eosrecon/pkg/geometry"
)

// Root carries the state shared by all subcommands.
type Root struct {
	cfg *config.Config
	log *slog.Logger

	configPath string
	logLevel   string
	logFormat  string
}

// NewRootCmd creates the root Cobra command
func NewRootCmd() *cobra.Command {
	root := &Root{}

	rootCmd := &cobra.Command{
		Use:   "eosrecon",
		Short: "Biplanar EOS geometry reconstruction and ellipse fitting",
		Long: `eosrecon reconstructs the 3D source and patient geometry of a biplanar
EOS X-ray acquisition from per-plane calibration records, converts measurements
between the two image planes and the shared 3D frame, and fits ellipses to
annotated image points with a direct (non-iterative) conic fit.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(root.configPath)
			if err != nil {
				return err
			}
			if root.logLevel != "" {
				cfg.Logging.Level = root.logLevel
			}
			if root.logFormat != "" {
				cfg.Logging.Format = root.logFormat
			}
			root.cfg = cfg
			root.log = logging.New(cfg.Logging.Level, cfg.Logging.Format)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&root.configPath, "config", "eosrecon.yaml", "configuration file path")
	rootCmd.PersistentFlags().StringVar(&root.logLevel, "log-level", "", "log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().StringVar(&root.logFormat, "log-format", "", "log format (text|json)")

	// Add subcommands
	rootCmd.AddCommand(newGeometryCmd(root))
	rootCmd.AddCommand(newFitCmd(root))
	rootCmd.AddCommand(newLandmarkCmd(root))
	rootCmd.AddCommand(newConfigCmd(root))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// Execute runs the CLI.
func Execute() error {
	return NewRootCmd().Execute()
}

// loadPoints reads 2D points from a CSV file with one "x,y" pair per row.
// A single non-numeric header row is tolerated and skipped.
func loadPoints(path string) (geometry.PointSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening points file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 2
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("error reading points file %s: %w", path, err)
	}

	points := make(geometry.PointSet, 0, len(records))
	for i, rec := range records {
		x, errX := strconv.ParseFloat(rec[0], 64)
		y, errY := strconv.ParseFloat(rec[1], 64)
		if errX != nil || errY != nil {
			if i == 0 {
				continue // header row
			}
			return nil, fmt.Errorf("points file %s: row %d is not numeric", path, i+1)
		}
		points = append(points, geometry.NewPoint2D(x, y))
	}
	return points, nil
}
