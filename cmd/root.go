package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/tigerpoly/internal/config"
	"github.com/sells-group/tigerpoly/internal/polybuild"
	"github.com/sells-group/tigerpoly/internal/polygonize"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "tigerpoly <infile> [outfile.shp]",
	Short: "Assemble TIGER/Line polygons into a shapefile",
	Long: `Reads a TIGER/Line datasource (a directory of TGRssccc.RT* files, a single
module or a county ZIP archive), joins the chain, link, PIP and landmark
records of every polygon, assembles the polygon from its bounding chains and
writes the polygons with their merged attributes to an ESRI Shapefile.

The output defaults to poly.shp.`,
	Args: cobra.RangeArgs(1, 2),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		opts, err := buildOptions(cmd, args)
		if err != nil {
			return err
		}
		opts.Progress = cmd.OutOrStdout()

		zap.L().Info("starting polygon build",
			zap.String("input", opts.Input),
			zap.String("output", opts.Output),
			zap.Float64("tolerance", opts.Polygonize.Tolerance),
			zap.Bool("best_effort", opts.Polygonize.BestEffort),
			zap.Int("concurrency", opts.Concurrency),
		)

		if _, err := polybuild.Run(ctx, opts); err != nil {
			return eris.Wrap(err, "build")
		}
		return nil
	},
}

// buildOptions merges config values, flags and arguments. Flags win over
// config.
func buildOptions(cmd *cobra.Command, args []string) (polybuild.Options, error) {
	c := *cfg

	flags := cmd.Flags()
	if flags.Changed("tolerance") {
		c.Build.Tolerance, _ = flags.GetFloat64("tolerance")
	}
	if flags.Changed("best-effort") {
		c.Build.BestEffort, _ = flags.GetBool("best-effort")
	}
	if flags.Changed("concurrency") {
		c.Tiger.Concurrency, _ = flags.GetInt("concurrency")
	}
	if len(args) > 1 {
		c.Build.Output = args[1]
	}

	if err := c.Validate("build"); err != nil {
		return polybuild.Options{}, err
	}

	return polybuild.Options{
		Input:       args[0],
		Output:      c.Build.Output,
		TempDir:     c.Tiger.TempDir,
		Concurrency: c.Tiger.Concurrency,
		Polygonize: polygonize.Options{
			Tolerance:  c.Build.Tolerance,
			BestEffort: c.Build.BestEffort,
		},
	}, nil
}

func init() {
	rootCmd.Flags().Float64("tolerance", 0, "endpoint match tolerance in degrees (default: from config or exact)")
	rootCmd.Flags().Bool("best-effort", false, "close open rings and drop degenerate rings instead of skipping the polygon")
	rootCmd.Flags().Int("concurrency", 0, "parallel module file reads (default: from config or 4)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
