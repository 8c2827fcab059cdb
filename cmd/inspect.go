package main

import (
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/tigerpoly/internal/shapefile"
	"github.com/sells-group/tigerpoly/internal/tiger"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <infile>",
	Short: "List the layers, feature counts and fields of a datasource",
	Long: `Prints every layer of a TIGER/Line datasource with its feature count and
field definitions. Given a .shp file, prints the feature count and attribute
fields of the shapefile instead, e.g. to check a build's output.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		out := cmd.OutOrStdout()

		if strings.HasSuffix(strings.ToLower(args[0]), ".shp") {
			return inspectShapefile(out, args[0])
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		ds, err := tiger.Open(args[0], cfg.Tiger.TempDir)
		if err != nil {
			return eris.Wrap(err, "inspect")
		}
		defer func() { _ = ds.Close() }()

		names := make([]string, len(tiger.Layers))
		for i, l := range tiger.Layers {
			names[i] = l.Name
		}
		layers, err := ds.ReadLayers(ctx, names, cfg.Tiger.Concurrency)
		if err != nil {
			return eris.Wrap(err, "inspect")
		}

		fmt.Fprintf(out, "Modules: %s\n", strings.Join(ds.Modules, ", "))
		for _, name := range names {
			layer := layers[name]
			fmt.Fprintf(out, "\nLayer: %s (%d features)\n", layer.Name, len(layer.Features))
			for _, f := range layer.Fields {
				fmt.Fprintf(out, "  %-12s %-8s %s\n", f.Name, f.Type, fieldWidth(f))
			}
		}
		return nil
	},
}

func fieldWidth(f tiger.FieldDefn) string {
	if f.Precision > 0 {
		return fmt.Sprintf("(%d.%d)", f.Width, f.Precision)
	}
	return fmt.Sprintf("(%d)", f.Width)
}

// inspectShapefile summarizes a shapefile written by the build.
func inspectShapefile(out io.Writer, path string) error {
	ds, err := shapefile.Read(path)
	if err != nil {
		return eris.Wrap(err, "inspect")
	}

	fmt.Fprintf(out, "Shapefile: %s (%d features)\n", path, len(ds.Features))
	for _, f := range ds.Fields {
		name := strings.TrimRight(f.String(), "\x00")
		fmt.Fprintf(out, "  %-12s %-8s (%d.%d)\n", name, string(f.Fieldtype), f.Size, f.Precision)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
