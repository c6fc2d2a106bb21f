package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/KaramelBytes/personaloom/internal/persona"
	"github.com/KaramelBytes/personaloom/internal/pipeline"
	"github.com/KaramelBytes/personaloom/internal/utils"
)

// segmentFlags are shared by segment and segment-batch.
type segmentFlags struct {
	format             string
	sheetName          string
	sheetIndex         int
	maxClusters        int
	seed               int64
	includeCategorical bool
	delimiter          string
	decimal            string
	thousands          string
	maxRows            int
}

func (f *segmentFlags) bind(fs *pflag.FlagSet) {
	fs.StringVar(&f.format, "format", "markdown", "output format: markdown | json")
	fs.StringVar(&f.sheetName, "sheet-name", "", "XLSX: sheet name to cluster")
	fs.IntVar(&f.sheetIndex, "sheet-index", 1, "XLSX: 1-based sheet index (used if --sheet-name not provided)")
	fs.IntVar(&f.maxClusters, "max-clusters", 3, "upper bound on personas; the run uses min(max-clusters, rows)")
	fs.Int64Var(&f.seed, "seed", 42, "random seed for centroid initialization")
	fs.BoolVar(&f.includeCategorical, "include-categorical", false, "also cluster on label-encoded text columns")
	fs.StringVar(&f.delimiter, "delimiter", "", "CSV delimiter: ',' | ';' | 'tab'")
	fs.StringVar(&f.decimal, "decimal", "", "decimal separator for numbers: '.'|'comma' (auto-detect if omitted)")
	fs.StringVar(&f.thousands, "thousands", "", "thousands separator for numbers: ','|'.'|'space' (auto-detect if omitted)")
	fs.IntVar(&f.maxRows, "max-rows", 0, "maximum rows to process (0 = unlimited)")
}

// options starts from the config file and applies only flags the user set.
func (f *segmentFlags) options(cmd *cobra.Command) (pipeline.Options, error) {
	opt := currentConfig().PipelineOptions()
	opt.Logger = logger
	fl := cmd.Flags()
	if fl.Changed("sheet-name") {
		opt.Dataset.SheetName = f.sheetName
	}
	if fl.Changed("sheet-index") {
		if f.sheetIndex < 1 {
			return opt, fmt.Errorf("invalid --sheet-index: %d (must be >= 1)", f.sheetIndex)
		}
		opt.Dataset.SheetIndex = f.sheetIndex
	}
	if fl.Changed("max-clusters") {
		if f.maxClusters < 1 {
			return opt, fmt.Errorf("invalid --max-clusters: %d (must be >= 1)", f.maxClusters)
		}
		opt.MaxClusters = f.maxClusters
	}
	if fl.Changed("seed") {
		opt.Seed = f.seed
	}
	if fl.Changed("include-categorical") {
		opt.IncludeCategorical = f.includeCategorical
	}
	if f.maxRows > 0 {
		opt.Dataset.MaxRows = f.maxRows
	}
	if f.delimiter != "" {
		switch f.delimiter {
		case ",":
			opt.Dataset.Delimiter = ','
		case "\t", "tab":
			opt.Dataset.Delimiter = '\t'
		case ";":
			opt.Dataset.Delimiter = ';'
		default:
			return opt, fmt.Errorf("unsupported --delimiter: %s", f.delimiter)
		}
	}
	// Locale separators
	switch strings.ToLower(strings.TrimSpace(f.decimal)) {
	case ",", "comma":
		opt.Dataset.DecimalSeparator = ','
	case ".", "dot":
		opt.Dataset.DecimalSeparator = '.'
	case "":
	default:
		return opt, fmt.Errorf("unsupported --decimal: %s (use '.'|'comma')", f.decimal)
	}
	switch strings.ToLower(strings.TrimSpace(f.thousands)) {
	case ",":
		opt.Dataset.ThousandsSeparator = ','
	case ".":
		opt.Dataset.ThousandsSeparator = '.'
	case "space", " ":
		opt.Dataset.ThousandsSeparator = ' '
	case "":
	default:
		return opt, fmt.Errorf("unsupported --thousands: %s (use ','|'.'|'space')", f.thousands)
	}
	if _, err := formatExt(f.format); err != nil {
		return opt, err
	}
	return opt, nil
}

func formatExt(format string) (string, error) {
	switch strings.ToLower(format) {
	case "markdown", "md", "":
		return ".personas.md", nil
	case "json":
		return ".personas.json", nil
	}
	return "", fmt.Errorf("unsupported --format: %s (use markdown|json)", format)
}

// render produces the report bytes for one successful run.
func render(res *pipeline.Result, format string) ([]byte, error) {
	if strings.EqualFold(format, "json") {
		b, err := utils.PrettyJSON(res.Response())
		if err != nil {
			return nil, err
		}
		return append(b, '\n'), nil
	}
	return []byte(persona.Markdown(res.Table.Name, res.Table.Rows, res.Personas)), nil
}

func printWarnings(w io.Writer, res *pipeline.Result) {
	for _, warn := range res.Table.Warnings {
		fmt.Fprintf(w, "⚠ %s: %s\n", res.Table.Name, warn)
	}
}

var (
	segFlags  segmentFlags
	segOutput string
)

var segmentCmd = &cobra.Command{
	Use:   "segment <file>",
	Short: "Cluster one XLSX/CSV/TSV file into personas",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		opt, err := segFlags.options(cmd)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		res, err := pipeline.Run(cmd.Context(), data, path, opt)
		if err != nil {
			return err
		}
		printWarnings(cmd.ErrOrStderr(), res)
		out, err := render(res, segFlags.format)
		if err != nil {
			return err
		}
		if segOutput != "" {
			if err := utils.SafeWriteFile(segOutput, out); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %d personas to %s\n", len(res.Personas), segOutput)
			return nil
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

func init() {
	rootCmd.AddCommand(segmentCmd)
	segFlags.bind(segmentCmd.Flags())
	segmentCmd.Flags().StringVarP(&segOutput, "output", "o", "", "write the report to this file instead of stdout")
}
