package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/KaramelBytes/personaloom/internal/pipeline"
	"github.com/KaramelBytes/personaloom/internal/utils"
)

var (
	sbFlags       segmentFlags
	sbOutDir      string
	sbConcurrency int
	sbQuiet       bool
)

var segmentBatchCmd = &cobra.Command{
	Use:   "segment-batch <files...>",
	Short: "Cluster many XLSX/CSV/TSV files concurrently",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := utils.ExpandInputs(args)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			return fmt.Errorf("no input files matched")
		}
		opt, err := sbFlags.options(cmd)
		if err != nil {
			return err
		}
		ext, _ := formatExt(sbFlags.format)
		out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()

		workers := sbConcurrency
		if workers < 1 {
			workers = runtime.GOMAXPROCS(0)
		}
		results := make([]*pipeline.Result, len(files))
		g, ctx := errgroup.WithContext(cmd.Context())
		g.SetLimit(workers)
		total := len(files)
		for i, path := range files {
			g.Go(func() error {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("%s: read input: %w", path, err)
				}
				res, err := pipeline.Run(ctx, data, path, opt)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				results[i] = res
				if !sbQuiet {
					fmt.Fprintf(errOut, "[%d/%d] Processed %s\n", i+1, total, filepath.Base(path))
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		// Write in input order so collision suffixes are stable.
		if sbOutDir != "" {
			if err := os.MkdirAll(sbOutDir, 0o755); err != nil {
				return fmt.Errorf("mkdir out dir: %w", err)
			}
		}
		reserved := map[string]bool{}
		for i, res := range results {
			if !sbQuiet {
				printWarnings(errOut, res)
			}
			body, err := render(res, sbFlags.format)
			if err != nil {
				return err
			}
			if sbOutDir == "" {
				if !sbQuiet {
					fmt.Fprintf(out, "# %s\n", files[i])
				}
				if _, err := out.Write(body); err != nil {
					return err
				}
				fmt.Fprintln(out)
				continue
			}
			base := utils.BaseName(files[i])
			target := utils.UniquePath(sbOutDir, base, ext, reserved)
			if !sbQuiet && filepath.Base(target) != base+ext {
				fmt.Fprintf(errOut, "⚠ Detected existing report, writing to %s to avoid overwrite.\n", filepath.Base(target))
			}
			reserved[target] = true
			if err := utils.SafeWriteFile(target, body); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			if !sbQuiet {
				fmt.Fprintf(out, "✓ %s -> %s (%d personas)\n", filepath.Base(files[i]), target, len(res.Personas))
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(segmentBatchCmd)
	sbFlags.bind(segmentBatchCmd.Flags())
	segmentBatchCmd.Flags().StringVar(&sbOutDir, "out-dir", "", "directory for <name>.personas.{md,json} reports (stdout if omitted)")
	segmentBatchCmd.Flags().IntVar(&sbConcurrency, "concurrency", 0, "files processed in parallel (0 = GOMAXPROCS)")
	segmentBatchCmd.Flags().BoolVar(&sbQuiet, "quiet", false, "suppress progress and non-essential output")
}
