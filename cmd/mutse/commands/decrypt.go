package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"mutse/internal/app"
	"mutse/internal/domain"
)

func decryptCmd() *cobra.Command {
	var (
		exclude     []string
		incremental bool
		noPretty    bool
		strict      bool
	)

	cmd := &cobra.Command{
		Use:   "decrypt <input> <output>",
		Short: "Decrypt .exdf files to XML and mirror everything else",
		Long: "Decrypt every .exdf file under <input> into <output>, keeping the folder layout.\n" +
			"Other files are copied as-is. If <input> is a single file, <output> is the file to write.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := buildWire(func(c *app.Config) {
				if cmd.Flags().Changed("exclude") {
					c.Exclude = append(append([]string(nil), c.Exclude...), exclude...)
				}
				if cmd.Flags().Changed("incremental") {
					c.Exdf.Incremental = incremental
				}
				if noPretty {
					c.Exdf.Pretty = false
				}
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			input, output := args[0], args[1]

			if fi, err := os.Stat(input); err == nil && !fi.IsDir() {
				res, err := w.Exdf.DecryptFile(input, output)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Decrypted %s -> %s (%s)\n", input, output, humanize.Bytes(uint64(res.Bytes)))
				return nil
			}

			plan, err := w.Exdf.Scan(input, output)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Found %d %s files in %s\n", len(plan.Targets), w.Exdf.Options().Extension, plan.Input)
			fmt.Fprintf(out, "Output directory: %s\n", plan.Output)
			fmt.Fprintln(out, rule)

			copying := false
			w.Exdf.Progress = func(r domain.FileResult) {
				if r.Mirror {
					if !copying {
						copying = true
						fmt.Fprintln(out, rule)
						fmt.Fprintf(out, "Copying non-%s files...\n", extName(w.Exdf.Options().Extension))
					}
					if r.Failed() {
						printResult(out, r, true)
					}
					return
				}
				printResult(out, r, true)
			}

			rep, err := w.Exdf.Run(cmd.Context(), plan)
			if err != nil {
				return err
			}
			if !copying {
				fmt.Fprintln(out, rule)
				fmt.Fprintf(out, "Copying non-%s files...\n", extName(w.Exdf.Options().Extension))
			}
			copied, _, _ := mirrorCounts(rep)
			fmt.Fprintf(out, "  ✓ Copied %d non-%s files\n", copied, extName(w.Exdf.Options().Extension))
			fmt.Fprintln(out, rule)
			fmt.Fprintf(out, "Done: %d files decrypted, %d failed, %d files copied\n",
				rep.Succeeded, targetFailures(rep), copied)
			if rep.Skipped > 0 {
				fmt.Fprintf(out, "Skipped %d unchanged files\n", rep.Skipped)
			}
			fmt.Fprintf(out, "Wrote %s\n", humanize.Bytes(uint64(rep.Bytes())))

			if strict && rep.Failed > 0 {
				return fmt.Errorf("%d files failed", rep.Failed)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&exclude, "exclude", "x", nil, "glob of input paths to skip (repeatable)")
	cmd.Flags().BoolVarP(&incremental, "incremental", "i", false, "skip files unchanged since the last run")
	cmd.Flags().BoolVar(&noPretty, "no-pretty", false, "write decrypted XML without re-indenting")
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero if any file fails")
	return cmd
}

func extName(ext string) string {
	return strings.TrimPrefix(ext, ".")
}
