package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mutse/internal/app"
	"mutse/internal/domain"
)

func decompileCmd() *cobra.Command {
	var (
		exclude []string
		binary  string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "decompile <input> <output>",
		Short: "Decompile .NET assemblies with ilspycmd and mirror everything else",
		Long: "Decompile every .dll and .exe under <input> into a C# project folder in <output>.\n" +
			"Assemblies that fail to decompile are copied as-is. Requires ilspycmd on PATH.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := buildWire(func(c *app.Config) {
				if cmd.Flags().Changed("exclude") {
					c.Exclude = append(append([]string(nil), c.Exclude...), exclude...)
				}
				if cmd.Flags().Changed("ilspy") {
					c.Decompiler.Binary = binary
				}
				if cmd.Flags().Changed("timeout") {
					c.Decompiler.Timeout = timeout
				}
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			plan, err := w.Decompile.Scan(args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Found %d assemblies in %s (recursive)\n", len(plan.Targets), plan.Input)
			fmt.Fprintf(out, "  Extensions: %s\n", strings.Join(w.Decompile.Options().Extensions, ", "))
			fmt.Fprintf(out, "Output directory: %s\n", plan.Output)
			fmt.Fprintln(out, rule)

			copying := false
			w.Decompile.Progress = func(r domain.FileResult) {
				if r.Mirror {
					if !copying {
						copying = true
						fmt.Fprintln(out, rule)
						fmt.Fprintln(out, "Copying non-decompiled files...")
					}
					if r.Failed() {
						printResult(out, r, false)
					}
					return
				}
				printResult(out, r, false)
			}

			rep, err := w.Decompile.Run(cmd.Context(), plan)
			if err != nil {
				return err
			}
			if !copying {
				fmt.Fprintln(out, rule)
				fmt.Fprintln(out, "Copying non-decompiled files...")
			}
			copied, _, _ := mirrorCounts(rep)
			failed := targetFailures(rep)
			fmt.Fprintf(out, "  ✓ Copied %d non-decompiled files\n", copied)
			fmt.Fprintln(out, rule)
			fmt.Fprintf(out, "Done: %d assemblies decompiled, %d failed, %d files copied\n",
				rep.Succeeded, failed, copied)

			if failed > 0 {
				return fmt.Errorf("%d assemblies failed to decompile", failed)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&exclude, "exclude", "x", nil, "glob of input paths to skip (repeatable)")
	cmd.Flags().StringVar(&binary, "ilspy", "", "ilspycmd executable (default from config, then PATH)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "per-assembly decompile timeout")
	return cmd
}
