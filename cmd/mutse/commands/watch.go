package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"mutse/internal/app"
	"mutse/internal/domain"
)

func watchCmd() *cobra.Command {
	var (
		exclude  []string
		debounce time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch <input> <output>",
		Short: "Decrypt a tree, then keep the output in sync until interrupted",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := buildWire(func(c *app.Config) {
				if cmd.Flags().Changed("exclude") {
					c.Exclude = append(append([]string(nil), c.Exclude...), exclude...)
				}
				if cmd.Flags().Changed("debounce") {
					c.Watch.Debounce = debounce
				}
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			w.Watch.OnReady = func(rep domain.Report) {
				copied, _, _ := mirrorCounts(rep)
				fmt.Fprintf(out, "Done: %d files decrypted, %d failed, %d files copied\n",
					rep.Succeeded, targetFailures(rep), copied)
				fmt.Fprintf(out, "Watching %s (Ctrl+C to stop)\n", rep.Input)
			}
			w.Watch.OnResult = func(r domain.FileResult) {
				printResult(out, r, false)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			err = w.Watch.Watch(ctx, args[0], args[1])
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringSliceVarP(&exclude, "exclude", "x", nil, "glob of input paths to skip (repeatable)")
	cmd.Flags().DurationVar(&debounce, "debounce", 0, "quiet period before a changed file is processed")
	return cmd
}
