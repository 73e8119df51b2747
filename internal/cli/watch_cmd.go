package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/agusx1211/usagebar/internal/render"
	"github.com/agusx1211/usagebar/internal/watchtui"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live full-screen usage view",
	Long: `Rerun the aggregation pass on an interval and redraw the report.

Every refresh is a fresh pass; nothing is cached between them. Press r to
refresh immediately and q to quit. When stdout is not a terminal the
report is printed once per interval instead.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	addPassFlags(watchCmd)
	watchCmd.Flags().Duration("interval", time.Minute, "Refresh interval (minimum 10s)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	flags, err := readPassFlags(cmd)
	if err != nil {
		return err
	}
	interval, _ := cmd.Flags().GetDuration("interval")
	if interval < watchtui.MinInterval {
		interval = watchtui.MinInterval
	}

	src := newPassSource(cmd.ErrOrStderr(), flags.timeout)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	if !isTerminal(out) {
		return watchPlain(ctx, out, src, flags, interval)
	}
	return watchtui.Run(ctx, fetchFunc(src, flags.filter), interval, !flags.noColor)
}

// watchPlain prints one report per interval until ctx ends.
func watchPlain(ctx context.Context, out io.Writer, src *passSource, flags passFlags, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		report := src.fetch(ctx, flags.filter)
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprintf(out, "── %s ──\n", report.StartedAt.Local().Format(time.DateTime))
		if err := printReport(out, report, false, render.Options{}); err != nil {
			return err
		}
		fmt.Fprintln(out)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
