package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/agusx1211/usagebar/internal/render"
	"github.com/agusx1211/usagebar/internal/usage"
)

var usageCmd = &cobra.Command{
	Use:     "usage",
	Aliases: []string{"limits", "quota"},
	Short:   "Show usage limits for every configured provider",
	Long: `Run one aggregation pass and print every provider's usage.

Each provider with credentials is queried in parallel under a shared
deadline. Providers that fail or time out are listed as unavailable with
a reason instead of being dropped.

Examples:
  usagebar usage                      # All providers
  usagebar usage --provider claude    # Only Anthropic
  usagebar usage -p or -k work        # Only the "work" OpenRouter key
  usagebar usage --json               # Machine-readable output`,
	Args: cobra.NoArgs,
	RunE: runUsage,
}

func init() {
	addPassFlags(usageCmd)
	usageCmd.Flags().Bool("json", false, "Output as JSON")
	rootCmd.AddCommand(usageCmd)
}

func runUsage(cmd *cobra.Command, args []string) error {
	flags, err := readPassFlags(cmd)
	if err != nil {
		return err
	}
	asJSON, _ := cmd.Flags().GetBool("json")

	src := newPassSource(cmd.ErrOrStderr(), flags.timeout)

	out := cmd.OutOrStdout()
	return printReport(out, src.fetch(cmd.Context(), flags.filter), asJSON, render.Options{
		Color: useColor(out, flags.noColor),
		Width: terminalWidth(out),
	})
}

func printReport(w io.Writer, report usage.Report, asJSON bool, opts render.Options) error {
	if asJSON {
		data, err := render.JSON(report)
		if err != nil {
			return fmt.Errorf("encoding report: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}
	_, err := io.WriteString(w, render.Text(report, opts))
	return err
}

// fetchFunc adapts a pass source to the watch view.
func fetchFunc(src *passSource, filter usage.Filter) func(context.Context) usage.Report {
	return func(ctx context.Context) usage.Report {
		return src.fetch(ctx, filter)
	}
}
