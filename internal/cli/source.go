package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/agusx1211/usagebar/internal/config"
	"github.com/agusx1211/usagebar/internal/credentials"
	"github.com/agusx1211/usagebar/internal/debug"
	"github.com/agusx1211/usagebar/internal/providers"
	"github.com/agusx1211/usagebar/internal/usage"
)

// passSource runs fresh aggregation passes from a loaded config. Credentials
// are re-read on every pass so token refreshes by other tools are picked up.
type passSource struct {
	cfg      *config.Config
	registry *usage.Registry
	locator  credentials.Locator
	deadline time.Duration
}

// newPassSource loads the user config and builds the provider table.
// deadline overrides the configured pass deadline when positive. Config
// problems are reported on warn and never stop the pass.
func newPassSource(warn io.Writer, deadline time.Duration) *passSource {
	return newPassSourceFrom(loadPassConfig(warn), credentials.Locator{}, deadline)
}

// loadPassConfig reads the config file, falling back to defaults (every
// provider enabled) when it cannot be parsed.
func loadPassConfig(warn io.Writer) *config.Config {
	path := config.Path()
	cfg, err := config.LoadFile(path)
	if err != nil {
		debug.LogKV("cli", "config unreadable, using defaults", "path", path, "error", err)
		fmt.Fprintf(warn, "%sWarning:%s ignoring config: %v\n", colorYellow, colorReset, err)
		cfg = config.Default()
	}
	if err := cfg.ApplyEnv(); err != nil {
		debug.LogKV("cli", "environment override ignored", "error", err)
		fmt.Fprintf(warn, "%sWarning:%s ignoring %v\n", colorYellow, colorReset, err)
	}
	return cfg
}

func newPassSourceFrom(cfg *config.Config, loc credentials.Locator, deadline time.Duration, opts ...providers.Option) *passSource {
	if cfg == nil {
		cfg = config.Default()
	}
	if deadline <= 0 {
		deadline = cfg.PassDeadline()
	}
	opts = append([]providers.Option{providers.WithLocator(loc)}, opts...)
	return &passSource{
		cfg:      cfg,
		registry: providers.Default(cfg, opts...),
		locator:  loc,
		deadline: deadline,
	}
}

func (s *passSource) fetch(ctx context.Context, filter usage.Filter) usage.Report {
	creds, diags := s.locator.Load()
	for _, d := range diags {
		debug.Logf("cli", "credentials: %s", d)
	}
	return usage.Aggregate(ctx, usage.Pass{
		Registry:    s.registry,
		Credentials: creds,
		NamedKeys:   s.cfg.NamedKeys(),
		Toggles:     s.cfg.Toggles(),
		Filter:      filter,
		Deadline:    s.deadline,
		Diagnostics: diags,
	})
}

// addPassFlags registers the flags shared by every command that runs a pass.
func addPassFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("provider", "p", "", "Only query one provider (codex, copilot, claude, zai, or, proxy, ...)")
	cmd.Flags().StringP("key", "k", "", "Only query the named OpenRouter key")
	cmd.Flags().Duration("timeout", 0, "Whole-pass deadline (default from config, 5s)")
	cmd.Flags().Bool("no-color", false, "Disable colored output")
}

type passFlags struct {
	filter  usage.Filter
	timeout time.Duration
	noColor bool
}

func readPassFlags(cmd *cobra.Command) (passFlags, error) {
	provider, _ := cmd.Flags().GetString("provider")
	key, _ := cmd.Flags().GetString("key")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	noColor, _ := cmd.Flags().GetBool("no-color")

	if timeout < 0 {
		return passFlags{}, fmt.Errorf("--timeout must be positive, got %s", timeout)
	}
	filter := usage.NewFilter(provider, key)
	if provider != "" && filter.Target == "" {
		debug.LogKV("cli", "unknown provider filter ignored", "provider", provider)
	}
	return passFlags{filter: filter, timeout: timeout, noColor: noColor}, nil
}
