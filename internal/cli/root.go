package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agusx1211/usagebar/internal/buildinfo"
	"github.com/agusx1211/usagebar/internal/debug"
)

const (
	// ANSI color codes
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"

	// Combined styles
	styleBoldCyan  = "\033[1;36m"
	styleBoldGreen = "\033[1;32m"
	styleBoldWhite = "\033[1;37m"
)

var rootCmd = &cobra.Command{
	Use:   "usagebar",
	Short: "Show AI provider usage limits",
	Long: colorBold + `usagebar` + colorReset + ` v` + buildinfo.Current().Version + `

  One view of the rate-limit windows, quotas and credit balances of every
  AI coding provider you have credentials for: Codex, Copilot, Claude,
  Z.ai, OpenRouter and a Mirrowel-style quota proxy.

` + colorBold + `Getting Started:` + colorReset + `
  usagebar usage                  Query every configured provider
  usagebar usage --provider or    Only OpenRouter
  usagebar watch                  Live full-screen view
  usagebar serve --qr             HTTP/WebSocket view for other devices
  usagebar config init            Write a commented config file

` + colorBold + `Credentials:` + colorReset + `
  ~/.local/share/opencode/auth.json, ~/.codex/auth.json,
  ~/.claude/.credentials.json, ~/.config/opencode/copilot-usage-token`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runUsage(cmd, args)
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	rootCmd.PersistentFlags().Bool("debug", false, "Enable verbose debug logging to ~/.usagebar/debug/")
	addPassFlags(rootCmd)
	rootCmd.Flags().Bool("json", false, "Output as JSON")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		debugFlag, _ := cmd.Flags().GetBool("debug")
		if !debugFlag && !debug.ShouldEnableFromEnv() {
			return nil
		}
		logPath, err := debug.Init()
		if err != nil {
			return fmt.Errorf("initializing debug logger: %w", err)
		}
		fmt.Fprintf(os.Stderr, "%s[debug]%s logging to %s\n", colorDim, colorReset, logPath)
		bi := buildinfo.Current()
		debug.LogKV("cli", "usagebar starting",
			"version", bi.Version,
			"commit", bi.CommitHash,
			"build_date", bi.BuildDate,
			"pid", os.Getpid(),
			"command", cmd.Name(),
			"args", args,
		)
		return nil
	}
}

// Execute runs the root command.
func Execute() {
	defer debug.Close()
	if err := rootCmd.Execute(); err != nil {
		debug.Logf("cli", "exit with error: %v", err)
		fmt.Fprintf(os.Stderr, "%sError: %s%s\n", colorRed, err, colorReset)
		debug.Close()
		os.Exit(1)
	}
	debug.Log("cli", "exit success")
}
