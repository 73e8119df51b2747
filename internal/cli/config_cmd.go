package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agusx1211/usagebar/internal/config"
	"github.com/agusx1211/usagebar/internal/credentials"
	"github.com/agusx1211/usagebar/internal/usage"
)

var configCmd = &cobra.Command{
	Use:     "config",
	Aliases: []string{"cfg"},
	Short:   "Manage usagebar configuration",
	Long: `Manage the usagebar config file (JSON with comments).

The file lives at ~/.config/usagebar/usage-config.jsonc unless
USAGEBAR_CONFIG points elsewhere.

Use subcommands like:
  usagebar config init
  usagebar config show`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a commented default config file",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), config.Path())
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:     "show",
	Aliases: []string{"get", "view"},
	Short:   "Show the effective configuration",
	Args:    cobra.NoArgs,
	RunE:    runConfigShow,
}

func init() {
	configInitCmd.Flags().Bool("force", false, "Overwrite an existing config file")
	configShowCmd.Flags().Bool("json", false, "Output as JSON (secrets masked)")
	configCmd.AddCommand(configInitCmd, configPathCmd, configShowCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	force, _ := cmd.Flags().GetBool("force")
	path := config.Path()
	if err := config.WriteTemplate(path, force); err != nil {
		if errors.Is(err, config.ErrExists) {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%sConfig written to%s %s\n", styleBoldGreen, colorReset, path)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	asJSON, _ := cmd.Flags().GetBool("json")
	out := cmd.OutOrStdout()
	if asJSON {
		return writeConfigJSON(out, cfg)
	}
	printConfig(out, cfg)
	return nil
}

// maskedConfig returns a copy of cfg with secrets masked.
func maskedConfig(cfg *config.Config) config.Config {
	c := *cfg
	if c.APIKey != "" {
		c.APIKey = credentials.MaskKey(c.APIKey)
	}
	c.OpenRouterKeys = make([]usage.NamedKey, len(cfg.OpenRouterKeys))
	for i, k := range cfg.OpenRouterKeys {
		k.Key = credentials.MaskKey(k.Key)
		c.OpenRouterKeys[i] = k
	}
	return c
}

func writeConfigJSON(w io.Writer, cfg *config.Config) error {
	masked := maskedConfig(cfg)
	data, err := json.MarshalIndent(&masked, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func printConfig(w io.Writer, cfg *config.Config) {
	masked := maskedConfig(cfg)

	printHeader(w, "Configuration")
	path := config.Path()
	if _, err := os.Stat(path); err != nil {
		path += colorDim + " (not found, using defaults)" + colorReset
	}
	printField(w, "File", path)
	printField(w, "Pass deadline", passDeadlineLabel(cfg))

	printHeader(w, "Proxy")
	if cfg.ProxyConfigured() {
		printField(w, "Endpoint", masked.Endpoint)
		printField(w, "API key", orNone(masked.APIKey))
		printField(w, "Timeout", cfg.ProxyTimeout().String())
	} else {
		fmt.Fprintf(w, "  %sNot configured.%s\n", colorDim, colorReset)
	}

	printHeader(w, "Z.ai")
	printField(w, "Endpoint", cfg.ZaiBaseURL())

	printHeader(w, "Providers")
	toggles := cfg.Toggles()
	names := make([]string, 0, len(toggles))
	for name := range toggles {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) == 0 {
		fmt.Fprintf(w, "  %sAll enabled.%s\n", colorDim, colorReset)
	}
	for _, name := range names {
		state := colorGreen + "enabled" + colorReset
		if !toggles[name] {
			state = colorYellow + "disabled" + colorReset
		}
		printField(w, name, state)
	}

	if len(masked.OpenRouterKeys) > 0 {
		printHeader(w, "OpenRouter keys")
		for _, k := range masked.OpenRouterKeys {
			state := k.Key
			if k.Enabled != nil && !*k.Enabled {
				state += colorDim + " (disabled)" + colorReset
			}
			printField(w, k.Name, state)
		}
	}
	fmt.Fprintln(w)
}

func passDeadlineLabel(cfg *config.Config) string {
	if d := cfg.PassDeadline(); d > 0 {
		return d.String()
	}
	return usage.DefaultDeadline.String() + " (default)"
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return colorDim + "none" + colorReset
	}
	return s
}
