package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/partsbin/internal/config"
	"github.com/kalambet/partsbin/internal/settings"
)

// --- settings ---

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change user settings stored with the inventories",
}

var settingsGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Show one setting or all of them",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			out := cmd.OutOrStdout()
			if len(args) == 1 {
				v, err := a.settings.Get(ctx, args[0])
				if err != nil {
					return err
				}
				if settings.IsSecret(args[0]) {
					v = settings.Mask(v)
				}
				fmt.Fprintln(out, v)
				return nil
			}
			all, err := a.settings.All(ctx)
			if err != nil {
				return err
			}
			for _, k := range settings.Keys() {
				fmt.Fprintf(out, "  %s = %s\n", colorize(colorBold, k), all[k])
			}
			return nil
		})
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> [value]",
	Short: "Change a setting; an empty value restores the default",
	Long: `Change a setting. An empty value restores the default.

Known keys: api_key, model, provider, theme, startup_inventory.
When the value of api_key is omitted it is read from standard input.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		var value string
		if len(args) == 2 {
			value = args[1]
		} else if settings.IsSecret(key) {
			v, err := readSecret(cmd, key)
			if err != nil {
				return err
			}
			value = v
		}

		return withApp(cmd, func(ctx context.Context, a *app) error {
			if err := a.settings.Set(ctx, key, value); err != nil {
				return err
			}
			shown := value
			if settings.IsSecret(key) {
				shown = settings.Mask(value)
			}
			if value == "" {
				printSuccess("Reset %s", key)
			} else {
				printSuccess("Set %s = %s", key, shown)
			}
			return nil
		})
	},
}

func readSecret(cmd *cobra.Command, key string) (string, error) {
	fmt.Fprintf(os.Stderr, "Enter %s: ", key)
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading %s: %w", key, err)
	}
	return strings.TrimSpace(line), nil
}

func init() {
	settingsCmd.AddCommand(settingsGetCmd, settingsSetCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s  %s\n", colorize(colorBold, k.Key), k.Value, colorize(colorCyan, "$"+k.EnvVar))
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: fmt.Sprintf(`Set a configuration value.

Valid keys: %s`, strings.Join(config.ValidKeys(), ", ")),
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configSetSecretCmd = &cobra.Command{
	Use:   "set-secret <key>",
	Short: "Store a secret in the platform secret store",
	Long: fmt.Sprintf(`Store a secret in the platform secret store. The value is read from standard input.

Secret keys: %s`, strings.Join(config.SecretKeys(), ", ")),
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		value, err := readSecret(cmd, args[0])
		if err != nil {
			return err
		}
		if err := config.SetSecret(args[0], value); err != nil {
			return err
		}
		printSuccess("Stored %s", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configSetCmd, configSetSecretCmd)
}
