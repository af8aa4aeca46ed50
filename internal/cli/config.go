package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/autolock-cli/autolock/internal/config"
	"github.com/autolock-cli/autolock/internal/lock"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage autolock configuration",
	Long: `Manage autolock configuration settings.

Configuration is stored in ~/.config/autolock/config.yaml by default.
List values (include, exclude) are set as comma-separated names.

Example:
  autolock config path                           # Show config file path
  autolock config get lock_mode                  # Get the lock mode
  autolock config set lock_mode exclusive        # Wait for the lock instead of failing
  autolock config set exclude report,cleanup     # Never lock these actions
  autolock config get                            # Show all configuration`,
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Get configuration value(s)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return runConfigGetAll(cmd.OutOrStdout(), cfg, cfgFile)
		}
		return runConfigGet(cmd.OutOrStdout(), cfg, args[0])
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConfigSet(cmd.OutOrStdout(), cfg, cfgFile, args[0], args[1])
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeOutput(cmd.OutOrStdout(), "%s\n", cfgFile)
	},
}

func init() {
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigGetAll(out io.Writer, c *config.Config, path string) error {
	if err := writeOutput(out, "Configuration file: %s\n\n", path); err != nil {
		return err
	}
	for _, key := range []string{"runtime_dir", "lock_mode", "include", "exclude", "output_format"} {
		value, _ := configValue(c, key)
		if err := writeOutput(out, "%s: %s\n", key, value); err != nil {
			return err
		}
	}
	return nil
}

func runConfigGet(out io.Writer, c *config.Config, key string) error {
	value, err := configValue(c, key)
	if err != nil {
		return err
	}
	return writeOutput(out, "%s\n", value)
}

func configValue(c *config.Config, key string) (string, error) {
	switch normalizeKey(key) {
	case "runtime_dir":
		return c.RuntimeDir, nil
	case "lock_mode":
		return c.LockMode, nil
	case "include":
		return strings.Join(c.Include, ","), nil
	case "exclude":
		return strings.Join(c.Exclude, ","), nil
	case "output_format":
		return c.OutputFormat, nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

func runConfigSet(out io.Writer, c *config.Config, path, key, value string) error {
	switch normalizeKey(key) {
	case "runtime_dir":
		if value == "" {
			return fmt.Errorf("runtime_dir must not be empty")
		}
		c.RuntimeDir = value
	case "lock_mode":
		mode, err := lock.ParseMode(value)
		if err != nil {
			return err
		}
		c.LockMode = mode.String()
	case "include":
		c.Include = splitList(value)
	case "exclude":
		c.Exclude = splitList(value)
	case "output_format":
		switch value {
		case config.OutputTable, config.OutputJSON, config.OutputAuto:
		default:
			return fmt.Errorf("invalid output format: %s (valid: table, json, auto)", value)
		}
		c.OutputFormat = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}

	if err := config.SaveConfig(c, path); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	return writeOutput(out, "Configuration updated: %s = %s\n", key, value)
}

func normalizeKey(key string) string {
	return strings.ReplaceAll(strings.ToLower(key), "-", "_")
}

func splitList(value string) []string {
	names := []string{}
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			names = append(names, part)
		}
	}
	return names
}
