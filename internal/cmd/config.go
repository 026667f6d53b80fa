package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/plancraft/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View and edit plancraft configuration",
	Long: `View and edit plancraft configuration.

Values come from the config file (--config, default ~/.plancraft/config.yaml),
overridden by PLANCRAFT_* environment variables, e.g.
PLANCRAFT_WORKSPACE_ROOT or PLANCRAFT_NATS_URL.

Examples:
  plancraft config view
  plancraft config get workspace.backend
  plancraft config set workspace.backend nats
  plancraft config set nats.embedded true`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if outputFormat == "text" {
			data, err := yaml.Marshal(current.cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		}
		return render(cmd, current.cfg)
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := config.Get(cfgFile, args[0])
		if err != nil {
			return err
		}
		return render(cmd, fmt.Sprint(v))
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Write one configuration value to the config file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := configPath()
		if err != nil {
			return err
		}
		if err := config.Set(path, args[0], args[1]); err != nil {
			return err
		}
		return render(cmd, fmt.Sprintf("%s = %s (%s)", args[0], args[1], path))
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := configPath()
		if err != nil {
			return err
		}
		return render(cmd, path)
	},
}

func configPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	return config.DefaultPath()
}

func init() {
	configCmd.AddCommand(configViewCmd, configGetCmd, configSetCmd, configPathCmd)
	rootCmd.AddCommand(configCmd)
}
