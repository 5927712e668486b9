package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jvs-project/dotlock/pkg/config"
)

var configInitForce bool

var configCmd = &cobra.Command{
	Use:   "config <command>",
	Short: "Manage dotlock configuration",
	Long: `Manage the dotlock configuration file.

The file is taken from --config, then $DOTLOCK_CONFIG, then
<user config dir>/dotlock/config.yaml. A missing file means defaults.

Keys:
  lock.valid_lock_age  - Age after which an unrefreshed lock is stale (60s)
  lock.poll_interval   - Delay between acquisition attempts (15s)
  lock.hijack_delay    - Wait before confirming a stale lock takeover (15s)
  lock.watch           - Wake early when the lock file is removed locally
  logging.level        - debug, info, warn, error
  logging.format       - text, json
  metrics.addr         - Serve Prometheus metrics during run (e.g. :2112)
  audit.path           - Append lock events of run to this journal file`,
	DisableFlagsInUseLine: true,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if jsonOutput {
			return outputJSON(env.cfg)
		}
		data, err := yaml.Marshal(env.cfg)
		if err != nil {
			return err
		}
		if env.cfgPath != "" {
			fmt.Printf("# %s\n", env.cfgPath)
		}
		fmt.Print(string(data))
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file location",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if env.cfgPath == "" {
			return errors.New("no configuration location on this platform; use --config")
		}
		fmt.Println(env.cfgPath)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with default values",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := requireConfigPath()
		if err != nil {
			return err
		}
		if _, err := os.Stat(path); err == nil && !configInitForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.Save(path, config.Default()); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value.

Examples:
  dotlock config set lock.valid_lock_age 2m
  dotlock config set lock.hijack_delay 30s
  dotlock config set logging.format json`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := requireConfigPath()
		if err != nil {
			return err
		}
		// Reload so that flag overrides are not persisted.
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		key, value := args[0], args[1]
		if _, err := cfg.Get(key); err != nil {
			return errors.New(formatUnknownKeyError(key))
		}
		if err := cfg.Set(key, value); err != nil {
			return err
		}
		if err := config.Save(path, cfg); err != nil {
			return err
		}
		fmt.Printf("Set %s = %s\n", key, value)
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		value, err := env.cfg.Get(args[0])
		if err != nil {
			return errors.New(formatUnknownKeyError(args[0]))
		}
		if value == "" {
			fmt.Printf("%s (not set)\n", args[0])
			return nil
		}
		fmt.Println(value)
		return nil
	},
}

func requireConfigPath() (string, error) {
	if env.cfgPath == "" {
		return "", errors.New("no configuration location on this platform; use --config")
	}
	return env.cfgPath, nil
}

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing file")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
	rootCmd.AddCommand(configCmd)
}
