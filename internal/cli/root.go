package cli

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/jvs-project/dotlock/pkg/color"
)

var (
	jsonOutput bool
	configPath string
	logLevel   string
	noColor    bool

	rootCmd = &cobra.Command{
		Use:   "dotlock",
		Short: "dotlock - NFS-safe lock files",
		Long: `dotlock guards shared files with dot-lock files ("<path>.lock") that
are safe to use from many hosts over NFS. It can run a command under a
lock, inspect locks, probe a directory for the filesystem features the
protocol needs, and stress-test a lock with many processes.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
	}
)

func init() {
	bindGlobalFlags(rootCmd)
}

func bindGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	cmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $DOTLOCK_CONFIG or the user config dir)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	cmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// Execute runs the root command and exits with its status.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(reportError(err))
	}
}

// reportError prints err and returns the process exit code for it.
func reportError(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmtErr("%v", ee.err)
		}
		return ee.code
	}
	if color.Enabled() {
		fmtErr("%s", color.Error(err.Error()))
	} else {
		fmtErr("%v", err)
	}
	return 1
}
