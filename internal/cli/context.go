package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jvs-project/dotlock/pkg/color"
	"github.com/jvs-project/dotlock/pkg/config"
	"github.com/jvs-project/dotlock/pkg/dotlock"
	"github.com/jvs-project/dotlock/pkg/logging"
)

// env is the state shared by all commands, built before each run.
var env struct {
	cfgPath string
	cfg     *config.Config
	log     *logging.Logger
}

// exitError carries a specific exit status. A nil err exits silently.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func setup(cmd *cobra.Command, args []string) error {
	if noColor {
		color.Disable()
	} else {
		color.Init(false)
	}

	env.cfgPath = config.ResolvePath(configPath)
	cfg, err := config.Load(env.cfgPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		if err := cfg.Set("logging.level", logLevel); err != nil {
			return err
		}
	}
	env.cfg = cfg
	env.log = cfg.Logger(os.Stderr)
	return nil
}

// lockOptions returns the engine options implied by the configuration.
func lockOptions(extra ...dotlock.Option) []dotlock.Option {
	opts := dotlock.FromConfig(env.cfg)
	opts = append(opts, dotlock.WithLogger(env.log))
	return append(opts, extra...)
}

func fmtErr(format string, args ...any) {
	prefix := "dotlock: "
	if color.Enabled() {
		prefix = color.Error("dotlock:") + " "
	}
	fmt.Fprintf(os.Stderr, prefix+format+"\n", args...)
}

// outputJSON prints v as indented JSON on stdout.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
