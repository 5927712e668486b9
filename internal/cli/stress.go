package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jvs-project/dotlock/internal/stress"
	"github.com/jvs-project/dotlock/pkg/color"
	"github.com/jvs-project/dotlock/pkg/progress"
)

var (
	stressProcs  int
	stressWorker stress.WorkerConfig
	workerConfig stress.WorkerConfig
)

var stressCmd = &cobra.Command{
	Use:   "stress <counter-file>",
	Short: "Stress-test locking with many competing processes",
	Long: `Stress-test locking with many competing processes.

Forks --procs worker processes (at most 50) that all start within the same
second. Each worker repeatedly locks the counter file, appends the next
number in sequence and releases the lock. With --hang-rate some workers
stop refreshing while holding the lock so the others must hijack it.

After the run the counter file must read 1, 2, 3, ... without gaps or
repeats; anything else is reported as a violation (exit status 1).
The counter file is recreated. Run it on the shared filesystem from
several hosts at once for the real test.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("locate executable: %w", err)
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		command := []string{exe, "stress-worker", "--log-level", env.cfg.Logging.Level}
		if configPath != "" {
			command = append(command, "--config", configPath)
		}
		worker := stressWorker
		worker.Path = args[0]

		if !jsonOutput {
			fmt.Printf("Starting %d workers for %s on %s\n", min(stressProcs, stress.MaxProcs), worker.Duration, worker.Path)
		}
		bar := progress.NewTerminal(os.Stderr, "workers", !jsonOutput && progress.IsTerminal(os.Stderr))
		report, runErr := stress.Run(ctx, stress.Options{
			Command:    command,
			Procs:      stressProcs,
			StartDelay: 2 * time.Second,
			Worker:     worker,
			Stderr:     os.Stderr,
			Log:        env.log,
			Progress:   bar.Callback(),
		})
		bar.Done("")
		if report != nil {
			if jsonOutput {
				if err := outputJSON(report); err != nil {
					return err
				}
			} else {
				printStress(report)
			}
		}
		return runErr
	},
}

var stressWorkerCmd = &cobra.Command{
	Use:    "stress-worker <counter-file>",
	Short:  "Run one stress worker (used by stress)",
	Hidden: true,
	Args:   cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := workerConfig
		cfg.Path = args[0]
		stats, err := stress.Work(cmd.Context(), cfg, env.log)
		if err != nil {
			return err
		}
		return stress.WriteStats(os.Stdout, stats)
	},
}

func init() {
	stressCmd.Flags().IntVar(&stressProcs, "procs", 10, "number of worker processes")
	stress.BindWorkerFlags(stressCmd.Flags(), &stressWorker)
	for _, name := range []string{"id", "start-at", "seed"} {
		_ = stressCmd.Flags().MarkHidden(name)
	}
	stress.BindWorkerFlags(stressWorkerCmd.Flags(), &workerConfig)
	rootCmd.AddCommand(stressCmd)
	rootCmd.AddCommand(stressWorkerCmd)
}

func printStress(r *stress.Report) {
	fmt.Printf("Workers:   %d (%d failed)\n", r.Procs, len(r.Failures))
	fmt.Printf("Elapsed:   %s\n", r.Elapsed)
	fmt.Printf("Acquired:  %d (contended %d)\n", r.Totals.Acquired, r.Totals.Contended)
	fmt.Printf("Hangs:     %d (lost %d)\n", r.Totals.Hangs, r.Totals.Lost)
	fmt.Printf("Counter:   %d lines\n", r.Lines)
	for _, f := range r.Failures {
		fmt.Printf("  %s\n", color.Warning(f))
	}
}
