package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jvs-project/dotlock/internal/audit"
	"github.com/jvs-project/dotlock/internal/lock"
	"github.com/jvs-project/dotlock/pkg/dotlock"
	"github.com/jvs-project/dotlock/pkg/logging"
	"github.com/jvs-project/dotlock/pkg/metrics"
	"github.com/jvs-project/dotlock/pkg/pathutil"
)

// exitExhausted is the status of run when the lock could not be taken.
const exitExhausted = 2

var runAttempts int

var runCmd = &cobra.Command{
	Use:   "run <path> -- <command> [args...]",
	Short: "Run a command while holding the lock on path",
	Long: `Run a command while holding the lock on path.

The lock is acquired first (waiting as long as necessary unless --attempts
is given), refreshed in the background while the command runs and released
when it exits. With audit.path configured, every acquisition, refresh,
release and loss is appended to that journal. The command's exit status becomes dotlock's exit status.
If the lock cannot be acquired within the attempt limit, the command is not
started and dotlock exits with status 2.

Examples:
  dotlock run /nfs/data/queue.db -- ./drain-queue
  dotlock run --attempts 3 /nfs/data/report.csv -- sh -c 'generate > report.csv'`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		reg := metrics.NewRegistry()
		if addr := env.cfg.Metrics.Addr; addr != "" {
			go func() {
				if err := reg.Serve(ctx, addr); err != nil {
					env.log.Warn("metrics server stopped", map[string]any{"error": err.Error()})
				}
			}()
		}

		resource, err := pathutil.NormalizeResourcePath(args[0])
		if err != nil {
			return err
		}
		var rec lock.Recorder = reg
		if path := env.cfg.Audit.Path; path != "" {
			rec = audit.NewRecorder(audit.NewFileAppender(path), resource, reg, env.log)
		}

		l, err := dotlock.New(resource, lockOptions(dotlock.WithRecorder(rec))...)
		if err != nil {
			return err
		}
		defer l.Close()

		ok, err := l.AcquireN(ctx, runAttempts)
		if err != nil {
			return fmt.Errorf("acquire %s: %w", l.LockPath(), err)
		}
		if !ok {
			return &exitError{
				code: exitExhausted,
				err:  fmt.Errorf("lock %s is busy after %d attempts", l.LockPath(), runAttempts),
			}
		}

		return runLocked(ctx, l, args[1:])
	},
}

func init() {
	runCmd.Flags().IntVar(&runAttempts, "attempts", 0, "give up after this many attempts (0 waits forever)")
	rootCmd.AddCommand(runCmd)
}

// runLocked runs argv while keeping l fresh and maps its exit status.
func runLocked(ctx context.Context, l *dotlock.Lock, argv []string) error {
	child := exec.CommandContext(ctx, argv[0], argv[1:]...)
	child.Stdin, child.Stdout, child.Stderr = os.Stdin, os.Stdout, os.Stderr
	child.Cancel = func() error { return child.Process.Signal(os.Interrupt) }
	child.WaitDelay = 10 * time.Second

	if err := child.Start(); err != nil {
		return fmt.Errorf("start %s: %w", argv[0], err)
	}

	refreshCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		keepFresh(refreshCtx, l, l.Policy().ValidLockAge/3, env.log)
	}()

	err := child.Wait()
	cancel()
	wg.Wait()

	var ee *exec.ExitError
	if errors.As(err, &ee) {
		code := ee.ExitCode()
		if code < 0 {
			code = 1
		}
		return &exitError{code: code}
	}
	return err
}

// keepFresh refreshes l every interval until ctx is done or the lock is
// lost.
func keepFresh(ctx context.Context, l *dotlock.Lock, interval time.Duration, log *logging.Logger) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := l.Refresh(); err != nil {
				log.Warn("lock lost while command is running", map[string]any{
					"lock":  l.LockPath(),
					"error": err.Error(),
				})
				return
			}
		}
	}
}
