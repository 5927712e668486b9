package stress

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jvs-project/dotlock/pkg/errclass"
	"github.com/jvs-project/dotlock/pkg/logging"
	"github.com/jvs-project/dotlock/pkg/progress"
)

// MaxProcs caps the number of forked workers.
const MaxProcs = 50

// Options configures a stress run.
type Options struct {
	// Command is the argv prefix that starts a worker; worker arguments
	// are appended to it.
	Command []string
	// Env is added to the environment of every worker.
	Env   []string
	Procs int
	// StartDelay gives all workers time to start before they are released
	// together.
	StartDelay time.Duration
	Worker     WorkerConfig
	// Stderr receives worker diagnostics. Nil discards them.
	Stderr io.Writer
	Log    *logging.Logger
	// Progress is called each time a worker exits. Nil disables it.
	Progress progress.Callback
}

// Report is the outcome of a stress run.
type Report struct {
	Path     string        `json:"path"`
	Procs    int           `json:"procs"`
	Elapsed  time.Duration `json:"elapsed"`
	Lines    int           `json:"lines"`
	Totals   WorkerStats   `json:"totals"`
	Workers  []WorkerStats `json:"workers"`
	Failures []string      `json:"failures,omitempty"`
}

// Run starts the workers, waits for them and verifies the counter file.
// An existing counter file is replaced. The returned error wraps
// errclass.ErrStressViolation if the sequence is broken; the report is
// returned in either case.
func Run(ctx context.Context, opts Options) (*Report, error) {
	if len(opts.Command) == 0 {
		return nil, errors.New("stress: no worker command")
	}
	log := opts.Log
	if log == nil {
		log = logging.Discard()
	}
	onDone := opts.Progress
	if onDone == nil {
		onDone = progress.Noop
	}
	procs := min(max(opts.Procs, 1), MaxProcs)
	if err := os.Remove(opts.Worker.Path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("stress: reset counter: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	report := &Report{Path: opts.Worker.Path, Procs: procs}
	startAt := time.Now().Add(opts.StartDelay)
	start := time.Now()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		finished int
	)
	for i := 0; i < procs; i++ {
		cfg := opts.Worker
		cfg.ID = workerID(i)
		cfg.Seed = rand.Uint64()
		// Stagger starts within the first second, like a herd of cron jobs.
		cfg.StartAt = startAt.Add(time.Duration(rand.Int64N(int64(time.Second))))

		args := append(append([]string(nil), opts.Command[1:]...), cfg.Args()...)
		cmd := exec.CommandContext(ctx, opts.Command[0], args...)
		cmd.Env = append(os.Environ(), opts.Env...)
		var stdout bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = opts.Stderr

		if err := cmd.Start(); err != nil {
			// Stop the workers already running before giving up.
			cancel()
			wg.Wait()
			return nil, fmt.Errorf("stress: start worker %s: %w", cfg.ID, err)
		}
		log.Debug("worker started", map[string]any{"worker": cfg.ID, "pid": cmd.Process.Pid})

		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			err := cmd.Wait()
			stats, perr := parseStats(&stdout)

			mu.Lock()
			defer mu.Unlock()
			finished++
			onDone(finished, procs, id)
			if err != nil {
				report.Failures = append(report.Failures, fmt.Sprintf("%s: %v", id, err))
				return
			}
			if perr != nil {
				report.Failures = append(report.Failures, fmt.Sprintf("%s: %v", id, perr))
				return
			}
			report.Workers = append(report.Workers, stats)
			report.Totals.add(stats)
		}(cfg.ID)
	}
	wg.Wait()
	report.Elapsed = time.Since(start).Round(time.Millisecond)
	report.Totals.ID = "total"

	lines, err := Verify(opts.Worker.Path)
	report.Lines = lines
	if err != nil {
		return report, err
	}
	if len(report.Failures) > 0 {
		return report, fmt.Errorf("stress: %d of %d workers failed", len(report.Failures), procs)
	}
	if lines != report.Totals.Written {
		return report, errclass.ErrStressViolation.WithMessagef(
			"workers reported %d writes, counter has %d lines", report.Totals.Written, lines)
	}
	return report, nil
}

func workerID(i int) string {
	host, err := os.Hostname()
	if err != nil {
		host = "localhost"
	}
	return fmt.Sprintf("%s-%d-w%02d", host, os.Getpid(), i)
}

func parseStats(r io.Reader) (WorkerStats, error) {
	var stats WorkerStats
	var last []byte
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if line := bytes.TrimSpace(sc.Bytes()); len(line) > 0 {
			last = append(last[:0], line...)
		}
	}
	if last == nil {
		return stats, errors.New("no stats reported")
	}
	if err := json.Unmarshal(last, &stats); err != nil {
		return stats, fmt.Errorf("bad stats line: %w", err)
	}
	return stats, nil
}

// Verify checks that the counter file holds the sequence 1, 2, 3, ...
// and returns the number of lines. A missing file is an empty sequence.
func Verify(path string) (int, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	defer f.Close()

	lines := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines++
		fields := strings.Fields(sc.Text())
		if len(fields) != 2 {
			return lines, errclass.ErrStressViolation.WithMessagef("line %d: malformed %q", lines, sc.Text())
		}
		n, err := strconv.Atoi(fields[0])
		if err != nil || n != lines {
			return lines, errclass.ErrStressViolation.WithMessagef(
				"line %d: expected %d, got %q from %s", lines, lines, fields[0], fields[1])
		}
	}
	return lines, sc.Err()
}
