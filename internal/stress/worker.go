// Package stress exercises a lock under contention from many processes.
//
// Each worker repeatedly takes the lock, reads the last number from a
// shared counter file and appends the next one. Any break in the sequence
// means two workers were inside the critical section at once.
package stress

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/jvs-project/dotlock/internal/lock"
	"github.com/jvs-project/dotlock/pkg/logging"
	"github.com/jvs-project/dotlock/pkg/model"
)

// WorkerConfig drives a single worker process.
type WorkerConfig struct {
	Path     string
	ID       string
	StartAt  time.Time
	Duration time.Duration
	// HangRate is the probability that a worker stops responding while
	// holding the lock, forcing the others to hijack it.
	HangRate float64
	// Hold is spent inside the critical section to widen race windows.
	Hold time.Duration
	// MaxPause bounds the random rest between iterations.
	MaxPause time.Duration
	Seed     uint64
	Policy   model.LockPolicy
}

// WorkerStats summarizes what a worker did.
type WorkerStats struct {
	ID        string `json:"id"`
	Acquired  int    `json:"acquired"`
	Written   int    `json:"written"`
	Hangs     int    `json:"hangs"`
	Contended int    `json:"contended"`
	Lost      int    `json:"lost"`
}

func (s *WorkerStats) add(o WorkerStats) {
	s.Acquired += o.Acquired
	s.Written += o.Written
	s.Hangs += o.Hangs
	s.Contended += o.Contended
	s.Lost += o.Lost
}

// BindWorkerFlags registers the worker flags on fs.
func BindWorkerFlags(fs *pflag.FlagSet, c *WorkerConfig) {
	fs.StringVar(&c.ID, "id", "", "worker id written to the counter file")
	fs.Var((*unixNano)(&c.StartAt), "start-at", "unix nanoseconds at which to start")
	fs.DurationVar(&c.Duration, "duration", 30*time.Second, "how long to run")
	fs.Float64Var(&c.HangRate, "hang-rate", 0.05, "probability of hanging while holding the lock")
	fs.DurationVar(&c.Hold, "hold", time.Second, "time spent inside the critical section")
	fs.DurationVar(&c.MaxPause, "max-pause", 5*time.Second, "upper bound of the pause between iterations")
	fs.Uint64Var(&c.Seed, "seed", 0, "random seed")
	fs.DurationVar(&c.Policy.ValidLockAge, "valid-lock-age", 16*time.Second, "lock valid age")
	fs.DurationVar(&c.Policy.PollInterval, "poll-interval", time.Second, "lock poll interval")
	fs.DurationVar(&c.Policy.HijackDelay, "hijack-delay", 8*time.Second, "lock hijack delay")
}

// unixNano is a time flag given as nanoseconds since the epoch.
type unixNano time.Time

func (u *unixNano) String() string {
	t := time.Time(*u)
	if t.IsZero() {
		return "0"
	}
	return strconv.FormatInt(t.UnixNano(), 10)
}

func (u *unixNano) Set(s string) error {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	*u = unixNano(time.Unix(0, n))
	return nil
}

func (u *unixNano) Type() string { return "unixnano" }

// Args renders c as arguments accepted by a flag set bound with
// BindWorkerFlags, followed by the counter path.
func (c WorkerConfig) Args() []string {
	return []string{
		"--id=" + c.ID,
		"--start-at=" + strconv.FormatInt(c.StartAt.UnixNano(), 10),
		"--duration=" + c.Duration.String(),
		"--hang-rate=" + strconv.FormatFloat(c.HangRate, 'f', -1, 64),
		"--hold=" + c.Hold.String(),
		"--max-pause=" + c.MaxPause.String(),
		"--seed=" + strconv.FormatUint(c.Seed, 10),
		"--valid-lock-age=" + c.Policy.ValidLockAge.String(),
		"--poll-interval=" + c.Policy.PollInterval.String(),
		"--hijack-delay=" + c.Policy.HijackDelay.String(),
		c.Path,
	}
}

// Work runs the worker loop until the configured duration has passed. The
// lock is released on return, unless it was lost during a hang.
func Work(ctx context.Context, cfg WorkerConfig, log *logging.Logger) (WorkerStats, error) {
	if log == nil {
		log = logging.Discard()
	}
	if cfg.ID == "" {
		host, _ := os.Hostname()
		cfg.ID = fmt.Sprintf("%s-%d", host, os.Getpid())
	}
	stats := WorkerStats{ID: cfg.ID}
	log = log.WithFields(map[string]any{"worker": cfg.ID})

	l, err := lock.New(cfg.Path, lock.WithPolicy(cfg.Policy), lock.WithLogger(log))
	if err != nil {
		return stats, err
	}
	defer l.Close()

	rng := rand.New(rand.NewPCG(cfg.Seed, uint64(os.Getpid())))
	if err := sleep(ctx, time.Until(cfg.StartAt)); err != nil {
		return stats, err
	}
	log.Debug("started")

	end := time.Now().Add(cfg.Duration)
	for time.Now().Before(end) {
		ok, err := l.AcquireN(ctx, 1)
		if err != nil {
			return stats, err
		}
		if !ok {
			stats.Contended++
			if err := sleep(ctx, cfg.Hold); err != nil {
				return stats, err
			}
			continue
		}
		stats.Acquired++

		if rng.Float64() < cfg.HangRate {
			log.Info("hanging while holding the lock")
			stats.Hangs++
			if err := sleep(ctx, cfg.Policy.ValidLockAge*3/2); err != nil {
				return stats, err
			}
			if !l.IsLocked() {
				stats.Lost++
			}
			continue
		}

		n, err := lastCount(cfg.Path)
		if err != nil {
			return stats, err
		}
		if err := sleep(ctx, cfg.Hold); err != nil {
			return stats, err
		}
		if err := appendCount(cfg.Path, n+1, cfg.ID); err != nil {
			return stats, err
		}
		stats.Written++
		log.Debug("wrote count", map[string]any{"n": n + 1})
		l.Release()

		pause := cfg.Hold
		if cfg.MaxPause > cfg.Hold {
			pause += time.Duration(rng.Int64N(int64(cfg.MaxPause - cfg.Hold)))
		}
		if err := sleep(ctx, pause); err != nil {
			return stats, err
		}
	}
	log.Debug("exiting", map[string]any{"written": stats.Written})
	return stats, nil
}

// WriteStats emits stats as one JSON line for the parent process.
func WriteStats(w io.Writer, stats WorkerStats) error {
	return json.NewEncoder(w).Encode(stats)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// lastCount returns the number on the last line of the counter file, or
// zero if the file does not exist yet.
func lastCount(path string) (int, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var last string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			last = line
		}
	}
	if err := sc.Err(); err != nil {
		return 0, err
	}
	if last == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(strings.Fields(last)[0])
	if err != nil {
		return 0, fmt.Errorf("counter file %s: malformed line %q", path, last)
	}
	return n, nil
}

func appendCount(path string, n int, id string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(f, "%d %s\n", n, id); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
