package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jvs-project/dotlock/pkg/errclass"
)

// LockPolicy configures lock timing parameters.
type LockPolicy struct {
	// ValidLockAge is how long a lock may go without a refresh before it is
	// considered stale.
	ValidLockAge time.Duration `json:"valid_lock_age"`
	// PollInterval is the delay between acquisition attempts.
	PollInterval time.Duration `json:"poll_interval"`
	// HijackDelay is how long a hijacker waits before checking that its
	// overwrite of a stale lock survived.
	HijackDelay time.Duration `json:"hijack_delay"`
}

// DefaultLockPolicy returns the stock timings: 60s valid age, 15s poll
// interval, 15s hijack delay.
func DefaultLockPolicy() LockPolicy {
	return LockPolicy{
		ValidLockAge: 60 * time.Second,
		PollInterval: 15 * time.Second,
		HijackDelay:  15 * time.Second,
	}
}

// StaleAfter returns the minimum age at which a lock may be judged stale.
// Doubling the hijack delay keeps two racing hijackers from endlessly
// refreshing the apparent age of a lock they both overwrote.
func (p LockPolicy) StaleAfter() time.Duration {
	return max(2*p.HijackDelay, p.ValidLockAge)
}

// Validate checks that the policy timings are usable.
func (p LockPolicy) Validate() error {
	if p.ValidLockAge <= 0 {
		return errclass.ErrPolicyInvalid.WithMessage("valid lock age must be positive")
	}
	if p.PollInterval < 0 || p.HijackDelay < 0 {
		return errclass.ErrPolicyInvalid.WithMessage("poll interval and hijack delay must not be negative")
	}
	if p.ValidLockAge < 2*p.HijackDelay {
		return errclass.ErrPolicyInvalid.WithMessagef(
			"valid lock age %s must be at least twice the hijack delay %s", p.ValidLockAge, p.HijackDelay)
	}
	return nil
}

// LockRecord is the payload written into a lock file:
// "<hostname> <pid> <task-id> <unix-time>".
//
// Lock holders compare the raw bytes of this record to detect hijacking.
// The parsed form exists for diagnostics only.
type LockRecord struct {
	Host      string    `json:"host"`
	PID       int       `json:"pid"`
	Task      string    `json:"task"`
	CreatedAt time.Time `json:"created_at"`
}

// String renders the record in its on-disk form.
func (r LockRecord) String() string {
	secs := float64(r.CreatedAt.UnixNano()) / float64(time.Second)
	return fmt.Sprintf("%s %d %s %s", r.Host, r.PID, r.Task, strconv.FormatFloat(secs, 'f', 6, 64))
}

// ParseLockRecord parses the on-disk form of a lock record.
func ParseLockRecord(s string) (LockRecord, error) {
	parts := strings.Fields(s)
	if len(parts) != 4 {
		return LockRecord{}, fmt.Errorf("parse lock record: want 4 fields, got %d", len(parts))
	}
	pid, err := strconv.Atoi(parts[1])
	if err != nil {
		return LockRecord{}, fmt.Errorf("parse lock record pid: %w", err)
	}
	secs, err := strconv.ParseFloat(parts[3], 64)
	if err != nil {
		return LockRecord{}, fmt.Errorf("parse lock record time: %w", err)
	}
	whole := int64(secs)
	frac := int64((secs - float64(whole)) * float64(time.Second))
	return LockRecord{
		Host:      parts[0],
		PID:       pid,
		Task:      parts[2],
		CreatedAt: time.Unix(whole, frac).Round(time.Microsecond),
	}, nil
}

// LockState summarizes a lock file as seen by one engine.
type LockState string

const (
	LockStateFree   LockState = "free"   // no lock file
	LockStateHeld   LockState = "held"   // held by the observing engine
	LockStateLocked LockState = "locked" // held by someone else
	LockStateStale  LockState = "stale"  // held by someone else, eligible for hijack
)

// Status is a diagnostic snapshot of a lock.
type Status struct {
	Path       string        `json:"path"`
	LockPath   string        `json:"lock_path"`
	State      LockState     `json:"state"`
	Age        time.Duration `json:"age,omitempty"`
	Skew       time.Duration `json:"skew"`
	StaleAfter time.Duration `json:"stale_after"`
	Record     string        `json:"record,omitempty"`
	Holder     *LockRecord   `json:"holder,omitempty"`
}

// Event names a protocol transition reported to a recorder.
type Event string

const (
	EventAcquired   Event = "acquired"
	EventHijacked   Event = "hijacked"
	EventHijackLost Event = "hijack_lost"
	EventContended  Event = "contended"
	EventExhausted  Event = "exhausted"
	EventRefreshed  Event = "refreshed"
	EventReleased   Event = "released"
	EventLost       Event = "lost"
)
