package lock

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jvs-project/dotlock/pkg/model"
)

// Identity names the party writing a lock record.
type Identity struct {
	Host string
	PID  int
	// Task distinguishes engines within one process.
	Task string
}

// NewIdentity returns the identity of the current process with a fresh
// task id.
func NewIdentity() Identity {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}
	return Identity{
		Host: sanitize(host),
		PID:  os.Getpid(),
		Task: strings.ReplaceAll(uuid.NewString(), "-", "")[:12],
	}
}

// sanitize keeps the record splittable on whitespace and the temp name a
// single path element.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune("/\\ \t\r\n", r) {
			return '_'
		}
		return r
	}, s)
}

func (id Identity) record(now time.Time) string {
	return model.LockRecord{Host: id.Host, PID: id.PID, Task: id.Task, CreatedAt: now}.String()
}

func (id Identity) tempSuffix() string {
	return fmt.Sprintf("tmp-%s-%d-%s", id.Host, id.PID, id.Task)
}
