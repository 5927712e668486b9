// Package doctor probes whether a directory can host dot-locks.
package doctor

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jvs-project/dotlock/pkg/fsutil"
	"github.com/jvs-project/dotlock/pkg/model"
	"github.com/jvs-project/dotlock/pkg/pathutil"
)

// Severity levels, in increasing order.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Finding represents a detected issue.
type Finding struct {
	Category    string `json:"category"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Path        string `json:"path,omitempty"`
}

// Result contains doctor check results.
type Result struct {
	Dir      string        `json:"dir"`
	Healthy  bool          `json:"healthy"`
	Skew     time.Duration `json:"skew"`
	Findings []Finding     `json:"findings"`
}

func (r *Result) add(f Finding) {
	r.Findings = append(r.Findings, f)
	if f.Severity == SeverityError || f.Severity == SeverityCritical {
		r.Healthy = false
	}
}

// Doctor checks a directory for the filesystem behavior the lock protocol
// relies on.
type Doctor struct {
	dir    string
	policy model.LockPolicy
	fs     fsutil.FS
	now    func() time.Time
}

// NewDoctor creates a doctor for dir. A nil fs uses the real filesystem.
func NewDoctor(dir string, policy model.LockPolicy, fs fsutil.FS) *Doctor {
	if fs == nil {
		fs = fsutil.NewOS(nil)
	}
	return &Doctor{dir: dir, policy: policy, fs: fs, now: time.Now}
}

// Check runs all diagnostic checks. Probe files are removed before it
// returns.
func (d *Doctor) Check() (*Result, error) {
	abs, err := filepath.Abs(d.dir)
	if err != nil {
		return nil, fmt.Errorf("doctor: %w", err)
	}
	result := &Result{Dir: abs, Healthy: true, Findings: []Finding{}}

	fi, err := os.Stat(abs)
	if err != nil || !fi.IsDir() {
		result.add(Finding{
			Category:    "directory",
			Description: "not an accessible directory",
			Severity:    SeverityCritical,
			Path:        abs,
		})
		return result, nil
	}

	probe := filepath.Join(abs, ".dotlock-doctor-"+uuid.NewString())
	defer d.fs.Remove(probe)
	defer d.fs.Remove(probe + ".lock")

	// 1. Writes are visible to reads
	if !d.checkWrite(result, probe) {
		return result, nil
	}

	// 2. Hard links: counted, shared identity, exclusive creation
	d.checkLink(result, probe)

	// 3. Clock skew against the file server
	d.checkSkew(result, probe)

	// 4. Explicit modification times, needed for refresh
	d.checkModTime(result, probe)

	// 5. Leftovers from crashed lockers
	d.checkLeftovers(result, abs)

	return result, nil
}

func (d *Doctor) checkWrite(result *Result, probe string) bool {
	payload := []byte("doctor " + filepath.Base(probe))
	if !d.fs.WriteFile(probe, payload) {
		result.add(Finding{
			Category:    "write",
			Description: "cannot create files",
			Severity:    SeverityCritical,
			Path:        probe,
		})
		return false
	}
	got, ok := d.fs.ReadFile(probe)
	if !ok || !bytes.Equal(got, payload) {
		result.add(Finding{
			Category:    "write",
			Description: "written content did not read back",
			Severity:    SeverityCritical,
			Path:        probe,
		})
		return false
	}
	return true
}

func (d *Doctor) checkLink(result *Result, probe string) {
	target := probe + ".lock"
	if !d.fs.Link(probe, target) {
		if _, ok := d.fs.Stat(target); !ok {
			result.add(Finding{
				Category:    "link",
				Description: "hard links are not supported",
				Severity:    SeverityCritical,
				Path:        target,
			})
			return
		}
		result.add(Finding{
			Category:    "link",
			Description: "link reported failure but was created",
			Severity:    SeverityInfo,
			Path:        target,
		})
	}

	src, okSrc := d.fs.Stat(probe)
	dst, okDst := d.fs.Stat(target)
	switch {
	case !okSrc || !okDst:
		result.add(Finding{
			Category:    "link",
			Description: "linked files cannot be stat'ed",
			Severity:    SeverityCritical,
		})
	case src.Nlink != 2:
		result.add(Finding{
			Category:    "link",
			Description: fmt.Sprintf("link count is %d after one link, want 2", src.Nlink),
			Severity:    SeverityCritical,
			Path:        probe,
		})
	case src.ID != dst.ID:
		result.add(Finding{
			Category:    "link",
			Description: "linked names report different file identities",
			Severity:    SeverityCritical,
			Path:        target,
		})
	}

	if d.fs.Link(probe, target) {
		result.add(Finding{
			Category:    "link",
			Description: "linking onto an existing name succeeded",
			Severity:    SeverityCritical,
			Path:        target,
		})
	}
}

func (d *Doctor) checkSkew(result *Result, probe string) {
	now := d.now()
	if !d.fs.WriteFile(probe, []byte("skew")) {
		return
	}
	info, ok := d.fs.Stat(probe)
	if !ok {
		return
	}
	skew := now.Sub(info.ModTime).Round(time.Millisecond)
	result.Skew = skew
	if skew.Abs() <= time.Second {
		return
	}

	sev := SeverityWarning
	if skew.Abs() >= d.policy.ValidLockAge/2 {
		sev = SeverityError
	}
	result.add(Finding{
		Category:    "clock",
		Description: fmt.Sprintf("local clock differs from file server by %s", skew),
		Severity:    sev,
	})
}

func (d *Doctor) checkModTime(result *Result, probe string) {
	want := d.now().Add(-time.Hour).Truncate(time.Second)
	if !d.fs.SetModTime(probe, want) {
		result.add(Finding{
			Category:    "mtime",
			Description: "cannot set modification times; locks cannot be refreshed",
			Severity:    SeverityError,
			Path:        probe,
		})
		return
	}
	info, ok := d.fs.Stat(probe)
	if !ok {
		return
	}
	if diff := info.ModTime.Sub(want).Abs(); diff > time.Second {
		result.add(Finding{
			Category:    "mtime",
			Description: fmt.Sprintf("modification time set to %s reads back as %s", want.Format(time.RFC3339), info.ModTime.Format(time.RFC3339)),
			Severity:    SeverityError,
			Path:        probe,
		})
	}
}

func (d *Doctor) checkLeftovers(result *Result, dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	staleAfter := d.policy.StaleAfter()
	for _, entry := range entries {
		name := entry.Name()
		path := filepath.Join(dir, name)
		switch {
		case pathutil.IsTempName(name):
			result.add(Finding{
				Category:    "tmp",
				Description: fmt.Sprintf("orphan lock temp file: %s", name),
				Severity:    SeverityInfo,
				Path:        path,
			})
		case strings.HasSuffix(name, ".lock") && !strings.HasPrefix(name, ".dotlock-doctor-"):
			info, ok := d.fs.Stat(path)
			if !ok {
				continue
			}
			age := d.now().Sub(info.ModTime) - result.Skew
			if age < staleAfter {
				continue
			}
			desc := fmt.Sprintf("stale lock %s (age %s)", name, age.Round(time.Second))
			if data, ok := d.fs.ReadFile(path); ok {
				if rec, err := model.ParseLockRecord(string(data)); err == nil {
					desc += fmt.Sprintf(", last held by %s pid %d", rec.Host, rec.PID)
				}
			}
			result.add(Finding{
				Category:    "lock",
				Description: desc,
				Severity:    SeverityInfo,
				Path:        path,
			})
		}
	}
}
