package doctor_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jvs-project/dotlock/internal/doctor"
	"github.com/jvs-project/dotlock/pkg/fsutil"
	"github.com/jvs-project/dotlock/pkg/model"
)

func check(t *testing.T, dir string, fs fsutil.FS) *doctor.Result {
	t.Helper()
	result, err := doctor.NewDoctor(dir, model.DefaultLockPolicy(), fs).Check()
	require.NoError(t, err)
	return result
}

func categories(r *doctor.Result) []string {
	var out []string
	for _, f := range r.Findings {
		out = append(out, f.Category)
	}
	return out
}

func TestDoctor_Check_Healthy(t *testing.T) {
	dir := t.TempDir()
	result := check(t, dir, nil)
	assert.True(t, result.Healthy)
	assert.Empty(t, result.Findings)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "probe files are cleaned up")
}

func TestDoctor_Check_MissingDir(t *testing.T) {
	result := check(t, filepath.Join(t.TempDir(), "nope"), nil)
	assert.False(t, result.Healthy)
	require.Len(t, result.Findings, 1)
	assert.Equal(t, doctor.SeverityCritical, result.Findings[0].Severity)
}

func TestDoctor_Check_OrphanTemp(t *testing.T) {
	dir := t.TempDir()
	orphan := filepath.Join(dir, "data.locktmp-host-12-abc")
	require.NoError(t, os.WriteFile(orphan, []byte("host 12 abc 1.0"), 0644))

	result := check(t, dir, nil)
	assert.True(t, result.Healthy)
	require.Equal(t, []string{"tmp"}, categories(result))
	assert.Equal(t, orphan, result.Findings[0].Path)
}

func TestDoctor_Check_StaleLock(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, "data.lock")
	require.NoError(t, os.WriteFile(lockPath, []byte("build01 4242 abc 1709294400.000000"), 0644))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(lockPath, old, old))

	result := check(t, dir, nil)
	assert.True(t, result.Healthy)
	require.Equal(t, []string{"lock"}, categories(result))
	assert.Contains(t, result.Findings[0].Description, "last held by build01 pid 4242")
}

func TestDoctor_Check_FreshLockIgnored(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data.lock"), []byte("x"), 0644))
	assert.Empty(t, check(t, dir, nil).Findings)
}

type noLinkFS struct{ *fsutil.OS }

func (noLinkFS) Link(string, string) bool { return false }

type badCountFS struct{ *fsutil.OS }

func (f badCountFS) Stat(path string) (fsutil.FileInfo, bool) {
	info, ok := f.OS.Stat(path)
	info.Nlink = 1
	return info, ok
}

type noMtimeFS struct{ *fsutil.OS }

func (noMtimeFS) SetModTime(string, time.Time) bool { return false }

func TestDoctor_Check_FilesystemDefects(t *testing.T) {
	tests := []struct {
		name     string
		fs       fsutil.FS
		category string
		severity string
	}{
		{"no hard links", noLinkFS{fsutil.NewOS(nil)}, "link", doctor.SeverityCritical},
		{"wrong link count", badCountFS{fsutil.NewOS(nil)}, "link", doctor.SeverityCritical},
		{"no mtime control", noMtimeFS{fsutil.NewOS(nil)}, "mtime", doctor.SeverityError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := check(t, t.TempDir(), tt.fs)
			assert.False(t, result.Healthy)
			require.NotEmpty(t, result.Findings)
			assert.Equal(t, tt.category, result.Findings[0].Category)
			assert.Equal(t, tt.severity, result.Findings[0].Severity)
		})
	}
}

func TestDoctor_Check_ClockSkew(t *testing.T) {
	mem := fsutil.NewMemFS(nil)
	mem.SetClockOffset(5 * time.Second)
	result := check(t, t.TempDir(), mem)
	assert.True(t, result.Healthy, "moderate skew is compensated")
	assert.InDelta(t, float64(-5*time.Second), float64(result.Skew), float64(100*time.Millisecond))
	assert.Equal(t, []string{"clock"}, categories(result))
	assert.Equal(t, doctor.SeverityWarning, result.Findings[0].Severity)

	mem.SetClockOffset(-2 * time.Minute)
	result = check(t, t.TempDir(), mem)
	assert.False(t, result.Healthy)
	assert.Equal(t, doctor.SeverityError, result.Findings[0].Severity)
}
