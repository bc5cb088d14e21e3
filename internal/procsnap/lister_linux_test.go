//go:build linux

package procsnap

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestProcfsListerReadsFakeProc(t *testing.T) {
	root := t.TempDir()
	now := time.Unix(1_800_000_000, 0)
	boot := now.Add(-150 * time.Second)

	writeFile(t, filepath.Join(root, "stat"), "cpu  1 2 3 4\nbtime "+strconv.FormatInt(boot.Unix(), 10)+"\nprocesses 42\n")
	writeFile(t, filepath.Join(root, "meminfo"), "MemTotal:       1000000 kB\nMemFree:         500000 kB\n")

	// utime=250 stime=50 starttime=5000 ticks (50s after boot) rss=300 pages
	writeFile(t, filepath.Join(root, "1234", "stat"),
		"1234 (Web Content) S 1 1234 1234 0 -1 4194560 100 0 0 0 250 50 0 0 20 0 1 0 5000 123456789 300 18446744073709551615\n")
	writeFile(t, filepath.Join(root, "1234", "cmdline"), "/usr/lib/firefox/firefox\x00-contentproc\x00")

	writeFile(t, filepath.Join(root, "99", "stat"), "garbage")
	writeFile(t, filepath.Join(root, "self-not-a-pid", "stat"), "ignored")

	lister := &procfsLister{root: root, now: func() time.Time { return now }}
	raws, err := lister.List(context.Background())
	require.NoError(t, err)
	require.Len(t, raws, 1)

	raw := raws[0]
	assert.Equal(t, 1234, raw.PID)
	assert.Equal(t, "Web Content", raw.Name)
	assert.Equal(t, "/usr/lib/firefox/firefox -contentproc", raw.Cmd)
	assert.Equal(t, "S", raw.State)

	require.NotNil(t, raw.CPU)
	assert.InDelta(t, 3.0, *raw.CPU, 0.0001)

	require.NotNil(t, raw.Memory)
	assert.Equal(t, float64(300*os.Getpagesize()), *raw.Memory)
	require.NotNil(t, raw.PMem)

	started, ok := ParseStartTime(raw.Started)
	require.True(t, ok)
	assert.True(t, started.Equal(boot.Add(50*time.Second)))

	rec := Normalize(raw, now)
	assert.Equal(t, StatusIdle, rec.Status)
	require.NotNil(t, rec.ElapsedMs)
	assert.Equal(t, int64(100000), *rec.ElapsedMs)
}

func TestProcfsListerMissingRoot(t *testing.T) {
	lister := &procfsLister{root: filepath.Join(t.TempDir(), "nope"), now: time.Now}
	_, err := lister.List(context.Background())
	assert.Error(t, err)
}
