//go:build linux

package procsnap

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// clockTicks is USER_HZ, which is 100 on every mainstream Linux build
const clockTicks = 100

// DefaultLister reads the live procfs
func DefaultLister() Lister {
	return &procfsLister{root: "/proc", now: time.Now}
}

type procfsLister struct {
	root string
	now  func() time.Time
}

func (l *procfsLister) List(ctx context.Context) ([]RawProcess, error) {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		return nil, err
	}

	bootTime, err := l.bootTime()
	if err != nil {
		return nil, err
	}
	memTotal := l.memTotal()
	pageSize := float64(os.Getpagesize())
	now := l.now()

	var processes []RawProcess
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.IsDir() {
			continue
		}

		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}

		raw, err := l.readProcess(pid, bootTime, now, pageSize, memTotal)
		if err != nil {
			// the process exited between ReadDir and now
			continue
		}
		processes = append(processes, raw)
	}

	return processes, nil
}

func (l *procfsLister) readProcess(pid int, bootTime, now time.Time, pageSize, memTotal float64) (RawProcess, error) {
	dir := filepath.Join(l.root, strconv.Itoa(pid))

	statData, err := os.ReadFile(filepath.Join(dir, "stat"))
	if err != nil {
		return RawProcess{}, err
	}

	stat := string(statData)
	open := strings.Index(stat, "(")
	closing := strings.LastIndex(stat, ")")
	if open == -1 || closing < open {
		return RawProcess{}, fmt.Errorf("malformed stat for pid %d", pid)
	}

	// rest[0] is field 3 (state) of proc(5)
	rest := strings.Fields(stat[closing+1:])
	if len(rest) < 22 {
		return RawProcess{}, fmt.Errorf("short stat for pid %d", pid)
	}

	raw := RawProcess{
		PID:   pid,
		Name:  stat[open+1 : closing],
		State: rest[0],
	}

	if cmdData, err := os.ReadFile(filepath.Join(dir, "cmdline")); err == nil {
		raw.Cmd = strings.TrimSpace(strings.ReplaceAll(string(cmdData), "\x00", " "))
	}

	utime, _ := strconv.ParseUint(rest[11], 10, 64)
	stime, _ := strconv.ParseUint(rest[12], 10, 64)
	startTicks, errStart := strconv.ParseUint(rest[19], 10, 64)
	rssPages, _ := strconv.ParseInt(rest[21], 10, 64)

	if errStart == nil {
		started := bootTime.Add(time.Duration(startTicks) * (time.Second / clockTicks))
		raw.Started = started.Format(time.RFC3339Nano)

		if lifetime := now.Sub(started).Seconds(); lifetime > 0 {
			cpu := float64(utime+stime) / clockTicks / lifetime * 100
			raw.CPU = &cpu
		}
	}

	rss := float64(max(rssPages, 0)) * pageSize
	raw.Memory = &rss
	if memTotal > 0 {
		pmem := rss / memTotal * 100
		raw.PMem = &pmem
	}

	return raw, nil
}

func (l *procfsLister) bootTime() (time.Time, error) {
	f, err := os.Open(filepath.Join(l.root, "stat"))
	if err != nil {
		return time.Time{}, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 2 && fields[0] == "btime" {
			secs, err := strconv.ParseInt(fields[1], 10, 64)
			if err != nil {
				return time.Time{}, fmt.Errorf("invalid btime: %w", err)
			}
			return time.Unix(secs, 0), nil
		}
	}
	if err := scanner.Err(); err != nil {
		return time.Time{}, err
	}

	return time.Time{}, fmt.Errorf("btime not found in %s", f.Name())
}

// memTotal returns MemTotal in bytes, or 0 when unknown
func (l *procfsLister) memTotal() float64 {
	data, err := os.ReadFile(filepath.Join(l.root, "meminfo"))
	if err != nil {
		return 0
	}

	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[0] == "MemTotal:" {
			kb, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				return 0
			}
			return kb * 1024
		}
	}
	return 0
}
