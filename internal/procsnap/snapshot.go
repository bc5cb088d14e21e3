// Package procsnap samples the operating system's process table and
// normalises it into ProcessRecord values ordered by CPU usage.
package procsnap

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/sourcegraph/conc/panics"
)

// Status is the coarse run state of a process
type Status string

const (
	StatusOngoing Status = "ongoing"
	StatusIdle    Status = "idle"
	StatusUnknown Status = "unknown"
)

// RawProcess is one entry as reported by an enumeration facility. Optional
// numeric fields are nil when the facility does not provide them.
type RawProcess struct {
	PID     int
	Name    string
	Cmd     string
	CPU     *float64 // CPU usage in percent
	PCPU    *float64 // ps-style %CPU column
	Memory  *float64 // resident memory in bytes
	PMem    *float64 // ps-style %MEM column
	Started string
	State   string
}

// Lister enumerates the processes currently known to the OS
type Lister interface {
	List(ctx context.Context) ([]RawProcess, error)
}

// ProcessRecord is one normalised process of a snapshot
type ProcessRecord struct {
	PID         int        `json:"pid"`
	Name        string     `json:"name"`
	Command     string     `json:"command"`
	CPUPercent  float64    `json:"cpuPercent"`
	MemoryBytes int64      `json:"memoryBytes"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	ElapsedMs   *int64     `json:"elapsedMs,omitempty"`
	Status      Status     `json:"status"`
}

// Adapter turns raw listings into sorted ProcessRecord snapshots
type Adapter struct {
	lister Lister
	now    func() time.Time
}

// New creates an adapter over lister. A nil clock uses time.Now.
func New(lister Lister, now func() time.Time) *Adapter {
	if now == nil {
		now = time.Now
	}
	return &Adapter{lister: lister, now: now}
}

// Snapshot enumerates processes once. Failures of the underlying facility,
// including panics, come back as an error and never escape as a crash.
func (a *Adapter) Snapshot(ctx context.Context) ([]ProcessRecord, error) {
	var (
		raws    []RawProcess
		listErr error
		catcher panics.Catcher
	)

	catcher.Try(func() {
		raws, listErr = a.lister.List(ctx)
	})
	if recovered := catcher.Recovered(); recovered != nil {
		return nil, fmt.Errorf("process enumeration panicked: %w", recovered.AsError())
	}
	if listErr != nil {
		return nil, fmt.Errorf("failed to enumerate processes: %w", listErr)
	}

	now := a.now()
	records := make([]ProcessRecord, 0, len(raws))
	for _, raw := range raws {
		records = append(records, Normalize(raw, now))
	}

	SortRecords(records)
	return records, nil
}

// Normalize maps a raw entry onto a ProcessRecord relative to now
func Normalize(raw RawProcess, now time.Time) ProcessRecord {
	rec := ProcessRecord{
		PID:         raw.PID,
		Name:        firstNonEmpty(raw.Name, raw.Cmd),
		Command:     raw.Cmd,
		CPUPercent:  firstPresent(raw.CPU, raw.PCPU),
		MemoryBytes: int64(firstPresent(raw.Memory, raw.PMem)),
		Status:      ParseStatus(raw.State),
	}

	if started, ok := ParseStartTime(raw.Started); ok {
		elapsed := max(now.Sub(started).Milliseconds(), 0)
		rec.StartedAt = &started
		rec.ElapsedMs = &elapsed
	}

	return rec
}

// SortRecords orders by CPU descending, then PID ascending
func SortRecords(records []ProcessRecord) {
	slices.SortStableFunc(records, func(a, b ProcessRecord) int {
		if c := cmp.Compare(b.CPUPercent, a.CPUPercent); c != 0 {
			return c
		}
		return cmp.Compare(a.PID, b.PID)
	})
}

// ParseStatus classifies a raw OS state string
func ParseStatus(state string) Status {
	s := strings.ToLower(strings.TrimSpace(state))
	switch {
	case strings.Contains(s, "run") || s == "r":
		return StatusOngoing
	case strings.Contains(s, "sleep") || strings.Contains(s, "idle") || s == "s":
		return StatusIdle
	default:
		return StatusUnknown
	}
}

// psStartLayout is the `ps -o lstart` format under the C locale
const psStartLayout = "Mon Jan _2 15:04:05 2006"

// ParseStartTime accepts RFC 3339, the ps lstart layout and non-negative Unix
// milliseconds. ok is false for anything else, including the empty string.
func ParseStartTime(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}

	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, true
	}
	if t, err := time.ParseInLocation(psStartLayout, strings.Join(strings.Fields(value), " "), time.Local); err == nil {
		return t, true
	}
	if ms, err := strconv.ParseInt(value, 10, 64); err == nil && ms >= 0 {
		return time.UnixMilli(ms), true
	}

	return time.Time{}, false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstPresent(values ...*float64) float64 {
	for _, v := range values {
		if v != nil {
			return *v
		}
	}
	return 0
}
