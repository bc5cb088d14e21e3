package procsnap

import (
	"strconv"
	"strings"
)

// psColumns is the ps(1) output format parsePsOutput reads
const psColumns = "pid=,pcpu=,pmem=,rss=,state=,lstart=,ucomm="

// parsePsOutput reads "pid pcpu pmem rss state <lstart: 5 tokens> ucomm..."
func parsePsOutput(out string) []RawProcess {
	var processes []RawProcess

	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 11 {
			continue
		}

		pid, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}

		raw := RawProcess{
			PID:     pid,
			State:   fields[4],
			Started: strings.Join(fields[5:10], " "),
			Name:    strings.Join(fields[10:], " "),
		}
		raw.Cmd = raw.Name

		if v, err := strconv.ParseFloat(fields[1], 64); err == nil {
			raw.PCPU = &v
		}
		if v, err := strconv.ParseFloat(fields[2], 64); err == nil {
			raw.PMem = &v
		}
		if kb, err := strconv.ParseFloat(fields[3], 64); err == nil {
			bytes := kb * 1024
			raw.Memory = &bytes
		}

		processes = append(processes, raw)
	}

	return processes
}
