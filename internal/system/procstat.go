package system

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/yuca-profiler/yuca/internal/domain"
)

// cpuStatFields is user, nice, system, idle, iowait, irq, softirq, steal,
// guest and guest_nice.
const cpuStatFields = 10

type CPUJiffies struct {
	CPU    int
	Fields [cpuStatFields]uint64
}

type CPUSnapshot struct {
	Timestamp domain.Timestamp
	CPUs      []CPUJiffies
}

// ProcStatSource reads per-cpu jiffies from /proc/stat.
type ProcStatSource struct {
	path string
}

func NewProcStatSource(paths Paths) *ProcStatSource {
	return &ProcStatSource{path: filepath.Join(paths.Proc, "stat")}
}

func (s *ProcStatSource) Name() string {
	return SourceProcStat
}

func (s *ProcStatSource) Available() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

func (s *ProcStatSource) Sample() (CPUSnapshot, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return CPUSnapshot{}, fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}
	defer f.Close()

	snap := CPUSnapshot{Timestamp: domain.Now()}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "cpu") || strings.HasPrefix(line, "cpu ") {
			continue
		}

		cpu, ok := parseCPULine(line)
		if ok {
			snap.CPUs = append(snap.CPUs, cpu)
		}
	}
	if err := scanner.Err(); err != nil {
		return CPUSnapshot{}, err
	}

	return snap, nil
}

func parseCPULine(line string) (CPUJiffies, bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return CPUJiffies{}, false
	}

	id, err := strconv.Atoi(strings.TrimPrefix(fields[0], "cpu"))
	if err != nil {
		return CPUJiffies{}, false
	}

	out := CPUJiffies{CPU: id}
	for i, raw := range fields[1:] {
		if i >= cpuStatFields {
			break
		}
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return CPUJiffies{}, false
		}
		out.Fields[i] = v
	}
	return out, true
}

// Difference sums every jiffy field, idle included, per cpu.
func (s *ProcStatSource) Difference(first, second CPUSnapshot) (domain.SignalInterval, error) {
	if len(first.CPUs) != len(second.CPUs) {
		return domain.SignalInterval{}, fmt.Errorf("%w: %d cpus != %d cpus",
			domain.ErrMismatchedDomains, len(first.CPUs), len(second.CPUs))
	}

	later := make(map[int]CPUJiffies, len(second.CPUs))
	for _, c := range second.CPUs {
		later[c.CPU] = c
	}

	data := make([]domain.SignalDatum, 0, len(first.CPUs))
	for _, c := range first.CPUs {
		other, ok := later[c.CPU]
		if !ok {
			return domain.SignalInterval{}, fmt.Errorf("%w: cpu %d missing from second snapshot",
				domain.ErrMismatchedDomains, c.CPU)
		}

		var jiffies float64
		for i := range cpuStatFields {
			jiffies += float64(other.Fields[i]) - float64(c.Fields[i])
		}
		data = append(data, domain.NewDatum(jiffies, "cpu", strconv.Itoa(c.CPU)))
	}

	return newInterval(first.Timestamp, second.Timestamp, data)
}
