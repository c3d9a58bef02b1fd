package system

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/yuca-profiler/yuca/internal/domain"
)

// Fields of /proc/<pid>/task/<tid>/stat, counted from zero.
const (
	statFieldUser      = 13
	statFieldSystem    = 14
	statFieldProcessor = 38
)

type TaskJiffies struct {
	TID    int64
	CPU    int
	User   uint64
	System uint64
}

type TaskSnapshot struct {
	Timestamp domain.Timestamp
	PID       int64
	Tasks     []TaskJiffies
}

// ProcTaskSource reads the jiffies of every task of one process.
type ProcTaskSource struct {
	pid     int64
	dir     string
	sockets SocketMap
}

func NewProcTaskSource(paths Paths, pid int64, sockets SocketMap) *ProcTaskSource {
	return &ProcTaskSource{
		pid:     pid,
		dir:     filepath.Join(paths.Proc, strconv.FormatInt(pid, 10), "task"),
		sockets: sockets,
	}
}

func (s *ProcTaskSource) Name() string {
	return fmt.Sprintf("/proc/%d/task", s.pid)
}

func (s *ProcTaskSource) Sample() (TaskSnapshot, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return TaskSnapshot{}, fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}

	snap := TaskSnapshot{Timestamp: domain.Now(), PID: s.pid}
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(s.dir, e.Name(), "stat"))
		if err != nil {
			// task exited between listing and reading
			continue
		}

		task, ok := parseTaskStat(string(data))
		if ok {
			snap.Tasks = append(snap.Tasks, task)
		}
	}

	return snap, nil
}

// parseTaskStat splits after the last ')' since the command name may hold
// spaces and parentheses.
func parseTaskStat(line string) (TaskJiffies, bool) {
	open := strings.IndexByte(line, '(')
	closing := strings.LastIndexByte(line, ')')
	if open <= 0 || closing < open {
		return TaskJiffies{}, false
	}

	tid, err := strconv.ParseInt(strings.TrimSpace(line[:open]), 10, 64)
	if err != nil {
		return TaskJiffies{}, false
	}

	// rest[0] is field 2 (state)
	rest := strings.Fields(line[closing+1:])
	field := func(n int) string { return rest[n-2] }
	if len(rest) < statFieldProcessor-1 {
		return TaskJiffies{}, false
	}

	user, err1 := strconv.ParseUint(field(statFieldUser), 10, 64)
	system, err2 := strconv.ParseUint(field(statFieldSystem), 10, 64)
	cpu, err3 := strconv.Atoi(field(statFieldProcessor))
	if err1 != nil || err2 != nil || err3 != nil {
		return TaskJiffies{}, false
	}

	return TaskJiffies{TID: tid, CPU: cpu, User: user, System: system}, true
}

// Difference reports the tasks present in both snapshots whose jiffies went
// up, tagged with task, cpu and socket.
func (s *ProcTaskSource) Difference(first, second TaskSnapshot) (domain.SignalInterval, error) {
	if first.PID != second.PID {
		return domain.SignalInterval{}, fmt.Errorf("%w: pid %d != pid %d",
			domain.ErrMismatchedDomains, first.PID, second.PID)
	}

	later := make(map[int64]TaskJiffies, len(second.Tasks))
	for _, t := range second.Tasks {
		later[t.TID] = t
	}

	var data []domain.SignalDatum
	for _, t := range first.Tasks {
		other, ok := later[t.TID]
		if !ok {
			continue
		}

		user := positiveDelta(t.User, other.User)
		system := positiveDelta(t.System, other.System)
		if user == 0 && system == 0 {
			continue
		}

		data = append(data, domain.NewDatum(float64(user+system),
			"task", strconv.FormatInt(t.TID, 10),
			"cpu", strconv.Itoa(t.CPU),
			"socket", strconv.Itoa(s.sockets.Socket(t.CPU)),
		))
	}

	return newInterval(first.Timestamp, second.Timestamp, data)
}

func positiveDelta(first, second uint64) uint64 {
	if second < first {
		return 0
	}
	return second - first
}
