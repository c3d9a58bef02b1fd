package system

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/process"
)

// SocketMap maps logical cpus to physical sockets. Unknown cpus are on
// socket 0.
type SocketMap map[int]int

func (m SocketMap) Socket(cpu int) int {
	return m[cpu]
}

// Sockets returns the distinct sockets in ascending order, at least [0].
func (m SocketMap) Sockets() []int {
	seen := map[int]bool{0: true}
	out := []int{0}
	for _, s := range m {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	slices.Sort(out)
	return out
}

// FirstCPU returns the lowest cpu on socket, or -1.
func (m SocketMap) FirstCPU(socket int) int {
	first := -1
	for c, s := range m {
		if s == socket && (first < 0 || c < first) {
			first = c
		}
	}
	if first < 0 && socket == 0 {
		return 0
	}
	return first
}

// Topology is the static cpu layout, read once at startup.
type Topology struct {
	Sockets SocketMap
	Model   int
}

func (r *SystemReader) LoadTopology(ctx context.Context) Topology {
	infos, err := cpu.InfoWithContext(ctx)
	if err != nil {
		r.log.Info("failed to read cpu topology, assuming one socket", "error", err.Error())
		return Topology{Sockets: SocketMap{}}
	}

	t := Topology{Sockets: make(SocketMap, len(infos))}
	for _, info := range infos {
		socket, err := strconv.Atoi(info.PhysicalID)
		if err != nil {
			socket = 0
		}
		t.Sockets[int(info.CPU)] = socket
		if t.Model == 0 {
			t.Model, _ = strconv.Atoi(info.Model)
		}
	}

	r.log.Info("loaded cpu topology", "cpus", len(t.Sockets), "sockets", len(t.Sockets.Sockets()), "model", t.Model)
	return t
}

// OsName identifies the host for the system component.
func (r *SystemReader) OsName(ctx context.Context) string {
	info, err := host.InfoWithContext(ctx)
	if err != nil || info.OS == "" {
		if err != nil {
			r.log.Debug("failed to read host info", "error", err.Error())
		}
		return runtime.GOOS
	}
	return info.OS
}

func (r *SystemReader) ProcessExists(ctx context.Context, pid int64) bool {
	if pid <= 0 {
		return false
	}

	if r.paths.Proc != DefaultPaths().Proc {
		_, err := os.Stat(filepath.Join(r.paths.Proc, strconv.FormatInt(pid, 10)))
		return err == nil
	}

	ok, err := process.PidExistsWithContext(ctx, int32(pid))
	if err != nil {
		r.log.Debug("failed to check process", "pid", pid, "error", err.Error())
		return false
	}
	return ok
}
