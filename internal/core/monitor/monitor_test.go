package monitor

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuca-profiler/yuca/internal/core/emissions"
	"github.com/yuca-profiler/yuca/internal/domain"
	"github.com/yuca-profiler/yuca/internal/logger"
	"github.com/yuca-profiler/yuca/internal/system"
	"github.com/yuca-profiler/yuca/internal/workers"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func procStat(cpu0, cpu1 int) string {
	return "cpu  0 0 0 0 0 0 0 0 0 0\n" +
		"cpu0 " + strconv.Itoa(cpu0) + " 0 0 0 0 0 0 0 0 0\n" +
		"cpu1 " + strconv.Itoa(cpu1) + " 0 0 0 0 0 0 0 0 0\n"
}

func taskStat(tid int, user, sys, cpu int) string {
	fields := make([]string, 52)
	for i := range fields {
		fields[i] = "0"
	}
	fields[0] = strconv.Itoa(tid)
	fields[1] = "(worker 1)"
	fields[2] = "R"
	fields[13] = strconv.Itoa(user)
	fields[14] = strconv.Itoa(sys)
	fields[38] = strconv.Itoa(cpu)
	return strings.Join(fields, " ") + "\n"
}

type countingObserver struct {
	ticks atomic.Int64
}

func (o *countingObserver) ObserveTick(string, time.Duration, error) {
	o.ticks.Add(1)
}

func newDeps(t *testing.T, root string) Deps {
	t.Helper()

	log := logger.Nop()
	sched := workers.NewScheduler(log)
	sched.Start(t.Context())
	t.Cleanup(sched.Shutdown)

	return Deps{
		Reader:    system.NewReader(system.RootedPaths(root), log),
		Topology:  system.Topology{Sockets: system.SocketMap{0: 0, 1: 0}},
		Energy:    system.NewFakeEnergySource(),
		Emissions: emissions.NewConverter(400, "TST"),
		Scheduler: sched,
		Host:      "linux",
		Log:       log,
	}
}

func TestEndToEndMonitorReport(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "proc/stat", procStat(100, 100))
	writeFile(t, root, "proc/42/task/42/stat", taskStat(42, 10, 10, 0))

	m := NewEndToEndMonitor(42, newDeps(t, root))
	assert.Equal(t, domain.ModeEndToEnd, m.Mode())
	require.True(t, m.Start(t.Context()))

	writeFile(t, root, "proc/stat", procStat(140, 110))
	writeFile(t, root, "proc/42/task/42/stat", taskStat(42, 15, 15, 0))

	report := m.Stop()
	require.Len(t, report.Components, 2)
	assert.Len(t, report.ComponentsOf(domain.ComponentLinuxSystem), 1)

	sys := report.Component(domain.ComponentLinuxSystem, "linux")
	require.NotNil(t, sys)
	for _, unit := range []domain.Unit{domain.UnitNanoseconds, domain.UnitJiffies, domain.UnitJoules, domain.UnitGramsOfCO2} {
		require.NotNil(t, sys.Signal(unit), unit.String())
		assert.Len(t, sys.Signal(unit).Intervals, 1)
	}
	assert.GreaterOrEqual(t, sys.Signal(domain.UnitNanoseconds).Intervals[0].Data[0].Value, 0.0)
	assert.Equal(t, 1.0, sys.Signal(domain.UnitJoules).Intervals[0].Data[0].Value)
	assert.Nil(t, sys.Signal(domain.UnitCelsius))

	proc := report.Component(domain.ComponentLinuxProcess, "42")
	require.NotNil(t, proc)

	jiffies := proc.Signal(domain.UnitJiffies)
	require.NotNil(t, jiffies)
	assert.Equal(t, 10.0, jiffies.Intervals[0].Data[0].Value)

	activity := proc.Signal(domain.UnitActivity)
	require.NotNil(t, activity)
	assert.InDelta(t, 0.25, activity.Intervals[0].Data[0].Value, 1e-12)

	energy := proc.Signal(domain.UnitJoules)
	require.NotNil(t, energy)
	joules := energy.Intervals[0].Data[0].Value
	assert.Greater(t, joules, 0.0)
	assert.LessOrEqual(t, joules, 1.0)
	component, _ := energy.Intervals[0].Data[0].Get("component")
	assert.Equal(t, "package", component)

	co2 := proc.Signal(domain.UnitGramsOfCO2)
	require.NotNil(t, co2)
	assert.Equal(t, "TST", co2.Sources[len(co2.Sources)-1])
	assert.InDelta(t, 400*joules*emissions.JouleToKWh, co2.Intervals[0].Data[0].Value, 1e-15)
}

func TestEndToEndMonitorWithoutProcess(t *testing.T) {
	m := NewEndToEndMonitor(123, newDeps(t, t.TempDir()))
	require.True(t, m.Start(t.Context()))

	report := m.Stop()
	require.Len(t, report.Components, 1)
	assert.Equal(t, domain.ComponentLinuxSystem, report.Components[0].Type)
	assert.NotNil(t, report.Components[0].Signal(domain.UnitNanoseconds))
}

func TestApplicationMonitorSamples(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "proc/stat", procStat(100, 100))
	writeFile(t, root, "proc/42/task/42/stat", taskStat(42, 10, 10, 1))
	writeFile(t, root, "sys/class/thermal/thermal_zone0/type", "x86_pkg_temp\n")
	writeFile(t, root, "sys/class/thermal/thermal_zone0/temp", "50000\n")

	deps := newDeps(t, root)
	observer := &countingObserver{}
	deps.Observer = observer

	m := NewApplicationMonitor(42, 2*time.Millisecond, deps)
	assert.Equal(t, domain.ModePeriodic, m.Mode())
	require.True(t, m.Start(t.Context()))
	assert.False(t, m.Start(t.Context()), "second start is a no-op")

	require.Eventually(t, func() bool { return observer.ticks.Load() >= 30 }, 5*time.Second, time.Millisecond)

	report := m.Stop()
	sys := report.Component(domain.ComponentLinuxSystem, "linux")
	require.NotNil(t, sys)
	nanos := sys.Signal(domain.UnitNanoseconds)
	require.NotNil(t, nanos)
	assert.NotEmpty(t, nanos.Intervals)
	for i := 1; i < len(nanos.Intervals); i++ {
		assert.True(t, nanos.Intervals[i-1].End.Equal(nanos.Intervals[i].Start))
	}

	thermal := sys.Signal(domain.UnitCelsius)
	require.NotNil(t, thermal)
	assert.Equal(t, 50.0, thermal.Intervals[0].Data[0].Value)

	proc := report.Component(domain.ComponentLinuxProcess, "42")
	require.NotNil(t, proc)
	assert.NotNil(t, proc.Signal(domain.UnitJiffies))
	assert.Nil(t, proc.Signal(domain.UnitActivity), "idle task has no activity")

	ticks := observer.ticks.Load()
	assert.Empty(t, m.Stop().Components)
	assert.False(t, m.Start(t.Context()), "stopped monitors stay stopped")
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, ticks, observer.ticks.Load())
}

func TestApplicationMonitorMissingProcess(t *testing.T) {
	m := NewApplicationMonitor(42, time.Millisecond, newDeps(t, t.TempDir()))

	assert.False(t, m.Start(t.Context()))
	assert.Empty(t, m.Stop().Components)
}

func TestSystemMonitor(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "proc/stat", procStat(100, 100))

	deps := newDeps(t, root)
	m := NewSystemMonitor(time.Millisecond, deps)
	require.True(t, m.Start(t.Context()))
	time.Sleep(20 * time.Millisecond)

	report := m.Stop()
	require.Len(t, report.Components, 1)
	assert.NotNil(t, report.Components[0].Signal(domain.UnitJiffies))
	assert.NotNil(t, report.Components[0].Signal(domain.UnitJoules))
}

func TestMonitorNotStartedWhenSchedulerDown(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "proc/stat", procStat(100, 100))

	deps := newDeps(t, root)
	deps.Scheduler.Shutdown()

	m := NewSystemMonitor(time.Millisecond, deps)
	assert.False(t, m.Start(t.Context()))
	assert.Empty(t, m.Stop().Components)
}
