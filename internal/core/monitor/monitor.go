// Package monitor turns the snapshot sources of one process, or of the whole
// system, into a Report.
package monitor

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/yuca-profiler/yuca/internal/core/accounting"
	"github.com/yuca-profiler/yuca/internal/core/emissions"
	"github.com/yuca-profiler/yuca/internal/domain"
	"github.com/yuca-profiler/yuca/internal/logger"
	"github.com/yuca-profiler/yuca/internal/system"
	"github.com/yuca-profiler/yuca/internal/workers"
)

// Monitor is one-shot: after Stop a new Monitor is needed to measure again.
type Monitor interface {
	// Start reports whether sampling began. It is a no-op when already
	// started or when the target process is gone.
	Start(ctx context.Context) bool
	// Stop returns an empty Report when the Monitor was not running.
	Stop() *domain.Report
	Mode() string
}

// Deps are shared by every Monitor of one registry.
type Deps struct {
	Reader    *system.SystemReader
	Topology  system.Topology
	Energy    system.EnergySource
	Emissions *emissions.Converter
	Scheduler *workers.Scheduler
	Observer  workers.TickObserver
	Host      string
	Log       logger.Logger
}

type state int

const (
	stateIdle state = iota
	stateRunning
	stateStopped
)

// monitor holds the trackers of one measurement. A nil tracker is a source
// that was unavailable when the monitor was built.
type monitor struct {
	mode       string
	pid        int64
	checkAlive bool
	deps       Deps
	attributor *accounting.Attributor
	log        logger.Logger

	monotonic tracker
	cpus      tracker
	energy    tracker
	thermal   tracker
	freq      tracker
	tasks     tracker

	mu    sync.Mutex
	state state
}

// NewApplicationMonitor samples a process and the system every period.
func NewApplicationMonitor(pid int64, period time.Duration, deps Deps) Monitor {
	m := newMonitor(domain.ModePeriodic, pid, deps)
	m.checkAlive = true
	m.addPeriodicSystem(period)
	m.tasks = newPeriodicTracker[system.TaskSnapshot](m.taskSource(), domain.UnitJiffies, period, m.deps)
	return m
}

// NewSystemMonitor samples only system-wide sources every period.
func NewSystemMonitor(period time.Duration, deps Deps) Monitor {
	m := newMonitor(domain.ModePeriodic, 0, deps)
	m.addPeriodicSystem(period)
	return m
}

// NewEndToEndMonitor snapshots each source once at Start and once at Stop,
// without touching the scheduler.
func NewEndToEndMonitor(pid int64, deps Deps) Monitor {
	m := newMonitor(domain.ModeEndToEnd, pid, deps)
	m.monotonic = newManualTracker[system.MonotonicSnapshot](system.NewMonotonicSource(), domain.UnitNanoseconds, m.log)
	if cpus := m.cpuSource(); cpus != nil {
		m.cpus = newManualTracker[system.CPUSnapshot](cpus, domain.UnitJiffies, m.log)
	}
	if m.deps.Energy != nil {
		m.energy = newManualTracker[system.EnergySnapshot](m.deps.Energy, domain.UnitJoules, m.log)
	}
	if pid > 0 {
		m.tasks = newManualTracker[system.TaskSnapshot](m.taskSource(), domain.UnitJiffies, m.log)
	}
	return m
}

func newMonitor(mode string, pid int64, deps Deps) *monitor {
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.Emissions == nil {
		deps.Emissions = emissions.GlobalConverter()
	}
	if deps.Reader == nil {
		deps.Reader = system.NewReader(system.DefaultPaths(), deps.Log)
	}

	return &monitor{
		mode:       mode,
		pid:        pid,
		deps:       deps,
		attributor: accounting.NewAttributor(deps.Topology.Sockets),
		log:        deps.Log.With("mode", mode, "pid", pid),
	}
}

func (m *monitor) addPeriodicSystem(period time.Duration) {
	m.monotonic = newPeriodicTracker[system.MonotonicSnapshot](system.NewMonotonicSource(), domain.UnitNanoseconds, period, m.deps)
	if cpus := m.cpuSource(); cpus != nil {
		m.cpus = newPeriodicTracker[system.CPUSnapshot](cpus, domain.UnitJiffies, period, m.deps)
	}
	if m.deps.Energy != nil {
		m.energy = newPeriodicTracker[system.EnergySnapshot](m.deps.Energy, domain.UnitJoules, period, m.deps)
	}

	paths := m.deps.Reader.Paths()
	if thermal, err := system.NewThermalSource(paths, m.log); err == nil {
		m.thermal = newPeriodicTracker[system.ThermalSnapshot](thermal, domain.UnitCelsius, period, m.deps)
	} else {
		m.log.Debug("monitor: thermal zones unavailable", "error", err)
	}
	if freq, err := system.NewFreqSource(paths); err == nil {
		m.freq = newPeriodicTracker[system.FreqSnapshot](freq, domain.UnitHertz, period, m.deps)
	} else {
		m.log.Debug("monitor: cpufreq unavailable", "error", err)
	}
}

func (m *monitor) cpuSource() *system.ProcStatSource {
	s := system.NewProcStatSource(m.deps.Reader.Paths())
	if !s.Available() {
		m.log.Info("monitor: system jiffies unavailable", "source", s.Name())
		return nil
	}
	return s
}

func (m *monitor) taskSource() *system.ProcTaskSource {
	return system.NewProcTaskSource(m.deps.Reader.Paths(), m.pid, m.deps.Topology.Sockets)
}

func (m *monitor) Mode() string { return m.mode }

func (m *monitor) trackers() []tracker {
	var out []tracker
	for _, t := range []tracker{m.monotonic, m.cpus, m.energy, m.thermal, m.freq, m.tasks} {
		if t != nil {
			out = append(out, t)
		}
	}
	return out
}

func (m *monitor) Start(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != stateIdle {
		return false
	}
	if m.checkAlive && !m.deps.Reader.ProcessExists(ctx, m.pid) {
		m.log.Info("monitor: process not found")
		return false
	}

	trackers := m.trackers()
	for i, t := range trackers {
		if t.start() {
			continue
		}
		for _, started := range trackers[:i] {
			started.halt()
		}
		m.log.Warn("monitor: scheduler unavailable, not started")
		return false
	}

	m.state = stateRunning
	m.log.Debug("monitor: started", "sources", len(trackers))
	return true
}

func (m *monitor) Stop() *domain.Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != stateRunning {
		return &domain.Report{}
	}
	m.state = stateStopped

	var wg sync.WaitGroup
	for _, t := range m.trackers() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			t.halt()
		}()
	}
	wg.Wait()

	report := m.assemble()
	m.log.Debug("monitor: stopped", "components", len(report.Components))
	return report
}

func signalOf(t tracker) *domain.Signal {
	if t == nil {
		return nil
	}
	return t.signal()
}

func (m *monitor) assemble() *domain.Report {
	converter := m.deps.Emissions

	cpus := signalOf(m.cpus)
	energy := signalOf(m.energy)

	sys := domain.Component{Type: domain.ComponentLinuxSystem, ID: m.deps.Host}
	sys.AddSignal(signalOf(m.monotonic))
	sys.AddSignal(cpus)
	sys.AddSignal(energy)
	sys.AddSignal(converter.Convert(energy))
	sys.AddSignal(signalOf(m.thermal))
	sys.AddSignal(signalOf(m.freq))

	report := &domain.Report{}
	report.AddComponent(sys)

	if m.tasks == nil {
		return report
	}

	tasks := signalOf(m.tasks)
	activity := accounting.ActivitySignal(tasks, cpus)
	taskEnergy := m.attributor.EnergySignal(activity, energy)

	proc := domain.Component{Type: domain.ComponentLinuxProcess, ID: strconv.FormatInt(m.pid, 10)}
	proc.AddSignal(tasks)
	proc.AddSignal(activity)
	proc.AddSignal(taskEnergy)
	proc.AddSignal(converter.Convert(taskEnergy))
	report.AddComponent(proc)

	return report
}
