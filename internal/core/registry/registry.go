// Package registry keeps the active monitors and the last finalized report of
// every process id and serves them through domain.ProfilerService.
package registry

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yuca-profiler/yuca/internal/config"
	"github.com/yuca-profiler/yuca/internal/core/emissions"
	"github.com/yuca-profiler/yuca/internal/core/event"
	"github.com/yuca-profiler/yuca/internal/core/monitor"
	"github.com/yuca-profiler/yuca/internal/domain"
	"github.com/yuca-profiler/yuca/internal/logger"
	"github.com/yuca-profiler/yuca/internal/metrics"
	"github.com/yuca-profiler/yuca/internal/storage/dump"
	"github.com/yuca-profiler/yuca/internal/system"
	"github.com/yuca-profiler/yuca/internal/workers"
)

type Options struct {
	Paths system.Paths
	// PeriodMillis applies to Starts without a period. 0 selects end-to-end
	// monitors, negative values the configured default.
	PeriodMillis int
	OutputDir    string
	Emissions    *emissions.Converter
	// Energy overrides the probed energy source.
	Energy      system.EnergySource
	Accelerator domain.Accelerator
	Metrics     *metrics.Metrics
	Bus         *event.Bus
}

type entry struct {
	monitor      monitor.Monitor
	periodMillis int
}

type Registry struct {
	deps          monitor.Deps
	defaultPeriod int
	accelerator   domain.Accelerator
	writer        *dump.Writer
	bus           *event.Bus
	metrics       *metrics.Metrics
	log           logger.Logger

	mu    sync.Mutex
	locks map[int64]*idLock
	// generation changes on every Purge; a Stop that began before it does
	// not store its report.
	generation uint64
	monitors   map[int64]*entry
	reports    map[int64]*domain.Report
}

type idLock struct {
	mu   sync.Mutex
	refs int
}

var _ domain.ProfilerService = (*Registry)(nil)

// New probes the machine once and starts the shared sampling scheduler, which
// lives until ctx is done or Close is called.
func New(ctx context.Context, opts Options, log logger.Logger) *Registry {
	if opts.Paths == (system.Paths{}) {
		opts.Paths = system.DefaultPaths()
	}
	if opts.PeriodMillis < 0 {
		opts.PeriodMillis = config.DefaultPeriodMillis
	}
	if opts.Emissions == nil {
		opts.Emissions = emissions.GlobalConverter()
	}
	if opts.Bus == nil {
		opts.Bus = event.New(log)
	}

	reader := system.NewReader(opts.Paths, log)
	topo := reader.LoadTopology(ctx)
	if opts.Energy == nil {
		opts.Energy = system.NewEnergySource(opts.Paths, topo, log)
	}

	sched := workers.NewScheduler(log)
	sched.Start(ctx)

	deps := monitor.Deps{
		Reader:    reader,
		Topology:  topo,
		Energy:    opts.Energy,
		Emissions: opts.Emissions,
		Scheduler: sched,
		Host:      reader.OsName(ctx),
		Log:       log,
	}
	if opts.Metrics != nil {
		deps.Observer = opts.Metrics
	}

	log.Info("registry: ready",
		"energy_source", opts.Energy.Name(),
		"sockets", len(topo.Sockets.Sockets()),
		"emissions_source", opts.Emissions.Source(),
		"accelerator", opts.Accelerator != nil,
	)

	return &Registry{
		deps:          deps,
		defaultPeriod: opts.PeriodMillis,
		accelerator:   opts.Accelerator,
		writer:        dump.NewWriter(opts.OutputDir, log),
		bus:           opts.Bus,
		metrics:       opts.Metrics,
		log:           log,
		locks:         make(map[int64]*idLock),
		monitors:      make(map[int64]*entry),
		reports:       make(map[int64]*domain.Report),
	}
}

// Bus carries EventMonitorStarted, EventReportStored and EventRegistryPurged.
func (r *Registry) Bus() *event.Bus { return r.bus }

// lock serializes Start and Stop for one id. The entry is dropped once no
// caller holds or waits for it.
func (r *Registry) lock(pid int64) func() {
	r.mu.Lock()
	l, ok := r.locks[pid]
	if !ok {
		l = &idLock{}
		r.locks[pid] = l
	}
	l.refs++
	r.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		r.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(r.locks, pid)
		}
		r.mu.Unlock()
	}
}

func (r *Registry) newMonitor(pid int64, periodMillis int) monitor.Monitor {
	switch {
	case pid < 0:
		return monitor.NewSystemMonitor(millis(periodMillis), r.deps)
	case periodMillis == 0:
		return monitor.NewEndToEndMonitor(pid, r.deps)
	default:
		return monitor.NewApplicationMonitor(pid, millis(periodMillis), r.deps)
	}
}

func millis(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

func (r *Registry) Start(ctx context.Context, req domain.StartRequest) (*domain.MessageResponse, error) {
	pid := req.ProcessID
	period := r.defaultPeriod
	if req.PeriodMillis != nil && *req.PeriodMillis >= 0 {
		period = *req.PeriodMillis
	}
	if pid < 0 && period == 0 {
		period = r.defaultPeriod
		if period == 0 {
			period = config.DefaultPeriodMillis
		}
	}

	unlock := r.lock(pid)
	defer unlock()

	r.mu.Lock()
	_, running := r.monitors[pid]
	r.mu.Unlock()
	if running {
		return &domain.MessageResponse{Message: fmt.Sprintf("process %d is already being monitored", pid)}, nil
	}

	m := r.newMonitor(pid, period)
	if !m.Start(ctx) {
		return &domain.MessageResponse{Message: fmt.Sprintf("process %d could not be monitored", pid)}, nil
	}

	r.mu.Lock()
	r.monitors[pid] = &entry{monitor: m, periodMillis: period}
	active := len(r.monitors)
	r.mu.Unlock()
	r.metrics.SetActiveMonitors(active)

	if r.accelerator != nil && pid > 0 {
		if err := r.accelerator.Start(ctx, pid, period); err != nil {
			r.log.Warn("registry: accelerator start failed", "process_id", pid, "error", err)
		}
	}

	r.log.Info("registry: monitor started", "process_id", pid, "mode", m.Mode(), "period_millis", period)
	r.bus.Publish(domain.EventMonitorStarted{ProcessID: pid, PeriodMillis: period, Mode: m.Mode()})
	return &domain.MessageResponse{}, nil
}

func (r *Registry) Stop(ctx context.Context, req domain.StopRequest) (*domain.MessageResponse, error) {
	pid := req.ProcessID

	unlock := r.lock(pid)
	defer unlock()

	r.mu.Lock()
	e, ok := r.monitors[pid]
	delete(r.monitors, pid)
	active := len(r.monitors)
	generation := r.generation
	r.mu.Unlock()
	if !ok {
		return &domain.MessageResponse{Message: fmt.Sprintf("process %d is not being monitored", pid)}, nil
	}
	r.metrics.SetActiveMonitors(active)

	report := e.monitor.Stop()
	if r.accelerator != nil && pid > 0 {
		r.mergeAccelerator(ctx, pid, report)
	}

	reportID := uuid.NewString()
	for k, v := range req.Tags {
		report.SetTag(k, v)
	}
	report.SetTag(domain.TagProcessID, strconv.FormatInt(pid, 10))
	report.SetTag(domain.TagReportID, reportID)
	report.SetTag(domain.TagPeriod, strconv.Itoa(e.periodMillis))
	report.SetTag(domain.TagMode, e.monitor.Mode())

	r.mu.Lock()
	if r.generation != generation {
		r.mu.Unlock()
		r.log.Info("registry: report discarded by purge", "process_id", pid, "report_id", reportID)
		return &domain.MessageResponse{}, nil
	}
	r.reports[pid] = report
	stored := len(r.reports)
	r.mu.Unlock()
	r.metrics.SetStoredReports(stored)

	r.log.Info("registry: report stored", "process_id", pid, "report_id", reportID, "components", len(report.Components))
	r.bus.Publish(domain.EventReportStored{ProcessID: pid, ReportID: reportID, Report: report.Clone()})
	return &domain.MessageResponse{}, nil
}

// mergeAccelerator stops the collaborator and appends its signals, with their
// emissions, to the process component.
func (r *Registry) mergeAccelerator(ctx context.Context, pid int64, report *domain.Report) {
	if err := r.accelerator.Stop(ctx, pid); err != nil {
		r.log.Warn("registry: accelerator stop failed", "process_id", pid, "error", err)
	}

	extra, err := r.accelerator.Read(ctx, pid)
	if err != nil {
		r.log.Warn("registry: accelerator read failed", "process_id", pid, "error", err)
		return
	}
	if extra == nil {
		return
	}

	proc := domain.Component{Type: domain.ComponentLinuxProcess, ID: strconv.FormatInt(pid, 10)}
	for _, c := range extra.Components {
		for i := range c.Signals {
			s := &c.Signals[i]
			proc.AddSignal(s)
			proc.AddSignal(r.deps.Emissions.Convert(s))
		}
	}
	if len(proc.Signals) == 0 {
		return
	}

	report.AddComponent(proc)
	report.SetTag(domain.TagAccelerator, "true")
}

func (r *Registry) stored(pid int64) *domain.Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reports[pid]
}

func (r *Registry) Read(ctx context.Context, req domain.ReadRequest) (*domain.ReadResponse, error) {
	report := r.stored(req.ProcessID)
	if report == nil {
		return &domain.ReadResponse{Report: &domain.Report{}}, nil
	}
	return &domain.ReadResponse{Report: report.Filter(req.Signals)}, nil
}

func (r *Registry) Dump(ctx context.Context, req domain.DumpRequest) (*domain.DumpResponse, error) {
	report := r.stored(req.ProcessID)
	if report == nil {
		return &domain.DumpResponse{Message: fmt.Sprintf("no report for process %d", req.ProcessID)}, nil
	}

	path, err := r.writer.Write(req.ProcessID, req.OutputPath, report.Filter(req.Signals))
	r.metrics.ObserveDump(err)
	if err != nil {
		return &domain.DumpResponse{Message: fmt.Sprintf("could not write report to %s: %v", path, err), Path: path}, nil
	}
	return &domain.DumpResponse{Path: path}, nil
}

func (r *Registry) Purge(ctx context.Context) error {
	r.mu.Lock()
	running := r.monitors
	r.monitors = make(map[int64]*entry)
	r.reports = make(map[int64]*domain.Report)
	r.generation++
	r.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for pid, e := range running {
		g.Go(func() error {
			e.monitor.Stop()
			if r.accelerator != nil && pid > 0 {
				if err := r.accelerator.Stop(gctx, pid); err != nil {
					r.log.Debug("registry: accelerator stop failed", "process_id", pid, "error", err)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	r.metrics.SetActiveMonitors(0)
	r.metrics.SetStoredReports(0)
	r.log.Info("registry: purged", "stopped", len(running))
	r.bus.Publish(domain.EventRegistryPurged{Stopped: len(running)})
	return nil
}

// Close purges the registry and stops the scheduler.
func (r *Registry) Close(ctx context.Context) error {
	err := r.Purge(ctx)
	r.deps.Scheduler.Shutdown()
	if c, ok := r.deps.Energy.(io.Closer); ok {
		if cerr := c.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
