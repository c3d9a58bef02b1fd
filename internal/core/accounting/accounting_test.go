package accounting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuca-profiler/yuca/internal/domain"
	"github.com/yuca-profiler/yuca/internal/system"
)

func window(start, end int64, data ...domain.SignalDatum) domain.SignalInterval {
	return domain.SignalInterval{
		Start: domain.Timestamp{Secs: start},
		End:   domain.Timestamp{Secs: end},
		Data:  data,
	}
}

func task(tid string, cpu string, value float64) domain.SignalDatum {
	return domain.NewDatum(value, "task", tid, "cpu", cpu)
}

func cpuDatum(cpu string, value float64) domain.SignalDatum {
	return domain.NewDatum(value, "cpu", cpu)
}

func energyDatum(socket, component string, joules float64) domain.SignalDatum {
	return domain.NewDatum(joules, "socket", socket, "component", component)
}

func TestTaskActivityShares(t *testing.T) {
	tasks := window(0, 10, task("1", "0", 20), task("2", "0", 30), task("3", "1", 5))
	cpus := window(0, 10, cpuDatum("0", 100), cpuDatum("1", 50))

	iv, ok := TaskActivity(tasks, cpus)
	require.True(t, ok)
	require.Len(t, iv.Data, 3)

	assert.InDelta(t, 0.2, iv.Data[0].Value, 1e-12)
	assert.InDelta(t, 0.3, iv.Data[1].Value, 1e-12)
	assert.InDelta(t, 0.1, iv.Data[2].Value, 1e-12)

	tid, _ := iv.Data[1].Get("task")
	assert.Equal(t, "2", tid)
}

func TestTaskActivityCapsAtOne(t *testing.T) {
	iv, ok := TaskActivity(window(0, 10, task("1", "0", 50)), window(0, 10, cpuDatum("0", 30)))
	require.True(t, ok)
	require.Len(t, iv.Data, 1)
	assert.Equal(t, 1.0, iv.Data[0].Value)
}

func TestTaskActivityOverreportingCPU(t *testing.T) {
	// tasks together exceed the cpu, so they split it
	tasks := window(0, 10, task("1", "0", 30), task("2", "0", 10))
	iv, ok := TaskActivity(tasks, window(0, 10, cpuDatum("0", 20)))
	require.True(t, ok)

	assert.InDelta(t, 0.75, iv.Data[0].Value, 1e-12)
	assert.InDelta(t, 0.25, iv.Data[1].Value, 1e-12)
	for _, d := range iv.Data {
		assert.GreaterOrEqual(t, d.Value, 0.0)
		assert.LessOrEqual(t, d.Value, 1.0)
	}
}

func TestTaskActivityBoundsAndSkips(t *testing.T) {
	iv, ok := TaskActivity(window(2, 12, task("1", "0", 5), task("2", "0", 0)), window(0, 10, cpuDatum("0", 10)))
	require.True(t, ok)
	assert.Equal(t, domain.Timestamp{Secs: 2}, iv.Start)
	assert.Equal(t, domain.Timestamp{Secs: 10}, iv.End)
	assert.Len(t, iv.Data, 1)

	_, ok = TaskActivity(window(0, 10, task("1", "0", 0)), window(0, 10, cpuDatum("0", 10)))
	assert.False(t, ok)

	_, ok = TaskActivity(window(20, 30, task("1", "0", 5)), window(0, 10, cpuDatum("0", 10)))
	assert.False(t, ok)
}

func TestActivitySignal(t *testing.T) {
	tasks := domain.NewSignal(domain.UnitJiffies, []domain.SignalInterval{
		window(0, 1, task("1", "0", 5)),
		window(1, 2, task("1", "0", 0)),
	}, "/proc/1/task")
	cpus := domain.NewSignal(domain.UnitJiffies, []domain.SignalInterval{
		window(0, 1, cpuDatum("0", 10)),
		window(1, 2, cpuDatum("0", 10)),
	}, system.SourceProcStat)

	s := ActivitySignal(tasks, cpus)
	require.NotNil(t, s)
	assert.Equal(t, domain.UnitActivity, s.Unit)
	assert.Equal(t, []string{"/proc/1/task", system.SourceProcStat}, s.Sources)
	require.Len(t, s.Intervals, 1)
	assert.Equal(t, 0.5, s.Intervals[0].Data[0].Value)

	assert.Nil(t, ActivitySignal(nil, cpus))
}

func TestTaskEnergyConservesSocketEnergy(t *testing.T) {
	a := NewAttributor(system.SocketMap{0: 0, 1: 0, 2: 1})
	activity := window(0, 10,
		task("1", "0", 0.2),
		task("2", "1", 0.3),
		task("3", "2", 0.4),
	)
	energy := window(0, 10,
		energyDatum("0", "package", 10),
		energyDatum("0", "dram", 4),
		energyDatum("1", "package", 8),
	)

	iv, ok := a.TaskEnergy(activity, energy)
	require.True(t, ok)
	require.Len(t, iv.Data, 5)

	sums := map[string]float64{}
	for _, d := range iv.Data {
		socket := "1"
		if cpu, _ := d.Get("cpu"); cpu != "2" {
			socket = "0"
		}
		component, _ := d.Get("component")
		sums[socket+"/"+component] += d.Value
	}

	assert.InDelta(t, 10, sums["0/package"], 1e-9)
	assert.InDelta(t, 4, sums["0/dram"], 1e-9)
	assert.InDelta(t, 8, sums["1/package"], 1e-9)

	assert.InDelta(t, 4.0, iv.Data[0].Value, 1e-9)
	component, _ := iv.Data[1].Get("component")
	assert.Equal(t, "dram", component)
	tid, _ := iv.Data[1].Get("task")
	assert.Equal(t, "1", tid)
}

func TestTaskEnergyPartialOverlap(t *testing.T) {
	a := NewAttributor(system.SocketMap{0: 0})

	iv, ok := a.TaskEnergy(window(5, 15, task("1", "0", 0.5)), window(0, 10, energyDatum("0", "package", 10)))
	require.True(t, ok)
	assert.Equal(t, domain.Timestamp{Secs: 5}, iv.Start)
	assert.Equal(t, domain.Timestamp{Secs: 10}, iv.End)
	require.Len(t, iv.Data, 1)
	assert.InDelta(t, 5.0, iv.Data[0].Value, 1e-9)
}

func TestTaskEnergySkips(t *testing.T) {
	a := NewAttributor(system.SocketMap{0: 0, 1: 1})
	energy := window(0, 10, energyDatum("0", "package", 10))

	_, ok := a.TaskEnergy(window(0, 10, task("1", "1", 0.5)), energy)
	assert.False(t, ok, "socket without energy")

	_, ok = a.TaskEnergy(window(0, 10, task("1", "0", 0)), energy)
	assert.False(t, ok, "idle task")

	_, ok = a.TaskEnergy(window(0, 10, task("1", "0", 0.5)), window(0, 10))
	assert.False(t, ok, "no energy data")

	_, ok = a.TaskEnergy(window(20, 30, task("1", "0", 0.5)), energy)
	assert.False(t, ok, "disjoint")
}

func TestEnergySignal(t *testing.T) {
	a := NewAttributor(system.SocketMap{0: 0})
	activity := domain.NewSignal(domain.UnitActivity, []domain.SignalInterval{
		window(0, 1, task("1", "0", 1)),
	}, "/proc/1/task", system.SourceProcStat)
	energy := domain.NewSignal(domain.UnitJoules, []domain.SignalInterval{
		window(0, 1, energyDatum("0", "package", 3)),
	}, system.SourcePowercap)

	s := a.EnergySignal(activity, energy)
	require.NotNil(t, s)
	assert.Equal(t, domain.UnitJoules, s.Unit)
	assert.Equal(t, []string{"/proc/1/task", system.SourceProcStat, system.SourcePowercap}, s.Sources)
	assert.Equal(t, 3.0, s.Intervals[0].Data[0].Value)

	assert.Nil(t, a.EnergySignal(activity, nil))
}
