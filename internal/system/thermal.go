package system

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/yuca-profiler/yuca/internal/domain"
	"github.com/yuca-profiler/yuca/internal/logger"
)

type ZoneKind string

const (
	ZoneUnknown      ZoneKind = "UNKNOWN_ZONE_KIND"
	ZonePCHLewisberg ZoneKind = "PCH_LEWISBERG"
	ZoneX86PkgTemp   ZoneKind = "X86_PKG_TEMP"
)

func parseZoneKind(raw string) ZoneKind {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(ZonePCHLewisberg):
		return ZonePCHLewisberg
	case string(ZoneX86PkgTemp):
		return ZoneX86PkgTemp
	default:
		return ZoneUnknown
	}
}

type thermalZone struct {
	zone   int
	kind   ZoneKind
	socket int
}

type ZoneTemperature struct {
	Zone    int
	Celsius float64
}

type ThermalSnapshot struct {
	Timestamp domain.Timestamp
	Zones     []ZoneTemperature
}

// ThermalSource reads /sys/class/thermal zone temperatures. Package zones are
// numbered as sockets in zone order.
type ThermalSource struct {
	dir   string
	zones []thermalZone
	byID  map[int]thermalZone
}

func NewThermalSource(paths Paths, log logger.Logger) (*ThermalSource, error) {
	dir := filepath.Join(paths.Sys, "class", "thermal")

	ids, err := indexedDirs(dir, "thermal_zone")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no thermal zones", domain.ErrSourceUnavailable)
	}

	s := &ThermalSource{dir: dir, byID: make(map[int]thermalZone, len(ids))}
	socket := 0
	for _, id := range ids {
		raw, err := readTrimmed(filepath.Join(dir, fmt.Sprintf("thermal_zone%d", id), "type"))
		if err != nil {
			log.Debug("thermal: unreadable zone type", "zone", id, "error", err.Error())
		}

		z := thermalZone{zone: id, kind: parseZoneKind(raw), socket: -1}
		if z.kind == ZoneX86PkgTemp {
			z.socket = socket
			socket++
		}
		s.zones = append(s.zones, z)
		s.byID[id] = z
	}

	return s, nil
}

func (s *ThermalSource) Name() string {
	return SourceThermal
}

func (s *ThermalSource) Sample() (ThermalSnapshot, error) {
	snap := ThermalSnapshot{Timestamp: domain.Now()}
	for _, z := range s.zones {
		milli, err := readInt(filepath.Join(s.dir, fmt.Sprintf("thermal_zone%d", z.zone), "temp"))
		if err != nil {
			continue
		}
		snap.Zones = append(snap.Zones, ZoneTemperature{Zone: z.zone, Celsius: float64(milli / 1000)})
	}
	return snap, nil
}

// Difference reports the temperature at the start of the interval for the
// zones read in both snapshots.
func (s *ThermalSource) Difference(first, second ThermalSnapshot) (domain.SignalInterval, error) {
	later := make(map[int]bool, len(second.Zones))
	for _, z := range second.Zones {
		later[z.Zone] = true
	}

	var data []domain.SignalDatum
	for _, reading := range first.Zones {
		if !later[reading.Zone] {
			continue
		}

		z := s.byID[reading.Zone]
		kv := []string{"zone", strconv.Itoa(reading.Zone)}
		if z.socket >= 0 {
			kv = append(kv, "socket", strconv.Itoa(z.socket))
		}
		kv = append(kv, "kind", string(z.kind))

		data = append(data, domain.NewDatum(reading.Celsius, kv...))
	}

	return newInterval(first.Timestamp, second.Timestamp, data)
}
