package system

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/yuca-profiler/yuca/internal/domain"
	"github.com/yuca-profiler/yuca/internal/logger"
)

const microjoules = 1e6

type powercapZone struct {
	energyDomain
	path string
}

// PowercapSource reads intel-rapl energy_uj counters from sysfs.
type PowercapSource struct {
	energyCounter
	zones []powercapZone
}

func NewPowercapSource(paths Paths, log logger.Logger) (*PowercapSource, error) {
	root := filepath.Join(paths.Sys, "devices", "virtual", "powercap", "intel-rapl")

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}

	s := &PowercapSource{
		energyCounter: energyCounter{
			name:    SourcePowercap,
			modulus: make(map[energyDomain]float64),
			log:     log,
		},
	}

	for _, e := range entries {
		index, ok := zoneIndex(e.Name())
		if !ok {
			continue
		}

		dir := filepath.Join(root, e.Name())
		socket := index
		if name, err := readTrimmed(filepath.Join(dir, "name")); err == nil {
			if n, ok := strings.CutPrefix(name, "package-"); ok {
				if v, err := strconv.Atoi(n); err == nil {
					socket = v
				}
			}
		}

		s.addZone(socket, EnergyPackage, dir)

		subs, _ := os.ReadDir(dir)
		for _, sub := range subs {
			if !strings.HasPrefix(sub.Name(), e.Name()+":") {
				continue
			}
			subDir := filepath.Join(dir, sub.Name())
			if name, err := readTrimmed(filepath.Join(subDir, "name")); err == nil && name == EnergyDRAM {
				s.addZone(socket, EnergyDRAM, subDir)
			}
		}
	}

	if len(s.zones) == 0 {
		return nil, fmt.Errorf("%w: no powercap zones under %s", domain.ErrSourceUnavailable, root)
	}

	slices.SortFunc(s.zones, func(a, b powercapZone) int {
		if a.socket != b.socket {
			return a.socket - b.socket
		}
		return componentRank(a.component) - componentRank(b.component)
	})

	return s, nil
}

// zoneIndex accepts top-level zones like intel-rapl:1.
func zoneIndex(name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, "intel-rapl:")
	if !ok || strings.Contains(rest, ":") {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	return n, err == nil
}

func componentRank(component string) int {
	if component == EnergyPackage {
		return 0
	}
	return 1
}

func (s *PowercapSource) addZone(socket int, component, dir string) {
	if _, err := os.Stat(filepath.Join(dir, "energy_uj")); err != nil {
		return
	}

	d := energyDomain{socket: socket, component: component}
	if maxRange, err := readUint(filepath.Join(dir, "max_energy_range_uj")); err == nil {
		s.modulus[d] = float64(maxRange) / microjoules
	} else {
		s.log.Warn("powercap: no max energy range", "socket", socket, "component", component)
	}
	s.zones = append(s.zones, powercapZone{energyDomain: d, path: filepath.Join(dir, "energy_uj")})
}

func (s *PowercapSource) Sample() (EnergySnapshot, error) {
	snap := EnergySnapshot{
		Timestamp: domain.Now(),
		Readings:  make([]EnergyReading, 0, len(s.zones)),
	}

	var errs []error
	for _, z := range s.zones {
		uj, err := readUint(z.path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		snap.Readings = append(snap.Readings, EnergyReading{
			Socket:    z.socket,
			Component: z.component,
			Joules:    float64(uj) / microjoules,
		})
	}
	if len(errs) > 0 {
		return EnergySnapshot{}, errors.Join(errs...)
	}
	return snap, nil
}
