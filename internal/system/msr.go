package system

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/yuca-profiler/yuca/internal/domain"
	"github.com/yuca-profiler/yuca/internal/logger"
)

const (
	msrPowerUnit   = 0x606
	msrPkgEnergy   = 0x611
	msrDRAMEnergy  = 0x619
	msrCounterBits = 32

	// server parts whose dram domain counts in fixed 15.3uJ steps
	fixedDRAMUnit = 15.3e-6
)

var fixedDRAMModels = map[int]bool{
	0x3f: true, // haswell-x
	0x4f: true, // broadwell-x
	0x55: true, // skylake-x
	0x56: true, // broadwell-de
}

type msrSocket struct {
	socket int
	file   *os.File
}

// MSRSource reads RAPL energy status registers through /dev/cpu/N/msr, one
// cpu per socket.
type MSRSource struct {
	energyCounter
	sockets  []msrSocket
	pkgUnit  float64
	dramUnit float64
	withDRAM bool
}

func NewMSRSource(paths Paths, sockets SocketMap, model int, log logger.Logger) (*MSRSource, error) {
	s := &MSRSource{
		energyCounter: energyCounter{
			name:    SourceMSR,
			modulus: make(map[energyDomain]float64),
			log:     log,
		},
	}

	for _, socket := range sockets.Sockets() {
		cpu := sockets.FirstCPU(socket)
		if cpu < 0 {
			continue
		}
		f, err := os.Open(filepath.Join(paths.Dev, "cpu", strconv.Itoa(cpu), "msr"))
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
		}
		s.sockets = append(s.sockets, msrSocket{socket: socket, file: f})
	}
	if len(s.sockets) == 0 {
		return nil, fmt.Errorf("%w: no msr devices", domain.ErrSourceUnavailable)
	}

	units, err := readMSR(s.sockets[0].file, msrPowerUnit)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}

	// energy status unit is bits 12:8, in 1/2^ESU joules
	s.pkgUnit = 1 / math.Pow(2, float64((units>>8)&0x1f))
	s.dramUnit = s.pkgUnit
	if fixedDRAMModels[model] {
		s.dramUnit = fixedDRAMUnit
	}

	if _, err := readMSR(s.sockets[0].file, msrDRAMEnergy); err == nil {
		s.withDRAM = true
	}

	for _, sock := range s.sockets {
		s.modulus[energyDomain{sock.socket, EnergyPackage}] = math.Exp2(msrCounterBits) * s.pkgUnit
		if s.withDRAM {
			s.modulus[energyDomain{sock.socket, EnergyDRAM}] = math.Exp2(msrCounterBits) * s.dramUnit
		}
	}

	return s, nil
}

func (s *MSRSource) Sample() (EnergySnapshot, error) {
	snap := EnergySnapshot{Timestamp: domain.Now()}

	for _, sock := range s.sockets {
		pkg, err := readMSR(sock.file, msrPkgEnergy)
		if err != nil {
			return EnergySnapshot{}, err
		}
		snap.Readings = append(snap.Readings, EnergyReading{
			Socket:    sock.socket,
			Component: EnergyPackage,
			Joules:    float64(pkg&math.MaxUint32) * s.pkgUnit,
		})

		if !s.withDRAM {
			continue
		}
		dram, err := readMSR(sock.file, msrDRAMEnergy)
		if err != nil {
			return EnergySnapshot{}, err
		}
		snap.Readings = append(snap.Readings, EnergyReading{
			Socket:    sock.socket,
			Component: EnergyDRAM,
			Joules:    float64(dram&math.MaxUint32) * s.dramUnit,
		})
	}

	return snap, nil
}

func (s *MSRSource) Close() error {
	var errs []error
	for _, sock := range s.sockets {
		errs = append(errs, sock.file.Close())
	}
	s.sockets = nil
	return errors.Join(errs...)
}

func readMSR(f *os.File, register int64) (uint64, error) {
	var buf [8]byte
	if _, err := f.ReadAt(buf[:], register); err != nil {
		return 0, fmt.Errorf("read msr %#x: %w", register, err)
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}
