package system

import (
	"context"
	"fmt"
	"time"

	"github.com/yuca-profiler/yuca/internal/domain"
)

const (
	DefaultCooldownPeriod = 10 * time.Second
	DefaultCooldownTarget = 35.0
	defaultCooldownWindow = 10
	cooldownQuorum        = 0.8
)

type CooldownOptions struct {
	Period time.Duration
	// Target is the temperature in celsius every package zone must settle at.
	Target float64
	// Window is how many recent readings of a zone are judged.
	Window int
}

type ZoneCooldown struct {
	Zone    int
	Average float64
	Met     bool
}

type CooldownStatus struct {
	Samples int
	Zones   []ZoneCooldown
}

// Cooldown samples the x86 package zones until, in every zone, at least 80%
// of the last Window readings are at or below Target. It returns the time
// spent waiting. progress may be nil.
func (s *ThermalSource) Cooldown(ctx context.Context, opts CooldownOptions, progress func(CooldownStatus)) (time.Duration, error) {
	if opts.Period <= 0 {
		opts.Period = DefaultCooldownPeriod
	}
	if opts.Window <= 0 {
		opts.Window = defaultCooldownWindow
	}
	quorum := int(cooldownQuorum * float64(opts.Window))

	var zones []int
	for _, z := range s.zones {
		if z.kind == ZoneX86PkgTemp {
			zones = append(zones, z.zone)
		}
	}
	if len(zones) == 0 {
		return 0, fmt.Errorf("%w: no package thermal zones", domain.ErrSourceUnavailable)
	}

	windows := make(map[int][]float64, len(zones))
	start := time.Now()
	for {
		snap, err := s.Sample()
		if err != nil {
			return time.Since(start), err
		}
		for _, reading := range snap.Zones {
			if s.byID[reading.Zone].kind != ZoneX86PkgTemp {
				continue
			}
			w := append(windows[reading.Zone], reading.Celsius)
			if len(w) > opts.Window {
				w = w[1:]
			}
			windows[reading.Zone] = w
		}

		status := CooldownStatus{}
		done := true
		for _, zone := range zones {
			w := windows[zone]
			status.Samples = len(w)

			var sum float64
			cool := 0
			for _, c := range w {
				sum += c
				if c <= opts.Target {
					cool++
				}
			}

			zc := ZoneCooldown{Zone: zone, Met: len(w) == opts.Window && cool >= quorum}
			if len(w) > 0 {
				zc.Average = sum / float64(len(w))
			}
			done = done && zc.Met
			status.Zones = append(status.Zones, zc)
		}

		if progress != nil {
			progress(status)
		}
		if done {
			return time.Since(start), nil
		}

		select {
		case <-ctx.Done():
			return time.Since(start), ctx.Err()
		case <-time.After(opts.Period):
		}
	}
}
