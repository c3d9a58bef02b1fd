// Package emissions converts energy and power signals into grams of CO2.
package emissions

import (
	"github.com/yuca-profiler/yuca/internal/domain"
)

const (
	JouleToKWh = 2.77778e-7

	// GlobalIntensity is the world average grid intensity in gCO2/kWh.
	GlobalIntensity = 475.0
	GlobalSource    = "global"
)

// Converter applies one carbon intensity to signals. The zero value is not
// usable, build one with NewConverter or Table.Converter.
type Converter struct {
	intensity float64
	source    string
}

func NewConverter(intensity float64, source string) *Converter {
	return &Converter{intensity: intensity, source: source}
}

func GlobalConverter() *Converter {
	return NewConverter(GlobalIntensity, GlobalSource)
}

func (c *Converter) Intensity() float64 { return c.intensity }
func (c *Converter) Source() string     { return c.source }

// Convert returns the emissions of a JOULES or WATTS signal, or nil for any
// other unit. Datum metadata is kept.
func (c *Converter) Convert(s *domain.Signal) *domain.Signal {
	if s.IsEmpty() {
		return nil
	}
	if s.Unit != domain.UnitJoules && s.Unit != domain.UnitWatts {
		return nil
	}

	intervals := make([]domain.SignalInterval, 0, len(s.Intervals))
	for _, iv := range s.Intervals {
		scale := 1.0
		if s.Unit == domain.UnitWatts {
			scale = iv.Duration().Seconds()
		}

		data := make([]domain.SignalDatum, 0, len(iv.Data))
		for _, d := range iv.Data {
			data = append(data, d.With(c.grams(d.Value*scale)))
		}
		intervals = append(intervals, domain.SignalInterval{Start: iv.Start, End: iv.End, Data: data})
	}

	sources := append(append([]string(nil), s.Sources...), c.source)
	return domain.NewSignal(domain.UnitGramsOfCO2, intervals, sources...)
}

func (c *Converter) grams(joules float64) float64 {
	return c.intensity * joules * JouleToKWh
}
