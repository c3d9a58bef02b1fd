package domain

import (
	"encoding"
	"fmt"
	"strings"
	"time"
)

// Timestamp is a wall-clock instant with nanosecond precision.
type Timestamp struct {
	Secs  int64 `json:"secs" cbor:"1,keyasint"`
	Nanos int32 `json:"nanos" cbor:"2,keyasint"`
}

func FromTime(t time.Time) Timestamp {
	return Timestamp{Secs: t.Unix(), Nanos: int32(t.Nanosecond())}
}

func Now() Timestamp {
	return FromTime(time.Now())
}

func (t Timestamp) Time() time.Time {
	return time.Unix(t.Secs, int64(t.Nanos))
}

func (t Timestamp) Before(other Timestamp) bool {
	return t.Secs < other.Secs || (t.Secs == other.Secs && t.Nanos < other.Nanos)
}

func (t Timestamp) After(other Timestamp) bool {
	return other.Before(t)
}

func (t Timestamp) Equal(other Timestamp) bool {
	return t.Secs == other.Secs && t.Nanos == other.Nanos
}

// Sub returns t - other.
func (t Timestamp) Sub(other Timestamp) time.Duration {
	return time.Duration(t.Secs-other.Secs)*time.Second + time.Duration(t.Nanos-other.Nanos)
}

func (t Timestamp) String() string {
	return t.Time().UTC().Format(time.RFC3339Nano)
}

func MinTimestamp(first Timestamp, others ...Timestamp) Timestamp {
	m := first
	for _, o := range others {
		if o.Before(m) {
			m = o
		}
	}
	return m
}

func MaxTimestamp(first Timestamp, others ...Timestamp) Timestamp {
	m := first
	for _, o := range others {
		if o.After(m) {
			m = o
		}
	}
	return m
}

type Unit int

const (
	UnitUnknown Unit = iota
	UnitNanoseconds
	UnitJiffies
	UnitJoules
	UnitWatts
	UnitCelsius
	UnitHertz
	UnitGramsOfCO2
	UnitActivity
)

var unitNames = map[Unit]string{
	UnitUnknown:     "UNKNOWN",
	UnitNanoseconds: "NANOSECONDS",
	UnitJiffies:     "JIFFIES",
	UnitJoules:      "JOULES",
	UnitWatts:       "WATTS",
	UnitCelsius:     "CELSIUS",
	UnitHertz:       "HERTZ",
	UnitGramsOfCO2:  "GRAMS_OF_CO2",
	UnitActivity:    "ACTIVITY",
}

var (
	_ encoding.TextMarshaler   = Unit(0)
	_ encoding.TextUnmarshaler = (*Unit)(nil)
)

func (u Unit) String() string {
	if name, ok := unitNames[u]; ok {
		return name
	}
	return fmt.Sprintf("Unit(%d)", int(u))
}

func ParseUnit(name string) (Unit, error) {
	for u, n := range unitNames {
		if strings.EqualFold(n, name) {
			return u, nil
		}
	}
	return UnitUnknown, fmt.Errorf("unknown unit %q", name)
}

func (u Unit) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

func (u *Unit) UnmarshalText(text []byte) error {
	parsed, err := ParseUnit(string(text))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

type Metadata struct {
	Name  string `json:"name" cbor:"1,keyasint"`
	Value string `json:"value" cbor:"2,keyasint"`
}

// SignalDatum is one value of an interval, tagged with ordered metadata such
// as cpu=3 or socket=1.
type SignalDatum struct {
	Metadata []Metadata `json:"metadata,omitempty" cbor:"1,keyasint,omitempty"`
	Value    float64    `json:"value" cbor:"2,keyasint"`
}

func NewDatum(value float64, kv ...string) SignalDatum {
	d := SignalDatum{Value: value}
	for i := 0; i+1 < len(kv); i += 2 {
		d.Metadata = append(d.Metadata, Metadata{Name: kv[i], Value: kv[i+1]})
	}
	return d
}

// Get returns the first metadata value stored under name.
func (d SignalDatum) Get(name string) (string, bool) {
	for _, m := range d.Metadata {
		if m.Name == name {
			return m.Value, true
		}
	}
	return "", false
}

// With returns a copy of d with an extra metadata entry and a new value.
func (d SignalDatum) With(value float64, kv ...string) SignalDatum {
	out := SignalDatum{
		Metadata: append([]Metadata(nil), d.Metadata...),
		Value:    value,
	}
	for i := 0; i+1 < len(kv); i += 2 {
		out.Metadata = append(out.Metadata, Metadata{Name: kv[i], Value: kv[i+1]})
	}
	return out
}

// SignalInterval covers [Start, End).
type SignalInterval struct {
	Start Timestamp     `json:"start" cbor:"1,keyasint"`
	End   Timestamp     `json:"end" cbor:"2,keyasint"`
	Data  []SignalDatum `json:"data,omitempty" cbor:"3,keyasint,omitempty"`
}

func (i SignalInterval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

type Signal struct {
	Unit      Unit             `json:"unit" cbor:"1,keyasint"`
	Sources   []string         `json:"sources,omitempty" cbor:"2,keyasint,omitempty"`
	Intervals []SignalInterval `json:"intervals,omitempty" cbor:"3,keyasint,omitempty"`
}

func (s *Signal) IsEmpty() bool {
	return s == nil || len(s.Intervals) == 0
}

// NewSignal returns nil when there are no intervals so absent signals never
// reach a Component.
func NewSignal(unit Unit, intervals []SignalInterval, sources ...string) *Signal {
	if len(intervals) == 0 {
		return nil
	}
	return &Signal{
		Unit:      unit,
		Sources:   append([]string(nil), sources...),
		Intervals: intervals,
	}
}
