package emissions

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuca-profiler/yuca/internal/domain"
)

func signal(unit domain.Unit, seconds int64, values ...float64) *domain.Signal {
	var data []domain.SignalDatum
	for _, v := range values {
		data = append(data, domain.NewDatum(v, "socket", "0"))
	}
	return domain.NewSignal(unit, []domain.SignalInterval{{
		Start: domain.Timestamp{Secs: 10},
		End:   domain.Timestamp{Secs: 10 + seconds},
		Data:  data,
	}}, "/sys/devices/virtual/powercap/intel-rapl")
}

func TestConvertJoules(t *testing.T) {
	c := NewConverter(400, "FRA")

	out := c.Convert(signal(domain.UnitJoules, 1, 3.6e6, 0))
	require.NotNil(t, out)
	assert.Equal(t, domain.UnitGramsOfCO2, out.Unit)
	assert.Equal(t, []string{"/sys/devices/virtual/powercap/intel-rapl", "FRA"}, out.Sources)

	require.Len(t, out.Intervals[0].Data, 2)
	assert.InDelta(t, 400*3.6e6*JouleToKWh, out.Intervals[0].Data[0].Value, 1e-9)
	assert.InDelta(t, 400.0, out.Intervals[0].Data[0].Value, 1e-3)
	assert.Equal(t, 0.0, out.Intervals[0].Data[1].Value)

	socket, _ := out.Intervals[0].Data[0].Get("socket")
	assert.Equal(t, "0", socket)
}

func TestConvertWattsUsesIntervalLength(t *testing.T) {
	c := GlobalConverter()

	watts := c.Convert(signal(domain.UnitWatts, 4, 10))
	joules := c.Convert(signal(domain.UnitJoules, 4, 40))
	require.NotNil(t, watts)
	assert.InDelta(t, joules.Intervals[0].Data[0].Value, watts.Intervals[0].Data[0].Value, 1e-12)
	assert.Equal(t, GlobalSource, watts.Sources[len(watts.Sources)-1])

	half := domain.NewSignal(domain.UnitWatts, []domain.SignalInterval{{
		Start: domain.FromTime(time.Unix(0, 0)),
		End:   domain.FromTime(time.Unix(0, int64(500*time.Millisecond))),
		Data:  []domain.SignalDatum{domain.NewDatum(2)},
	}})
	out := c.Convert(half)
	assert.InDelta(t, GlobalIntensity*JouleToKWh, out.Intervals[0].Data[0].Value, 1e-12)
}

func TestConvertOtherUnits(t *testing.T) {
	c := GlobalConverter()
	assert.Nil(t, c.Convert(signal(domain.UnitJiffies, 1, 10)))
	assert.Nil(t, c.Convert(signal(domain.UnitCelsius, 1, 10)))
	assert.Nil(t, c.Convert(nil))
}

func TestDefaultTable(t *testing.T) {
	table := DefaultTable()

	usa, ok := table.Lookup("usa")
	require.True(t, ok)
	assert.Equal(t, "United States", usa.Name)

	c := table.Converter("USA")
	assert.Equal(t, "USA", c.Source())
	assert.Equal(t, usa.Intensity, c.Intensity())

	unknown := table.Converter("ATLANTIS")
	assert.Equal(t, GlobalSource, unknown.Source())
	assert.Equal(t, GlobalIntensity, unknown.Intensity())
}

func TestParseTable(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "valid", input: "locale,name,intensity\nFRA,France,56\nnor, Norway, 29\n"},
		{name: "header only", input: "locale,name,intensity\n"},
		{name: "empty", input: "", wantErr: true},
		{name: "wrong header", input: "code,intensity\nFRA,56\n", wantErr: true},
		{name: "bad intensity", input: "locale,name,intensity\nFRA,France,lots\n", wantErr: true},
		{name: "negative intensity", input: "locale,name,intensity\nFRA,France,-1\n", wantErr: true},
		{name: "short row", input: "locale,name,intensity\nFRA,56\n", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := ParseTable(strings.NewReader(tt.input))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedTable)
				return
			}
			require.NoError(t, err)
			for code, l := range table {
				assert.Equal(t, strings.ToUpper(code), code)
				assert.Equal(t, code, l.Code)
			}
		})
	}
}

func TestLoadTable(t *testing.T) {
	table, err := LoadTable("")
	require.NoError(t, err)
	assert.NotEmpty(t, table)

	path := filepath.Join(t.TempDir(), "intensity.csv")
	require.NoError(t, os.WriteFile(path, []byte("locale,name,intensity\nXYZ,Testland,123.5\n"), 0o644))

	table, err = LoadTable(path)
	require.NoError(t, err)
	assert.Len(t, table, 1)
	assert.Equal(t, 123.5, table.Converter("xyz").Intensity())

	_, err = LoadTable(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}
