package emissions

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
)

//go:embed intensity.csv
var embeddedIntensities []byte

var ErrMalformedTable = errors.New("malformed intensity table")

type Locale struct {
	Code      string
	Name      string
	Intensity float64
}

// Table maps upper-cased locale codes to their grid intensity.
type Table map[string]Locale

var defaultTable = sync.OnceValue(func() Table {
	t, err := ParseTable(bytes.NewReader(embeddedIntensities))
	if err != nil {
		panic(fmt.Sprintf("emissions: embedded table: %v", err))
	}
	return t
})

// DefaultTable is shared, callers must not modify it.
func DefaultTable() Table {
	return defaultTable()
}

// LoadTable reads a locale,name,intensity CSV from path, or returns the
// embedded table when path is empty.
func LoadTable(path string) (Table, error) {
	if path == "" {
		return DefaultTable(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open intensity table: %w", err)
	}
	defer f.Close()

	return ParseTable(f)
}

func ParseTable(r io.Reader) (Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 3
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrMalformedTable, err)
	}
	if !strings.EqualFold(header[0], "locale") {
		return nil, fmt.Errorf("%w: unexpected header %q", ErrMalformedTable, strings.Join(header, ","))
	}

	t := Table{}
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedTable, err)
		}

		intensity, err := strconv.ParseFloat(record[2], 64)
		if err != nil || intensity < 0 {
			return nil, fmt.Errorf("%w: locale %s: bad intensity %q", ErrMalformedTable, record[0], record[2])
		}

		code := strings.ToUpper(strings.TrimSpace(record[0]))
		t[code] = Locale{Code: code, Name: record[1], Intensity: intensity}
	}
	return t, nil
}

func (t Table) Lookup(locale string) (Locale, bool) {
	l, ok := t[strings.ToUpper(strings.TrimSpace(locale))]
	return l, ok
}

// Converter falls back to the global intensity for unknown locales.
func (t Table) Converter(locale string) *Converter {
	l, ok := t.Lookup(locale)
	if !ok {
		return GlobalConverter()
	}
	return NewConverter(l.Intensity, l.Code)
}
