// Package timeseries loads time-indexed value columns from CSV files for
// driving simulation elements from recorded profiles.
//
// The expected layout is a header row naming the columns, with the first
// column holding the sample time in seconds and every other column holding
// one named series. Lookups return the value of the nearest sample at or
// before the requested time, so a series behaves as a step function held
// between samples.
package timeseries

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
)

// Series holds one or more named value columns sharing a common time axis.
type Series struct {
	times  []float64
	values map[string][]float64
}

// Load reads a CSV time-series file from disk.
func Load(path string) (*Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open time series: %w", err)
	}
	defer f.Close()
	s, err := FromReader(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// FromReader parses CSV time-series data from r.
func FromReader(r io.Reader) (*Series, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse time series: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("time series needs a header row and at least one sample")
	}
	header := records[0]
	if len(header) < 2 {
		return nil, fmt.Errorf("time series needs a time column and at least one value column")
	}

	s := &Series{values: make(map[string][]float64, len(header)-1)}
	names := header[1:]
	for _, name := range names {
		if _, ok := s.values[name]; ok {
			return nil, fmt.Errorf("duplicate series column %q", name)
		}
		s.values[name] = make([]float64, 0, len(records)-1)
	}

	prev := 0.0
	for row, rec := range records[1:] {
		if len(rec) != len(header) {
			return nil, fmt.Errorf("row %d: expected %d fields, got %d", row+2, len(header), len(rec))
		}
		t, err := strconv.ParseFloat(rec[0], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: bad time value %q", row+2, rec[0])
		}
		if len(s.times) > 0 && t <= prev {
			return nil, fmt.Errorf("row %d: time %v is not increasing", row+2, t)
		}
		for col, name := range names {
			v, err := strconv.ParseFloat(rec[col+1], 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: bad value %q in column %q", row+2, rec[col+1], name)
			}
			s.values[name] = append(s.values[name], v)
		}
		s.times = append(s.times, t)
		prev = t
	}
	return s, nil
}

// Names returns the value column names in arbitrary order.
func (s *Series) Names() []string {
	names := make([]string, 0, len(s.values))
	for name := range s.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Value returns the sample of the named column at the nearest time at or
// before t. Times before the first sample return the first sample.
func (s *Series) Value(name string, t float64) (float64, error) {
	col, ok := s.values[name]
	if !ok {
		return 0, fmt.Errorf("unknown series column %q", name)
	}
	// First index with times[i] > t; the sample before it is held.
	i := sort.SearchFloat64s(s.times, t)
	if i < len(s.times) && s.times[i] == t {
		return col[i], nil
	}
	if i == 0 {
		return col[0], nil
	}
	return col[i-1], nil
}
