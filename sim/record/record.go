// Package record provides ready-made sinks for observed simulation
// values: a tabular console writer, a CSV writer and a terminal plot.
// All of them implement the sim.Recorder callbacks and assume the
// simulator delivers values for every subject each step.
package record

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
)

// Console writes one aligned row per simulation step.
type Console struct {
	tw       *tabwriter.Writer
	subjects []string
	row      map[string]float64
}

// NewConsole creates a console recorder writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{
		tw:  tabwriter.NewWriter(w, 0, 8, 2, ' ', 0),
		row: make(map[string]float64),
	}
}

func (c *Console) OnSimulationReset(subjects []string) {
	c.subjects = subjects
	c.row = make(map[string]float64, len(subjects))
	fmt.Fprintf(c.tw, "t\t%s\n", strings.Join(subjects, "\t"))
}

func (c *Console) OnObservedValue(subject string, t, value float64) {
	c.row[subject] = value
}

func (c *Console) OnSimulationStep(t float64) {
	fields := make([]string, 0, len(c.subjects)+1)
	fields = append(fields, strconv.FormatFloat(t, 'g', 6, 64))
	for _, s := range c.subjects {
		fields = append(fields, strconv.FormatFloat(c.row[s], 'g', 6, 64))
	}
	fmt.Fprintln(c.tw, strings.Join(fields, "\t"))
	c.tw.Flush()
}

// CSV writes a header row naming the subjects and one data row per step.
type CSV struct {
	w        *csv.Writer
	subjects []string
	row      map[string]float64
}

// NewCSV creates a CSV recorder writing to w.
func NewCSV(w io.Writer) *CSV {
	return &CSV{w: csv.NewWriter(w), row: make(map[string]float64)}
}

func (c *CSV) OnSimulationReset(subjects []string) {
	c.subjects = subjects
	c.row = make(map[string]float64, len(subjects))
	header := append([]string{"t"}, subjects...)
	c.w.Write(header)
}

func (c *CSV) OnObservedValue(subject string, t, value float64) {
	c.row[subject] = value
}

func (c *CSV) OnSimulationStep(t float64) {
	rec := make([]string, 0, len(c.subjects)+1)
	rec = append(rec, strconv.FormatFloat(t, 'g', -1, 64))
	for _, s := range c.subjects {
		rec = append(rec, strconv.FormatFloat(c.row[s], 'g', -1, 64))
	}
	c.w.Write(rec)
}

// Flush writes any buffered rows and reports a write error if one
// occurred.
func (c *CSV) Flush() error {
	c.w.Flush()
	return c.w.Error()
}

// Plot collects the observed values of every subject and renders them as
// an ASCII line chart.
type Plot struct {
	Height  int // chart height in rows, 0 for the asciigraph default
	Caption string

	subjects []string
	series   map[string][]float64
}

// NewPlot creates a plot recorder.
func NewPlot() *Plot {
	return &Plot{series: make(map[string][]float64)}
}

func (p *Plot) OnSimulationReset(subjects []string) {
	p.subjects = subjects
	p.series = make(map[string][]float64, len(subjects))
}

func (p *Plot) OnObservedValue(subject string, t, value float64) {
	p.series[subject] = append(p.series[subject], value)
}

func (p *Plot) OnSimulationStep(t float64) {}

// Render draws the collected series as one chart with a legend line per
// subject. It returns an empty string before any values arrive.
func (p *Plot) Render() string {
	data := make([][]float64, 0, len(p.subjects))
	names := make([]string, 0, len(p.subjects))
	for _, s := range p.subjects {
		if len(p.series[s]) == 0 {
			continue
		}
		data = append(data, p.series[s])
		names = append(names, s)
	}
	if len(data) == 0 {
		return ""
	}
	opts := []asciigraph.Option{}
	if p.Height > 0 {
		opts = append(opts, asciigraph.Height(p.Height))
	}
	if p.Caption != "" {
		opts = append(opts, asciigraph.Caption(p.Caption))
	}
	chart := asciigraph.PlotMany(data, opts...)
	var sb strings.Builder
	sb.WriteString(chart)
	sb.WriteByte('\n')
	for i, name := range names {
		fmt.Fprintf(&sb, "series %d: %s\n", i, name)
	}
	return sb.String()
}
