// Package panel holds the monthly cross-country GPR panel and its country catalog.
package panel

import (
	"math"
	"slices"
	"sort"
	"time"

	"github.com/rotisserie/eris"
)

// Column selects the current or historic GPR measure.
type Column int

const (
	// Current is the GPRC_<code> measure.
	Current Column = iota
	// Historic is the GPRHC_<code> measure.
	Historic
)

// Country is a catalog entry.
type Country struct {
	Code string `json:"code" yaml:"code"`
	Name string `json:"name" yaml:"name"`

	// Excluded marks the country as exempt from coverage-bias adjustment.
	Excluded bool `json:"excluded" yaml:"excluded"`

	// Malformed is set when the country has a current column but no historic partner.
	Malformed bool `json:"malformed,omitempty" yaml:"malformed,omitempty"`
}

// Panel is an immutable monthly panel. Missing observations are stored as NaN
// and never returned by the accessors.
type Panel struct {
	dates     []time.Time
	countries []Country
	index     map[string]int
	current   [][]float64
	historic  [][]float64
}

// Data is the raw material for New. Series are indexed like Dates; use NaN for missing.
type Data struct {
	Dates     []time.Time
	Countries []Country
	Current   map[string][]float64
	Historic  map[string][]float64
}

// New validates d and builds a Panel sorted by date. A country with no historic
// series is kept but marked Malformed.
func New(d Data) (*Panel, error) {
	n := len(d.Dates)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return d.Dates[order[a]].Before(d.Dates[order[b]]) })

	p := &Panel{
		dates: make([]time.Time, n),
		index: make(map[string]int, len(d.Countries)),
	}
	for i, src := range order {
		p.dates[i] = d.Dates[src]
		if i > 0 && p.dates[i].Equal(p.dates[i-1]) {
			return nil, eris.Errorf("panel: duplicate date %s", p.dates[i].Format("2006-01"))
		}
	}

	for _, c := range d.Countries {
		if c.Code == "" {
			return nil, eris.New("panel: country with empty code")
		}
		if _, dup := p.index[c.Code]; dup {
			return nil, eris.Errorf("panel: duplicate country %s", c.Code)
		}
		cur, ok := d.Current[c.Code]
		if !ok {
			return nil, eris.Errorf("panel: no current series for %s", c.Code)
		}
		if len(cur) != n {
			return nil, eris.Errorf("panel: current series for %s has %d values, want %d", c.Code, len(cur), n)
		}
		hist, ok := d.Historic[c.Code]
		if !ok {
			c.Malformed = true
			hist = make([]float64, n)
			for i := range hist {
				hist[i] = math.NaN()
			}
		} else if len(hist) != n {
			return nil, eris.Errorf("panel: historic series for %s has %d values, want %d", c.Code, len(hist), n)
		}
		if c.Name == "" {
			c.Name = c.Code
		}

		p.index[c.Code] = len(p.countries)
		p.countries = append(p.countries, c)
		p.current = append(p.current, reorder(cur, order))
		p.historic = append(p.historic, reorder(hist, order))
	}

	return p, nil
}

func reorder(v []float64, order []int) []float64 {
	out := make([]float64, len(order))
	for i, src := range order {
		x := v[src]
		if x < 0 || math.IsInf(x, 0) {
			x = math.NaN()
		}
		out[i] = x
	}
	return out
}

// Len returns the number of months in the panel.
func (p *Panel) Len() int { return len(p.dates) }

// Date returns the date of row i.
func (p *Panel) Date(i int) time.Time { return p.dates[i] }

// Dates returns a copy of the panel dates in chronological order.
func (p *Panel) Dates() []time.Time { return slices.Clone(p.dates) }

// Countries returns a copy of the catalog in panel column order.
func (p *Panel) Countries() []Country { return slices.Clone(p.countries) }

// Codes returns the country codes in panel column order.
func (p *Panel) Codes() []string {
	codes := make([]string, len(p.countries))
	for i, c := range p.countries {
		codes[i] = c.Code
	}
	return codes
}

// Country looks up a catalog entry by code.
func (p *Panel) Country(code string) (Country, bool) {
	i, ok := p.index[code]
	if !ok {
		return Country{}, false
	}
	return p.countries[i], true
}

// Catalog returns the country catalog with Excluded set for every code in
// exclusions. Exclusions are normalized with NormalizeCode.
func (p *Panel) Catalog(exclusions []string) []Country {
	exclusions = NormalizeCodes(exclusions)
	out := p.Countries()
	for i := range out {
		out[i].Excluded = slices.Contains(exclusions, out[i].Code)
	}
	return out
}

// At returns the value of col for code at row, or false when missing.
func (p *Panel) At(code string, col Column, row int) (float64, bool) {
	s := p.series(code, col)
	if s == nil || row < 0 || row >= len(s) || math.IsNaN(s[row]) {
		return 0, false
	}
	return s[row], true
}

// Values returns the non-missing values of col for code over rows [from, to),
// in chronological order.
func (p *Panel) Values(code string, col Column, from, to int) []float64 {
	s := p.series(code, col)
	if s == nil {
		return nil
	}
	from = max(from, 0)
	to = min(to, len(s))
	out := make([]float64, 0, max(to-from, 0))
	for i := from; i < to; i++ {
		if !math.IsNaN(s[i]) {
			out = append(out, s[i])
		}
	}
	return out
}

// LatestRow returns the index of the most recent month in which any country has a
// current value.
func (p *Panel) LatestRow() (int, bool) {
	for i := len(p.dates) - 1; i >= 0; i-- {
		for _, s := range p.current {
			if !math.IsNaN(s[i]) {
				return i, true
			}
		}
	}
	return 0, false
}

func (p *Panel) series(code string, col Column) []float64 {
	i, ok := p.index[code]
	if !ok {
		return nil
	}
	if col == Historic {
		return p.historic[i]
	}
	return p.current[i]
}
