package gpr

import (
	"math"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/floats"

	"github.com/sells-group/gpr-cli/internal/panel"
)

// trendOutlier is the |trend| above which the trend is amplified.
const trendOutlier = 0.1

var (
	errNoCurrent  = eris.New("no current value at latest date")
	errNoHistoric = eris.New("no historic value at latest date")
	errMalformed  = eris.New("missing " + panel.HistoricPrefix + " column")
)

// Components are the per-country inputs to the composite, before coverage adjustment.
type Components struct {
	CurrentGPR  float64
	HistoricGPR float64
	AvgOverTime float64
	AvgRest     float64
	RecentTrend float64

	// Recent is the current series inside the forecast window.
	Recent []float64
	// History is the full current series.
	History []float64
}

// snapshot is the read-only view shared by every Pass 1 worker.
type snapshot struct {
	panel    *panel.Panel
	settings Settings
	latest   int

	// latestCurrent holds each country's current value at the latest row.
	latestCurrent map[string]float64
	latestSum     float64
	// adjustedLatest holds latestCurrent scaled by each country's adjustment factor.
	adjustedLatest []float64
	profiles       map[string]BiasProfile
}

func newSnapshot(p *panel.Panel, s Settings, latest int, profiles []BiasProfile) *snapshot {
	snap := &snapshot{
		panel:         p,
		settings:      s,
		latest:        latest,
		latestCurrent: make(map[string]float64),
		profiles:      make(map[string]BiasProfile, len(profiles)),
	}
	for _, bp := range profiles {
		snap.profiles[bp.Code] = bp
	}
	for _, code := range p.Codes() {
		v, ok := p.At(code, panel.Current, latest)
		if !ok {
			continue
		}
		snap.latestCurrent[code] = v
		snap.latestSum += v
		snap.adjustedLatest = append(snap.adjustedLatest, v*snap.adjustment(code))
	}
	return snap
}

func (snap *snapshot) adjustment(code string) float64 {
	if bp, ok := snap.profiles[code]; ok {
		return bp.AdjustmentFactor
	}
	return 1
}

// components gathers the latest values, averages and trend for one country.
func (snap *snapshot) components(c panel.Country) (Components, error) {
	p, s := snap.panel, snap.settings

	if c.Malformed {
		return Components{}, errMalformed
	}
	cur, ok := snap.latestCurrent[c.Code]
	if !ok {
		return Components{}, errNoCurrent
	}
	hist, ok := p.At(c.Code, panel.Historic, snap.latest)
	if !ok {
		return Components{}, errNoHistoric
	}

	end := snap.latest + 1
	history := p.Values(c.Code, panel.Current, 0, end)
	recent := p.Values(c.Code, panel.Current, end-s.ForecastWindow, end)
	veryRecent := p.Values(c.Code, panel.Current, end-s.TrendWindow, end)

	var rest float64
	if n := len(snap.latestCurrent); n > 1 {
		rest = (snap.latestSum - cur) / float64(n-1)
	}

	return Components{
		CurrentGPR:  cur,
		HistoricGPR: hist,
		AvgOverTime: recencyAverage(recent, history, s.RecencyWeight),
		AvgRest:     rest,
		RecentTrend: recentTrend(veryRecent, s.OutlierSensitivity),
		Recent:      recent,
		History:     history,
	}, nil
}

// recencyAverage blends an exponentially weighted mean of recent with the mean of
// history: weighted*rw + mean(history)*(1-rw). An empty recent window falls back
// to the history mean.
func recencyAverage(recent, history []float64, rw float64) float64 {
	full := mean(history)
	if len(recent) == 0 {
		return full
	}
	weighted := floats.Dot(recencyWeights(len(recent), rw), recent)
	return weighted*rw + full*(1-rw)
}

// recentTrend returns (last-first)/first over series, amplified by sensitivity
// when its magnitude exceeds trendOutlier. It is 0 for fewer than two points or a
// non-positive first value.
func recentTrend(series []float64, sensitivity float64) float64 {
	if len(series) < 2 {
		return 0
	}
	first, last := series[0], series[len(series)-1]
	if first <= 0 {
		return 0
	}
	trend := (last - first) / first
	if math.Abs(trend) > trendOutlier {
		trend *= sensitivity
	}
	return trend
}
