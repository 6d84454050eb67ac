package gpr

import (
	"github.com/sells-group/gpr-cli/internal/panel"
)

// midScore is the scaled composite when the reference range is degenerate.
const midScore = 5.0

// aggregate is the immutable Pass 1 output for one country.
type aggregate struct {
	country    panel.Country
	components Components
	profile    BiasProfile
	forecast   float64

	adjCurrent  float64
	adjHistoric float64
	adjForecast float64
	globalRel   float64
	historicRel float64
	raw         float64
}

// score runs Pass 1 for one country.
func (snap *snapshot) score(c panel.Country) (*aggregate, error) {
	comp, err := snap.components(c)
	if err != nil {
		return nil, err
	}

	s := snap.settings
	bp := snap.profiles[c.Code]
	adj := bp.AdjustmentFactor

	a := &aggregate{
		country:     c,
		components:  comp,
		profile:     bp,
		forecast:    Forecast(comp.Recent, comp.CurrentGPR, s.Method, s.Alpha),
		adjCurrent:  comp.CurrentGPR * adj,
		adjHistoric: comp.HistoricGPR * adj,
	}
	a.adjForecast = a.forecast * adj
	a.globalRel = GlobalRelative(a.adjCurrent, snap.adjustedLatest)
	a.historicRel = HistoricRelative(comp.CurrentGPR, comp.History, adj, comp.RecentTrend, s.RecencyWeight)
	a.raw = RawComposite(s.Weights, a.adjCurrent, a.adjHistoric, a.adjForecast, a.globalRel, a.historicRel)
	return a, nil
}

// RawComposite is the unscaled weighted blend of the adjusted components. The
// relative positions enter as multipliers of the adjusted current value.
func RawComposite(w Weights, adjCurrent, adjHistoric, adjForecast, globalRel, historicRel float64) float64 {
	return w.Current*adjCurrent +
		w.Historic*adjHistoric +
		w.GlobalRelative*(adjCurrent*globalRel) +
		w.HistoricRelative*(adjCurrent*historicRel) +
		w.Forecast*adjForecast
}

// peerProxy is the cheap stand-in for a peer's composite used as a Pass 2
// reference: only the two directly observed terms.
func peerProxy(w Weights, adjCurrent, adjHistoric float64) float64 {
	return w.Current*adjCurrent + w.Historic*adjHistoric
}

// Scale maps raw into [1, 10] against the reference set formed by raw itself and
// the peer proxies. A zero-width set yields 5.
//
// Peers contribute their two-term proxy rather than their full raw composite, so
// the reference set differs per country. This keeps final scores free of any
// dependency on other final scores.
func Scale(raw float64, peers []float64) float64 {
	lo, hi := raw, raw
	for _, v := range peers {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	if hi <= lo {
		return midScore
	}
	return 1 + 9*(raw-lo)/(hi-lo)
}
