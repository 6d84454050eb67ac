package gpr

// GlobalRelative min-max normalizes a country's adjusted current value against the
// adjusted current values of all countries at the same date. An empty or
// zero-width peer set yields 0.5.
func GlobalRelative(adjusted float64, peers []float64) float64 {
	if len(peers) == 0 {
		return 0.5
	}
	lo, hi := bounds(peers)
	return clamp01(minMax(adjusted, lo, hi))
}

// HistoricRelative places latest within the country's own history, both scaled by
// adj, then tilts the result by (1 + trend*recencyWeight) and clamps to [0, 1].
func HistoricRelative(latest float64, history []float64, adj, trend, recencyWeight float64) float64 {
	base := 0.5
	if len(history) > 0 {
		lo, hi := bounds(history)
		base = minMax(latest*adj, lo*adj, hi*adj)
	}
	return clamp01(base * (1 + trend*recencyWeight))
}
