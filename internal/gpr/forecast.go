package gpr

// smaPeriods caps the number of trailing observations the SMA averages.
const smaPeriods = 6

// Forecast returns a one-step-ahead estimate from series (chronological order).
// An empty series returns fallback.
func Forecast(series []float64, fallback float64, method ForecastMethod, alpha float64) float64 {
	n := len(series)
	if n == 0 {
		return fallback
	}

	switch method {
	case MethodSMA:
		return mean(series[n-min(smaPeriods, n):])
	case MethodEMA:
		ema := series[0]
		for _, v := range series[1:] {
			ema = alpha*v + (1-alpha)*ema
		}
		return ema
	case MethodTrend:
		if n < 3 {
			return series[n-1]
		}
		return linearNext(series[n-3:])
	default:
		return series[n-1]
	}
}
