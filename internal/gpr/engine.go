package gpr

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/gpr-cli/internal/panel"
)

// Engine runs the composite scoring pipeline.
type Engine struct {
	settings Settings
}

// NewEngine creates an Engine with the given settings.
func NewEngine(s Settings) *Engine {
	return &Engine{settings: s}
}

// Run scores every country in p. Pass 1 builds one aggregate per country in
// parallel; after all of them exist, Pass 2 scales each raw composite against
// its peers. Countries without usable data at the latest date are skipped and
// reported in Result.Skipped.
func (e *Engine) Run(ctx context.Context, p *panel.Panel) (*Result, error) {
	s := e.settings
	runID := uuid.NewString()
	log := zap.L().With(zap.String("run_id", runID))

	latest, ok := p.LatestRow()
	if !ok {
		return nil, eris.New("gpr: panel has no current observations")
	}

	profiles := DetectBias(p, s)
	snap := newSnapshot(p, s, latest, profiles)
	countries := p.Catalog(s.Exclusions)

	log.Info("gpr: scoring",
		zap.Time("latest_date", p.Date(latest)),
		zap.Int("countries", len(countries)),
		zap.String("forecast_method", string(s.Method)),
	)

	// Pass 1: each worker writes only its own slot.
	aggs := make([]*aggregate, len(countries))
	reasons := make([]error, len(countries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.Workers, 1))
	for i, c := range countries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			aggs[i], reasons[i] = snap.score(c)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "gpr: pass 1")
	}

	var scored []*aggregate
	var skipped []Skipped
	for i, a := range aggs {
		if a == nil {
			sk := Skipped{Code: countries[i].Code, Reason: reasons[i].Error()}
			skipped = append(skipped, sk)
			log.Warn("gpr: country skipped", zap.String("country", sk.Code), zap.String("reason", sk.Reason))
			continue
		}
		scored = append(scored, a)
	}

	rows, err := scaleAll(ctx, scored, s, p.Date(latest))
	if err != nil {
		return nil, err
	}

	log.Info("gpr: scoring complete",
		zap.Int("scored", len(rows)),
		zap.Int("skipped", len(skipped)),
	)

	return &Result{
		RunID:    runID,
		Date:     p.Date(latest),
		Rows:     rows,
		Profiles: profiles,
		Skipped:  skipped,
	}, nil
}

// scaleAll is Pass 2: a pure function from the complete Pass 1 collection to
// final rows sorted by composite descending.
func scaleAll(ctx context.Context, aggs []*aggregate, s Settings, date time.Time) ([]ScoreRow, error) {
	proxies := make([]float64, len(aggs))
	for i, a := range aggs {
		proxies[i] = peerProxy(s.Weights, a.adjCurrent, a.adjHistoric)
	}

	rows := make([]ScoreRow, len(aggs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.Workers, 1))
	for i, a := range aggs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			peers := make([]float64, 0, len(proxies)-1)
			peers = append(peers, proxies[:i]...)
			peers = append(peers, proxies[i+1:]...)
			rows[i] = a.row(date, Scale(a.raw, peers))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "gpr: pass 2")
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Composite > rows[j].Composite })
	return rows, nil
}

func (a *aggregate) row(date time.Time, composite float64) ScoreRow {
	return ScoreRow{
		Date:               date,
		Code:               a.country.Code,
		Country:            a.country.Name,
		Composite:          composite,
		CurrentGPR:         a.components.CurrentGPR,
		HistoricGPR:        a.components.HistoricGPR,
		AvgGPROverTime:     a.components.AvgOverTime,
		AvgGPRRest:         a.components.AvgRest,
		Forecast:           a.forecast,
		RecentTrendPct:     a.components.RecentTrend * 100,
		CoverageAdjustment: a.profile.AdjustmentFactor,
		BiasFactor:         a.profile.BiasFactor,
		AdjustmentApplied:  a.profile.Applied,
	}
}
