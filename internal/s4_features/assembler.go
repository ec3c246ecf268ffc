package s4_features

import (
	"math"
	"sort"

	"github.com/wonny/newsquant/internal/contracts"
	"github.com/wonny/newsquant/pkg/logger"
)

// NeutralSentiment is the value a missing sentiment signal becomes after the join
const NeutralSentiment = 0.0

// Skip reasons reported by the assembler
const (
	SkipMissingTicker  = "missing_ticker"
	SkipMissingDate    = "missing_date"
	SkipZeroClose      = "zero_close"
	SkipInvalidClose   = "invalid_close"
	SkipDuplicateRow   = "duplicate_row"
	SkipMetricMismatch = "metric_price_mismatch"
)

// JoinedRow is a price+indicator row after the sentiment left join.
// Sentiment is nil when the mapping had no entry for (ticker, date).
type JoinedRow struct {
	contracts.PriceWithMetrics
	Sentiment *float64
}

// HasSentiment reports whether the join found a measured score
func (r JoinedRow) HasSentiment() bool {
	return r.Sentiment != nil
}

// AssembleReport accounts for each drop policy separately
type AssembleReport struct {
	Input            int                  `json:"input"`
	Rows             int                  `json:"rows"`
	Groups           int                  `json:"groups"`
	HorizonDropped   int                  `json:"horizon_dropped"`
	ShortGroups      int                  `json:"short_groups"`
	SentimentMatched int                  `json:"sentiment_matched"`
	SentimentFilled  int                  `json:"sentiment_filled"`
	Skips            contracts.SkipReport `json:"skips"`
}

// Assembler builds the labelled feature matrix
// ⭐ SSOT: 라벨(next_day_return) 계산은 여기서만
type Assembler struct {
	logger *logger.Logger
}

// NewAssembler creates an assembler
func NewAssembler(log *logger.Logger) *Assembler {
	if log == nil {
		log = logger.Nop()
	}
	return &Assembler{logger: log.WithStage(contracts.StageFeatures)}
}

// Assemble runs join → neutral fill → next-day label → horizon drop.
// Output is ordered by ticker, then date ascending.
func (a *Assembler) Assemble(rows []contracts.PriceWithMetrics, sentiment map[contracts.SentimentKey]float64) ([]contracts.FeatureRow, AssembleReport) {
	report := AssembleReport{
		Input: len(rows),
		Skips: contracts.NewSkipReport(contracts.StageFeatures),
	}

	valid := a.validRows(rows, &report.Skips)
	joined := Join(valid, sentiment)
	for _, r := range joined {
		if r.HasSentiment() {
			report.SentimentMatched++
		} else {
			report.SentimentFilled++
		}
	}

	filled := FillNeutral(joined)

	groups, order := partition(filled)
	report.Groups = len(order)

	var out []contracts.FeatureRow
	for _, ticker := range order {
		group := groups[ticker]
		if len(group) < 2 {
			report.ShortGroups++
			report.HorizonDropped += len(group)
			a.logger.WithField("ticker", ticker).Debug("Not enough rows for a next-day label")
			continue
		}
		labelled := Label(group)
		report.HorizonDropped += len(group) - len(labelled)
		out = append(out, labelled...)
	}
	report.Rows = len(out)

	if !report.Skips.Empty() {
		a.logger.WithFields(map[string]interface{}{
			"skipped": report.Skips.Count,
			"reasons": report.Skips.String(),
		}).Warn("Skipped malformed price rows")
	}
	a.logger.WithFields(map[string]interface{}{
		"input":             report.Input,
		"rows":              report.Rows,
		"groups":            report.Groups,
		"horizon_dropped":   report.HorizonDropped,
		"short_groups":      report.ShortGroups,
		"sentiment_matched": report.SentimentMatched,
		"sentiment_filled":  report.SentimentFilled,
	}).Info("Assembled feature matrix")

	return out, report
}

func (a *Assembler) validRows(rows []contracts.PriceWithMetrics, skips *contracts.SkipReport) []contracts.PriceWithMetrics {
	seen := make(map[contracts.TickerDate]struct{}, len(rows))
	out := make([]contracts.PriceWithMetrics, 0, len(rows))

	for _, r := range rows {
		switch {
		case r.Ticker == "":
			skips.Add(SkipMissingTicker)
			continue
		case r.Date.IsZero():
			skips.Add(SkipMissingDate)
			continue
		case r.Close == 0:
			skips.Add(SkipZeroClose)
			continue
		case math.IsNaN(r.Close) || math.IsInf(r.Close, 0) || r.Close < 0:
			skips.Add(SkipInvalidClose)
			continue
		case r.Metrics.AssetPriceID != 0 && r.Metrics.AssetPriceID != r.PriceID:
			skips.Add(SkipMetricMismatch)
			continue
		}

		key := contracts.NewTickerDate(r.Ticker, r.Date)
		if _, dup := seen[key]; dup {
			skips.Add(SkipDuplicateRow)
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}

// JoinMetrics inner-joins bars to their indicators by price_id.
// Bars without metrics are excluded.
func JoinMetrics(bars []contracts.PriceBar, metrics []contracts.TechnicalMetrics) []contracts.PriceWithMetrics {
	byID := make(map[int64]contracts.TechnicalMetrics, len(metrics))
	for _, m := range metrics {
		byID[m.AssetPriceID] = m
	}

	out := make([]contracts.PriceWithMetrics, 0, len(metrics))
	for _, b := range bars {
		m, ok := byID[b.PriceID]
		if !ok {
			continue
		}
		out = append(out, contracts.PriceWithMetrics{PriceBar: b, Metrics: m})
	}
	return out
}

// Join left-joins rows to the sentiment mapping on (ticker, date).
// Missing keys stay nil; no value is substituted here.
func Join(rows []contracts.PriceWithMetrics, sentiment map[contracts.SentimentKey]float64) []JoinedRow {
	out := make([]JoinedRow, len(rows))
	for i, r := range rows {
		out[i] = JoinedRow{PriceWithMetrics: r}
		if score, ok := sentiment[contracts.NewSentimentKey(r.Ticker, r.Date)]; ok {
			s := score
			out[i].Sentiment = &s
		}
	}
	return out
}

// FillNeutral turns joined rows into unlabelled feature rows, replacing an
// absent sentiment with NeutralSentiment.
func FillNeutral(rows []JoinedRow) []contracts.FeatureRow {
	out := make([]contracts.FeatureRow, len(rows))
	for i, r := range rows {
		score := NeutralSentiment
		if r.Sentiment != nil {
			score = *r.Sentiment
		}
		m := r.Metrics
		out[i] = contracts.FeatureRow{
			Ticker:         r.Ticker,
			Date:           contracts.DateOf(r.Date),
			PriceID:        r.PriceID,
			Open:           r.Open,
			Close:          r.Close,
			High:           r.High,
			Low:            r.Low,
			Volume:         r.Volume,
			SMA10:          m.SMA10,
			SMA20:          m.SMA20,
			EMA10:          m.EMA10,
			EMA20:          m.EMA20,
			RSI14:          m.RSI14,
			DailyReturn:    m.DailyReturn,
			VolumeSMA10:    m.VolumeSMA10,
			SentimentScore: score,
		}
	}
	return out
}

// Label computes the next-day return over the following row of one
// ticker's date-ordered rows and drops the last row, whose label is undefined.
func Label(group []contracts.FeatureRow) []contracts.FeatureRow {
	if len(group) < 2 {
		return nil
	}
	out := make([]contracts.FeatureRow, 0, len(group)-1)
	for t := 0; t < len(group)-1; t++ {
		row := group[t]
		next := group[t+1].Close
		row.NextDayReturn = (next - row.Close) / row.Close
		row.NextDayUp = row.NextDayReturn > 0
		row.LabelValid = true
		out = append(out, row)
	}
	return out
}

// partition groups rows by ticker, each group sorted by date, tickers sorted
func partition(rows []contracts.FeatureRow) (map[string][]contracts.FeatureRow, []string) {
	groups := make(map[string][]contracts.FeatureRow)
	for _, r := range rows {
		groups[r.Ticker] = append(groups[r.Ticker], r)
	}

	order := make([]string, 0, len(groups))
	for ticker, group := range groups {
		sort.SliceStable(group, func(i, j int) bool { return group[i].Date.Before(group[j].Date) })
		order = append(order, ticker)
	}
	sort.Strings(order)
	return groups, order
}
