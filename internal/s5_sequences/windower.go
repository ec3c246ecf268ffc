package s5_sequences

import (
	"fmt"
	"sort"

	"github.com/wonny/newsquant/internal/contracts"
)

// DefaultSequenceLength is the window length L
const DefaultSequenceLength = 10

// LabelColumn is the target each window predicts
const LabelColumn = "next_day_up"

// column extracts one numeric feature from a row
type column func(r contracts.FeatureRow) float64

// ⭐ SSOT: 학습 피처 컬럼 정의는 여기서만
var columns = map[string]column{
	"open":            func(r contracts.FeatureRow) float64 { return r.Open },
	"close":           func(r contracts.FeatureRow) float64 { return r.Close },
	"high":            func(r contracts.FeatureRow) float64 { return r.High },
	"low":             func(r contracts.FeatureRow) float64 { return r.Low },
	"volume":          func(r contracts.FeatureRow) float64 { return float64(r.Volume) },
	"sma_10":          func(r contracts.FeatureRow) float64 { return r.SMA10 },
	"sma_20":          func(r contracts.FeatureRow) float64 { return r.SMA20 },
	"ema_10":          func(r contracts.FeatureRow) float64 { return r.EMA10 },
	"ema_20":          func(r contracts.FeatureRow) float64 { return r.EMA20 },
	"rsi_14":          func(r contracts.FeatureRow) float64 { return r.RSI14 },
	"daily_return":    func(r contracts.FeatureRow) float64 { return r.DailyReturn },
	"volume_sma_10":   func(r contracts.FeatureRow) float64 { return r.VolumeSMA10 },
	"sentiment_score": func(r contracts.FeatureRow) float64 { return r.SentimentScore },
	"next_day_return": func(r contracts.FeatureRow) float64 { return r.NextDayReturn },
}

// DefaultColumns is the training feature set, in tensor order
func DefaultColumns() []string {
	return []string{
		"open", "close", "high", "low", "volume",
		"sma_10", "sma_20", "ema_10", "ema_20", "rsi_14",
		"daily_return", "volume_sma_10", "sentiment_score",
	}
}

// KnownColumns lists every column a window may use
func KnownColumns() []string {
	names := make([]string, 0, len(columns))
	for name := range columns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Windower cuts per-ticker feature rows into fixed-length sequences
type Windower struct {
	Length  int
	Columns []string
}

// NewWindower creates a windower with the default column set when columns is empty
func NewWindower(length int, cols []string) (*Windower, error) {
	if len(cols) == 0 {
		cols = DefaultColumns()
	}
	w := &Windower{Length: length, Columns: cols}
	if _, err := w.extractors(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Windower) extractors() ([]column, error) {
	if w.Length < 1 {
		return nil, fmt.Errorf("sequence length must be positive, got %d", w.Length)
	}
	if len(w.Columns) == 0 {
		return nil, fmt.Errorf("no feature columns")
	}
	out := make([]column, len(w.Columns))
	for i, name := range w.Columns {
		fn, ok := columns[name]
		if !ok {
			return nil, fmt.Errorf("unknown feature column %q", name)
		}
		out[i] = fn
	}
	return out, nil
}

// Build emits, for each ticker, one window per start index i in
// [0, n-L-1]: inputs are rows [i, i+L) and the label is row i+L's
// next_day_up. Tickers keep their order of first appearance; rows
// within a ticker are ordered by date. Windows never span tickers.
func (w *Windower) Build(rows []contracts.FeatureRow) ([]contracts.Sequence, error) {
	extract, err := w.extractors()
	if err != nil {
		return nil, err
	}

	groups, order := partition(rows)

	var out []contracts.Sequence
	for _, ticker := range order {
		group := groups[ticker]
		for i := 0; i+w.Length < len(group); i++ {
			inputs := make([][]float64, w.Length)
			for j := 0; j < w.Length; j++ {
				vec := make([]float64, len(extract))
				for k, fn := range extract {
					vec[k] = fn(group[i+j])
				}
				inputs[j] = vec
			}

			target := group[i+w.Length]
			label := 0.0
			if target.NextDayUp {
				label = 1
			}
			out = append(out, contracts.Sequence{
				Ticker:    ticker,
				Start:     i,
				Inputs:    inputs,
				Label:     label,
				LabelDate: target.Date,
			})
		}
	}
	return out, nil
}

func partition(rows []contracts.FeatureRow) (map[string][]contracts.FeatureRow, []string) {
	groups := make(map[string][]contracts.FeatureRow)
	var order []string
	for _, r := range rows {
		if _, ok := groups[r.Ticker]; !ok {
			order = append(order, r.Ticker)
		}
		groups[r.Ticker] = append(groups[r.Ticker], r)
	}
	for _, group := range groups {
		sort.SliceStable(group, func(i, j int) bool { return group[i].Date.Before(group[j].Date) })
	}
	return groups, order
}
