package contracts

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Pipeline stage definitions (SSOT)
// Every log line, metric label and stored run record uses these constants.
//
// Flow:
//   S0 → S1 → S2 → S3 → S4 → S5
//   Prices  Mentions  Sentiment  Technical  Features  Sequences

// Stage represents a pipeline stage
type Stage string

const (
	// StagePrices S0: daily OHLCV ingestion
	// Location: internal/external/yahoo, internal/s0_data
	StagePrices Stage = "S0_PRICES"

	// StageMentions S1: entity resolution of news articles into ticker mentions
	// Location: internal/s1_mentions/
	StageMentions Stage = "S1_MENTIONS"

	// StageSentiment S2: scoring of mentions (observations are appended)
	// Location: internal/s2_sentiment/
	StageSentiment Stage = "S2_SENTIMENT"

	// StageTechnical S3: technical indicators per price bar
	// Location: internal/s3_technical/
	StageTechnical Stage = "S3_TECHNICAL"

	// StageFeatures S4: price + indicator + sentiment join with next-day labels
	// Location: internal/s4_features/
	StageFeatures Stage = "S4_FEATURES"

	// StageSequences S5: windowing and chronological train/validation/test split
	// Location: internal/s5_sequences/
	StageSequences Stage = "S5_SEQUENCES"
)

// ErrNoData marks a stage that ended normally without producing anything
var ErrNoData = errors.New("no data produced")

// String returns the stage name
func (s Stage) String() string {
	return string(s)
}

// ShortName returns abbreviated stage name (e.g., "S0", "S1")
func (s Stage) ShortName() string {
	switch s {
	case StagePrices:
		return "S0"
	case StageMentions:
		return "S1"
	case StageSentiment:
		return "S2"
	case StageTechnical:
		return "S3"
	case StageFeatures:
		return "S4"
	case StageSequences:
		return "S5"
	default:
		return "UNKNOWN"
	}
}

// Description returns a human-readable description of the stage
func (s Stage) Description() string {
	switch s {
	case StagePrices:
		return "price ingestion"
	case StageMentions:
		return "news entity resolution"
	case StageSentiment:
		return "mention sentiment scoring"
	case StageTechnical:
		return "technical indicators"
	case StageFeatures:
		return "feature matrix"
	case StageSequences:
		return "sequence windows and split"
	default:
		return "unknown"
	}
}

// Upstream returns the stages whose output this stage consumes.
// An upstream stage that produced nothing short-circuits this one.
func (s Stage) Upstream() []Stage {
	switch s {
	case StageSentiment:
		return []Stage{StageMentions}
	case StageTechnical:
		return []Stage{StagePrices}
	case StageFeatures:
		return []Stage{StageTechnical}
	case StageSequences:
		return []Stage{StageFeatures}
	default:
		return nil
	}
}

// AllStages returns all pipeline stages in order
func AllStages() []Stage {
	return []Stage{
		StagePrices,
		StageMentions,
		StageSentiment,
		StageTechnical,
		StageFeatures,
		StageSequences,
	}
}

// IsValidStage checks if a stage string is valid
func IsValidStage(s string) bool {
	for _, stage := range AllStages() {
		if string(stage) == s {
			return true
		}
	}
	return false
}

// ParseStage accepts either the full name ("S3_TECHNICAL") or a short alias ("technical", "s3")
func ParseStage(s string) (Stage, error) {
	needle := strings.ToUpper(strings.TrimSpace(s))
	for _, stage := range AllStages() {
		name := string(stage)
		if needle == name || needle == stage.ShortName() || needle == name[strings.Index(name, "_")+1:] {
			return stage, nil
		}
	}
	return "", fmt.Errorf("unknown stage %q", s)
}

// SkipReport counts records dropped because of shape problems, with reasons
type SkipReport struct {
	Stage   Stage          `json:"stage"`
	Count   int            `json:"count"`
	Reasons map[string]int `json:"reasons,omitempty"`
}

// NewSkipReport creates an empty report for a stage
func NewSkipReport(stage Stage) SkipReport {
	return SkipReport{Stage: stage, Reasons: make(map[string]int)}
}

// Add records one skipped record
func (r *SkipReport) Add(reason string) {
	if r.Reasons == nil {
		r.Reasons = make(map[string]int)
	}
	r.Count++
	r.Reasons[reason]++
}

// Merge folds another report into this one
func (r *SkipReport) Merge(other SkipReport) {
	for reason, n := range other.Reasons {
		if r.Reasons == nil {
			r.Reasons = make(map[string]int)
		}
		r.Reasons[reason] += n
	}
	r.Count += other.Count
}

// Empty reports whether nothing was skipped
func (r SkipReport) Empty() bool {
	return r.Count == 0
}

// String renders reasons in a stable order, e.g. "missing_title=2, zero_close=1"
func (r SkipReport) String() string {
	if r.Count == 0 {
		return "none"
	}
	reasons := make([]string, 0, len(r.Reasons))
	for reason := range r.Reasons {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	parts := make([]string, len(reasons))
	for i, reason := range reasons {
		parts[i] = fmt.Sprintf("%s=%d", reason, r.Reasons[reason])
	}
	return strings.Join(parts, ", ")
}

// PipelineResult represents the result of a pipeline stage execution
type PipelineResult struct {
	Stage       Stage                  `json:"stage"`
	Success     bool                   `json:"success"`
	Skipped     bool                   `json:"skipped"`
	NoData      bool                   `json:"no_data"`
	InputCount  int                    `json:"input_count"`
	OutputCount int                    `json:"output_count"`
	Stored      int                    `json:"stored"`
	Duration    int64                  `json:"duration_ms"`
	Error       string                 `json:"error,omitempty"`
	Skips       SkipReport             `json:"skips"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}
