package s1_mentions

import (
	"strings"

	"github.com/wonny/newsquant/internal/contracts"
)

// Extractor produces candidate organization names from free text
// ⭐ SSOT: 기업명 후보 추출은 여기서만
type Extractor struct {
	recognizer contracts.EntityRecognizer
	normalizer *Normalizer
}

// NewExtractor creates an extractor. A nil recognizer disables NER and
// leaves only the alias scan.
func NewExtractor(recognizer contracts.EntityRecognizer, normalizer *Normalizer) *Extractor {
	if normalizer == nil {
		normalizer = NewNormalizer()
	}
	return &Extractor{recognizer: recognizer, normalizer: normalizer}
}

// Extract returns normalized ORG entities followed by every alias whose
// case-folded form occurs in the case-folded text. Only exact duplicates
// are removed; first occurrence order is kept.
func (e *Extractor) Extract(text string, aliases []string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var candidates []string
	seen := make(map[string]struct{})
	add := func(c string) {
		if c == "" {
			return
		}
		if _, ok := seen[c]; ok {
			return
		}
		seen[c] = struct{}{}
		candidates = append(candidates, c)
	}

	if e.recognizer != nil {
		for _, ent := range e.recognizer.Recognize(text) {
			if ent.Label == contracts.EntityLabelOrg {
				add(e.normalizer.Normalize(ent.Text))
			}
		}
	}

	folded := fold(text)
	for _, alias := range aliases {
		if strings.TrimSpace(alias) == "" {
			continue
		}
		if strings.Contains(folded, fold(alias)) {
			add(alias)
		}
	}

	return candidates
}
