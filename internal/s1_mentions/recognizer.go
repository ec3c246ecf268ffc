package s1_mentions

import (
	"strings"

	"github.com/jdkato/prose/v2"
	"github.com/wonny/newsquant/internal/contracts"
	"github.com/wonny/newsquant/pkg/logger"
)

// ProseRecognizer finds organization candidates with prose's POS tagger.
// Maximal runs of proper nouns become ORG entities unless prose's own
// entity model labels the same span as a person or a place.
type ProseRecognizer struct {
	logger *logger.Logger
}

// NewProseRecognizer creates a recognizer
func NewProseRecognizer(log *logger.Logger) *ProseRecognizer {
	if log == nil {
		log = logger.Nop()
	}
	return &ProseRecognizer{logger: log}
}

// Recognize implements contracts.EntityRecognizer
func (r *ProseRecognizer) Recognize(text string) []contracts.Entity {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	doc, err := prose.NewDocument(text, prose.WithSegmentation(false))
	if err != nil {
		r.logger.WithError(err).Warn("prose document failed, no entities")
		return nil
	}

	excluded := make(map[string]struct{})
	for _, ent := range doc.Entities() {
		if ent.Label == "PERSON" || ent.Label == "GPE" {
			excluded[ent.Text] = struct{}{}
		}
	}

	return properNounRuns(doc.Tokens(), excluded)
}

func isProperNoun(tag string) bool {
	return tag == "NNP" || tag == "NNPS"
}

// isJoiner reports tokens that may sit inside a company name ("AT&T", "Coca-Cola")
func isJoiner(text string) bool {
	return text == "&" || text == "-" || text == "."
}

// properNounRuns groups consecutive proper nouns into ORG entities
func properNounRuns(tokens []prose.Token, excluded map[string]struct{}) []contracts.Entity {
	var (
		entities []contracts.Entity
		run      []string
	)

	flush := func() {
		// A trailing joiner never ends a name
		for len(run) > 0 && isJoiner(run[len(run)-1]) {
			run = run[:len(run)-1]
		}
		if len(run) > 0 {
			span := strings.Join(run, " ")
			if _, skip := excluded[span]; !skip {
				entities = append(entities, contracts.Entity{Text: span, Label: contracts.EntityLabelOrg})
			}
		}
		run = run[:0]
	}

	for i, tok := range tokens {
		switch {
		case isProperNoun(tok.Tag):
			run = append(run, tok.Text)
		case len(run) > 0 && isJoiner(tok.Text) && i+1 < len(tokens) && isProperNoun(tokens[i+1].Tag):
			run = append(run, tok.Text)
		default:
			flush()
		}
	}
	flush()

	return entities
}
