package aliases

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wonny/newsquant/internal/contracts"
)

// Asset is one tracked company in the alias file
type Asset struct {
	Ticker    string   `yaml:"ticker" json:"ticker"`
	Name      string   `yaml:"name" json:"name"`
	Pseudonym string   `yaml:"pseudonym,omitempty" json:"pseudonym,omitempty"`
	Aliases   []string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
}

// File is the alias file layout
//
//	assets:
//	  - ticker: AAPL
//	    name: Apple Inc
//	    pseudonym: Apple
type File struct {
	Assets []Asset `yaml:"assets" json:"assets"`
}

// Decode parses alias YAML
// KnownFields(true)로 오타 필드는 즉시 실패
func Decode(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to decode alias file: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks tickers and that no alias points at two tickers
func (f *File) Validate() error {
	owner := make(map[string]string)
	for i, a := range f.Assets {
		if strings.TrimSpace(a.Ticker) == "" {
			return fmt.Errorf("assets[%d]: ticker is required", i)
		}
		if strings.TrimSpace(a.Name) == "" {
			return fmt.Errorf("assets[%d] (%s): name is required", i, a.Ticker)
		}
		for _, alias := range a.names() {
			if prev, ok := owner[alias]; ok && prev != a.Ticker {
				return fmt.Errorf("alias %q maps to both %s and %s", alias, prev, a.Ticker)
			}
			owner[alias] = a.Ticker
		}
	}
	return nil
}

func (a Asset) names() []string {
	names := []string{strings.TrimSpace(a.Name)}
	if p := strings.TrimSpace(a.Pseudonym); p != "" {
		names = append(names, p)
	}
	for _, alias := range a.Aliases {
		if alias = strings.TrimSpace(alias); alias != "" {
			names = append(names, alias)
		}
	}
	return names
}

// AliasSet flattens name, pseudonym and extra aliases to alias → ticker
func (f *File) AliasSet() contracts.AliasSet {
	set := make(contracts.AliasSet)
	for _, a := range f.Assets {
		for _, alias := range a.names() {
			set[alias] = strings.TrimSpace(a.Ticker)
		}
	}
	return set
}

// Hash fingerprints an alias set so runs can record which set they used
func Hash(set contracts.AliasSet) string {
	type pair struct {
		Alias  string `json:"a"`
		Ticker string `json:"t"`
	}
	pairs := make([]pair, 0, len(set))
	for _, alias := range set.Aliases() {
		pairs = append(pairs, pair{Alias: alias, Ticker: set[alias]})
	}

	data, _ := json.Marshal(pairs)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Source loads the alias set from a YAML file on every call
type Source struct {
	path string
}

// NewSource creates a file-backed alias source
func NewSource(path string) *Source {
	return &Source{path: path}
}

// LoadAliases re-reads the file so edits apply on the next run
func (s *Source) LoadAliases(ctx context.Context) (contracts.AliasSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read alias file: %w", err)
	}
	f, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return f.AliasSet(), nil
}
