package aliases

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
assets:
  - ticker: AAPL
    name: Apple Inc
    pseudonym: Apple
  - ticker: TSLA
    name: Tesla Inc
    aliases: [Tesla, TSLA]
`

func TestDecode(t *testing.T) {
	f, err := Decode([]byte(sampleYAML))
	require.NoError(t, err)
	require.Len(t, f.Assets, 2)

	set := f.AliasSet()
	assert.Len(t, set, 5)
	assert.Equal(t, "AAPL", set["Apple"])
	assert.Equal(t, "AAPL", set["Apple Inc"])
	assert.Equal(t, "TSLA", set["TSLA"])
	assert.Equal(t, []string{"AAPL", "TSLA"}, set.Tickers())
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown field", "assets:\n  - ticker: AAPL\n    name: Apple\n    sector: tech\n"},
		{"missing ticker", "assets:\n  - name: Apple\n"},
		{"missing name", "assets:\n  - ticker: AAPL\n"},
		{"conflicting alias", "assets:\n  - ticker: A\n    name: Alpha\n  - ticker: B\n    name: Beta\n    aliases: [Alpha]\n"},
		{"not yaml", "assets: [unclosed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestHash_Stable(t *testing.T) {
	f, err := Decode([]byte(sampleYAML))
	require.NoError(t, err)

	a := Hash(f.AliasSet())
	b := Hash(f.AliasSet())
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	set := f.AliasSet()
	set["Apple"] = "APPL"
	assert.NotEqual(t, a, Hash(set))
}

func TestSource_LoadAliases(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aliases.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	set, err := NewSource(path).LoadAliases(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "TSLA", set["Tesla"])

	_, err = NewSource(filepath.Join(t.TempDir(), "missing.yaml")).LoadAliases(context.Background())
	assert.Error(t, err)
}
