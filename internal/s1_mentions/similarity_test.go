package s1_mentions

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenSortRatio(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"case only", "Apple", "apple", 100},
		{"word order", "Motor Tesla", "tesla motor", 100},
		{"extra spaces", "  Bank   of America ", "bank of america", 100},
		{"one deletion", "Aple", "Apple", 200.0 * 4 / 9},
		{"disjoint", "Microsoft", "Apple", 0},
		{"both empty", "", "", 100},
		{"one empty", "", "Apple", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, TokenSortRatio(tt.a, tt.b), 1e-9)
			assert.InDelta(t, tt.want, TokenSortRatio(tt.b, tt.a), 1e-9)
		})
	}
}

func TestLCSLength(t *testing.T) {
	assert.Equal(t, 4, lcsLength([]rune("ABCBDAB"), []rune("BDCABA")))
	assert.Equal(t, 0, lcsLength([]rune(""), []rune("abc")))
	assert.Equal(t, 3, lcsLength([]rune("abc"), []rune("abc")))
	assert.Equal(t, 2, lcsLength([]rune("société"), []rune("sé")))
}
