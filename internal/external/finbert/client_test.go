package finbert

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/newsquant/internal/contracts"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := NewClient(Config{URL: server.URL, Token: "secret", Timeout: time.Second}, nil, nil)
	require.NoError(t, err)
	c.http.DisableRetry()
	return c
}

func TestClient_Score_Nested(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Apple beats estimates", body["inputs"])

		_, _ = w.Write([]byte(`[[{"label":"positive","score":0.91},{"label":"negative","score":0.04},{"label":"neutral","score":0.05}]]`))
	})

	res, err := c.Score(context.Background(), "Apple beats estimates")
	require.NoError(t, err)
	assert.Equal(t, contracts.LabelPositive, res.Label)
	assert.Equal(t, 0.91, res.Confidence)
	assert.Equal(t, DefaultModel, c.ModelName())
}

func TestClient_Score_Flat(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"label":"Negative","score":0.7},{"label":"Neutral","score":0.3}]`))
	})

	res, err := c.Score(context.Background(), "Tesla recalls cars")
	require.NoError(t, err)
	assert.Equal(t, contracts.LabelNegative, res.Label)
	assert.Equal(t, 0.7, res.Confidence)
}

func TestClient_Score_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"error":"loading"}`},
		{"empty list", http.StatusOK, `[]`},
		{"not a list", http.StatusOK, `{"label":"positive"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := c.Score(context.Background(), "text")
			assert.Error(t, err)
		})
	}
}

func TestClient_Score_BlankText(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("blank text must not reach the endpoint")
	})

	res, err := c.Score(context.Background(), "   ")
	require.NoError(t, err)
	assert.Equal(t, contracts.LabelNeutral, res.Label)
}

func TestNewClient_RequiresURL(t *testing.T) {
	_, err := NewClient(Config{}, nil, nil)
	assert.Error(t, err)
}
