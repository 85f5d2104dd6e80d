package valuation

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homeworth/server/config"
	"homeworth/server/internal/source"
)

const testEndpoint = "https://valuation.test/v1/properties"

func setupClient(t *testing.T) *Client {
	t.Helper()
	c := NewClient(config.ValuationConfig{
		BaseURL: "https://valuation.test/v1/",
		APIKey:  "secret",
		Timeout: 5 * time.Second,
	}, nil)
	httpmock.ActivateNonDefault(c.http.GetClient())
	t.Cleanup(httpmock.DeactivateAndReset)
	return c
}

func TestFetchResponseShapes(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
		wantKey string
	}{
		{name: "top-level array", body: `[{"formattedAddress":"1 Main St","price":410000}]`, wantKey: "formattedAddress"},
		{name: "results wrapper", body: `{"results":[{"address":"1 Main St"}]}`, wantKey: "address"},
		{name: "properties wrapper", body: `{"properties":[{"address":"1 Main St"}]}`, wantKey: "address"},
		{name: "single object", body: `{"address":"1 Main St","estimated_value":1}`, wantKey: "estimated_value"},
		{name: "empty array", body: `[]`, wantErr: source.ErrEmpty},
		{name: "empty wrapper", body: `{"results":[]}`, wantErr: source.ErrEmpty},
		{name: "empty object", body: `{}`, wantErr: source.ErrEmpty},
		{name: "null wrapper", body: `{"results":null,"count":0}`, wantErr: source.ErrEmpty},
		{name: "non-array wrapper", body: `{"properties":{"address":"1 Main St"}}`, wantErr: source.ErrEmpty},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := setupClient(t)
			httpmock.RegisterResponder(http.MethodGet, testEndpoint,
				httpmock.NewStringResponder(http.StatusOK, tt.body))

			payload, err := c.Fetch(context.Background(), "1 Main St")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, payload, tt.wantKey)
			assert.Equal(t, 1, httpmock.GetTotalCallCount())
		})
	}
}

func TestFetchSendsAddressAndKey(t *testing.T) {
	c := setupClient(t)
	httpmock.RegisterResponder(http.MethodGet, testEndpoint,
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "secret", req.Header.Get("X-Api-Key"))
			assert.Equal(t, "5 Oak Ave, Austin, TX", req.URL.Query().Get("address"))
			return httpmock.NewStringResponse(http.StatusOK, `[{"price": 1}]`), nil
		})

	_, err := c.Fetch(context.Background(), "5 Oak Ave, Austin, TX")
	require.NoError(t, err)
}

func TestFetchErrors(t *testing.T) {
	tests := []struct {
		name      string
		responder httpmock.Responder
		contains  string
	}{
		{
			name:      "server error",
			responder: httpmock.NewStringResponder(http.StatusInternalServerError, "boom"),
			contains:  "500",
		},
		{
			name:      "not found status",
			responder: httpmock.NewStringResponder(http.StatusNotFound, "missing"),
			contains:  "404",
		},
		{
			name:      "malformed body",
			responder: httpmock.NewStringResponder(http.StatusOK, "<html>"),
			contains:  "decode",
		},
		{
			name:      "transport error",
			responder: httpmock.NewErrorResponder(assert.AnError),
			contains:  "failed to call valuation api",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := setupClient(t)
			httpmock.RegisterResponder(http.MethodGet, testEndpoint, tt.responder)

			_, err := c.Fetch(context.Background(), "1 Main St")
			require.Error(t, err)
			assert.NotErrorIs(t, err, source.ErrEmpty)
			assert.Contains(t, err.Error(), tt.contains)
			assert.Equal(t, 1, httpmock.GetTotalCallCount(), "no retries")
		})
	}
}

func TestDemoClient(t *testing.T) {
	d := NewDemoClient(42)
	assert.Equal(t, source.KindValuation, d.Kind())

	payload, err := d.Fetch(context.Background(), "1 Main St")
	require.NoError(t, err)
	assert.Equal(t, "1 Main St", payload["address"])
	assert.Equal(t, "USD", payload["currency"])
	value, ok := payload["estimated_value"].(int)
	require.True(t, ok)
	assert.GreaterOrEqual(t, value, 100000)
	assert.LessOrEqual(t, value, 1000000)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = d.Fetch(ctx, "1 Main St")
	assert.ErrorIs(t, err, context.Canceled)
}
