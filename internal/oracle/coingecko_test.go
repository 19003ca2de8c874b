package oracle

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartdevs17/bridge-relay/internal/config"
)

var testToken = common.HexToAddress("0x3333333333333333333333333333333333333333")

func newTestOracle(serverURL string) *CoinGeckoOracle {
	return NewCoinGeckoOracle(&config.OracleConfig{
		Enabled:        true,
		BaseURL:        serverURL,
		AssetID:        "ethereum",
		RequestTimeout: 2 * time.Second,
	})
}

func TestCoinGeckoPriceSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ethereum", r.URL.Query().Get("ids"))
		assert.Equal(t, "usd", r.URL.Query().Get("vs_currencies"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ethereum":{"usd":2501.42}}`))
	}))
	defer server.Close()

	price, ok := newTestOracle(server.URL).PriceUSD(context.Background(), testToken)
	require.True(t, ok)
	assert.InDelta(t, 2501.42, price, 0.001)
}

func TestCoinGeckoNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, ok := newTestOracle(server.URL).PriceUSD(context.Background(), testToken)
	assert.False(t, ok)
}

func TestCoinGeckoMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	_, ok := newTestOracle(server.URL).PriceUSD(context.Background(), testToken)
	assert.False(t, ok)
}

func TestCoinGeckoMissingAsset(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"bitcoin":{"usd":60000}}`))
	}))
	defer server.Close()

	_, ok := newTestOracle(server.URL).PriceUSD(context.Background(), testToken)
	assert.False(t, ok)
}

func TestCoinGeckoUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	_, ok := newTestOracle(server.URL).PriceUSD(context.Background(), testToken)
	assert.False(t, ok)
}

func TestStaticOracle(t *testing.T) {
	price, ok := (&StaticOracle{Price: 42, OK: true}).PriceUSD(context.Background(), testToken)
	require.True(t, ok)
	assert.Equal(t, 42.0, price)

	_, ok = (&StaticOracle{}).PriceUSD(context.Background(), testToken)
	assert.False(t, ok)
}
