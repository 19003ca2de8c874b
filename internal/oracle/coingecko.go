// File: internal/oracle/coingecko.go
package oracle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/smartdevs17/bridge-relay/internal/config"
	"github.com/smartdevs17/bridge-relay/pkg/utils"
)

// CoinGeckoOracle fetches token prices from the CoinGecko simple price API.
// Token addresses are mapped to a single configured asset id; a per-token
// mapping would need a registry the bridge contract does not expose.
type CoinGeckoOracle struct {
	config     *config.OracleConfig
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewCoinGeckoOracle creates a new CoinGecko-backed oracle
func NewCoinGeckoOracle(cfg *config.OracleConfig) *CoinGeckoOracle {
	return &CoinGeckoOracle{
		config: cfg,
		logger: utils.GetLogger(),
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     30 * time.Second,
			},
		},
	}
}

// PriceUSD fetches the USD price for the token. Any failure, timeout, or
// missing field yields (0, false); callers proceed without enrichment.
func (o *CoinGeckoOracle) PriceUSD(ctx context.Context, token common.Address) (float64, bool) {
	params := url.Values{}
	params.Set("ids", o.config.AssetID)
	params.Set("vs_currencies", "usd")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.config.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		o.logger.Warn("Failed to build price request", "token", token.Hex(), "error", err)
		return 0, false
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		o.logger.Warn("Could not fetch token price", "token", token.Hex(), "error", err)
		return 0, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		o.logger.Warn("Price API returned non-OK status", "token", token.Hex(), "status", resp.StatusCode)
		return 0, false
	}

	var payload map[string]map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		o.logger.Warn("Failed to decode price response", "token", token.Hex(), "error", err)
		return 0, false
	}

	price, ok := payload[o.config.AssetID]["usd"]
	if !ok {
		return 0, false
	}
	return price, true
}
