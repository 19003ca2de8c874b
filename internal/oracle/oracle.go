// File: internal/oracle/oracle.go
package oracle

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// PriceOracle answers best-effort fiat price queries for tokens. An oracle is
// never load-bearing: a missing answer means the event is processed without
// enrichment, it is not an error.
type PriceOracle interface {
	PriceUSD(ctx context.Context, token common.Address) (float64, bool)
}

// StaticOracle returns a fixed price for every token. Used in tests and as a
// stand-in when no external oracle is configured.
type StaticOracle struct {
	Price float64
	OK    bool
}

// PriceUSD returns the configured price.
func (s *StaticOracle) PriceUSD(ctx context.Context, token common.Address) (float64, bool) {
	return s.Price, s.OK
}
