package models

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EventKey is the stable identity of a logical bridge event. It survives
// re-fetches of the same block range and is the deduplication key.
type EventKey struct {
	TxHash   string `json:"tx_hash"`
	LogIndex uint   `json:"log_index"`
}

func (k EventKey) String() string {
	return fmt.Sprintf("%s-%d", k.TxHash, k.LogIndex)
}

// TransferEvent is a TokensLocked event as fetched from the source chain,
// immutable once parsed.
type TransferEvent struct {
	BlockNumber uint64         `json:"block_number"`
	BlockHash   string         `json:"block_hash"`
	TxHash      string         `json:"tx_hash"`
	LogIndex    uint           `json:"log_index"`
	Sender      common.Address `json:"sender"`
	Recipient   common.Address `json:"recipient"`
	Token       common.Address `json:"token"`
	Amount      *big.Int       `json:"amount"`
	DestChainID *big.Int       `json:"destination_chain_id"`
	Nonce       *big.Int       `json:"nonce"`
}

// Key returns the dedup key for the event.
func (e *TransferEvent) Key() EventKey {
	return EventKey{TxHash: e.TxHash, LogIndex: e.LogIndex}
}

// ValidatedEvent is a TransferEvent that passed field validation, optionally
// enriched with a fiat estimate. Enrichment is best-effort and may be absent.
type ValidatedEvent struct {
	TransferEvent
	AmountUSDEstimate *float64  `json:"amount_usd_estimate,omitempty"`
	ValidatedAt       time.Time `json:"validated_at"`
}

// FailedDispatch records an event whose downstream dispatch failed after the
// checkpoint moved past its block. Kept for manual replay.
type FailedDispatch struct {
	ID          int64     `json:"id" db:"id"`
	EventKey    string    `json:"event_key" db:"event_key"`
	BlockNumber uint64    `json:"block_number" db:"block_number"`
	Reason      string    `json:"reason" db:"reason"`
	FailedAt    time.Time `json:"failed_at" db:"failed_at"`
}
