// File: internal/reconciler/parser.go
package reconciler

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/smartdevs17/bridge-relay/internal/models"
	"github.com/smartdevs17/bridge-relay/pkg/utils"
)

// TokensLockedABI is the fragment of the bridge contract ABI this relay
// listens to.
const TokensLockedABI = `[{
	"anonymous": false,
	"inputs": [
		{"indexed": true, "internalType": "address", "name": "sender", "type": "address"},
		{"indexed": true, "internalType": "address", "name": "recipient", "type": "address"},
		{"indexed": true, "internalType": "address", "name": "token", "type": "address"},
		{"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"},
		{"indexed": false, "internalType": "uint256", "name": "destinationChainId", "type": "uint256"},
		{"indexed": false, "internalType": "uint256", "name": "nonce", "type": "uint256"}
	],
	"name": "TokensLocked",
	"type": "event"
}]`

// EventName is the bridge event the relay reconciles.
const EventName = "TokensLocked"

// EventParser decodes TokensLocked logs into transfer events.
type EventParser struct {
	abi     abi.ABI
	event   abi.Event
	eventID common.Hash
}

// NewEventParser creates a parser for the TokensLocked event.
func NewEventParser() (*EventParser, error) {
	parsed, err := abi.JSON(strings.NewReader(TokensLockedABI))
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeConfiguration, "Failed to parse bridge ABI", err.Error())
	}

	event, ok := parsed.Events[EventName]
	if !ok {
		return nil, utils.NewAppError(utils.ErrCodeConfiguration, "Bridge ABI missing TokensLocked event")
	}

	return &EventParser{
		abi:     parsed,
		event:   event,
		eventID: utils.GetEventSignature(event.Sig),
	}, nil
}

// EventID returns the topic hash of the TokensLocked event.
func (p *EventParser) EventID() common.Hash {
	return p.eventID
}

// ParseLog decodes a raw log into a TransferEvent. Logs for other events or
// with a malformed topic layout yield a validation error for that log only.
func (p *EventParser) ParseLog(log types.Log) (*models.TransferEvent, error) {
	if len(log.Topics) == 0 || log.Topics[0] != p.eventID {
		return nil, utils.NewAppError(utils.ErrCodeValidation, "Log is not a TokensLocked event",
			log.TxHash.Hex())
	}
	// Signature topic plus three indexed address topics
	if len(log.Topics) != 4 {
		return nil, utils.NewAppError(utils.ErrCodeValidation, "Unexpected topic count for TokensLocked",
			log.TxHash.Hex())
	}

	event := &models.TransferEvent{
		BlockNumber: log.BlockNumber,
		BlockHash:   log.BlockHash.Hex(),
		TxHash:      log.TxHash.Hex(),
		LogIndex:    uint(log.Index),
		Sender:      common.BytesToAddress(log.Topics[1].Bytes()),
		Recipient:   common.BytesToAddress(log.Topics[2].Bytes()),
		Token:       common.BytesToAddress(log.Topics[3].Bytes()),
	}

	values, err := p.event.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeValidation, "Failed to unpack event data", err.Error())
	}
	if len(values) != 3 {
		return nil, utils.NewAppError(utils.ErrCodeValidation, "Unexpected data field count for TokensLocked",
			log.TxHash.Hex())
	}

	var ok bool
	if event.Amount, ok = values[0].(*big.Int); !ok {
		return nil, utils.NewAppError(utils.ErrCodeValidation, "amount is not uint256", log.TxHash.Hex())
	}
	if event.DestChainID, ok = values[1].(*big.Int); !ok {
		return nil, utils.NewAppError(utils.ErrCodeValidation, "destinationChainId is not uint256", log.TxHash.Hex())
	}
	if event.Nonce, ok = values[2].(*big.Int); !ok {
		return nil, utils.NewAppError(utils.ErrCodeValidation, "nonce is not uint256", log.TxHash.Hex())
	}

	return event, nil
}
