// File: internal/reconciler/validator.go
package reconciler

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/smartdevs17/bridge-relay/internal/models"
	"github.com/smartdevs17/bridge-relay/pkg/utils"
)

var zeroAddress = common.Address{}

// ValidateEvent checks that every required field of the event is present and
// non-zero. A failure is final for that event: the same log re-fetched later
// can never become valid, so validation failures never block the checkpoint.
func ValidateEvent(e *models.TransferEvent) error {
	if e.TxHash == "" {
		return utils.NewAppError(utils.ErrCodeValidation, "Event missing transaction hash")
	}
	if e.Sender == zeroAddress {
		return utils.NewAppError(utils.ErrCodeValidation, "Event missing sender", e.Key().String())
	}
	if e.Recipient == zeroAddress {
		return utils.NewAppError(utils.ErrCodeValidation, "Event missing recipient", e.Key().String())
	}
	if e.Token == zeroAddress {
		return utils.NewAppError(utils.ErrCodeValidation, "Event missing token", e.Key().String())
	}
	if isZero(e.Amount) {
		return utils.NewAppError(utils.ErrCodeValidation, "Event missing amount", e.Key().String())
	}
	if isZero(e.DestChainID) {
		return utils.NewAppError(utils.ErrCodeValidation, "Event missing destination chain id", e.Key().String())
	}
	if isZero(e.Nonce) {
		return utils.NewAppError(utils.ErrCodeValidation, "Event missing nonce", e.Key().String())
	}
	return nil
}

func isZero(v *big.Int) bool {
	return v == nil || v.Sign() == 0
}
