package chain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/attnroulette/betledger/internal/domain"
)

// Wallet and RPC providers disagree wildly on error shapes, so classification
// is done by substring matching against the message, the same way the
// user-facing layer always has.

var userRejectedPatterns = []string{
	"user rejected",
	"user denied",
}

var insufficientFundsPatterns = []string{
	"insufficient funds",
	"insufficient balance",
}

var revertedPatterns = []string{
	"execution reverted",
	"nonce too low",
	"gas required exceeds",
	"transaction failed",
}

// benignPatterns are transport-level noise from the RPC connection that says
// nothing about the transaction's actual outcome. These are suppressed from
// user-facing alerting but still logged.
var benignPatterns = []string{
	"connection reset by peer",
	"broken pipe",
	"websocket: close",
	"too many requests",
	"unexpected eof",
}

func matchesAny(msg string, patterns []string) bool {
	lower := strings.ToLower(msg)
	for _, p := range patterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// Classify wraps err with the matching domain sentinel so callers can branch
// with errors.Is. Errors that fit no known pattern are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	// Already classified.
	for _, sentinel := range []error{
		domain.ErrUserRejected, domain.ErrInsufficientFunds,
		domain.ErrWrongNetwork, domain.ErrReverted,
	} {
		if errors.Is(err, sentinel) {
			return err
		}
	}

	msg := err.Error()
	switch {
	case matchesAny(msg, userRejectedPatterns):
		return fmt.Errorf("%w: %s", domain.ErrUserRejected, msg)
	case matchesAny(msg, insufficientFundsPatterns):
		return fmt.Errorf("%w: %s", domain.ErrInsufficientFunds, msg)
	case matchesAny(msg, revertedPatterns):
		return fmt.Errorf("%w: %s", domain.ErrReverted, msg)
	default:
		return err
	}
}

// IsBenign reports whether err is transport noise unrelated to the
// transaction outcome. Benign errors are logged but never surfaced.
func IsBenign(err error) bool {
	if err == nil {
		return false
	}
	return matchesAny(err.Error(), benignPatterns)
}

// UserMessage converts a chain error into the short message shown to the
// user. Unrecognized errors collapse to a generic retry prompt rather than
// leaking a raw RPC message.
func UserMessage(err error) string {
	classified := Classify(err)
	switch {
	case errors.Is(classified, domain.ErrUserRejected):
		return "Transaction rejected by user"
	case errors.Is(classified, domain.ErrInsufficientFunds):
		return "Insufficient funds in wallet"
	case errors.Is(classified, domain.ErrWrongNetwork):
		return "Please switch to a supported network"
	case errors.Is(classified, domain.ErrReverted):
		return "Transaction failed. Please try again."
	default:
		msg := classified.Error()
		if len(msg) > 100 {
			return "Transaction failed. Please try again."
		}
		return msg
	}
}
