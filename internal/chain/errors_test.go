package chain

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/attnroulette/betledger/internal/domain"
)

func TestClassify(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, Classify(nil))
	})

	t.Run("user rejected", func(t *testing.T) {
		err := Classify(errors.New("MetaMask Tx Signature: User rejected the request"))
		assert.ErrorIs(t, err, domain.ErrUserRejected)
	})

	t.Run("insufficient funds", func(t *testing.T) {
		err := Classify(errors.New("err: insufficient funds for gas * price + value"))
		assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	})

	t.Run("reverted", func(t *testing.T) {
		for _, msg := range []string{
			"execution reverted: Market already resolved",
			"nonce too low",
			"gas required exceeds allowance",
		} {
			err := Classify(errors.New(msg))
			assert.ErrorIs(t, err, domain.ErrReverted, "message %q", msg)
		}
	})

	t.Run("already classified passes through unchanged", func(t *testing.T) {
		orig := fmt.Errorf("chain: place bet: %w", domain.ErrWrongNetwork)
		assert.Equal(t, orig, Classify(orig))
	})

	t.Run("unknown errors pass through", func(t *testing.T) {
		orig := errors.New("something odd")
		assert.Equal(t, orig, Classify(orig))
	})
}

func TestIsBenign(t *testing.T) {
	benign := []string{
		"read tcp: connection reset by peer",
		"write: broken pipe",
		"websocket: close 1006 (abnormal closure)",
		"429 too many requests",
		"unexpected EOF",
	}
	for _, msg := range benign {
		assert.True(t, IsBenign(errors.New(msg)), "message %q", msg)
	}

	assert.False(t, IsBenign(nil))
	assert.False(t, IsBenign(errors.New("execution reverted")))
}

func TestUserMessage(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{errors.New("user denied transaction signature"), "Transaction rejected by user"},
		{errors.New("insufficient balance for transfer"), "Insufficient funds in wallet"},
		{fmt.Errorf("op: %w", domain.ErrWrongNetwork), "Please switch to a supported network"},
		{errors.New("execution reverted"), "Transaction failed. Please try again."},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, UserMessage(tc.err))
	}

	t.Run("long raw messages collapse to the generic prompt", func(t *testing.T) {
		long := errors.New(strings.Repeat("x", 200))
		assert.Equal(t, "Transaction failed. Please try again.", UserMessage(long))
	})

	t.Run("short raw messages surface as-is", func(t *testing.T) {
		assert.Equal(t, "odd failure", UserMessage(errors.New("odd failure")))
	})
}
