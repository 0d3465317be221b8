package ammerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyMessage(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		kind    Kind
		message string
	}{
		{
			name:    "negative result",
			raw:     "TransactionPool.Remember: transaction ABC: logic eval error: - would result negative. Details: pc=812",
			kind:    KindSlippageTolerance,
			message: msgSlippageTolerance,
		},
		{
			name:    "schema overflow",
			raw:     "TransactionPool.Remember: transaction ABC: store integer count 17 exceeds schema integer count 16",
			kind:    KindExceedingExcessAmountCount,
			message: msgExceedingExcess,
		},
		{
			name:    "logic eval",
			raw:     "TransactionPool.Remember: transaction ABC: logic eval error: assert failed pc=112",
			kind:    KindLogicError,
			message: "assert failed pc=112",
		},
		{
			name:    "pool remember",
			raw:     "TransactionPool.Remember: txn dead round range 100-200",
			kind:    KindTransactionError,
			message: "txn dead round range 100-200",
		},
		{
			name:    "unmatched",
			raw:     "connection reset by peer",
			kind:    KindUnknown,
			message: "swap failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyMessage(tt.raw, "swap failed")
			assert.Equal(t, tt.kind, got.Kind)
			assert.Equal(t, tt.message, got.Message)
			assert.Equal(t, tt.raw, got.Raw)
		})
	}
}

func TestClassify_Idempotent(t *testing.T) {
	raws := []string{
		"logic eval error: would result negative",
		"logic eval error: assert failed",
		"TransactionPool.Remember: overspend",
		"exceeds schema integer count 16",
		"timeout",
	}
	for _, raw := range raws {
		first := Classify(errors.New(raw), "")
		second := Classify(errors.New(first.Raw), "")
		assert.Equal(t, first.Kind, second.Kind, raw)
		assert.Equal(t, first.Message, second.Message, raw)

		// already classified errors pass through
		assert.Same(t, first, Classify(first, ""))
	}
}

func TestClassify_DefaultFallback(t *testing.T) {
	got := Classify(errors.New("boom"), "")
	assert.Equal(t, KindUnknown, got.Kind)
	assert.Equal(t, DefaultFallback, got.Message)
	assert.Nil(t, Classify(nil, ""))
}

func TestClassify_KeepsTaxonomyErrors(t *testing.T) {
	err := fmt.Errorf("quote: %w", New(KindInvalidAmount, "amount must be positive"))
	got := Classify(err, "")
	assert.Equal(t, KindInvalidAmount, got.Kind)
	assert.True(t, errors.Is(got, ErrInvalidAmount))
}

func TestClassify_TransactionRejected(t *testing.T) {
	raw := "TransactionPool.Remember: transaction X: logic eval error: would result negative"
	rejected := &Error{Kind: KindTransactionRejected, Message: raw, Raw: raw}

	got := Classify(rejected, "")
	require.NotNil(t, got)
	assert.Equal(t, KindSlippageTolerance, got.Kind)
	assert.True(t, errors.Is(got, ErrSlippageTolerance))
	assert.True(t, errors.Is(got, ErrTransactionRejected))
}

func TestError_Is(t *testing.T) {
	err := New(KindAssetMismatch, "asset 5 is not in pool")
	assert.True(t, errors.Is(err, ErrAssetMismatch))
	assert.False(t, errors.Is(err, ErrPoolNotReady))
	assert.Equal(t, KindAssetMismatch, KindOf(fmt.Errorf("wrapped: %w", err)))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, "AssetMismatch: asset 5 is not in pool", err.Error())
}
