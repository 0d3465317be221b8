package ammerr

import (
	"errors"
	"fmt"
)

// Kind is the stable type tag carried by every engine error.
type Kind string

const (
	KindInvalidAmount         Kind = "InvalidAmount"
	KindInvalidSlippage       Kind = "InvalidSlippage"
	KindInsufficientLiquidity Kind = "InsufficientLiquidity"
	KindAssetMismatch         Kind = "AssetMismatch"
	KindPoolNotReady          Kind = "PoolNotReady"
	KindTransactionRejected   Kind = "TransactionRejected"
	KindCorruptedState        Kind = "CorruptedState"
	KindUnsupportedOperation  Kind = "UnsupportedOperation"
	KindNoSigner              Kind = "NoSigner"
	KindPriceImpact           Kind = "PriceImpactTooHigh"

	// Classifier kinds.
	KindSlippageTolerance          Kind = "SlippageTolerance"
	KindLogicError                 Kind = "LogicError"
	KindTransactionError           Kind = "TransactionError"
	KindExceedingExcessAmountCount Kind = "ExceedingExcessAmountCount"
	KindUnknown                    Kind = "Unknown"
)

// Error is the engine's error value. Two errors match under errors.Is when
// their kinds are equal and the target carries no message of its own.
type Error struct {
	Kind    Kind
	Message string
	// Raw is the unprocessed ledger message the error was derived from, if any.
	Raw   string
	Cause error
}

var (
	ErrInvalidAmount         = &Error{Kind: KindInvalidAmount}
	ErrInvalidSlippage       = &Error{Kind: KindInvalidSlippage}
	ErrInsufficientLiquidity = &Error{Kind: KindInsufficientLiquidity}
	ErrAssetMismatch         = &Error{Kind: KindAssetMismatch}
	ErrPoolNotReady          = &Error{Kind: KindPoolNotReady}
	ErrTransactionRejected   = &Error{Kind: KindTransactionRejected}
	ErrCorruptedState        = &Error{Kind: KindCorruptedState}
	ErrUnsupportedOperation  = &Error{Kind: KindUnsupportedOperation}
	ErrNoSigner              = &Error{Kind: KindNoSigner}
	ErrPriceImpact           = &Error{Kind: KindPriceImpact}

	ErrSlippageTolerance          = &Error{Kind: KindSlippageTolerance}
	ErrLogicError                 = &Error{Kind: KindLogicError}
	ErrTransactionError           = &Error{Kind: KindTransactionError}
	ErrExceedingExcessAmountCount = &Error{Kind: KindExceedingExcessAmountCount}
	ErrUnknown                    = &Error{Kind: KindUnknown}
)

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, cause error, message string) *Error {
	e := &Error{Kind: kind, Message: message, Cause: cause}
	if cause != nil {
		e.Raw = cause.Error()
	}
	return e
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Message == "" || t.Message == e.Message
}

// KindOf returns the kind of the outermost *Error in err's chain, or
// KindUnknown when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
