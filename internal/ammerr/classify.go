package ammerr

import (
	"errors"
	"regexp"
	"strings"
)

const DefaultFallback = "An unknown error occurred."

const (
	msgSlippageTolerance = "The process failed due to too much slippage in the price. " +
		"Please adjust the slippage tolerance and try again."
	msgExceedingExcess = "The process failed due to the number of excess amounts accumulated for your account in the pool. " +
		"Please redeem excess amounts and try again."
)

type rule struct {
	re      *regexp.Regexp
	kind    Kind
	message string // empty keeps the first capture group
}

// Order matters: the first matching rule wins. Pool errors usually nest a
// logic eval error inside TransactionPool.Remember, so the specific phrases
// are checked first.
var rules = []rule{
	{re: regexp.MustCompile(`would result negative`), kind: KindSlippageTolerance, message: msgSlippageTolerance},
	{re: regexp.MustCompile(`exceeds schema integer count`), kind: KindExceedingExcessAmountCount, message: msgExceedingExcess},
	{re: regexp.MustCompile(`logic eval error: (.+)`), kind: KindLogicError},
	{re: regexp.MustCompile(`TransactionPool\.Remember: (.+)`), kind: KindTransactionError},
}

// Classify maps a raw ledger or RPC failure onto the classifier taxonomy.
//
// Errors that already carry a kind pass through untouched, with one
// exception: a TransactionRejected error is classified by its raw pool error
// and kept as the cause, so errors.Is matches both kinds.
func Classify(err error, fallback string) *Error {
	if err == nil {
		return nil
	}
	if fallback == "" {
		fallback = DefaultFallback
	}

	var e *Error
	if errors.As(err, &e) && e.Kind != KindTransactionRejected {
		return e
	}

	raw := err.Error()
	if e != nil && e.Raw != "" {
		raw = e.Raw
	}

	out := ClassifyMessage(raw, fallback)
	out.Cause = err
	return out
}

// ClassifyMessage classifies a bare message. Feeding the returned Raw back in
// yields the same kind and message.
func ClassifyMessage(raw, fallback string) *Error {
	if fallback == "" {
		fallback = DefaultFallback
	}
	for _, r := range rules {
		m := r.re.FindStringSubmatch(raw)
		if m == nil {
			continue
		}
		msg := r.message
		if msg == "" && len(m) > 1 {
			msg = strings.TrimSpace(m[1])
		}
		return &Error{Kind: r.kind, Message: msg, Raw: raw}
	}
	return &Error{Kind: KindUnknown, Message: fallback, Raw: raw}
}
