package remote

import (
	"errors"
	"time"
)

// OutcomeKind is what the engine should do about a remote failure.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	// OutcomeRetry reschedules the identical operation after RetryAfter.
	OutcomeRetry
	// OutcomeChunk splits the batch and reissues smaller ones.
	OutcomeChunk
	// OutcomeRecoverable is handled by the engine (token reset, refetch).
	OutcomeRecoverable
	// OutcomeFatal is surfaced to the caller and not auto-retried.
	OutcomeFatal
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetry:
		return "retry"
	case OutcomeChunk:
		return "needs-chunking"
	case OutcomeRecoverable:
		return "recoverable"
	default:
		return "fatal"
	}
}

// Reason qualifies recoverable and fatal outcomes.
type Reason string

const (
	ReasonNone                Reason = ""
	ReasonChangeTokenExpired  Reason = "changeTokenExpired"
	ReasonNetwork             Reason = "network"
	ReasonQuotaExceeded       Reason = "quotaExceeded"
	ReasonPartialFailure      Reason = "partialFailure"
	ReasonServerRecordChanged Reason = "serverRecordChanged"
	ReasonShareRelated        Reason = "shareRelated"
	ReasonUnhandled           Reason = "unhandled"
	ReasonUnknown             Reason = "unknown"
)

// Outcome is the classifier's verdict on one remote-operation result.
type Outcome struct {
	Kind       OutcomeKind
	Reason     Reason
	RetryAfter time.Duration
	Err        error
}

// Classify maps a raw remote-operation failure into the engine's recovery
// policy. It is a total function: any error, including ones that are not
// *Error at all, yields a verdict rather than a panic.
func Classify(err error) Outcome {
	if err == nil {
		return Outcome{Kind: OutcomeSuccess}
	}

	var re *Error
	if !errors.As(err, &re) {
		return Outcome{Kind: OutcomeFatal, Reason: ReasonUnhandled, Err: err}
	}

	switch re.Code {
	case CodeServiceUnavailable, CodeRequestRateLimited, CodeZoneBusy:
		// Retryable only when the server supplied a delay; the client never
		// invents its own backoff.
		if re.RetryAfter > 0 {
			return Outcome{Kind: OutcomeRetry, RetryAfter: re.RetryAfter, Err: err}
		}
		return Outcome{Kind: OutcomeFatal, Reason: ReasonUnknown, Err: err}

	case CodeNetworkUnavailable, CodeNetworkFailure:
		return Outcome{Kind: OutcomeRecoverable, Reason: ReasonNetwork, Err: err}
	case CodeChangeTokenExpired:
		return Outcome{Kind: OutcomeRecoverable, Reason: ReasonChangeTokenExpired, Err: err}
	case CodeServerRecordChanged:
		return Outcome{Kind: OutcomeRecoverable, Reason: ReasonServerRecordChanged, Err: err}
	case CodePartialFailure:
		return Outcome{Kind: OutcomeRecoverable, Reason: ReasonPartialFailure, Err: err}

	case CodeLimitExceeded:
		return Outcome{Kind: OutcomeChunk, Err: err}

	case CodeQuotaExceeded:
		return Outcome{Kind: OutcomeFatal, Reason: ReasonQuotaExceeded, Err: err}
	case CodeAlreadyShared, CodeShareUnavailable:
		return Outcome{Kind: OutcomeFatal, Reason: ReasonShareRelated, Err: err}

	default:
		return Outcome{Kind: OutcomeFatal, Reason: ReasonUnknown, Err: err}
	}
}
