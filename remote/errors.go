package remote

import (
	"fmt"
	"time"
)

// Code identifies one remote failure mode. The set mirrors the collaborating
// record store's documented error space; Classify is total over it and over
// anything outside it.
type Code string

const (
	CodeNetworkUnavailable  Code = "network_unavailable"
	CodeNetworkFailure      Code = "network_failure"
	CodeServiceUnavailable  Code = "service_unavailable"
	CodeRequestRateLimited  Code = "request_rate_limited"
	CodeZoneBusy            Code = "zone_busy"
	CodeChangeTokenExpired  Code = "change_token_expired"
	CodeServerRecordChanged Code = "server_record_changed"
	CodePartialFailure      Code = "partial_failure"
	CodeLimitExceeded       Code = "limit_exceeded"
	CodeQuotaExceeded       Code = "quota_exceeded"
	CodeAlreadyShared       Code = "already_shared"
	CodeShareUnavailable    Code = "share_unavailable"
	CodeUnknown             Code = "unknown"
)

// Error is a classifiable remote-operation failure. RetryAfter is the
// server-suggested delay and is only meaningful for rate-limit and
// service-busy codes.
type Error struct {
	Code       Code
	Message    string
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote error: %s", e.Code)
	}
	return fmt.Sprintf("remote error: %s: %s", e.Code, e.Message)
}

// NewError builds an *Error without a retry delay.
func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}
