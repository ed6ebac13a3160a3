package remote

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// transportError wraps a client-side transport failure (DNS, dial, reset) as
// a classifiable network error.
func transportError(op string, err error) error {
	return fmt.Errorf("%s: %w", op, &Error{Code: CodeNetworkFailure, Message: err.Error()})
}

// mapHTTPError converts a non-2xx response into a classifiable *Error. The
// server-suggested delay is taken from the Retry-After header.
func mapHTTPError(resp *resty.Response) error {
	status := resp.StatusCode()
	if status >= http.StatusOK && status < http.StatusMultipleChoices {
		return nil
	}

	message := strings.TrimSpace(string(resp.Body()))
	if message == "" {
		message = http.StatusText(status)
	}

	e := &Error{Message: message, RetryAfter: retryAfter(resp)}
	switch status {
	case http.StatusTooManyRequests:
		e.Code = CodeRequestRateLimited
	case http.StatusServiceUnavailable:
		e.Code = CodeServiceUnavailable
	case http.StatusLocked:
		e.Code = CodeZoneBusy
	case http.StatusGone:
		e.Code = CodeChangeTokenExpired
	case http.StatusConflict:
		e.Code = CodeServerRecordChanged
	case http.StatusRequestEntityTooLarge:
		e.Code = CodeLimitExceeded
	case http.StatusInsufficientStorage:
		e.Code = CodeQuotaExceeded
	case http.StatusBadGateway, http.StatusGatewayTimeout:
		e.Code = CodeNetworkFailure
	default:
		e.Code = CodeUnknown
	}

	return e
}

func retryAfter(resp *resty.Response) time.Duration {
	raw := resp.Header().Get("Retry-After")
	if raw == "" {
		return 0
	}
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}
