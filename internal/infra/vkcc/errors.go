package vkcc

import (
	"errors"
	"fmt"
	"net/url"
)

// ProviderError reports a failed call to the shortening provider: transport
// failures and timeouts, non-2xx statuses and error payloads alike.
type ProviderError struct {
	Op         string // "shorten" or "stats"
	StatusCode int    // HTTP status, 0 when no response arrived
	Code       int    // provider error_code, 0 when absent
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("vk.cc %s: %s", e.Op, e.Reason())
}

// Reason describes the failure without the operation prefix. It never
// contains the request URL.
func (e *ProviderError) Reason() string {
	msg := e.Message
	if e.Code != 0 {
		msg = fmt.Sprintf("%s (code %d)", msg, e.Code)
	}
	if e.Err != nil && e.Code == 0 && e.StatusCode == 0 {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsProviderError reports whether err came from the provider client.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}

// withoutURL drops the *url.Error wrapper, whose text carries the full
// request URL and with it the access token.
func withoutURL(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return uerr.Err
	}
	return err
}
