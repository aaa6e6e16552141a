package fetch

import "fmt"

// Kind classifies a request failure so callers can branch without
// string matching.
type Kind string

const (
	KindTimeout    Kind = "timeout"
	KindConnection Kind = "connection"
	KindDNS        Kind = "dns"
	KindHTTP4xx    Kind = "http_4xx"
	KindHTTP5xx    Kind = "http_5xx"
)

// RequestError is the typed failure returned by Client.Get.
// StatusCode is zero when no HTTP response was received.
type RequestError struct {
	URL        string
	StatusCode int
	Kind       Kind
	Err        error
}

func (e *RequestError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s: HTTP %d (%s)", e.URL, e.StatusCode, e.Kind)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// Retryable reports whether the failure is worth another attempt
// against the same host. DNS failures are handled by the host
// fallback instead of the backoff budget.
func (e *RequestError) Retryable() bool {
	switch e.Kind {
	case KindTimeout, KindConnection, KindHTTP5xx:
		return true
	default:
		return false
	}
}
