package fetcher

import "fmt"

// FailureReason classifies why an upstream request failed.
type FailureReason string

const (
	// ReasonNoToken means no bearer token could be obtained; the network
	// call was never attempted.
	ReasonNoToken FailureReason = "no_token"
	// ReasonTransport covers connection errors, timeouts and body reads.
	ReasonTransport FailureReason = "transport"
	// ReasonHTTPError covers non-2xx responses other than 401.
	ReasonHTTPError FailureReason = "http_error"
	// ReasonDecodeError means the response body had an unexpected shape.
	ReasonDecodeError FailureReason = "decode_error"
	// ReasonUnauthorized means the permitted re-authentication retry was
	// exhausted and the request still failed authorization.
	ReasonUnauthorized FailureReason = "unauthorized"
)

// RequestError is the terminal failure of one upstream request.
type RequestError struct {
	Reason   FailureReason
	Endpoint string
	Status   int
	Err      error
}

func (e *RequestError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetcher: %s request failed (%s, status %d): %v", e.Endpoint, e.Reason, e.Status, e.Err)
	}
	return fmt.Sprintf("fetcher: %s request failed (%s): %v", e.Endpoint, e.Reason, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }
