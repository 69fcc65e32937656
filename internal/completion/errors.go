package completion

import "fmt"

// NetworkError reports an endpoint that could not be reached or did not answer in time.
type NetworkError struct {
	Endpoint string
	Err      error
}

func (networkError *NetworkError) Error() string {
	return fmt.Sprintf("request to %s failed: %v", networkError.Endpoint, networkError.Err)
}

func (networkError *NetworkError) Unwrap() error {
	return networkError.Err
}

// HTTPError reports a non-2xx status. Body holds the start of the response body.
type HTTPError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (httpError *HTTPError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s: %s", httpError.StatusCode, httpError.Endpoint, httpError.Body)
}

// ResponseFormatError reports a 2xx response without the expected completion payload.
type ResponseFormatError struct {
	Reason string
	Err    error
}

func (responseFormatError *ResponseFormatError) Error() string {
	if responseFormatError.Err != nil {
		return fmt.Sprintf("malformed completion response: %s: %v", responseFormatError.Reason, responseFormatError.Err)
	}
	return fmt.Sprintf("malformed completion response: %s", responseFormatError.Reason)
}

func (responseFormatError *ResponseFormatError) Unwrap() error {
	return responseFormatError.Err
}
