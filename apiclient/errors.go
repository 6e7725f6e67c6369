package apiclient

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeRequestFailed = "API_REQUEST_FAILED"
	TextCodeNetwork       = "API_NETWORK_ERROR"
)

// ErrRequestFailed is cloned for every non-2xx response. The clone carries
// the status in Code and the error body under the "body" metadata key.
var ErrRequestFailed = goerrors.New("api request failed", goerrors.CategoryExternal).
	WithTextCode(TextCodeRequestFailed)

// ErrNetwork is cloned when no response was received. It never carries a
// status code.
var ErrNetwork = goerrors.New("api unreachable", goerrors.CategoryExternal).
	WithTextCode(TextCodeNetwork)

// StatusCode returns the HTTP status of a failed request.
func StatusCode(err error) (int, bool) {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.TextCode != TextCodeRequestFailed {
		return 0, false
	}
	return richErr.Code, richErr.Code != 0
}

// IsNetworkError reports whether err is a transport failure.
func IsNetworkError(err error) bool {
	var richErr *goerrors.Error
	return goerrors.As(err, &richErr) && richErr.TextCode == TextCodeNetwork
}

// ErrorBody returns the decoded error body of a failed request: a
// map[string]any or []any for JSON bodies, a string otherwise.
func ErrorBody(err error) (any, bool) {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.TextCode != TextCodeRequestFailed {
		return nil, false
	}
	body, ok := richErr.Metadata["body"]
	return body, ok
}

// Message returns a human readable message for err, preferring the API's
// own message field.
func Message(err error) string {
	if err == nil {
		return ""
	}
	if body, ok := ErrorBody(err); ok {
		if m, ok := body.(map[string]any); ok {
			for _, key := range []string{"message", "detail", "error"} {
				if s, ok := m[key].(string); ok && s != "" {
					return s
				}
			}
		}
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.Message
	}
	return err.Error()
}
