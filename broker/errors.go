package broker

import "fmt"

// AuthenticationError means the broker refused the credentials or answered
// the login call with something other than a session token.
type AuthenticationError struct {
	Reason string
	Status int
	Body   string
	Err    error
}

func (e *AuthenticationError) Error() string {
	msg := "authentication failed: " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// APIError is a failed session, account or order call. Body holds whatever
// diagnostic payload the broker returned.
type APIError struct {
	Op     string
	Status int
	Body   string
	Err    error
}

func (e *APIError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Body != "":
		return fmt.Sprintf("%s: http %d: %s", e.Op, e.Status, e.Body)
	default:
		return fmt.Sprintf("%s: http %d", e.Op, e.Status)
	}
}

func (e *APIError) Unwrap() error { return e.Err }
