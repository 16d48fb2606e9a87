package api

import "fmt"

// AuthError reports a 401 from the boundary. Callers distinguish the
// login endpoint from every other endpoint: only non-login 401s should
// invalidate a stored credential.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return "authentication failed"
	}
	return e.Message
}

// PermissionDeniedError reports a 403. Client-side capability checks are
// advisory only, the server remains the authority of record.
type PermissionDeniedError struct {
	Message string
}

func (e *PermissionDeniedError) Error() string {
	if e.Message == "" {
		return "permission denied"
	}
	return e.Message
}

// TransportError wraps network failures and 5xx responses.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// APIError carries any remaining non-2xx response (404, 409, ...) with
// the server's business code and message.
type APIError struct {
	Status  int
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (status %d, code %d): %s", e.Status, e.Code, e.Message)
}
