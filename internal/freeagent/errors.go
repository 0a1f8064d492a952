package freeagent

import "fmt"

// maxErrorBody bounds how much of an upstream response body is carried
// inside an error, keeping diagnostics readable.
const maxErrorBody = 2000

// AuthError indicates a failed credential refresh against the token
// endpoint.
type AuthError struct {
	Status int
	Body   string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("token refresh failed (status %d): %s", e.Status, e.Body)
}

// UpstreamError indicates a non-success status from the accounting API.
type UpstreamError struct {
	Operation string
	Status    int
	Body      string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s failed (status %d): %s", e.Operation, e.Status, e.Body)
}

// MissingReferenceError indicates the accounting API reported success but
// the response carried no resolvable reference for the created entity.
type MissingReferenceError struct {
	Operation string
}

func (e *MissingReferenceError) Error() string {
	return fmt.Sprintf("%s succeeded but response contained no reference", e.Operation)
}

// AttachmentError indicates every binding strategy was exhausted. Status
// and Body describe the final failed attempt.
type AttachmentError struct {
	Status int
	Body   string
}

func (e *AttachmentError) Error() string {
	return fmt.Sprintf("all attachment strategies failed (last status %d): %s", e.Status, e.Body)
}

// truncateBody bounds an upstream body for inclusion in errors.
func truncateBody(body []byte) string {
	if len(body) > maxErrorBody {
		return string(body[:maxErrorBody])
	}
	return string(body)
}
