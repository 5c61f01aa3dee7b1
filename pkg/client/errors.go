package client

import (
	"errors"
	"fmt"
)

// APIError is the structured error body Mailchimp returns with 4xx
// responses.
type APIError struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Title, e.Status, e.Detail)
}

// FetchError reports a failure while reading a members page. The offset
// identifies which page request failed.
type FetchError struct {
	Offset int
	Err    error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch members at offset %d: %v", e.Offset, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// ArchiveError reports a failure while archiving a single member. The
// member ID keeps the failure attributable when many archive calls run
// concurrently.
type ArchiveError struct {
	MemberID string
	Err      error
}

// Error implements the error interface.
func (e *ArchiveError) Error() string {
	return fmt.Sprintf("archive member %s: %v", e.MemberID, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ArchiveError) Unwrap() error {
	return e.Err
}

// ErrorClass represents a classification of gateway errors.
type ErrorClass string

const (
	// ErrorClassRemote represents a well-formed 4xx rejection from the API.
	ErrorClassRemote ErrorClass = "remote"

	// ErrorClassTransport represents connection, timeout, or unexpected
	// response problems talking to the API.
	ErrorClassTransport ErrorClass = "transport"
)

// Classify reports whether an error produced by this package carries a
// structured remote rejection or a transport-level failure.
func Classify(err error) ErrorClass {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return ErrorClassRemote
	}
	return ErrorClassTransport
}
