package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidURLFormat is returned when a URL is neither a bsky.app post
	// link nor an at:// URI.
	ErrInvalidURLFormat = errors.New("invalid bluesky url format")

	// ErrHandleResolutionFailed is returned when a handle lookup does not
	// yield a DID.
	ErrHandleResolutionFailed = errors.New("handle resolution failed")

	// ErrMalformedResponse is returned when an API payload lacks required fields.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrEmptyThread is returned when a thread response has no root post.
	ErrEmptyThread = errors.New("no posts found in thread")

	// ErrNoURL is returned when a block's text contains no URL at all.
	ErrNoURL = errors.New("no url found in block")

	// ErrMediaRelocationFailed marks a media item that could not be copied.
	// It is only ever logged; extraction continues without the item.
	ErrMediaRelocationFailed = errors.New("media relocation failed")

	// ErrBlockNotFound is returned by hosts for an unknown block UID.
	ErrBlockNotFound = errors.New("block not found")
)

// RemoteFetchError reports a non-success HTTP status from the remote API.
type RemoteFetchError struct {
	Status int
	Body   string
}

func (e *RemoteFetchError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("remote fetch failed: status %d", e.Status)
	}
	return fmt.Sprintf("remote fetch failed: status %d: %s", e.Status, e.Body)
}

// HostWriteError wraps a failed block write.
type HostWriteError struct {
	Op  string
	UID string
	Err error
}

func (e *HostWriteError) Error() string {
	return fmt.Sprintf("%s block %s: %v", e.Op, e.UID, e.Err)
}

func (e *HostWriteError) Unwrap() error {
	return e.Err
}
