package chat

import "errors"

var (
	// ErrResolutionFailed means the conversation could not be determined.
	// Non-fatal: the session treats the conversation as not yet created.
	ErrResolutionFailed = errors.New("unable to start conversation")
	// ErrHistoryLoadFailed means the initial page could not be fetched.
	// Non-fatal: the transport still attaches.
	ErrHistoryLoadFailed = errors.New("history load failed")
	// ErrTransport marks a failed poll tick or a dropped push channel.
	ErrTransport = errors.New("transport error")
	// ErrSendFailed means a message could not be delivered; it stays in the
	// transcript with StatusFailed.
	ErrSendFailed = errors.New("send failed")

	ErrInvalidInput  = errors.New("conversation id or recipient id required")
	ErrEmptyBody     = errors.New("message body is empty")
	ErrNotRetryable  = errors.New("message is not in failed state")
	ErrSessionClosed = errors.New("session closed")
)
