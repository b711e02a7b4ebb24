package domain

import "errors"

var (
	ErrUnauthenticated      = errors.New("connection missing contractor identity")
	ErrUnknownEventType     = errors.New("unknown event type")
	ErrContractorNotFound   = errors.New("contractor not found")
	ErrContractorInactive   = errors.New("contractor is not active")
	ErrNotConnected         = errors.New("contractor has no registered connection")
	ErrNotificationNotFound = errors.New("notification not found")
)
