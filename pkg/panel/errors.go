package panel

import "errors"

var (
	// ErrSessionConflict is returned when a user already has a live session.
	ErrSessionConflict = errors.New("configuration session already open")
	// ErrSessionExpired is returned for users without a live session.
	ErrSessionExpired = errors.New("configuration session expired")
	// ErrUnknownView is returned when navigating to a view the catalog does not know.
	ErrUnknownView = errors.New("unknown configuration view")
	// ErrInvalidTransition is returned when a sub-view is not reachable from the current view.
	ErrInvalidTransition = errors.New("view not reachable from current view")
)
