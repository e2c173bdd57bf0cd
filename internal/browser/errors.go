package browser

import "errors"

var (
	// ErrLaunch is returned when the browser process or its first tab cannot start.
	ErrLaunch = errors.New("browser launch failed")
	// ErrNavigation is returned when a page load fails for a reason other than time.
	ErrNavigation = errors.New("navigation failed")
	// ErrNavigationTimeout is returned when a page load exceeds its step timeout.
	ErrNavigationTimeout = errors.New("navigation timed out")
	// ErrWaitTimeout is returned when a condition never became true.
	ErrWaitTimeout = errors.New("wait condition timed out")
	// ErrElementNotFound is returned when a selector never matched.
	ErrElementNotFound = errors.New("element not found")
	// ErrSessionClosed is returned by any operation on a closed session.
	ErrSessionClosed = errors.New("session is closed")
)
