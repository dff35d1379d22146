package window

import "errors"

var (
	// ErrUnsupported means the window manager does not publish _NET_ACTIVE_WINDOW.
	ErrUnsupported = errors.New("active window tracking is not supported by the window manager")

	// ErrConnection wraps any transport failure talking to the X server.
	ErrConnection = errors.New("x11 connection error")

	// ErrScreenNotFound means the negotiated screen index has no screen record.
	ErrScreenNotFound = errors.New("screen not found")

	// ErrProtocol wraps X error replies.
	ErrProtocol = errors.New("x11 protocol error")

	// ErrPropertyData means a property reply was missing or malformed.
	ErrPropertyData = errors.New("malformed window property")

	// ErrClosed is returned by AsyncMonitor once its result channel is closed.
	ErrClosed = errors.New("focus monitor closed")

	// ErrEmpty is returned by AsyncMonitor.TryRecv when no result is queued.
	ErrEmpty = errors.New("no focus change queued")
)

// IsFatal reports whether err leaves the monitor's connection unusable.
func IsFatal(err error) bool {
	return errors.Is(err, ErrConnection) || errors.Is(err, ErrClosed)
}
