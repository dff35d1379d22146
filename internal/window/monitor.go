package window

import (
	"fmt"
	"iter"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/bryanchriswhite/FocusMonitor/internal/logger"
)

const (
	activeWindowAtomName = "_NET_ACTIVE_WINDOW"
	netWMNameAtomName    = "_NET_WM_NAME"
	utf8StringAtomName   = "UTF8_STRING"

	// textPropertyLength caps WM_NAME / WM_CLASS reads, in 32-bit units.
	textPropertyLength = 1024
)

// Options configures a Monitor.
type Options struct {
	// Display is the X display to connect to; empty means $DISPLAY.
	Display string

	// Dedup suppresses notifications that repeat the last reported window.
	Dedup bool

	// PreferNetWMName reads the title from _NET_WM_NAME before WM_NAME.
	PreferNetWMName bool

	// Dial opens the gateway. Defaults to DialX11.
	Dial func(display string) (Gateway, error)
}

// DefaultOptions returns the options used by the CLI when nothing is configured.
func DefaultOptions() Options {
	return Options{Dedup: true}
}

// Monitor reports changes of the X11 active window.
//
// A Monitor is not safe for concurrent use: Next, Current and All must be
// driven from a single goroutine. Close may be called from any goroutine.
type Monitor struct {
	gw   Gateway
	opts Options

	root         xproto.Window
	activeWindow xproto.Atom

	// _NET_WM_NAME support, zero when not requested or not available.
	netWMName  xproto.Atom
	utf8String xproto.Atom

	lastWindow xproto.Window
	hasLast    bool

	// fatal is the first connection-level error, returned by every later pull.
	fatal error
}

// Open connects to the X server and subscribes to active window changes.
func Open(opts Options) (*Monitor, error) {
	dial := opts.Dial
	if dial == nil {
		dial = DialX11
	}

	gw, err := dial(opts.Display)
	if err != nil {
		return nil, err
	}

	m, err := NewMonitor(gw, opts)
	if err != nil {
		gw.Close()
		return nil, err
	}
	return m, nil
}

// NewMonitor subscribes to active window changes on an open gateway.
func NewMonitor(gw Gateway, opts Options) (*Monitor, error) {
	log := logger.WithComponent("focus-monitor")

	activeWindow, err := gw.InternAtom(activeWindowAtomName, true)
	if err != nil {
		return nil, fmt.Errorf("failed to intern %s: %w", activeWindowAtomName, err)
	}
	if activeWindow == xproto.AtomNone {
		return nil, ErrUnsupported
	}

	root, err := gw.RootWindow()
	if err != nil {
		return nil, err
	}

	if err := gw.WatchProperties(root); err != nil {
		return nil, fmt.Errorf("failed to watch root window: %w", err)
	}

	m := &Monitor{
		gw:           gw,
		opts:         opts,
		root:         root,
		activeWindow: activeWindow,
	}

	if opts.PreferNetWMName {
		m.netWMName, m.utf8String = m.internNetWMName()
	}

	log.Debug().
		Uint32("root", uint32(root)).
		Uint32("atom", uint32(activeWindow)).
		Bool("dedup", opts.Dedup).
		Bool("net_wm_name", m.netWMName != xproto.AtomNone).
		Msg("Subscribed to active window changes")

	return m, nil
}

// internNetWMName looks up the EWMH title atoms. Missing atoms disable the lookup.
func (m *Monitor) internNetWMName() (xproto.Atom, xproto.Atom) {
	log := logger.WithComponent("focus-monitor")

	name, err := m.gw.InternAtom(netWMNameAtomName, true)
	if err != nil || name == xproto.AtomNone {
		log.Debug().Err(err).Msg("_NET_WM_NAME unavailable, using WM_NAME")
		return xproto.AtomNone, xproto.AtomNone
	}
	utf8, err := m.gw.InternAtom(utf8StringAtomName, true)
	if err != nil || utf8 == xproto.AtomNone {
		log.Debug().Err(err).Msg("UTF8_STRING unavailable, using WM_NAME")
		return xproto.AtomNone, xproto.AtomNone
	}
	return name, utf8
}

// Next blocks until the active window changes and returns the newly focused
// window, or nil when no window has focus.
//
// Errors wrapping ErrPropertyData or ErrProtocol concern that single change;
// the next call waits for the following one. Errors wrapping ErrConnection
// are returned again by every later call. X errors that arrive on the event
// queue rather than as a request reply are logged and skipped, so they never
// reach the caller.
func (m *Monitor) Next() (*Window, error) {
	if m.fatal != nil {
		return nil, m.fatal
	}

	id, err := m.waitForWindowChange()
	if err != nil {
		return nil, m.track(err)
	}

	w, err := m.resolve(id)
	return w, m.track(err)
}

// All presents the monitor as a sequence of focus changes. The sequence only
// ends when the consumer stops or after yielding a connection-level error.
func (m *Monitor) All() iter.Seq2[*Window, error] {
	return func(yield func(*Window, error) bool) {
		for {
			w, err := m.Next()
			if !yield(w, err) || IsFatal(err) {
				return
			}
		}
	}
}

// Current reads the active window without waiting for a change.
func (m *Monitor) Current() (*Window, error) {
	if m.fatal != nil {
		return nil, m.fatal
	}

	id, err := m.readActiveWindow()
	if err != nil {
		return nil, m.track(err)
	}

	w, err := m.resolve(id)
	return w, m.track(err)
}

// Close closes the X connection. Any pull blocked in Next returns an ErrConnection error.
func (m *Monitor) Close() error {
	m.gw.Close()
	return nil
}

func (m *Monitor) track(err error) error {
	if err != nil && IsFatal(err) && m.fatal == nil {
		m.fatal = err
	}
	return err
}

// waitForWindowChange loops until a PropertyNotify for _NET_ACTIVE_WINDOW
// yields a window id worth reporting.
func (m *Monitor) waitForWindowChange() (xproto.Window, error) {
	log := logger.WithComponent("focus-monitor")

	for {
		ev, err := m.gw.WaitForEvent()
		if err != nil {
			if IsFatal(err) {
				return xproto.WindowNone, err
			}
			log.Debug().Err(err).Msg("Ignoring X error on event queue")
			continue
		}

		if !m.isActiveWindowChange(ev) {
			continue
		}

		id, err := m.readActiveWindow()
		if err != nil {
			return xproto.WindowNone, err
		}

		if m.opts.Dedup {
			if m.hasLast && id == m.lastWindow {
				log.Debug().Uint32("window", uint32(id)).Msg("Active window unchanged, skipping")
				continue
			}
			m.lastWindow = id
			m.hasLast = true
		}

		return id, nil
	}
}

func (m *Monitor) isActiveWindowChange(ev xgb.Event) bool {
	notify, ok := ev.(xproto.PropertyNotifyEvent)
	return ok && notify.Atom == m.activeWindow
}

func (m *Monitor) readActiveWindow() (xproto.Window, error) {
	reply, err := m.gw.GetProperty(m.root, m.activeWindow, xproto.AtomWindow, 0, 1)
	if err != nil {
		return xproto.WindowNone, fmt.Errorf("failed to read %s: %w", activeWindowAtomName, err)
	}
	if len(reply.Value) < 4 {
		return xproto.WindowNone, fmt.Errorf("%w: active window reply was empty", ErrPropertyData)
	}
	return xproto.Window(xgb.Get32(reply.Value)), nil
}

// resolve turns a window id into a snapshot. WindowNone means nothing is focused.
func (m *Monitor) resolve(id xproto.Window) (*Window, error) {
	if id == xproto.WindowNone {
		return nil, nil
	}

	title, err := m.title(id)
	if err != nil {
		return nil, err
	}

	reply, err := m.gw.GetProperty(id, xproto.AtomWmClass, xproto.AtomString, 0, textPropertyLength)
	if err != nil {
		return nil, fmt.Errorf("failed to read WM_CLASS of 0x%x: %w", uint32(id), err)
	}
	class, err := decodeClass(reply.Value)
	if err != nil {
		return nil, err
	}

	return &Window{Title: title, Class: class}, nil
}

func (m *Monitor) title(id xproto.Window) (string, error) {
	if m.netWMName != xproto.AtomNone {
		reply, err := m.gw.GetProperty(id, m.netWMName, m.utf8String, 0, textPropertyLength)
		if err != nil {
			return "", fmt.Errorf("failed to read _NET_WM_NAME of 0x%x: %w", uint32(id), err)
		}
		if len(reply.Value) > 0 {
			return decodeText("_NET_WM_NAME", reply.Value)
		}
	}

	reply, err := m.gw.GetProperty(id, xproto.AtomWmName, xproto.AtomString, 0, textPropertyLength)
	if err != nil {
		return "", fmt.Errorf("failed to read WM_NAME of 0x%x: %w", uint32(id), err)
	}
	return decodeText("WM_NAME", reply.Value)
}
