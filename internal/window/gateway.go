package window

import (
	"errors"
	"fmt"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
)

// Gateway is the slice of the X11 protocol the focus monitor needs.
type Gateway interface {
	// InternAtom resolves an atom name. With onlyIfExists set an absent atom
	// comes back as xproto.AtomNone.
	InternAtom(name string, onlyIfExists bool) (xproto.Atom, error)

	// RootWindow returns the root window of the negotiated screen.
	RootWindow() (xproto.Window, error)

	// WatchProperties subscribes to PropertyNotify events on win and flushes.
	WatchProperties(win xproto.Window) error

	// WaitForEvent blocks until the X server delivers the next event.
	WaitForEvent() (xgb.Event, error)

	// GetProperty reads a window property, length counted in 32-bit units.
	GetProperty(win xproto.Window, property, typ xproto.Atom, offset, length uint32) (*xproto.GetPropertyReply, error)

	// Close closes the connection.
	Close()
}

// x11Gateway implements Gateway over an xgb connection
type x11Gateway struct {
	conn      *xgb.Conn
	closeOnce sync.Once
}

// DialX11 connects to the X server named by display ("" means $DISPLAY).
func DialX11(display string) (Gateway, error) {
	conn, err := xgb.NewConnDisplay(display)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to X server: %w", ErrConnection, err)
	}
	return &x11Gateway{conn: conn}, nil
}

func (g *x11Gateway) InternAtom(name string, onlyIfExists bool) (xproto.Atom, error) {
	reply, err := xproto.InternAtom(g.conn, onlyIfExists, uint16(len(name)), name).Reply()
	if err != nil {
		return xproto.AtomNone, classify(fmt.Sprintf("intern atom %s", name), err)
	}
	return reply.Atom, nil
}

func (g *x11Gateway) RootWindow() (xproto.Window, error) {
	setup := xproto.Setup(g.conn)
	if setup == nil {
		return xproto.WindowNone, fmt.Errorf("%w: no setup information", ErrConnection)
	}
	return screenRoot(setup.Roots, g.conn.DefaultScreen)
}

func (g *x11Gateway) WatchProperties(win xproto.Window) error {
	err := xproto.ChangeWindowAttributesChecked(
		g.conn,
		win,
		xproto.CwEventMask,
		[]uint32{xproto.EventMaskPropertyChange},
	).Check()
	if err != nil {
		return classify("failed to set event mask", err)
	}
	return nil
}

func (g *x11Gateway) WaitForEvent() (xgb.Event, error) {
	ev, xerr := g.conn.WaitForEvent()
	switch {
	case xerr != nil:
		return nil, fmt.Errorf("%w: %s", ErrProtocol, xerr.Error())
	case ev == nil:
		// xgb signals a closed connection with a nil event and a nil error.
		return nil, fmt.Errorf("%w: connection closed", ErrConnection)
	}
	return ev, nil
}

func (g *x11Gateway) GetProperty(win xproto.Window, property, typ xproto.Atom, offset, length uint32) (*xproto.GetPropertyReply, error) {
	reply, err := xproto.GetProperty(g.conn, false, win, property, typ, offset, length).Reply()
	if err != nil {
		return nil, classify(fmt.Sprintf("get property %d of window 0x%x", property, uint32(win)), err)
	}
	if reply == nil {
		return nil, fmt.Errorf("%w: no reply for property %d", ErrConnection, property)
	}
	return reply, nil
}

func (g *x11Gateway) Close() {
	g.closeOnce.Do(g.conn.Close)
}

// screenRoot picks the root window of screen idx.
func screenRoot(roots []xproto.ScreenInfo, idx int) (xproto.Window, error) {
	if idx < 0 || idx >= len(roots) {
		return xproto.WindowNone, fmt.Errorf("%w: index %d of %d", ErrScreenNotFound, idx, len(roots))
	}
	return roots[idx].Root, nil
}

// classify separates X error replies from transport failures.
func classify(op string, err error) error {
	var xerr xgb.Error
	if errors.As(err, &xerr) {
		return fmt.Errorf("%w: %s: %s", ErrProtocol, op, xerr.Error())
	}
	return fmt.Errorf("%w: %s: %w", ErrConnection, op, err)
}
