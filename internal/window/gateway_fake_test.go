package window

import (
	"fmt"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
)

const (
	testRoot         xproto.Window = 0x100
	testActiveAtom   xproto.Atom   = 300
	testNetWMName    xproto.Atom   = 301
	testUTF8String   xproto.Atom   = 302
	testUnrelatedAtm xproto.Atom   = 400
)

type propertyCall struct {
	Window   xproto.Window
	Property xproto.Atom
	Type     xproto.Atom
	Length   uint32
}

// fakeGateway replays a scripted X session. Each PropertyNotify for the
// active window atom consumes the next entry of active.
type fakeGateway struct {
	mu sync.Mutex

	atoms     map[string]xproto.Atom
	rootErr   error
	watchErr  error
	events    []xgb.Event
	eventErrs map[int]error // index into events -> error returned instead
	active    []xproto.Window
	props     map[xproto.Window]map[xproto.Atom][]byte
	propErrs  map[xproto.Window]error

	calls   []propertyCall
	watched []xproto.Window
	closed  bool
	wakeup  chan struct{}
	pulled  int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		atoms: map[string]xproto.Atom{
			activeWindowAtomName: testActiveAtom,
		},
		eventErrs: make(map[int]error),
		props:     make(map[xproto.Window]map[xproto.Atom][]byte),
		propErrs:  make(map[xproto.Window]error),
		wakeup:    make(chan struct{}),
	}
}

// activeChange scripts one _NET_ACTIVE_WINDOW notification that reads id.
func (g *fakeGateway) activeChange(id xproto.Window) *fakeGateway {
	g.events = append(g.events, xproto.PropertyNotifyEvent{
		Window: testRoot,
		Atom:   testActiveAtom,
		State:  xproto.PropertyNewValue,
	})
	g.active = append(g.active, id)
	return g
}

func (g *fakeGateway) event(ev xgb.Event) *fakeGateway {
	g.events = append(g.events, ev)
	return g
}

func (g *fakeGateway) eventError(err error) *fakeGateway {
	g.eventErrs[len(g.events)] = err
	g.events = append(g.events, nil)
	return g
}

func (g *fakeGateway) window(id xproto.Window, title, class string) *fakeGateway {
	g.props[id] = map[xproto.Atom][]byte{
		xproto.AtomWmName:  []byte(title),
		xproto.AtomWmClass: []byte(class),
	}
	return g
}

func (g *fakeGateway) InternAtom(name string, onlyIfExists bool) (xproto.Atom, error) {
	atom, ok := g.atoms[name]
	if !ok {
		if onlyIfExists {
			return xproto.AtomNone, nil
		}
		return xproto.AtomNone, fmt.Errorf("%w: atom %s", ErrConnection, name)
	}
	return atom, nil
}

func (g *fakeGateway) RootWindow() (xproto.Window, error) {
	if g.rootErr != nil {
		return xproto.WindowNone, g.rootErr
	}
	return testRoot, nil
}

func (g *fakeGateway) WatchProperties(win xproto.Window) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.watched = append(g.watched, win)
	return g.watchErr
}

// WaitForEvent replays the script, then blocks until Close like a real
// connection with no further activity.
func (g *fakeGateway) WaitForEvent() (xgb.Event, error) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil, fmt.Errorf("%w: connection closed", ErrConnection)
	}
	if g.pulled < len(g.events) {
		i := g.pulled
		g.pulled++
		ev, err := g.events[i], g.eventErrs[i]
		g.mu.Unlock()
		if err != nil {
			return nil, err
		}
		return ev, nil
	}
	wakeup := g.wakeup
	g.mu.Unlock()

	<-wakeup
	return nil, fmt.Errorf("%w: connection closed", ErrConnection)
}

func (g *fakeGateway) GetProperty(win xproto.Window, property, typ xproto.Atom, offset, length uint32) (*xproto.GetPropertyReply, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls = append(g.calls, propertyCall{Window: win, Property: property, Type: typ, Length: length})

	if win == testRoot && property == testActiveAtom {
		if len(g.active) == 0 {
			return &xproto.GetPropertyReply{Format: 32}, nil
		}
		id := g.active[0]
		g.active = g.active[1:]
		value := make([]byte, 4)
		xgb.Put32(value, uint32(id))
		return &xproto.GetPropertyReply{Format: 32, Type: xproto.AtomWindow, ValueLen: 1, Value: value}, nil
	}

	if err := g.propErrs[win]; err != nil {
		return nil, err
	}

	value := g.props[win][property]
	return &xproto.GetPropertyReply{Format: 8, Type: typ, ValueLen: uint32(len(value)), Value: value}, nil
}

func (g *fakeGateway) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.closed {
		g.closed = true
		close(g.wakeup)
	}
}

func (g *fakeGateway) propertyCalls() []propertyCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]propertyCall(nil), g.calls...)
}

func (g *fakeGateway) isClosed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

func dialFake(g *fakeGateway) func(string) (Gateway, error) {
	return func(string) (Gateway, error) {
		return g, nil
	}
}
