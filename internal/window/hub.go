package window

import (
	"context"
	"errors"
	"sync"

	"github.com/bryanchriswhite/FocusMonitor/internal/logger"
)

// Focus is the state published to Hub subscribers.
type Focus struct {
	Focused bool    `json:"focused"`
	Window  *Window `json:"window,omitempty"`
}

// FocusOf wraps a monitor result.
func FocusOf(w *Window) Focus {
	return Focus{Focused: w != nil, Window: w}
}

// Source is anything that yields focus changes, typically an AsyncMonitor.
type Source interface {
	Recv(ctx context.Context) (*Window, error)
}

// Hub consumes a Source and fans the changes out to any number of listeners.
type Hub struct {
	source Source

	mu        sync.RWMutex
	current   Focus
	known     bool
	listeners []chan Focus
}

// NewHub creates a hub reading from source.
func NewHub(source Source) *Hub {
	return &Hub{
		source:    source,
		listeners: make([]chan Focus, 0),
	}
}

// Seed sets the current focus before the first change arrives.
func (h *Hub) Seed(f Focus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.current = f
	h.known = true
}

// Run reads from the source until ctx is done or the source fails for good.
func (h *Hub) Run(ctx context.Context) error {
	log := logger.WithComponent("focus-hub")

	for {
		w, err := h.source.Recv(ctx)
		switch {
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, ErrClosed):
			return err
		case IsFatal(err):
			log.Error().Err(err).Msg("Focus source failed")
			return err
		case err != nil:
			log.Warn().Err(err).Msg("Failed to resolve focused window")
			continue
		}

		f := FocusOf(w)
		h.mu.Lock()
		h.current = f
		h.known = true
		h.mu.Unlock()

		if w != nil {
			log.Debug().Str("title", w.Title).Str("class", w.Class.Class).Msg("Focus changed")
		} else {
			log.Debug().Msg("Focus cleared")
		}
		h.notifyListeners(f)
	}
}

// Current returns the last known focus; ok is false until something is known.
func (h *Hub) Current() (Focus, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current, h.known
}

// Subscribe adds a listener for focus changes
func (h *Hub) Subscribe() chan Focus {
	ch := make(chan Focus, 10)
	h.mu.Lock()
	h.listeners = append(h.listeners, ch)
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener and closes its channel
func (h *Hub) Unsubscribe(ch chan Focus) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, listener := range h.listeners {
		if listener == ch {
			h.listeners = append(h.listeners[:i], h.listeners[i+1:]...)
			close(ch)
			break
		}
	}
}

func (h *Hub) notifyListeners(f Focus) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, listener := range h.listeners {
		select {
		case listener <- f:
		default:
			logger.WithComponent("focus-hub").Warn().Msg("Listener is not keeping up, dropping focus update")
		}
	}
}
