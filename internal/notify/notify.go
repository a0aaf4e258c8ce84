// Package notify is the toast notification service shared by the editor and
// its front-ends.
package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind is the severity of a toast.
type Kind string

// Toast kinds.
const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindInfo    Kind = "info"
)

// Common action labels.
const (
	ActionUndo  = "Undo"
	ActionRetry = "Retry"
)

const (
	defaultHistory = 50
	listenerBuffer = 16
)

// Action is a button offered on a toast.
type Action struct {
	Label string
	Run   func()
}

// Toast is one notification.
type Toast struct {
	ID      string
	Kind    Kind
	Message string
	Actions []Action
	At      time.Time
}

// Labels returns the action labels in order.
func (t Toast) Labels() []string {
	out := make([]string, len(t.Actions))
	for i, a := range t.Actions {
		out[i] = a.Label
	}
	return out
}

// Notifier is what the editor fires toasts through.
type Notifier interface {
	Success(msg string, actions ...Action) string
	Error(msg string, actions ...Action) string
	Info(msg string, actions ...Action) string
}

// Center keeps recent toasts and fans new ones out to listeners.
type Center struct {
	mu        sync.Mutex
	history   []Toast
	max       int
	listeners map[chan Toast]struct{}
	now       func() time.Time
}

// CenterOption configures a Center.
type CenterOption func(*Center)

// WithHistory sets how many toasts Toasts keeps.
func WithHistory(n int) CenterOption {
	return func(c *Center) {
		if n > 0 {
			c.max = n
		}
	}
}

// WithNow overrides the clock.
func WithNow(now func() time.Time) CenterOption {
	return func(c *Center) { c.now = now }
}

// NewCenter creates an empty notification center.
func NewCenter(opts ...CenterOption) *Center {
	c := &Center{
		max:       defaultHistory,
		listeners: make(map[chan Toast]struct{}),
		now:       time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Success fires a success toast and returns its id.
func (c *Center) Success(msg string, actions ...Action) string {
	return c.push(KindSuccess, msg, actions)
}

// Error fires an error toast and returns its id.
func (c *Center) Error(msg string, actions ...Action) string {
	return c.push(KindError, msg, actions)
}

// Info fires an informational toast and returns its id.
func (c *Center) Info(msg string, actions ...Action) string {
	return c.push(KindInfo, msg, actions)
}

func (c *Center) push(kind Kind, msg string, actions []Action) string {
	t := Toast{
		ID:      uuid.NewString(),
		Kind:    kind,
		Message: msg,
		Actions: actions,
		At:      c.now(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = append(c.history, t)
	if len(c.history) > c.max {
		c.history = c.history[len(c.history)-c.max:]
	}
	for ch := range c.listeners {
		select {
		case ch <- t:
		default:
			// Slow listener; it can catch up through Toasts.
		}
	}
	return t.ID
}

// Subscribe registers a listener. The returned function unsubscribes and
// closes the channel.
func (c *Center) Subscribe() (<-chan Toast, func()) {
	ch := make(chan Toast, listenerBuffer)
	c.mu.Lock()
	c.listeners[ch] = struct{}{}
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, ch)
			c.mu.Unlock()
			close(ch)
		})
	}
}

// Toasts returns the recent toasts, oldest first.
func (c *Center) Toasts() []Toast {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Toast, len(c.history))
	copy(out, c.history)
	return out
}

// Dismiss drops a toast from the history.
func (c *Center) Dismiss(toastID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, t := range c.history {
		if t.ID == toastID {
			c.history = append(c.history[:i], c.history[i+1:]...)
			return
		}
	}
}

// Trigger runs the named action of a toast and dismisses the toast. An
// action runs at most once.
func (c *Center) Trigger(toastID, label string) error {
	c.mu.Lock()
	var run func()
	for i, t := range c.history {
		if t.ID != toastID {
			continue
		}
		for _, a := range t.Actions {
			if a.Label == label {
				run = a.Run
				c.history = append(c.history[:i], c.history[i+1:]...)
				break
			}
		}
		break
	}
	c.mu.Unlock()

	if run == nil {
		return fmt.Errorf("notify: toast %s has no action %q", toastID, label)
	}
	run()
	return nil
}

// Discard is a Notifier that drops everything.
type Discard struct{}

func (Discard) Success(string, ...Action) string { return "" }
func (Discard) Error(string, ...Action) string   { return "" }
func (Discard) Info(string, ...Action) string    { return "" }
