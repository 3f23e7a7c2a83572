// Package session tracks per-tab authentication state. Each browser tab owns
// an identity adapter and a Context that follows it through
// loading -> authenticated | unauthenticated, plus a sign-in dialog flag that
// any consumer holding the AuthDialog capability may raise.
package session

import (
	"context"
	"sync"

	"github.com/readmit/dashboard/internal/domain/identity"
)

type State string

const (
	StateLoading         State = "loading"
	StateAuthenticated   State = "authenticated"
	StateUnauthenticated State = "unauthenticated"
)

// AuthDialog is the capability to raise or dismiss the sign-in dialog.
type AuthDialog interface {
	Show()
	Hide()
	Visible() bool
}

// Source delivers session changes; *identity.Adapter satisfies it.
type Source interface {
	Subscribe(fn func(*identity.Session)) (unsubscribe func())
}

// Snapshot is a consistent read of a Context.
type Snapshot struct {
	State          State             `json:"state"`
	User           *identity.Session `json:"user"`
	DisplayName    string            `json:"display_name,omitempty"`
	ShowAuthDialog bool              `json:"show_auth_dialog"`
}

type Context struct {
	mu     sync.Mutex
	state  State
	user   *identity.Session
	dialog bool
	// changed is closed and replaced on every callback.
	changed chan struct{}

	ready     chan struct{}
	readyOnce sync.Once
	unsub     func()
	closeOnce sync.Once
}

// NewContext starts in the loading state and subscribes to src.
func NewContext(src Source) *Context {
	c := &Context{
		state:   StateLoading,
		changed: make(chan struct{}),
		ready:   make(chan struct{}),
	}
	c.unsub = src.Subscribe(c.onChange)
	return c
}

func (c *Context) onChange(s *identity.Session) {
	c.mu.Lock()
	c.user = s
	if s != nil {
		c.state = StateAuthenticated
		c.dialog = false
	} else {
		c.state = StateUnauthenticated
	}
	close(c.changed)
	c.changed = make(chan struct{})
	c.mu.Unlock()
	c.readyOnce.Do(func() { close(c.ready) })
}

func (c *Context) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Context) User() *identity.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

func (c *Context) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := Snapshot{State: c.state, User: c.user, ShowAuthDialog: c.dialog}
	if c.user != nil {
		snap.DisplayName = identity.ShortName(c.user)
	}
	return snap
}

// Wait blocks until the first session callback has arrived.
func (c *Context) Wait(ctx context.Context) error {
	select {
	case <-c.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitUntil blocks until cond holds for the current state and user, or ctx
// ends. cond is called with the Context locked.
func (c *Context) WaitUntil(ctx context.Context, cond func(State, *identity.Session) bool) error {
	for {
		c.mu.Lock()
		ok := cond(c.state, c.user)
		changed := c.changed
		c.mu.Unlock()
		if ok {
			return nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Context) Show() {
	c.mu.Lock()
	c.dialog = true
	c.mu.Unlock()
}

func (c *Context) Hide() {
	c.mu.Lock()
	c.dialog = false
	c.mu.Unlock()
}

func (c *Context) Visible() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dialog
}

// Close unsubscribes from the source. Later changes are not observed.
func (c *Context) Close() {
	c.closeOnce.Do(func() {
		if c.unsub != nil {
			c.unsub()
		}
	})
}

var _ AuthDialog = (*Context)(nil)
