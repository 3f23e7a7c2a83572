package identity

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const defaultStateTTL = 10 * time.Minute

// ProviderResult is what the provider popup hands back to the tab.
type ProviderResult struct {
	Code  string `json:"code"`
	State string `json:"state"`
	Error string `json:"error,omitempty"`
}

type delivery struct {
	sub     uint64
	session *Session
}

// Adapter is one tab's view of the identity service. Session changes are
// delivered to subscribers asynchronously, in order, from a single
// dispatcher goroutine.
type Adapter struct {
	creds    Credentials
	fed      Federated
	logger   zerolog.Logger
	stateTTL time.Duration
	now      func() time.Time

	mu      sync.Mutex
	current *Session
	subs    map[uint64]func(*Session)
	nextSub uint64
	queue   []delivery
	states  map[string]time.Time
	closed  bool
	wake    chan struct{}
}

// NewAdapter starts the dispatcher. fed may be nil when provider sign-in is
// not configured.
func NewAdapter(creds Credentials, fed Federated, logger zerolog.Logger) *Adapter {
	a := &Adapter{
		creds:    creds,
		fed:      fed,
		logger:   logger,
		stateTTL: defaultStateTTL,
		now:      time.Now,
		subs:     make(map[uint64]func(*Session)),
		states:   make(map[string]time.Time),
		wake:     make(chan struct{}, 1),
	}
	go a.dispatch()
	return a
}

func (a *Adapter) dispatch() {
	for {
		a.mu.Lock()
		if a.closed {
			a.mu.Unlock()
			return
		}
		if len(a.queue) == 0 {
			a.mu.Unlock()
			<-a.wake
			continue
		}
		d := a.queue[0]
		a.queue = a.queue[1:]
		fn, ok := a.subs[d.sub]
		a.mu.Unlock()

		if ok {
			fn(d.session)
		}
	}
}

func (a *Adapter) signal() {
	select {
	case a.wake <- struct{}{}:
	default:
	}
}

// enqueueLocked schedules s for every subscriber. Caller holds mu.
func (a *Adapter) enqueueLocked(sub uint64, s *Session) {
	var cp *Session
	if s != nil {
		v := *s
		cp = &v
	}
	a.queue = append(a.queue, delivery{sub: sub, session: cp})
}

func (a *Adapter) setSession(s *Session) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.current = s
	for id := range a.subs {
		a.enqueueLocked(id, s)
	}
	a.mu.Unlock()
	a.signal()
}

// Subscribe registers fn. It is called once with the current session and
// again after every change until the returned function is called.
func (a *Adapter) Subscribe(fn func(*Session)) (unsubscribe func()) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return func() {}
	}
	a.nextSub++
	id := a.nextSub
	a.subs[id] = fn
	a.enqueueLocked(id, a.current)
	a.mu.Unlock()
	a.signal()

	return func() {
		a.mu.Lock()
		delete(a.subs, id)
		a.mu.Unlock()
	}
}

// Current returns the session as of the last change, or nil.
func (a *Adapter) Current() *Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == nil {
		return nil
	}
	s := *a.current
	return &s
}

func (a *Adapter) isClosed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

func (a *Adapter) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	if a.isClosed() {
		return nil, ErrClosed
	}
	s, err := a.creds.VerifyPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	a.setSession(s)
	a.logger.Info().Str("user_id", s.UserID).Str("provider", s.Provider).Msg("signed in")
	return s, nil
}

// SignUp requires both names before contacting the identity service. The
// display name is "first last".
func (a *Adapter) SignUp(ctx context.Context, email, password, firstName, lastName string) (*Session, error) {
	if a.isClosed() {
		return nil, ErrClosed
	}
	first := strings.TrimSpace(firstName)
	last := strings.TrimSpace(lastName)
	if first == "" || last == "" {
		return nil, newAuthError(CodeMissingName, "First name and last name are required")
	}
	s, err := a.creds.CreateUser(ctx, email, password, first+" "+last)
	if err != nil {
		return nil, err
	}
	a.setSession(s)
	a.logger.Info().Str("user_id", s.UserID).Msg("signed up")
	return s, nil
}

// ProviderURL starts a provider sign-in and returns the popup URL with the
// state the callback must echo.
func (a *Adapter) ProviderURL() (url, state string, err error) {
	if a.isClosed() {
		return "", "", ErrClosed
	}
	if a.fed == nil {
		return "", "", newAuthError(CodePopupBlocked, "Provider sign-in is not available.")
	}
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", "", internalError("Provider sign in", err)
	}
	state = base64.RawURLEncoding.EncodeToString(b)

	a.mu.Lock()
	now := a.now()
	for s, exp := range a.states {
		if now.After(exp) {
			delete(a.states, s)
		}
	}
	a.states[state] = now.Add(a.stateTTL)
	a.mu.Unlock()

	return a.fed.AuthCodeURL(state), state, nil
}

func (a *Adapter) consumeState(state string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	exp, ok := a.states[state]
	delete(a.states, state)
	return ok && !a.now().After(exp)
}

// SignInWithProvider completes the popup round trip. A dismissed popup, an
// empty code or a state this tab did not issue all count as the user closing
// the popup.
func (a *Adapter) SignInWithProvider(ctx context.Context, res ProviderResult) (*Session, error) {
	if a.isClosed() {
		return nil, ErrClosed
	}
	if a.fed == nil {
		return nil, newAuthError(CodePopupBlocked, "Provider sign-in is not available.")
	}
	validState := a.consumeState(res.State)
	if res.Error != "" || res.Code == "" || !validState {
		return nil, newAuthError(CodePopupClosed, "The popup has been closed by the user before finalizing the operation.")
	}
	s, err := a.fed.Exchange(ctx, res.Code)
	if err != nil {
		return nil, err
	}
	a.setSession(s)
	a.logger.Info().Str("user_id", s.UserID).Str("provider", s.Provider).Msg("signed in")
	return s, nil
}

func (a *Adapter) SignOut() {
	a.setSession(nil)
}

// Close stops delivery. Pending callbacks are dropped.
func (a *Adapter) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.queue = nil
	a.subs = nil
	a.mu.Unlock()
	a.signal()
}
