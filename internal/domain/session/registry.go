package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/readmit/dashboard/internal/domain/identity"
	"github.com/readmit/dashboard/internal/platform/telemetry"
	"github.com/readmit/dashboard/internal/platform/websocket"
)

// Tab is the server-side half of one browser tab.
type Tab struct {
	ID        string
	Adapter   *identity.Adapter
	Context   *Context
	CreatedAt time.Time
}

func (t *Tab) close() {
	t.Context.Close()
	t.Adapter.Close()
}

// TabEvents carries tab-private events and drops a tab's event connections
// once the tab is gone. *websocket.Hub implements it.
type TabEvents interface {
	websocket.EventPublisher
	CloseTopic(topic string) int
}

// AdapterFactory builds a fresh identity adapter for a new tab.
type AdapterFactory func() *identity.Adapter

// Registry holds live tabs with a sliding idle expiry. Expired or closed
// tabs are torn down through the cache eviction hook.
type Registry struct {
	tabs       *cache.Cache
	ttl        time.Duration
	newAdapter AdapterFactory
	events     TabEvents
	logger     zerolog.Logger
}

// NewRegistry keeps tabs alive for ttl after their last request. events may
// be nil; otherwise every sign-in change is published to the tab's topic and
// the topic's connections are closed with the tab.
func NewRegistry(ttl time.Duration, newAdapter AdapterFactory, events TabEvents, logger zerolog.Logger) *Registry {
	cleanup := ttl / 4
	if cleanup < time.Second {
		cleanup = time.Second
	}
	r := &Registry{
		tabs:       cache.New(ttl, cleanup),
		ttl:        ttl,
		newAdapter: newAdapter,
		events:     events,
		logger:     logger,
	}
	r.tabs.OnEvicted(func(id string, v interface{}) {
		tab, ok := v.(*Tab)
		if !ok {
			return
		}
		tab.close()
		telemetry.TabSessionClosed()
		dropped := 0
		if r.events != nil {
			dropped = r.events.CloseTopic(websocket.TabTopic(id))
		}
		r.logger.Debug().Str("tab_id", id).Int("event_clients", dropped).Msg("tab session closed")
	})
	return r
}

// Open creates a tab whose Context starts in the loading state.
func (r *Registry) Open() *Tab {
	adapter := r.newAdapter()
	tab := &Tab{
		ID:        uuid.NewString(),
		Adapter:   adapter,
		Context:   NewContext(adapter),
		CreatedAt: time.Now().UTC(),
	}
	if r.events != nil {
		adapter.Subscribe(func(u *identity.Session) { r.publish(tab.ID, u) })
	}
	r.tabs.Set(tab.ID, tab, cache.DefaultExpiration)
	telemetry.TabSessionOpened()
	return tab
}

// sessionEvent is the payload of a session.changed event.
type sessionEvent struct {
	State       State             `json:"state"`
	User        *identity.Session `json:"user"`
	DisplayName string            `json:"display_name,omitempty"`
}

func (r *Registry) publish(tabID string, u *identity.Session) {
	payload := sessionEvent{State: StateUnauthenticated}
	if u != nil {
		payload = sessionEvent{State: StateAuthenticated, User: u, DisplayName: identity.ShortName(u)}
	}
	ev, err := websocket.NewEvent(websocket.EventSessionChanged, websocket.TabTopic(tabID), payload)
	if err != nil {
		r.logger.Error().Err(err).Str("tab_id", tabID).Msg("encode session event")
		return
	}
	if err := r.events.Publish(context.Background(), ev); err != nil {
		r.logger.Warn().Err(err).Str("tab_id", tabID).Msg("publish session event")
	}
}

// Get returns a live tab and extends its idle expiry.
func (r *Registry) Get(id string) (*Tab, bool) {
	v, found := r.tabs.Get(id)
	if !found {
		return nil, false
	}
	tab := v.(*Tab)
	if err := r.tabs.Replace(id, tab, cache.DefaultExpiration); err != nil {
		return nil, false
	}
	return tab, true
}

func (r *Registry) Close(id string) {
	r.tabs.Delete(id)
}

func (r *Registry) Len() int {
	return r.tabs.ItemCount()
}

// Shutdown closes every tab.
func (r *Registry) Shutdown() {
	for id := range r.tabs.Items() {
		r.tabs.Delete(id)
	}
}
