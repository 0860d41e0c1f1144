package client

import "sync"

// EventKind tells subscribers what changed
type EventKind string

const (
	EventLoggedIn    EventKind = "logged_in"
	EventLoggedOut   EventKind = "logged_out"
	EventCartChanged EventKind = "cart_changed"
)

// SessionEvent is delivered to Session subscribers
type SessionEvent struct {
	Kind     EventKind
	LoggedIn bool
}

// subscriberBuffer bounds how far a slow subscriber may lag before events are dropped.
const subscriberBuffer = 16

// Session holds the shopper's credentials. It is shared by everything that talks to
// the storefront on the shopper's behalf and notifies subscribers when it changes.
type Session struct {
	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	subscribers  map[int]chan SessionEvent
	nextID       int
}

func NewSession() *Session {
	return &Session{subscribers: make(map[int]chan SessionEvent)}
}

// LoggedIn reports whether the session holds an access token.
func (s *Session) LoggedIn() bool {
	return s.AccessToken() != ""
}

func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken
}

// SetTokens stores credentials and notifies subscribers.
func (s *Session) SetTokens(access, refresh string) {
	s.mu.Lock()
	s.accessToken = access
	if refresh != "" {
		s.refreshToken = refresh
	}
	s.mu.Unlock()
	s.notify(SessionEvent{Kind: EventLoggedIn, LoggedIn: access != ""})
}

// Clear forgets the credentials.
func (s *Session) Clear() {
	s.mu.Lock()
	s.accessToken, s.refreshToken = "", ""
	s.mu.Unlock()
	s.notify(SessionEvent{Kind: EventLoggedOut})
}

// Subscribe returns a channel of session changes and a func that ends the
// subscription. Events are dropped for a subscriber whose buffer is full.
func (s *Session) Subscribe() (<-chan SessionEvent, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan SessionEvent, subscriberBuffer)
	s.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, id)
			s.mu.Unlock()
			close(ch)
		})
	}
}

func (s *Session) notify(e SessionEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- e:
		default:
		}
	}
}
