package devbackend

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/punchamoorthee/voucherdesk/internal/domain"
)

// CookieName matches the session cookie of the PHP backend.
const CookieName = "PHPSESSID"

type sessionEntry struct {
	user    domain.User
	expires time.Time
}

// Sessions maps cookie tokens to signed-in users.
type Sessions struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]sessionEntry
}

func NewSessions(ttl time.Duration) *Sessions {
	return &Sessions{ttl: ttl, now: time.Now, entries: make(map[string]sessionEntry)}
}

// Start creates a session and sets its cookie.
func (s *Sessions) Start(w http.ResponseWriter, user domain.User) {
	token := uuid.NewString()
	s.mu.Lock()
	s.entries[token] = sessionEntry{user: user, expires: s.now().Add(s.ttl)}
	s.mu.Unlock()
	http.SetCookie(w, &http.Cookie{Name: CookieName, Value: token, Path: "/", HttpOnly: true})
}

// User returns the user behind the request cookie. Expired sessions are dropped.
func (s *Sessions) User(r *http.Request) (domain.User, bool) {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return domain.User{}, false
	}
	s.mu.RLock()
	e, ok := s.entries[c.Value]
	s.mu.RUnlock()
	if !ok {
		return domain.User{}, false
	}
	if s.now().After(e.expires) {
		s.mu.Lock()
		delete(s.entries, c.Value)
		s.mu.Unlock()
		return domain.User{}, false
	}
	return e.user, true
}

// End forgets the request's session and expires its cookie.
func (s *Sessions) End(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(CookieName); err == nil {
		s.mu.Lock()
		delete(s.entries, c.Value)
		s.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{Name: CookieName, Value: "", Path: "/", MaxAge: -1})
}
