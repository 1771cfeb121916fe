package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/punchamoorthee/voucherdesk/internal/domain"
)

var (
	ErrNotSignedIn        = errors.New("not signed in")
	ErrMissingCredentials = errors.New("username and password are required")
)

// Authenticator is the part of the backend the holder needs.
type Authenticator interface {
	SessionCheck(ctx context.Context) (domain.User, bool, error)
	Login(ctx context.Context, creds domain.Credentials) (domain.User, error)
	Logout(ctx context.Context) error
}

// Holder tracks who is signed in to the backend. It is created once and
// handed to every component that needs an identity.
type Holder struct {
	auth Authenticator
	log  *zap.Logger

	mu        sync.RWMutex
	user      domain.User
	signedIn  bool
	checkedAt time.Time
}

func NewHolder(auth Authenticator, log *zap.Logger) *Holder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Holder{auth: auth, log: log}
}

// Check asks the backend whether the session is still valid and records the answer.
func (h *Holder) Check(ctx context.Context) (domain.User, bool, error) {
	user, ok, err := h.auth.SessionCheck(ctx)
	if err != nil {
		return domain.User{}, false, err
	}
	h.set(user, ok)
	return user, ok, nil
}

// Login signs in and remembers the user.
func (h *Holder) Login(ctx context.Context, username, password string) (domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return domain.User{}, ErrMissingCredentials
	}
	user, err := h.auth.Login(ctx, domain.Credentials{Username: username, Password: password})
	if err != nil {
		return domain.User{}, err
	}
	if user.Username == "" {
		user.Username = username
	}
	h.set(user, true)
	h.log.Info("signed in", zap.String("user", user.Username))
	return user, nil
}

// Logout ends the session. Local state is cleared even when the backend call fails.
func (h *Holder) Logout(ctx context.Context) error {
	err := h.auth.Logout(ctx)
	h.set(domain.User{}, false)
	return err
}

// Current returns the signed-in user.
func (h *Holder) Current() (domain.User, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.user, h.signedIn
}

// Require is Current as an error.
func (h *Holder) Require() (domain.User, error) {
	user, ok := h.Current()
	if !ok {
		return domain.User{}, ErrNotSignedIn
	}
	return user, nil
}

// CheckedAt is the time of the last recorded session state.
func (h *Holder) CheckedAt() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.checkedAt
}

// Poll checks the session immediately and then every interval until ctx ends.
func (h *Holder) Poll(ctx context.Context, interval time.Duration) {
	h.pollOnce(ctx)
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.pollOnce(ctx)
		}
	}
}

func (h *Holder) pollOnce(ctx context.Context) {
	_, wasSignedIn := h.Current()
	_, ok, err := h.Check(ctx)
	if err != nil {
		if ctx.Err() == nil {
			h.log.Warn("session check failed", zap.Error(err))
		}
		return
	}
	if wasSignedIn && !ok {
		h.log.Info("backend session expired")
	}
}

func (h *Holder) set(user domain.User, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !ok {
		user = domain.User{}
	}
	h.user = user
	h.signedIn = ok
	h.checkedAt = time.Now()
}
