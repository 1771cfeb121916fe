package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/punchamoorthee/voucherdesk/internal/domain"
)

type fakeAuth struct {
	mu        sync.Mutex
	valid     bool
	checks    int
	logoutErr error
}

func (f *fakeAuth) SessionCheck(context.Context) (domain.User, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks++
	if !f.valid {
		return domain.User{}, false, nil
	}
	return domain.User{ID: "5", Username: "clerk"}, true, nil
}

func (f *fakeAuth) Login(_ context.Context, creds domain.Credentials) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if creds.Password != "secret" {
		return domain.User{}, errors.New("invalid username or password")
	}
	f.valid = true
	return domain.User{ID: "5"}, nil
}

func (f *fakeAuth) Logout(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.valid = false
	return f.logoutErr
}

func (f *fakeAuth) checkCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.checks
}

func TestLoginLogout(t *testing.T) {
	auth := &fakeAuth{}
	h := NewHolder(auth, nil)
	ctx := context.Background()

	_, err := h.Require()
	assert.ErrorIs(t, err, ErrNotSignedIn)

	_, err = h.Login(ctx, "clerk", "wrong")
	require.Error(t, err)
	_, ok := h.Current()
	assert.False(t, ok)

	user, err := h.Login(ctx, " clerk ", "secret")
	require.NoError(t, err)
	assert.Equal(t, "clerk", user.Username, "username falls back to the one typed")

	current, err := h.Require()
	require.NoError(t, err)
	assert.Equal(t, domain.FlexString("5"), current.ID)

	auth.logoutErr = errors.New("backend down")
	assert.Error(t, h.Logout(ctx))
	_, ok = h.Current()
	assert.False(t, ok, "local state is cleared even if the backend call fails")
}

func TestLogin_MissingCredentials(t *testing.T) {
	h := NewHolder(&fakeAuth{}, nil)
	_, err := h.Login(context.Background(), "", "secret")
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestCheck_PicksUpExpiry(t *testing.T) {
	auth := &fakeAuth{valid: true}
	h := NewHolder(auth, nil)
	ctx := context.Background()

	_, ok, err := h.Check(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	auth.mu.Lock()
	auth.valid = false
	auth.mu.Unlock()

	_, ok, err = h.Check(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok = h.Current()
	assert.False(t, ok)
	assert.False(t, h.CheckedAt().IsZero())
}

func TestPoll_StopsWithContext(t *testing.T) {
	auth := &fakeAuth{valid: true}
	h := NewHolder(auth, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		h.Poll(ctx, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return auth.checkCount() >= 3 }, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Poll did not return after cancel")
	}
	_, ok := h.Current()
	assert.True(t, ok)
}
