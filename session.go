package deluge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const (
	methodLogin         = "auth.login"
	methodCheckSession  = "auth.check_session"
	methodDeleteSession = "auth.delete_session"

	// maxSessionRenewals caps forced re-logins per call.
	maxSessionRenewals = 1
)

// Session is the logical authentication state of a client. The credential
// itself is the cookie deluge-web set on the login response.
type Session struct {
	// ID identifies the session in logs; the server never sees it.
	ID            string
	EstablishedAt time.Time
}

// sessionManager makes sure every call runs on an authenticated channel.
// Concurrent callers that find no session share one auth.login exchange.
type sessionManager struct {
	transport Transport
	id        int
	password  string
	timeout   time.Duration
	log       zerolog.Logger

	group singleflight.Group

	mu      sync.RWMutex
	session *Session
	// pending is closed when the login in flight finishes, nil otherwise.
	pending chan struct{}
}

func newSessionManager(transport Transport, id int, password string, timeout time.Duration, log zerolog.Logger) *sessionManager {
	return &sessionManager{
		transport: transport,
		id:        id,
		password:  password,
		timeout:   timeout,
		log:       log,
	}
}

func (m *sessionManager) current() *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

// invalidate drops s if it is still the cached session. A session
// established by another caller in the meantime is left alone.
func (m *sessionManager) invalidate(s *Session) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session != s {
		return false
	}
	m.session = nil
	return true
}

// settled returns the cached session, first waiting for a login in flight
// to finish. It never starts a login.
func (m *sessionManager) settled(ctx context.Context) (*Session, error) {
	m.mu.RLock()
	s, pending := m.session, m.pending
	m.mu.RUnlock()
	if s != nil || pending == nil {
		return s, nil
	}

	select {
	case <-pending:
		return m.current(), nil
	case <-ctx.Done():
		return nil, newTransportError(ctx.Err())
	}
}

func (m *sessionManager) call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	for attempt := 0; ; attempt++ {
		s, err := m.ensure(ctx)
		if err != nil {
			return nil, err
		}

		result, err := m.transport.Send(ctx, &Request{ID: m.id, Method: method, Params: params})
		if err == nil {
			return result, nil
		}

		var apiErr *APIError
		if !errors.As(err, &apiErr) || !apiErr.NotAuthenticated() || attempt >= maxSessionRenewals {
			return nil, err
		}

		if m.invalidate(s) {
			m.log.Debug().Str("session", s.ID).Str("method", method).Msg("session expired, logging in again")
		}
		sessionRenewals.Inc()
	}
}

// ensure returns the cached session, logging in when there is none.
func (m *sessionManager) ensure(ctx context.Context) (*Session, error) {
	if s := m.current(); s != nil {
		return s, nil
	}

	ch := m.group.DoChan(methodLogin, func() (any, error) {
		// A login that finished between the check above and this flight
		// starting is reused.
		if s := m.current(); s != nil {
			return s, nil
		}

		done := make(chan struct{})
		m.mu.Lock()
		m.pending = done
		m.mu.Unlock()
		defer func() {
			m.mu.Lock()
			m.pending = nil
			m.mu.Unlock()
			close(done)
		}()

		// The login is shared, so one waiter giving up must not cancel it
		// for the others.
		loginCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
		defer cancel()

		s, err := m.login(loginCtx)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		m.session = s
		m.mu.Unlock()
		return s, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Session), nil
	case <-ctx.Done():
		return nil, newTransportError(ctx.Err())
	}
}

// login sends auth.login. deluge-web reports a wrong password through a
// false result rather than the error field.
func (m *sessionManager) login(ctx context.Context) (*Session, error) {
	m.log.Debug().Msg("no session, attempting login")

	result, err := m.transport.Send(ctx, &Request{ID: m.id, Method: methodLogin, Params: []any{m.password}})
	if err == nil && !truthy(result) {
		err = &AuthenticationError{Message: "password rejected by deluge-web"}
	}
	recordLogin(err)
	if err != nil {
		m.log.Warn().Err(err).Msg("login failed")
		return nil, err
	}

	s := &Session{ID: uuid.NewString(), EstablishedAt: time.Now()}
	m.log.Debug().Str("session", s.ID).Msg("login succeeded")
	return s, nil
}

// truthy applies JavaScript truthiness to a JSON value, which is how
// deluge-web clients interpret the auth.login result.
func truthy(raw json.RawMessage) bool {
	v := bytes.TrimSpace(raw)
	switch string(v) {
	case "", "null", "false", `""`:
		return false
	}
	if f, err := strconv.ParseFloat(string(v), 64); err == nil {
		return f != 0
	}
	return true
}
