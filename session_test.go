package deluge

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// fakeTransport answers requests through handler and records the methods
// it was asked to send.
type fakeTransport struct {
	mu      sync.Mutex
	methods []string
	handler func(req *Request) (json.RawMessage, error)
}

func (f *fakeTransport) Send(ctx context.Context, req *Request) (json.RawMessage, error) {
	f.mu.Lock()
	f.methods = append(f.methods, req.Method)
	f.mu.Unlock()
	return f.handler(req)
}

func (f *fakeTransport) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.methods {
		if m == method {
			n++
		}
	}
	return n
}

func newTestManager(handler func(req *Request) (json.RawMessage, error)) (*sessionManager, *fakeTransport) {
	ft := &fakeTransport{handler: handler}
	return newSessionManager(ft, 1, testPassword, time.Second, zerolog.Nop()), ft
}

var errNotAuthenticated = &APIError{Message: "Not authenticated", Code: 1}

func TestSessionLoginSendsPassword(t *testing.T) {
	var gotParams []any
	m, _ := newTestManager(func(req *Request) (json.RawMessage, error) {
		if req.Method == methodLogin {
			gotParams = req.Params
		}
		return json.RawMessage("true"), nil
	})

	if _, err := m.call(context.Background(), "web.connected", nil); err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if len(gotParams) != 1 || gotParams[0] != testPassword {
		t.Errorf("Expected password as sole parameter, got %v", gotParams)
	}
}

func TestSessionRejectedLoginIsNotCached(t *testing.T) {
	m, ft := newTestManager(func(req *Request) (json.RawMessage, error) {
		return json.RawMessage("false"), nil
	})

	for i := 0; i < 2; i++ {
		_, err := m.call(context.Background(), "web.connected", nil)
		var authErr *AuthenticationError
		if !errors.As(err, &authErr) {
			t.Fatalf("Expected AuthenticationError, got %v", err)
		}
	}

	if m.current() != nil {
		t.Error("Rejected login must leave the session absent")
	}
	if got := ft.count(methodLogin); got != 2 {
		t.Errorf("Expected each call to retry the login, got %d logins", got)
	}
	if got := ft.count("web.connected"); got != 0 {
		t.Errorf("No call may be sent without a session, got %d", got)
	}
}

func TestSessionLoginTransportFailurePropagatesUnchanged(t *testing.T) {
	cause := &TransportError{Code: ErrorCodeConnectionRefused, Message: "connection refused"}
	m, _ := newTestManager(func(req *Request) (json.RawMessage, error) {
		return nil, cause
	})

	_, err := m.call(context.Background(), "web.connected", nil)
	if err != cause {
		t.Fatalf("Expected the transport error itself, got %v", err)
	}
	if m.current() != nil {
		t.Error("Failed login must not be cached")
	}
}

func TestSessionRetriesOnceOnExpiry(t *testing.T) {
	var mu sync.Mutex
	expired := true
	m, ft := newTestManager(func(req *Request) (json.RawMessage, error) {
		mu.Lock()
		defer mu.Unlock()
		if req.Method == methodLogin {
			return json.RawMessage("true"), nil
		}
		if expired {
			expired = false
			return nil, errNotAuthenticated
		}
		return json.RawMessage(`"done"`), nil
	})

	result, err := m.call(context.Background(), "core.resume_torrent", []any{"abc"})
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if string(result) != `"done"` {
		t.Errorf("Unexpected result %s", result)
	}
	if got := ft.count(methodLogin); got != 2 {
		t.Errorf("Expected 2 logins, got %d", got)
	}
	if got := ft.count("core.resume_torrent"); got != 2 {
		t.Errorf("Expected the call to be sent twice, got %d", got)
	}
}

func TestSessionGivesUpAfterSecondExpiry(t *testing.T) {
	m, ft := newTestManager(func(req *Request) (json.RawMessage, error) {
		if req.Method == methodLogin {
			return json.RawMessage("true"), nil
		}
		return nil, errNotAuthenticated
	})

	_, err := m.call(context.Background(), "web.connected", nil)
	if !errors.Is(err, errNotAuthenticated) {
		t.Fatalf("Expected the second not-authenticated error, got %v", err)
	}
	if got := ft.count("web.connected"); got != 2 {
		t.Errorf("Expected exactly one retry, got %d sends", got)
	}
}

func TestSessionOtherErrorsAreNotRetried(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"transport", &TransportError{Code: ErrorCodeTimeout, Message: "request timed out"}},
		{"protocol", &ProtocolError{Err: errors.New("invalid character '<'")}},
		{"api", &APIError{Message: "Unknown method", Code: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ft := newTestManager(func(req *Request) (json.RawMessage, error) {
				if req.Method == methodLogin {
					return json.RawMessage("true"), nil
				}
				return nil, tt.err
			})

			_, err := m.call(context.Background(), "web.connected", nil)
			if err != tt.err {
				t.Fatalf("Expected %v, got %v", tt.err, err)
			}
			if got := ft.count("web.connected"); got != 1 {
				t.Errorf("Expected no retry, got %d sends", got)
			}
			if m.current() == nil {
				t.Error("Session must survive errors unrelated to authentication")
			}
		})
	}
}

func TestSessionConcurrentCallersShareLogin(t *testing.T) {
	release := make(chan struct{})
	m, ft := newTestManager(func(req *Request) (json.RawMessage, error) {
		if req.Method == methodLogin {
			<-release
			return json.RawMessage("true"), nil
		}
		return json.RawMessage("1"), nil
	})

	var g errgroup.Group
	for i := 0; i < 50; i++ {
		g.Go(func() error {
			_, err := m.call(context.Background(), "web.connected", nil)
			return err
		})
	}

	time.Sleep(50 * time.Millisecond)
	close(release)

	if err := g.Wait(); err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if got := ft.count(methodLogin); got != 1 {
		t.Errorf("Expected one shared login, got %d", got)
	}
	if got := ft.count("web.connected"); got != 50 {
		t.Errorf("Expected 50 calls, got %d", got)
	}
}

func TestSessionConcurrentLoginFailureReachesAllWaiters(t *testing.T) {
	release := make(chan struct{})
	m, ft := newTestManager(func(req *Request) (json.RawMessage, error) {
		<-release
		return json.RawMessage("false"), nil
	})

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := range errs {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = m.call(context.Background(), "web.connected", nil)
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i, err := range errs {
		var authErr *AuthenticationError
		if !errors.As(err, &authErr) {
			t.Errorf("Caller %d: expected AuthenticationError, got %v", i, err)
		}
	}
	if got := ft.count(methodLogin); got != 1 {
		t.Errorf("Expected one shared login, got %d", got)
	}
}

func TestSessionInvalidateKeepsNewerSession(t *testing.T) {
	m, _ := newTestManager(nil)

	old := &Session{ID: "old"}
	newer := &Session{ID: "new"}
	m.session = newer

	if m.invalidate(old) {
		t.Error("Invalidating a stale session must not succeed")
	}
	if m.current() != newer {
		t.Error("Newer session must be kept")
	}
	if !m.invalidate(newer) {
		t.Error("Expected current session to be invalidated")
	}
	if m.current() != nil {
		t.Error("Expected session to be absent")
	}
}

func TestSessionEnsureHonorsCallerContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	m, _ := newTestManager(func(req *Request) (json.RawMessage, error) {
		<-release
		return json.RawMessage("true"), nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.ensure(ctx)
	var transportErr *TransportError
	if !errors.As(err, &transportErr) || !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected cancellation as TransportError, got %v", err)
	}
}

func TestTruthy(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{"true", true},
		{"false", false},
		{"null", false},
		{"", false},
		{`""`, false},
		{"0", false},
		{"0.0", false},
		{"1", true},
		{`"ok"`, true},
		{"[]", true},
		{"{}", true},
		{" false ", false},
	}

	for _, tt := range tests {
		if got := truthy(json.RawMessage(tt.raw)); got != tt.want {
			t.Errorf("truthy(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestSessionSettledWaitsForPendingLogin(t *testing.T) {
	release := make(chan struct{})
	m, ft := newTestManager(func(req *Request) (json.RawMessage, error) {
		<-release
		return json.RawMessage("true"), nil
	})

	if s, err := m.settled(context.Background()); s != nil || err != nil {
		t.Fatalf("Expected no session and no login, got %v, %v", s, err)
	}
	if got := ft.count(methodLogin); got != 0 {
		t.Fatalf("settled must not start a login, got %d", got)
	}

	go func() { _, _ = m.ensure(context.Background()) }()
	time.Sleep(20 * time.Millisecond)

	time.AfterFunc(20*time.Millisecond, func() { close(release) })
	s, err := m.settled(context.Background())
	if err != nil {
		t.Fatalf("settled failed: %v", err)
	}
	if s == nil || s != m.current() {
		t.Error("Expected the session established by the pending login")
	}
}
