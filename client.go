package deluge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"sync"

	"golang.org/x/time/rate"
)

// Client is a deluge-web JSON-RPC client. It logs in lazily, shares one
// login between concurrent callers and logs in again when the server reports
// the session as expired. Safe for concurrent use.
type Client struct {
	mu       sync.RWMutex
	config   Config
	sessions *sessionManager
}

// New creates a client without contacting the server.
func New(config Config) (*Client, error) {
	dc := &Client{}
	if err := dc.apply(config); err != nil {
		return nil, err
	}
	return dc, nil
}

// Dial creates a client and logs in right away, so a wrong URL or password
// is reported before the first call.
func Dial(ctx context.Context, config Config) (*Client, error) {
	dc, err := New(config)
	if err != nil {
		return nil, err
	}
	if err := dc.Login(ctx); err != nil {
		return nil, err
	}
	return dc, nil
}

// Update swaps the configuration. The current session is dropped; calls
// already in flight finish against the previous configuration.
func (dc *Client) Update(config Config) error {
	return dc.apply(config)
}

func (dc *Client) apply(config Config) error {
	config = config.withDefaults()
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	httpClient, err := newHTTPClient(config)
	if err != nil {
		return err
	}

	var limiter *rate.Limiter
	if config.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RateLimit), config.RateBurst)
	}

	log := config.logger().With().Str("url", config.URL).Int("rpc_id", config.ID).Logger()
	transport := newRPCTransport(config.URL, httpClient, limiter, log)

	config.HTTPClient = httpClient

	dc.mu.Lock()
	dc.config = config
	dc.sessions = newSessionManager(transport, config.ID, config.Password, config.RequestTimeout, log)
	dc.mu.Unlock()
	return nil
}

func newHTTPClient(config Config) (*http.Client, error) {
	var c http.Client
	if config.HTTPClient != nil {
		c = *config.HTTPClient
	} else {
		c.Timeout = config.RequestTimeout
	}

	if c.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("error creating cookie jar: %w", err)
		}
		c.Jar = jar
	}
	return &c, nil
}

// Config returns the configuration in effect: defaults applied and
// HTTPClient set to the client the requests go through.
func (dc *Client) Config() Config {
	dc.mu.RLock()
	defer dc.mu.RUnlock()
	return dc.config
}

func (dc *Client) manager() *sessionManager {
	dc.mu.RLock()
	defer dc.mu.RUnlock()
	return dc.sessions
}

// Call invokes a remote procedure on an authenticated session and returns
// the result field verbatim. See the deluge-web JSON API for method names.
func (dc *Client) Call(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	if method == "" {
		return nil, errors.New("method name is required")
	}
	return dc.manager().call(ctx, method, params)
}

// CallInto is Call followed by decoding the result into out.
func (dc *Client) CallInto(ctx context.Context, out any, method string, params ...any) error {
	result, err := dc.Call(ctx, method, params...)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(result, out); err != nil {
		return fmt.Errorf("error decoding %s result: %w", method, err)
	}
	return nil
}

// Login makes sure a session exists, logging in if needed.
func (dc *Client) Login(ctx context.Context) error {
	_, err := dc.manager().ensure(ctx)
	return err
}

// Session returns the current session, or nil when logged out.
func (dc *Client) Session() *Session {
	s := dc.manager().current()
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}

// CheckSession asks deluge-web whether the session cookie is still valid.
func (dc *Client) CheckSession(ctx context.Context) (bool, error) {
	var valid bool
	if err := dc.CallInto(ctx, &valid, methodCheckSession); err != nil {
		return false, err
	}
	return valid, nil
}

// Close ends the server-side session if there is one, waiting for a login
// in flight to finish first. The client stays usable and logs in again on
// the next call.
func (dc *Client) Close(ctx context.Context) error {
	m := dc.manager()
	s, err := m.settled(ctx)
	if err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}
	if s == nil {
		return nil
	}
	defer m.invalidate(s)

	_, err = m.transport.Send(ctx, &Request{ID: m.id, Method: methodDeleteSession, Params: []any{}})
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.NotAuthenticated() {
		return nil
	}
	if err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}

	m.log.Debug().Str("session", s.ID).Msg("session closed")
	return nil
}
