package request

import (
	"context"
	"io"
	"net/http"
	"time"
)

// RequestOptions holds the settings of a single HTTP exchange.
type RequestOptions struct {
	Body           io.Reader
	Headers        map[string]string
	Ctx            context.Context
	Client         *http.Client
	PreRequestHook func(ctx context.Context) error
}

// defaultTimeout bounds the exchange when no Client is supplied.
const defaultTimeout = 10 * time.Second

// RequestOption mutates RequestOptions.
type RequestOption func(*RequestOptions)

// WithBody sets the request body.
func WithBody(body io.Reader) RequestOption {
	return func(o *RequestOptions) {
		o.Body = body
	}
}

// WithHeaders adds several headers at once.
func WithHeaders(headers map[string]string) RequestOption {
	return func(o *RequestOptions) {
		if o.Headers == nil {
			o.Headers = make(map[string]string)
		}
		for k, v := range headers {
			o.Headers[k] = v
		}
	}
}

// WithContext binds the request to ctx.
func WithContext(ctx context.Context) RequestOption {
	return func(o *RequestOptions) {
		o.Ctx = ctx
	}
}

// WithClient sends the request through an existing client, keeping its
// connection pool, TLS settings and cookie jar.
func WithClient(client *http.Client) RequestOption {
	return func(o *RequestOptions) {
		o.Client = client
	}
}

// WithPreRequestHook runs hook before the request is sent. A hook error
// aborts the exchange.
func WithPreRequestHook(hook func(ctx context.Context) error) RequestOption {
	return func(o *RequestOptions) {
		o.PreRequestHook = hook
	}
}

// Do executes an HTTP request with the given options. The caller owns the
// response body.
func Do(method, url string, opts ...RequestOption) (*http.Response, error) {
	options := &RequestOptions{
		Ctx: context.Background(),
	}

	for _, opt := range opts {
		opt(options)
	}

	client := options.Client
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}

	if options.PreRequestHook != nil {
		if err := options.PreRequestHook(options.Ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(options.Ctx, method, url, options.Body)
	if err != nil {
		return nil, err
	}

	for k, v := range options.Headers {
		req.Header.Set(k, v)
	}

	return client.Do(req)
}
