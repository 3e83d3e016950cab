package deluge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/jfxdev/go-deluge/request"
)

// Request is one JSON-RPC call as sent to deluge-web.
type Request struct {
	ID     int    `json:"id"`
	Method string `json:"method"`
	Params []any  `json:"params"`
}

// response is the envelope deluge-web answers with.
type response struct {
	ID     json.RawMessage `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  json.RawMessage `json:"error"`
}

// Transport sends one request and returns the envelope's result field.
type Transport interface {
	Send(ctx context.Context, req *Request) (json.RawMessage, error)
}

// rpcTransport posts requests to a single endpoint. Cookies set by the
// endpoint live in the http.Client's jar and are replayed on every exchange.
type rpcTransport struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
	log     zerolog.Logger
}

func newRPCTransport(url string, client *http.Client, limiter *rate.Limiter, log zerolog.Logger) *rpcTransport {
	return &rpcTransport{
		url:     url,
		client:  client,
		limiter: limiter,
		log:     log,
	}
}

var rpcHeaders = map[string]string{
	"Accept":       "application/json",
	"Content-Type": "application/json",
}

func (t *rpcTransport) Send(ctx context.Context, req *Request) (result json.RawMessage, err error) {
	start := time.Now()
	defer func() {
		elapsed := time.Since(start)
		recordCall(req.Method, err, elapsed)
		if err != nil {
			t.log.Debug().Err(err).Str("method", req.Method).Dur("duration", elapsed).Msg("rpc call failed")
		}
	}()

	if req.Params == nil {
		req = &Request{ID: req.ID, Method: req.Method, Params: []any{}}
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", req.Method, err)
	}

	opts := []request.RequestOption{
		request.WithContext(ctx),
		request.WithClient(t.client),
		request.WithBody(bytes.NewReader(payload)),
		request.WithHeaders(rpcHeaders),
	}
	if t.limiter != nil {
		opts = append(opts, request.WithPreRequestHook(t.limiter.Wait))
	}

	resp, err := request.Do(http.MethodPost, t.url, opts...)
	if err != nil {
		return nil, newTransportError(err)
	}
	defer resp.Body.Close()

	// deluge-web does not always label its replies as JSON, so the whole
	// body is read and parsed regardless of Content-Type.
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newTransportError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, classifyHTTPStatusCode(resp.StatusCode, truncate(string(body), 256))
	}

	return decodeResponse(req.Method, body)
}

func decodeResponse(method string, body []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		var v any
		err := json.Unmarshal(trimmed, &v)
		if err == nil {
			err = errNotAnEnvelope
		}
		return nil, &ProtocolError{Body: truncate(string(body), 256), Err: err}
	}

	var env response
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, &ProtocolError{Body: truncate(string(body), 256), Err: err}
	}

	if len(env.Error) > 0 && !bytes.Equal(env.Error, []byte("null")) {
		return nil, newAPIError(method, env.Error)
	}

	// A present "error": null with no result is a success without a value.
	if len(env.Result) == 0 {
		if len(env.Error) == 0 {
			return nil, &ProtocolError{Body: truncate(string(body), 256), Err: errEmptyEnvelope}
		}
		return json.RawMessage("null"), nil
	}
	return env.Result, nil
}

var (
	errNotAnEnvelope = errors.New("response is not a JSON object")
	errEmptyEnvelope = errors.New("response has neither result nor error")
)

// newAPIError builds an APIError from the envelope's error value. The value
// is usually {"message": ..., "code": ...} but may be a bare string. Message
// and code are decoded separately so a malformed code never hides the
// message.
func newAPIError(method string, raw json.RawMessage) *APIError {
	apiErr := &APIError{Method: method, Raw: raw, Message: string(raw)}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err == nil && fields != nil {
		if msg, ok := fields["message"]; ok {
			var text string
			if err := json.Unmarshal(msg, &text); err == nil {
				apiErr.Message = text
			} else {
				apiErr.Message = string(msg)
			}
		}
		if code, ok := parseErrorCode(fields["code"]); ok {
			apiErr.Code = code
		}
		return apiErr
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		apiErr.Message = text
	}
	return apiErr
}

// parseErrorCode accepts a whole JSON number, or a string holding one.
func parseErrorCode(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 {
		return 0, false
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
