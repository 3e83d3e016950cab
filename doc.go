/*
Package deluge provides a client for the Deluge Web JSON-RPC API.

Highlights:
  - Lazy login: the first call authenticates, later calls reuse the session cookie
  - Concurrent callers that find no session share a single auth.login
  - An expired session is renewed and the call retried once, transparently
  - Typed errors for transport, protocol, API and authentication failures
  - Optional request throttling and Prometheus metrics

Quick start:

	import (
	    "context"
	    "log"

	    deluge "github.com/jfxdev/go-deluge"
	)

	func main() {
	    client, err := deluge.New(deluge.Config{
	        URL:      "http://localhost:8112/json",
	        Password: "deluge",
	    })
	    if err != nil {
	        log.Fatal(err)
	    }
	    defer client.Close(context.Background())

	    // Any method of the deluge-web JSON API
	    _, _ = client.Call(context.Background(), "web.connected")

	    // Typed helpers
	    _, _ = client.UpdateUI(context.Background(), nil, nil)
	}
*/
package deluge
