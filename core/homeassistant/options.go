package homeassistant

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/timmo001/home-assistant-assist-desktop/core/homeassistant/connection"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type ClientOption func(*Client)

// WithConnectedCallback is invoked once per Connect, after the user was
// resolved. Reconnects of the transport do not invoke it again.
func WithConnectedCallback(callback func(conn *connection.Conn, user connection.User)) ClientOption {
	return func(c *Client) {
		if callback != nil {
			c.onConnected = callback
		}
	}
}

// WithConfigCallback is invoked with every config snapshot.
func WithConfigCallback(callback func(config connection.Config)) ClientOption {
	return func(c *Client) {
		if callback != nil {
			c.onConfig = callback
		}
	}
}

func WithDialer(dialer *websocket.Dialer) ClientOption {
	return func(c *Client) {
		c.dialOptions = append(c.dialOptions, connection.WithDialer(dialer))
	}
}

// WithHTTPClient sets the client used for media downloads. Its transport is
// wrapped for tracing.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client == nil {
			return
		}
		instrumented := *client
		transport := instrumented.Transport
		if transport == nil {
			transport = http.DefaultTransport
		}
		instrumented.Transport = otelhttp.NewTransport(transport)
		c.httpClient = &instrumented
	}
}
