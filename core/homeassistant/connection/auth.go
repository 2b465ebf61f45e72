package connection

import (
	"fmt"
	"net/url"
	"strings"
)

// Auth holds the instance URL and the long-lived access token used to
// authenticate a websocket.
type Auth struct {
	baseURL     string
	accessToken string
}

func NewLongLivedTokenAuth(baseURL, accessToken string) *Auth {
	return &Auth{
		baseURL:     strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		accessToken: accessToken,
	}
}

func (a *Auth) BaseURL() string     { return a.baseURL }
func (a *Auth) AccessToken() string { return a.accessToken }

// WebsocketURL maps the http(s) base URL to the ws(s) websocket endpoint.
func (a *Auth) WebsocketURL() (string, error) {
	u, err := url.Parse(a.baseURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse base url %q: %w", a.baseURL, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported base url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("base url %q has no host", a.baseURL)
	}

	u.Path = strings.TrimRight(u.Path, "/") + "/api/websocket"
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}
