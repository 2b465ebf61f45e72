package homeassistant

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/timmo001/home-assistant-assist-desktop/core/homeassistant/connection"
	"github.com/timmo001/home-assistant-assist-desktop/core/settings"
	"github.com/timmo001/home-assistant-assist-desktop/internal/hatest"
)

func testSettings(server *hatest.Server) settings.HomeAssistant {
	return settings.HomeAssistant{
		AccessToken: hatest.DefaultToken,
		Host:        server.Host(),
		Port:        server.Port(),
	}
}

func connectTestClient(t *testing.T, server *hatest.Server, opts ...ClientOption) *Client {
	t.Helper()

	client := NewClient(testSettings(server), opts...)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("expected connect to succeed, got %v", err)
	}
	t.Cleanup(func() { _ = client.Disconnect() })
	return client
}

type callbackRecorder struct {
	mu        sync.Mutex
	connected []connection.User
	configs   []connection.Config
}

func (r *callbackRecorder) options() []ClientOption {
	return []ClientOption{
		WithConnectedCallback(func(_ *connection.Conn, user connection.User) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.connected = append(r.connected, user)
		}),
		WithConfigCallback(func(config connection.Config) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.configs = append(r.configs, config)
		}),
	}
}

func (r *callbackRecorder) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.connected), len(r.configs)
}

func TestConnectValidatesSettings(t *testing.T) {
	testCases := []struct {
		name     string
		settings settings.HomeAssistant
		want     error
	}{
		{name: "missing host", settings: settings.HomeAssistant{AccessToken: "t", Port: 8123}, want: ErrMissingHost},
		{name: "blank host", settings: settings.HomeAssistant{Host: "  ", AccessToken: "t", Port: 8123}, want: ErrMissingHost},
		{name: "missing token", settings: settings.HomeAssistant{Host: "homeassistant.local", Port: 8123}, want: ErrMissingCredential},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			client := NewClient(testCase.settings)

			err := client.Connect(context.Background())
			if !errors.Is(err, testCase.want) {
				t.Fatalf("expected %v, got %v", testCase.want, err)
			}
			if client.State() != StateDisconnected || client.Connected() {
				t.Fatalf("expected client to stay disconnected, got %s", client.State())
			}
		})
	}
}

func TestConnectInvokesCallbacks(t *testing.T) {
	server := hatest.NewServer(t)
	recorder := &callbackRecorder{}
	client := connectTestClient(t, server, recorder.options()...)

	if client.State() != StateConnected || !client.Connected() {
		t.Fatalf("expected connected client, got %s", client.State())
	}
	if client.Connection() == nil {
		t.Fatalf("expected live handle")
	}

	hatest.WaitFor(t, 2*time.Second, "connected and config callbacks", func() bool {
		connected, configs := recorder.counts()
		return connected == 1 && configs >= 1
	})

	recorder.mu.Lock()
	user := recorder.connected[0]
	config := recorder.configs[0]
	recorder.mu.Unlock()
	if user.Name != "Test User" {
		t.Fatalf("unexpected user %+v", user)
	}
	if config.LocationName != "Home" {
		t.Fatalf("unexpected config %+v", config)
	}

	if stored, ok := client.User(); !ok || stored.ID != "user-1" {
		t.Fatalf("expected stored user, got %+v (%t)", stored, ok)
	}
	if stored, ok := client.Config(); !ok || stored.LocationName != "Home" {
		t.Fatalf("expected stored config, got %+v (%t)", stored, ok)
	}
}

func TestConnectIsIdempotent(t *testing.T) {
	server := hatest.NewServer(t)
	recorder := &callbackRecorder{}
	client := connectTestClient(t, server, recorder.options()...)

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("expected second connect to be a no-op, got %v", err)
	}

	hatest.WaitFor(t, 2*time.Second, "connected callback", func() bool {
		connected, _ := recorder.counts()
		return connected == 1
	})
	time.Sleep(50 * time.Millisecond)

	if server.Accepted() != 1 {
		t.Fatalf("expected a single socket, got %d", server.Accepted())
	}
	if connected, _ := recorder.counts(); connected != 1 {
		t.Fatalf("expected connected callback once, got %d", connected)
	}
}

func TestConnectFailureLeavesClientDisconnected(t *testing.T) {
	server := hatest.NewServer(t, hatest.WithToken("other"))
	client := NewClient(testSettings(server))

	err := client.Connect(context.Background())
	if !errors.Is(err, connection.ErrInvalidAuth) {
		t.Fatalf("expected ErrInvalidAuth, got %v", err)
	}
	if client.State() != StateDisconnected || client.Connected() {
		t.Fatalf("expected disconnected client, got %s", client.State())
	}
}

func TestTransportReconnectKeepsSession(t *testing.T) {
	server := hatest.NewServer(t)
	recorder := &callbackRecorder{}
	client := connectTestClient(t, server, recorder.options()...)

	hatest.WaitFor(t, 2*time.Second, "initial callbacks", func() bool {
		connected, configs := recorder.counts()
		return connected == 1 && configs >= 1
	})
	_, initialConfigs := recorder.counts()
	handle := client.Connection()

	server.DropConnections()

	hatest.WaitFor(t, 3*time.Second, "reconnect", func() bool {
		return server.Accepted() == 2 && handle.Connected()
	})
	hatest.WaitFor(t, 2*time.Second, "config refresh after reconnect", func() bool {
		_, configs := recorder.counts()
		return configs > initialConfigs
	})

	if connected, _ := recorder.counts(); connected != 1 {
		t.Fatalf("expected connected callback not to fire on reconnect, got %d", connected)
	}
	if client.Connection() != handle {
		t.Fatalf("expected the same handle after reconnect")
	}
	if err := client.SendRequest(context.Background(), command{Type: "ping"}, nil); err != nil {
		t.Fatalf("expected requests to work after reconnect, got %v", err)
	}
}

func TestDisconnect(t *testing.T) {
	server := hatest.NewServer(t)
	client := connectTestClient(t, server)

	if err := client.Disconnect(); err != nil {
		t.Fatalf("expected disconnect to succeed, got %v", err)
	}
	if client.Connected() || client.State() != StateDisconnected {
		t.Fatalf("expected disconnected client")
	}
	if err := client.Disconnect(); err != nil {
		t.Fatalf("expected second disconnect to be a no-op, got %v", err)
	}
	if _, ok := client.User(); ok {
		t.Fatalf("expected user to be cleared")
	}

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("expected reconnect after disconnect, got %v", err)
	}
	if server.Accepted() != 2 {
		t.Fatalf("expected a fresh socket, got %d", server.Accepted())
	}
}

func TestRequestsWithoutConnection(t *testing.T) {
	client := NewClient(settings.HomeAssistant{Host: "homeassistant.local", Port: 8123, AccessToken: "t"})
	ctx := context.Background()

	calls := map[string]func() error{
		"send request": func() error { return client.SendRequest(ctx, command{Type: "ping"}, nil) },
		"subscribe": func() error {
			_, err := client.Subscribe(ctx, command{Type: "subscribe_events"}, nil)
			return err
		},
		"list": func() error {
			_, err := client.ListAssistPipelines(ctx)
			return err
		},
		"get": func() error {
			_, err := client.GetAssistPipeline(ctx, "")
			return err
		},
		"set preferred": func() error { return client.SetPreferredAssistPipeline(ctx, "p") },
		"delete":        func() error { return client.DeleteAssistPipeline(ctx, "p") },
		"languages": func() error {
			_, err := client.ListAssistPipelineLanguages(ctx)
			return err
		},
	}

	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			if err := call(); !errors.Is(err, ErrNotConnected) {
				t.Fatalf("expected ErrNotConnected, got %v", err)
			}
		})
	}
}

func TestConfigFromClosedConnectionIsDropped(t *testing.T) {
	server := hatest.NewServer(t)
	client := connectTestClient(t, server)

	hatest.WaitFor(t, 2*time.Second, "initial config", func() bool {
		_, ok := client.Config()
		return ok
	})
	previous := client.Connection()

	if err := client.Disconnect(); err != nil {
		t.Fatalf("expected disconnect to succeed, got %v", err)
	}
	client.storeConfig(previous, connection.Config{LocationName: "Stale"})
	if config, ok := client.Config(); ok {
		t.Fatalf("expected no config while disconnected, got %+v", config)
	}

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("expected connect to succeed, got %v", err)
	}
	hatest.WaitFor(t, 2*time.Second, "config after reconnect", func() bool {
		_, ok := client.Config()
		return ok
	})
	client.storeConfig(previous, connection.Config{LocationName: "Stale"})
	if config, _ := client.Config(); config.LocationName != "Home" {
		t.Fatalf("expected config of the current connection, got %q", config.LocationName)
	}
}
