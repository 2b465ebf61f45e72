package connection

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const configFetchTimeout = 10 * time.Second

// Config is the core configuration of the instance.
type Config struct {
	LocationName string            `json:"location_name"`
	Latitude     float64           `json:"latitude"`
	Longitude    float64           `json:"longitude"`
	Elevation    float64           `json:"elevation"`
	UnitSystem   map[string]string `json:"unit_system"`
	TimeZone     string            `json:"time_zone"`
	Version      string            `json:"version"`
	Components   []string          `json:"components"`
	State        string            `json:"state"`
	Language     string            `json:"language"`
	Country      *string           `json:"country"`
	Currency     string            `json:"currency"`
	ExternalURL  *string           `json:"external_url"`
	InternalURL  *string           `json:"internal_url"`
}

func GetConfig(ctx context.Context, conn *Conn) (Config, error) {
	var config Config
	if err := conn.SendRequest(ctx, struct {
		Type string `json:"type"`
	}{Type: "get_config"}, &config); err != nil {
		return Config{}, fmt.Errorf("failed to get config: %w", err)
	}
	return config, nil
}

// SubscribeConfig delivers the current config and a fresh copy after every
// core_config_updated event and every reconnect. callback runs on a single
// goroutine owned by the subscription.
func SubscribeConfig(ctx context.Context, conn *Conn, callback func(Config)) (*Subscription, error) {
	refresh := make(chan struct{}, 1)
	requestRefresh := func() {
		select {
		case refresh <- struct{}{}:
		default:
		}
	}
	requestRefresh()

	sub, err := conn.Subscribe(ctx, struct {
		Type      string `json:"type"`
		EventType string `json:"event_type"`
	}{Type: "subscribe_events", EventType: "core_config_updated"}, func(json.RawMessage) {
		requestRefresh()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to config updates: %w", err)
	}

	removeListener := conn.AddEventListener(EventReady, func(*Conn) { requestRefresh() })

	go func() {
		defer removeListener()
		for {
			select {
			case <-sub.Done():
				return
			case <-refresh:
				fetchCtx, cancel := context.WithTimeout(context.Background(), configFetchTimeout)
				config, err := GetConfig(fetchCtx, conn)
				cancel()
				if err != nil {
					logger.Warn("failed to refresh config", "error", err)
					continue
				}
				callback(config)
			}
		}
	}()

	return sub, nil
}
