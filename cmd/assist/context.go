package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/timmo001/home-assistant-assist-desktop/core/homeassistant"
	"github.com/timmo001/home-assistant-assist-desktop/core/homeassistant/connection"
	"github.com/timmo001/home-assistant-assist-desktop/core/settings"
)

type commandContext struct {
	configFlag  *string
	timeoutFlag *time.Duration

	settingsOnce sync.Once
	settings     *settings.Settings
	settingsPath string
	settingsErr  error
}

func newCommandContext(configFlag *string, timeoutFlag *time.Duration) *commandContext {
	return &commandContext{
		configFlag:  configFlag,
		timeoutFlag: timeoutFlag,
	}
}

func (c *commandContext) ensureSettings() (*settings.Settings, string, error) {
	c.settingsOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		loaded, resolvedPath, err := settings.Load(path)
		if err != nil {
			c.settingsErr = fmt.Errorf("load settings: %w", err)
			return
		}
		c.settings = loaded
		c.settingsPath = resolvedPath
	})
	return c.settings, c.settingsPath, c.settingsErr
}

func (c *commandContext) timeout() time.Duration {
	if c.timeoutFlag == nil || *c.timeoutFlag <= 0 {
		return 30 * time.Second
	}
	return *c.timeoutFlag
}

// withClient connects to the configured instance for the duration of fn.
func (c *commandContext) withClient(cmd *cobra.Command, fn func(ctx context.Context, client *homeassistant.Client) error) error {
	loaded, path, err := c.ensureSettings()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout())
	defer cancel()

	client := homeassistant.NewClient(loaded.HomeAssistant)
	if err := client.Connect(ctx); err != nil {
		return wrapConnectError(err, path)
	}
	defer func() { _ = client.Disconnect() }()

	return fn(ctx, client)
}

func wrapConnectError(err error, path string) error {
	switch {
	case errors.Is(err, homeassistant.ErrMissingHost):
		return fmt.Errorf("connect to home assistant: no host configured; run `assist settings set home_assistant.host <host>` or edit %s", path)
	case errors.Is(err, homeassistant.ErrMissingCredential):
		return fmt.Errorf("connect to home assistant: no access token; export %s or edit %s", settings.TokenEnv, path)
	case errors.Is(err, connection.ErrInvalidAuth):
		return fmt.Errorf("connect to home assistant: access token rejected; create a new long-lived token and update %s", path)
	default:
		return fmt.Errorf("connect to home assistant: %w", err)
	}
}

func shouldSkipSettings(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Name() == "help" || c.Name() == "completion" {
			return true
		}
		if c.Annotations != nil && c.Annotations["skipSettingsLoad"] == "true" {
			return true
		}
	}
	return false
}

// lockedWriter serializes writes from tracker callbacks and the command.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
