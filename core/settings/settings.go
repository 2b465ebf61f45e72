package settings

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// HomeAssistant describes how to reach the instance.
type HomeAssistant struct {
	AccessToken string `toml:"access_token" json:"access_token,omitempty" jsonschema:"title=Access token,description=Long-lived access token created on the Home Assistant profile page"`
	Host        string `toml:"host" json:"host" jsonschema:"title=Host,description=Hostname or IP address without scheme"`
	Port        int    `toml:"port" json:"port" jsonschema:"title=Port,minimum=1,maximum=65535"`
	SSL         bool   `toml:"ssl" json:"ssl" jsonschema:"title=SSL,description=Connect over https and wss"`
}

// BaseURL returns the http(s) URL of the instance.
func (h HomeAssistant) BaseURL() string {
	scheme := "http"
	if h.SSL {
		scheme = "https"
	}
	return scheme + "://" + net.JoinHostPort(h.Host, strconv.Itoa(h.Port))
}

type Settings struct {
	Autostart     bool          `toml:"autostart" json:"autostart,omitempty" jsonschema:"title=Autostart,description=Start the client on login"`
	HomeAssistant HomeAssistant `toml:"home_assistant" json:"home_assistant"`
}

// DefaultPath returns the absolute path of the default settings file.
func DefaultPath() (string, error) {
	return expandPath(defaultPath)
}

// ResolvePath expands a leading ~ in path, the default path when empty.
func ResolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultPath()
	}
	return expandPath(strings.TrimSpace(path))
}

// Load reads the settings file at path, the default path when empty. A
// missing file is created with [Default] values. The access token falls back
// to [TokenEnv]. It returns the settings and the resolved path.
func Load(path string) (*Settings, string, error) {
	settings, resolvedPath, err := readFile(path)
	if err != nil {
		return nil, "", err
	}

	settings.applyEnv()

	if err := settings.Validate(); err != nil {
		return nil, "", err
	}
	return settings, resolvedPath, nil
}

// Update applies fn to the settings stored at path and writes the result
// back. Values supplied by the environment are not persisted.
func Update(path string, fn func(*Settings) error) (*Settings, string, error) {
	settings, resolvedPath, err := readFile(path)
	if err != nil {
		return nil, "", err
	}
	if err := fn(settings); err != nil {
		return nil, "", err
	}
	if err := settings.Validate(); err != nil {
		return nil, "", err
	}
	if err := Save(resolvedPath, settings); err != nil {
		return nil, "", err
	}
	return settings, resolvedPath, nil
}

func readFile(path string) (*Settings, string, error) {
	resolvedPath, err := ResolvePath(path)
	if err != nil {
		return nil, "", err
	}

	settings := Default()

	content, err := os.ReadFile(resolvedPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := Save(resolvedPath, &settings); err != nil {
			return nil, "", err
		}
	case err != nil:
		return nil, "", fmt.Errorf("failed to read settings: %w", err)
	default:
		if err := toml.NewDecoder(bytes.NewReader(content)).Decode(&settings); err != nil {
			return nil, "", fmt.Errorf("failed to parse settings %s: %w", resolvedPath, err)
		}
	}

	settings.normalize()
	return &settings, resolvedPath, nil
}

// Save writes settings to path, creating parent directories. The file holds
// the access token and is written readable by the owner only.
func Save(path string, settings *Settings) error {
	resolvedPath, err := expandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(resolvedPath), 0o755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	content, err := toml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := os.WriteFile(resolvedPath, content, 0o600); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return nil
}

func (s *Settings) normalize() {
	host := strings.TrimSpace(s.HomeAssistant.Host)
	host = strings.TrimSuffix(host, "/")
	if scheme, rest, ok := strings.Cut(host, "://"); ok {
		host = rest
		switch strings.ToLower(scheme) {
		case "https", "wss":
			s.HomeAssistant.SSL = true
		case "http", "ws":
			s.HomeAssistant.SSL = false
		}
	}
	if name, port, err := net.SplitHostPort(host); err == nil {
		if parsed, err := strconv.Atoi(port); err == nil {
			host = name
			s.HomeAssistant.Port = parsed
		}
	} else if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		host = host[1 : len(host)-1]
	}
	s.HomeAssistant.Host = host
	s.HomeAssistant.AccessToken = strings.TrimSpace(s.HomeAssistant.AccessToken)
	if s.HomeAssistant.Port == 0 {
		s.HomeAssistant.Port = DefaultPort
	}
}

func (s *Settings) applyEnv() {
	if s.HomeAssistant.AccessToken != "" {
		return
	}
	if token, ok := os.LookupEnv(TokenEnv); ok {
		s.HomeAssistant.AccessToken = strings.TrimSpace(token)
	}
}

// Set updates a single setting addressed by its TOML key, for example
// "home_assistant.port".
func (s *Settings) Set(key, value string) error {
	switch strings.TrimSpace(key) {
	case "autostart":
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("autostart: %w", err)
		}
		s.Autostart = parsed
	case "home_assistant.access_token":
		s.HomeAssistant.AccessToken = value
	case "home_assistant.host":
		s.HomeAssistant.Host = value
	case "home_assistant.port":
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("home_assistant.port: %w", err)
		}
		s.HomeAssistant.Port = parsed
	case "home_assistant.ssl":
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("home_assistant.ssl: %w", err)
		}
		s.HomeAssistant.SSL = parsed
	default:
		return fmt.Errorf("unknown setting %q", key)
	}

	s.normalize()
	return s.Validate()
}

func expandPath(pathValue string) (string, error) {
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}
