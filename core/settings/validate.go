package settings

import (
	"fmt"
	"net"
	"strings"
)

// Validate checks values that would make a connection attempt meaningless.
// A missing host or token is not an error here; connecting reports it.
func (s *Settings) Validate() error {
	if s.HomeAssistant.Port < 1 || s.HomeAssistant.Port > 65535 {
		return fmt.Errorf("home_assistant.port must be between 1 and 65535, got %d", s.HomeAssistant.Port)
	}
	host := s.HomeAssistant.Host
	if strings.ContainsAny(host, " /?#[]") {
		return fmt.Errorf("home_assistant.host must be a bare hostname, got %q", host)
	}
	if strings.Contains(host, ":") && net.ParseIP(host) == nil {
		return fmt.Errorf("home_assistant.host must not include a port, got %q", host)
	}
	return nil
}
