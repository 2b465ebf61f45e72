package settings

const (
	DefaultHost = "homeassistant.local"
	DefaultPort = 8123

	// TokenEnv supplies the access token when the file does not.
	TokenEnv = "HOME_ASSISTANT_TOKEN"

	defaultPath = "~/.config/home-assistant-assist/settings.toml"
)

func Default() Settings {
	return Settings{
		HomeAssistant: HomeAssistant{
			Host: DefaultHost,
			Port: DefaultPort,
			SSL:  false,
		},
	}
}
