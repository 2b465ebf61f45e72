// Package settings loads and stores the client settings file.
//
// Settings live in a TOML file, by default
// ~/.config/home-assistant-assist/settings.toml. A missing file is created
// with defaults on first load. The access token may be supplied through the
// HOME_ASSISTANT_TOKEN environment variable instead of the file.
package settings
