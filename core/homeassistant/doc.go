// Package homeassistant manages the connection to a Home Assistant instance
// and exposes the Assist pipeline commands on top of it.
package homeassistant
