package homeassistant

import "errors"

var (
	ErrMissingHost       = errors.New("missing home assistant host")
	ErrMissingCredential = errors.New("missing home assistant access token")
	// ErrNotConnected is returned by requests made while no connection handle
	// is held.
	ErrNotConnected = errors.New("not connected to home assistant")
)
