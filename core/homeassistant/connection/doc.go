// Package connection is a client for the Home Assistant websocket API.
//
// A [Conn] authenticates with a long-lived access token, correlates command
// results by id, delivers subscription events in arrival order and can
// replace a dropped socket while keeping subscriptions alive.
package connection
