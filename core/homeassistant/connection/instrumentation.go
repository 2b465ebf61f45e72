package connection

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/timmo001/home-assistant-assist-desktop/core/homeassistant/connection"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)
)

var (
	requestCounter, _ = meter.Int64Counter("homeassistant.connection.requests",
		metric.WithDescription("Commands sent over the websocket API"))
	reconnectCounter, _ = meter.Int64Counter("homeassistant.connection.reconnects",
		metric.WithDescription("Successful reconnects of a dropped socket"))
)
