// Package server wires transports and background jobs into the Kratos app.
package server

import "github.com/google/wire"

// ProviderSet is server providers.
var ProviderSet = wire.NewSet(NewHTTPServer, NewGRPCServer, NewMaintenanceServer)
