// Package endpoint implements an RF24Node network endpoint: one addressable
// participant of a tree-structured radio network.
//
// An Endpoint is created over a physical.Link and walks through a fixed
// lifecycle:
//
//	UNCONFIGURED -> CONFIGURED -> ADDRESS_ASSIGNED -> CONNECTING -> CONNECTED
//	CONNECTED -> DISCONNECTING -> DISCONNECTED -> (Reconnect) CONNECTING
//
// Addresses are either fixed (STATIC mode) or leased from the root of the
// tree (MESH mode, see package dhcp).
//
// # Processing
//
// The endpoint starts no goroutines and never blocks. The owner calls the
// four processing passes periodically:
//
//	for {
//	    ep.ProcessMessageBuffers()  // link <-> queues, routing
//	    ep.ProcessDHCPServer()      // lease server (roots only)
//	    ep.ProcessMessageRequests() // control messages and timers
//	    ep.ProcessEventHandlers()   // CONNECT, DISCONNECT, MSG_TX, MSG_RX
//	}
//
// Runner wraps this loop for programs that want a dedicated goroutine.
//
// # Errors
//
// Every error wraps either ErrNotSupported (wrong mode, version, state or
// call order) or ErrFail (operational failure such as a full queue).
// StatusOf maps an error to its 16-bit status code.
package endpoint
