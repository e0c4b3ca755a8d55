// Package connection holds the timers behind an endpoint's connection to its
// parent: retransmission of connect, address and renew requests, and the
// keepalive pings that detect a vanished parent.
//
// Nothing here starts a goroutine or a timer. The owner passes the current
// time into every call, which lets an endpoint run all of it from its
// processing passes and lets tests drive it with a fake clock.
//
// With the default BackoffConfig a request is sent again after 250 ms, then
// 500 ms, 1 s, 2 s, 4 s and 8 s thereafter, each delay stretched by up to a
// quarter at random so siblings do not retry in lockstep.
package connection
