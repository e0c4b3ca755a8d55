// Package discovery finds UDP link neighbours over mDNS/DNS-SD.
//
// Every node running a UDP link advertises one _rf24node._udp instance
// named after its endpoint ID. The port is the link's UDP port and the TXT
// records carry:
//
//	id   endpoint ID (UUID)
//	addr logical address in decimal, absent while the node has none
//
// Browsers turn each instance that carries an address into a Peer, which a
// UDP link adds to its neighbour table.
package discovery
