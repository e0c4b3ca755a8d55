// Package physical provides the radio links an endpoint transmits over.
//
// A Link carries raw packets of at most 32 bytes between neighbouring
// radios. Three implementations are provided:
//
//   - Medium / MemLink: an in-memory shared channel for tests and simulation.
//     Every bound link is a radio in range of every other one.
//   - UDPLink: one UDP datagram per packet, with a static table mapping
//     neighbour addresses to UDP endpoints.
//   - SerialLink: a USB radio bridge speaking a COBS-framed protocol over a
//     serial port.
//
// # Serial Bridge Protocol
//
// Every message is an opcode byte and opcode-specific data, followed by a
// CRC-8/SMBUS checksum, COBS-encoded and terminated by a zero byte.
// Addresses are little-endian uint16.
//
//	host -> bridge  'B' addr          bind the radio to addr
//	host -> bridge  'T' next packet   transmit packet to neighbour next
//	bridge -> host  'R' from packet   packet received from neighbour from
//	bridge -> host  'E' next code     transmission to next failed
package physical
