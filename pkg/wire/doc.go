// Package wire defines the payloads of RF24Node network-control frames.
//
// Control payloads are CBOR (RFC 8949) maps with small integer keys so that
// every control message fits into a single 24-byte packet payload. The frame
// type in the packet header selects the payload type; Decode maps one to the
// other.
//
// # Address negotiation
//
// A node without an address binds a temporary address and multicasts an
// AddressRequest. Connected neighbours with a free child slot forward it to
// their root as an AddressRelay. The root answers the first relay with an
// AddressOffer (or AddressNak) which the relay hands to the temporary
// address. Leases are refreshed with AddressRenew / AddressRenewAck.
package wire
