// Package frame defines the RF24Node packet format.
//
// Every physical packet is at most 32 bytes: an 8-byte header followed by up
// to 24 bytes of payload. The header is little-endian with no padding:
//
//	offset  size  field
//	0       2     Number   (sequence number)
//	2       2     Dst      (destination logical address)
//	4       2     Src      (source logical address)
//	6       1     Type     (message type)
//	7       1     Reserved (fragment bookkeeping, 0 otherwise)
//
// Messages larger than one packet are split by Fragment and joined again by a
// Reassembler. A fragmented message keeps the sequence number of the original
// header on every fragment:
//
//	TypeFragmentFirst  Reserved = total number of fragments
//	TypeFragmentMore   Reserved = fragment index (1..total-2)
//	TypeFragmentLast   Reserved = original message type
//
// The package also registers LayerTypeRF24 with gopacket so captured packets
// can be decoded with the usual gopacket tooling.
package frame
