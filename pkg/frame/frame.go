package frame

import "fmt"

// Frame is a header plus payload. Payloads of frames read from the network
// never exceed MaxPayloadSize; reassembled frames may carry up to
// MaxMessageSize bytes.
type Frame struct {
	Header
	Payload []byte
}

// Len returns the encoded length of f.
func (f *Frame) Len() int {
	return HeaderSize + len(f.Payload)
}

// Encode serializes f into buf, replacing its previous contents.
func (f *Frame) Encode(buf *Buffer) error {
	if len(f.Payload) > MaxPayloadSize {
		return fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, len(f.Payload), MaxPayloadSize)
	}
	f.Header.Put(buf.data[:HeaderSize])
	n := copy(buf.data[HeaderSize:], f.Payload)
	buf.n = HeaderSize + n
	return nil
}

// MarshalBinary returns a freshly allocated packet for f.
func (f *Frame) MarshalBinary() ([]byte, error) {
	var buf Buffer
	if err := f.Encode(&buf); err != nil {
		return nil, err
	}
	return append([]byte(nil), buf.Bytes()...), nil
}

// UnmarshalBinary decodes a full packet into f.
func (f *Frame) UnmarshalBinary(packet []byte) error {
	decoded, err := Decode(packet)
	if err != nil {
		return err
	}
	*f = decoded
	return nil
}

// Decode parses a packet. The returned payload is a copy and does not alias
// packet.
func Decode(packet []byte) (Frame, error) {
	var f Frame
	if err := f.Header.UnmarshalBinary(packet); err != nil {
		return Frame{}, err
	}
	if len(packet) > PacketSize {
		return Frame{}, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(packet))
	}
	if len(packet) > HeaderSize {
		f.Payload = append([]byte(nil), packet[HeaderSize:]...)
	}
	return f, nil
}

// Buffer is fixed storage for one encoded packet. The slice returned by Bytes
// points into the Buffer and stays valid until the next Encode or Reset.
type Buffer struct {
	data [PacketSize]byte
	n    int
}

// Bytes returns the encoded packet.
func (b *Buffer) Bytes() []byte {
	return b.data[:b.n]
}

// Len returns the number of encoded bytes.
func (b *Buffer) Len() int {
	return b.n
}

// Reset clears the buffer.
func (b *Buffer) Reset() {
	b.data = [PacketSize]byte{}
	b.n = 0
}

// Header decodes the header currently held in the buffer.
func (b *Buffer) Header() (Header, error) {
	var h Header
	err := h.UnmarshalBinary(b.Bytes())
	return h, err
}

// Payload returns the payload portion of the encoded packet.
func (b *Buffer) Payload() []byte {
	if b.n <= HeaderSize {
		return nil
	}
	return b.data[HeaderSize:b.n]
}
