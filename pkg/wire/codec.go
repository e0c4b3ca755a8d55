package wire

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/rf24node/rf24node-go/pkg/frame"
)

// Control payloads are CBOR maps with small integer keys, encoded
// deterministically so equal messages produce equal packets. Decoding skips
// unknown keys, which lets newer nodes add fields.
var (
	encMode = mustEncMode(cbor.EncOptions{
		Sort:        cbor.SortCoreDeterministic,
		IndefLength: cbor.IndefLengthForbidden,
	})
	decMode = mustDecMode(cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		IndefLength: cbor.IndefLengthForbidden,
		MaxMapPairs: 16,
	})
)

func mustEncMode(o cbor.EncOptions) cbor.EncMode {
	m, err := o.EncMode()
	if err != nil {
		panic(fmt.Sprintf("wire: %v", err))
	}
	return m
}

func mustDecMode(o cbor.DecOptions) cbor.DecMode {
	m, err := o.DecMode()
	if err != nil {
		panic(fmt.Sprintf("wire: %v", err))
	}
	return m
}

// messages maps each control frame type to a constructor for its payload.
var messages = map[frame.Type]func() Message{
	frame.TypeConnectReq:   func() Message { return &ConnectRequest{} },
	frame.TypeConnectAck:   func() Message { return &ConnectAck{} },
	frame.TypeConnectNak:   func() Message { return &ConnectNak{} },
	frame.TypeDisconnect:   func() Message { return &Disconnect{} },
	frame.TypePing:         func() Message { return &Ping{} },
	frame.TypePong:         func() Message { return &Pong{} },
	frame.TypeAddrRequest:  func() Message { return &AddressRequest{} },
	frame.TypeAddrRelay:    func() Message { return &AddressRelay{} },
	frame.TypeAddrOffer:    func() Message { return &AddressOffer{} },
	frame.TypeAddrNak:      func() Message { return &AddressNak{} },
	frame.TypeAddrRenew:    func() Message { return &AddressRenew{} },
	frame.TypeAddrRenewAck: func() Message { return &AddressRenewAck{} },
}

// Encode encodes a control message. The result fits a single packet.
func Encode(msg Message) ([]byte, error) {
	data, err := encMode.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %v: %w", msg.FrameType(), err)
	}
	if len(data) > frame.MaxPayloadSize {
		return nil, fmt.Errorf("%w: %v is %d bytes", ErrTooLarge, msg.FrameType(), len(data))
	}
	return data, nil
}

// Decode decodes the payload of a control frame of type t.
func Decode(t frame.Type, data []byte) (Message, error) {
	ctor, ok := messages[t]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnknownType, t)
	}
	msg := ctor()
	if err := decMode.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("decode %v: %w", t, err)
	}
	return msg, nil
}
