package frame

import (
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// LayerTypeRF24 is the gopacket layer type for RF24Node packets.
var LayerTypeRF24 = gopacket.RegisterLayerType(2424, gopacket.LayerTypeMetadata{
	Name:    "RF24",
	Decoder: gopacket.DecodeFunc(decodeRF24),
})

// Layer is the gopacket representation of an RF24Node header.
type Layer struct {
	layers.BaseLayer
	Header
}

var (
	_ gopacket.DecodingLayer     = (*Layer)(nil)
	_ gopacket.SerializableLayer = (*Layer)(nil)
)

// LayerType implements gopacket.Layer.
func (l *Layer) LayerType() gopacket.LayerType { return LayerTypeRF24 }

// CanDecode implements gopacket.DecodingLayer.
func (l *Layer) CanDecode() gopacket.LayerClass { return LayerTypeRF24 }

// NextLayerType implements gopacket.DecodingLayer.
func (l *Layer) NextLayerType() gopacket.LayerType { return gopacket.LayerTypePayload }

// DecodeFromBytes implements gopacket.DecodingLayer.
func (l *Layer) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < HeaderSize {
		df.SetTruncated()
		return fmt.Errorf("%w: %d bytes", ErrShortPacket, len(data))
	}
	if err := l.Header.UnmarshalBinary(data); err != nil {
		return err
	}
	l.BaseLayer = layers.BaseLayer{Contents: data[:HeaderSize], Payload: data[HeaderSize:]}
	return nil
}

// SerializeTo implements gopacket.SerializableLayer. The payload already in b
// follows the header.
func (l *Layer) SerializeTo(b gopacket.SerializeBuffer, _ gopacket.SerializeOptions) error {
	if n := len(b.Bytes()); n > MaxPayloadSize {
		return fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, n, MaxPayloadSize)
	}
	hdr, err := b.PrependBytes(HeaderSize)
	if err != nil {
		return err
	}
	l.Header.Put(hdr)
	return nil
}

func decodeRF24(data []byte, p gopacket.PacketBuilder) error {
	l := &Layer{}
	if err := l.DecodeFromBytes(data, p); err != nil {
		return err
	}
	p.AddLayer(l)
	return p.NextDecoder(gopacket.LayerTypePayload)
}
