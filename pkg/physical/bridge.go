package physical

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/sigurn/crc8"

	"github.com/rf24node/rf24node-go/internal/cobs"
)

// Serial bridge messages travel COBS-encoded and zero-delimited:
//
//	cobs(payload | crc8(payload)) | 0x00
//
// A UART drops and corrupts bytes; a broken frame costs the bytes up to the
// next delimiter and the reader carries on with the frame after it.
const (
	bridgeDelimiter = 0x00

	// MaxBridgeMessageSize bounds one bridge message: opcode, address and a
	// full packet with room to spare.
	MaxBridgeMessageSize = 64
)

// maxBridgeFrame is the longest valid frame including its delimiter.
var maxBridgeFrame = cobs.MaxEncodedLen(MaxBridgeMessageSize+1) + 1

var (
	ErrMessageTooLarge = errors.New("bridge message too large")
	ErrMessageEmpty    = errors.New("bridge message is empty")
	ErrFrameTruncated  = errors.New("bridge message truncated")
	ErrBadChecksum     = errors.New("bridge message checksum mismatch")
)

// crcTable is CRC-8 with polynomial 0x07, as used by SMBus.
var crcTable = crc8.MakeTable(crc8.CRC8)

// BridgeWriter encodes messages to the bridge. It is safe for concurrent
// use; each message goes out in one Write.
type BridgeWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func NewBridgeWriter(w io.Writer) *BridgeWriter {
	return &BridgeWriter{w: w}
}

// WriteMessage encodes and writes msg.
func (bw *BridgeWriter) WriteMessage(msg []byte) error {
	switch {
	case len(msg) == 0:
		return ErrMessageEmpty
	case len(msg) > MaxBridgeMessageSize:
		return fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, len(msg))
	}

	body := make([]byte, len(msg)+1)
	copy(body, msg)
	body[len(msg)] = crc8.Checksum(msg, crcTable)
	buf := append(cobs.Encode(body), bridgeDelimiter)

	bw.mu.Lock()
	defer bw.mu.Unlock()
	if _, err := bw.w.Write(buf); err != nil {
		return fmt.Errorf("write bridge message: %w", err)
	}
	return nil
}

// decodeBridgeFrame checks one frame without its delimiter.
func decodeBridgeFrame(frame []byte) ([]byte, error) {
	body, err := cobs.Decode(frame)
	if err != nil {
		return nil, err
	}
	switch {
	case len(body) < 2:
		return nil, ErrMessageEmpty
	case len(body) > MaxBridgeMessageSize+1:
		return nil, fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, len(body)-1)
	}
	msg, sum := body[:len(body)-1], body[len(body)-1]
	if crc8.Checksum(msg, crcTable) != sum {
		return nil, ErrBadChecksum
	}
	return msg, nil
}

// BridgeReader decodes messages from the bridge. It is not safe for
// concurrent use.
type BridgeReader struct {
	r         *bufio.Reader
	discarded int
	corrupt   int

	// skipping is set while the reader drops an overlong run of bytes up
	// to the next delimiter.
	skipping bool
}

func NewBridgeReader(r io.Reader) *BridgeReader {
	return &BridgeReader{r: bufio.NewReaderSize(r, 2*maxBridgeFrame)}
}

// ReadMessage returns the next intact message. It returns io.EOF when the
// stream ends between messages and ErrFrameTruncated when it ends inside
// one.
func (br *BridgeReader) ReadMessage() ([]byte, error) {
	for {
		frame, err := br.r.ReadSlice(bridgeDelimiter)
		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			br.drop(len(frame))
			br.skipping = true
			continue
		case err != nil:
			if len(frame) > 0 && !br.skipping {
				return nil, truncated(err)
			}
			return nil, err
		}

		if br.skipping {
			br.skipping = false
			br.discarded += len(frame)
			continue
		}
		if len(frame) == 1 {
			// Idle delimiters between frames.
			continue
		}
		msg, derr := decodeBridgeFrame(frame[:len(frame)-1])
		if derr != nil {
			br.drop(len(frame))
			continue
		}
		return msg, nil
	}
}

func (br *BridgeReader) drop(n int) {
	if !br.skipping {
		br.corrupt++
	}
	br.discarded += n
}

// Discarded returns the number of bytes skipped in corrupt frames.
func (br *BridgeReader) Discarded() int { return br.discarded }

// Corrupt returns the number of frames dropped.
func (br *BridgeReader) Corrupt() int { return br.corrupt }

func truncated(err error) error {
	if errors.Is(err, io.EOF) {
		return ErrFrameTruncated
	}
	return err
}
