package log

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// RecordTag is the CBOR tag wrapping every event in a protocol log. Its
// value is "RF24" in ASCII. A stream that does not start every record with
// it is not a protocol log.
const RecordTag uint64 = 0x52463234

// maxRecordFields bounds the maps a decoder accepts. Events carry a dozen
// keys at most; anything larger is a corrupt or foreign file.
const maxRecordFields = 64

// ErrBadRecord is returned for records that are not tagged events.
var ErrBadRecord = errors.New("log: malformed record")

type recordCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

var codec = sync.OnceValue(func() recordCodec {
	tags := cbor.NewTagSet()
	err := tags.Add(
		cbor.TagOptions{EncTag: cbor.EncTagRequired, DecTag: cbor.DecTagRequired},
		reflect.TypeOf(Event{}),
		RecordTag,
	)
	if err != nil {
		panic(fmt.Sprintf("log: register record tag: %v", err))
	}

	// Timestamps stay RFC 3339 strings so generic CBOR tools can read them.
	enc, err := cbor.EncOptions{
		Sort:          cbor.SortCoreDeterministic,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}.EncModeWithTags(tags)
	if err != nil {
		panic(fmt.Sprintf("log: record encoder: %v", err))
	}
	dec, err := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		IndefLength: cbor.IndefLengthForbidden,
		MaxMapPairs: maxRecordFields,
	}.DecModeWithTags(tags)
	if err != nil {
		panic(fmt.Sprintf("log: record decoder: %v", err))
	}
	return recordCodec{enc: enc, dec: dec}
})

// MarshalEvent encodes one tagged log record.
func MarshalEvent(ev Event) ([]byte, error) {
	return codec().enc.Marshal(ev)
}

// UnmarshalEvent decodes one tagged log record.
func UnmarshalEvent(data []byte) (Event, error) {
	var ev Event
	if err := codec().dec.Unmarshal(data, &ev); err != nil {
		return Event{}, badRecord(err)
	}
	return ev, nil
}

func newRecordEncoder(w io.Writer) *cbor.Encoder {
	return codec().enc.NewEncoder(w)
}

func newRecordDecoder(r io.Reader) *cbor.Decoder {
	return codec().dec.NewDecoder(r)
}

// badRecord wraps decode failures, leaving end of stream and short reads
// untouched.
func badRecord(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrBadRecord, err)
}
