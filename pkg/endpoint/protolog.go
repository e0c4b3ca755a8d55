package endpoint

import (
	"github.com/rf24node/rf24node-go/pkg/address"
	"github.com/rf24node/rf24node-go/pkg/frame"
	"github.com/rf24node/rf24node-go/pkg/log"
	"github.com/rf24node/rf24node-go/pkg/wire"
)

func (e *Endpoint) logEvent(ev log.Event) {
	ev.Timestamp = e.opts.now()
	ev.ConnectionID = e.id
	ev.LocalAddr = e.source()
	e.opts.protoLogger.Log(ev)
}

// logFrame records one packet crossing the link.
func (e *Endpoint) logFrame(dir log.Direction, peer address.Logical, h frame.Header, packet []byte) {
	cat := log.CategoryData
	if h.Type.IsControl() {
		cat = log.CategoryControl
	}
	p := peer
	e.logEvent(log.Event{
		Direction: dir,
		Layer:     log.LayerLink,
		Category:  cat,
		PeerAddr:  &p,
		Frame: &log.FrameEvent{
			Header: log.NewFrameHeader(h),
			Size:   len(packet),
			Data:   packet,
		},
	})
}

func (e *Endpoint) logControl(dir log.Direction, peer address.Logical, msg wire.Message) {
	p := peer
	e.logEvent(log.Event{
		Direction: dir,
		Layer:     log.LayerNetwork,
		Category:  log.CategoryControl,
		PeerAddr:  &p,
		Control:   &log.ControlEvent{Type: msg.FrameType(), Payload: msg},
	})
}

func (e *Endpoint) logState(entity log.StateEntity, from, to, reason string) {
	e.logEvent(log.Event{
		Layer:    log.LayerEndpoint,
		Category: log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   entity,
			OldState: from,
			NewState: to,
			Reason:   reason,
		},
	})
}

func (e *Endpoint) logError(layer log.Layer, context string, err error) {
	code := int(StatusOf(err))
	e.logEvent(log.Event{
		Layer:    layer,
		Category: log.CategoryError,
		Error: &log.ErrorEventData{
			Layer:   layer,
			Message: err.Error(),
			Code:    &code,
			Context: context,
		},
	})
}
