package log

import (
	"context"
	"log/slog"
)

// SlogAdapter mirrors protocol events into an operational log. Packets and
// control messages log at Debug, state changes at Info, errors at Warn.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter returns an adapter writing to logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes ev if the logger is enabled for its level.
func (a *SlogAdapter) Log(ev Event) {
	ctx := context.Background()
	level, msg := ev.slogLevel()
	if !a.logger.Enabled(ctx, level) {
		return
	}

	attrs := make([]slog.Attr, 0, 8)
	attrs = append(attrs,
		slog.String("conn", ev.ConnectionID),
		slog.String("dir", ev.Direction.String()),
		slog.String("layer", ev.Layer.String()),
		slog.String("local", ev.LocalAddr.String()),
	)
	if ev.PeerAddr != nil {
		attrs = append(attrs, slog.String("peer", ev.PeerAddr.String()))
	}

	switch {
	case ev.Frame != nil:
		h := ev.Frame.Header
		attrs = append(attrs, slog.Group("frame",
			slog.String("type", h.Type.String()),
			slog.Uint64("n", uint64(h.Number)),
			slog.String("src", h.Src.String()),
			slog.String("dst", h.Dst.String()),
			slog.Int("size", ev.Frame.Size),
		))
	case ev.Control != nil:
		ctl := []any{slog.String("type", ev.Control.Type.String())}
		if ev.Control.Payload != nil {
			ctl = append(ctl, slog.Any("payload", ev.Control.Payload))
		}
		attrs = append(attrs, slog.Group("control", ctl...))
	case ev.StateChange != nil:
		sc := ev.StateChange
		attrs = append(attrs,
			slog.String("entity", sc.Entity.String()),
			slog.String("from", sc.OldState),
			slog.String("to", sc.NewState),
		)
		if sc.Reason != "" {
			attrs = append(attrs, slog.String("reason", sc.Reason))
		}
	case ev.Error != nil:
		e := ev.Error
		attrs = append(attrs, slog.String("error", e.Message))
		if e.Context != "" {
			attrs = append(attrs, slog.String("during", e.Context))
		}
		if e.Code != nil {
			attrs = append(attrs, slog.Int("code", *e.Code))
		}
	}

	a.logger.LogAttrs(ctx, level, msg, attrs...)
}

func (e Event) slogLevel() (slog.Level, string) {
	switch {
	case e.Error != nil:
		return slog.LevelWarn, "protocol error"
	case e.StateChange != nil:
		return slog.LevelInfo, "protocol state"
	case e.Control != nil:
		return slog.LevelDebug, "protocol control"
	case e.Frame != nil:
		return slog.LevelDebug, "protocol frame"
	}
	return slog.LevelDebug, "protocol event"
}

var _ Logger = (*SlogAdapter)(nil)
