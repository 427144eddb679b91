package log

import (
	"github.com/rs/zerolog"
)

// ZeroLogger forwards session events to a zerolog logger as structured
// diagnostics while keeping them in memory.
type ZeroLogger struct {
	MemoryLogger
	zl zerolog.Logger
}

func NewZeroLogger(zl zerolog.Logger) *ZeroLogger {
	return &ZeroLogger{zl: zl}
}

func (l *ZeroLogger) Log(event SessionEvent) {
	event = l.record(event)

	var ev *zerolog.Event
	switch event.Type {
	case EventProtocolError:
		ev = l.zl.Error()
	case EventConnectFailed:
		ev = l.zl.Warn()
	case EventConnected, EventDisconnected:
		ev = l.zl.Info()
	default:
		ev = l.zl.Debug()
	}

	ev = ev.Int("seq", event.Seq).Str("event", event.Type.String())
	if event.Kind != "" {
		ev = ev.Str("kind", event.Kind)
	}
	ev.Msg(event.Details)
}
