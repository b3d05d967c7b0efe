package cancomm

import (
	"errors"

	"github.com/rs/zerolog"
)

// LogOption is a bitmask for selecting which operations to log.
type LogOption uint8

const (
	LogNone  LogOption = 0
	LogRead  LogOption = 1 << 0
	LogWrite LogOption = 1 << 1
	LogAll             = LogRead | LogWrite
)

// NewLoggedBus wraps the given Bus and logs selected operations at the given
// level. ErrNoFrame is not logged. Transmitted frames are logged as sent:
// with the normalized length, and without FlagFD when the inner bus reports
// that CAN FD is not active.
func NewLoggedBus(inner Bus, logger zerolog.Logger, level zerolog.Level, opts LogOption) Bus {
	return NewLoggedBusWithFilter(inner, logger, level, opts, nil)
}

// NewLoggedBusWithFilter is like NewLoggedBus but only logs frames accepted
// by filter. Errors are always logged.
func NewLoggedBusWithFilter(inner Bus, logger zerolog.Logger, level zerolog.Level, opts LogOption, filter FrameFilter) Bus {
	return &loggedBus{
		inner:  inner,
		logger: logger,
		level:  level,
		opts:   opts,
		filter: filter,
	}
}

// fdNegotiator is implemented by buses that know whether CAN FD is active,
// such as *Context.
type fdNegotiator interface {
	FD() bool
}

type loggedBus struct {
	inner  Bus
	logger zerolog.Logger
	level  zerolog.Level
	opts   LogOption
	filter FrameFilter
}

func (l *loggedBus) Transmit(id uint32, extended bool, data []byte, flags Flags) (uint64, error) {
	ts, err := l.inner.Transmit(id, extended, data, flags)
	if l.opts&LogWrite == 0 {
		return ts, err
	}
	if err != nil {
		l.logger.Error().Err(err).Uint32("id", id).Msg("cancomm transmit error")
		return ts, err
	}
	f := Frame{ID: id, Extended: extended, Flags: flags &^ FlagError, Timestamp: ts}
	if n, ok := l.inner.(fdNegotiator); ok && !n.FD() {
		f.Flags &^= FlagFD
	}
	copy(f.Data[:], data)
	f.Len = NormalizeLen(len(data))
	if l.filter == nil || l.filter(f) {
		l.logFrame("cancomm transmit", &f)
	}
	return ts, nil
}

func (l *loggedBus) Receive() (Frame, error) {
	f, err := l.inner.Receive()
	if l.opts&LogRead == 0 {
		return f, err
	}
	switch {
	case errors.Is(err, ErrNoFrame):
	case err != nil:
		l.logger.Error().Err(err).Msg("cancomm receive error")
	case l.filter == nil || l.filter(f):
		l.logFrame("cancomm receive", &f)
	}
	return f, err
}

func (l *loggedBus) logFrame(msg string, f *Frame) {
	l.logger.WithLevel(l.level).
		Uint32("id", f.ID).
		Bool("extended", f.Extended).
		Bool("fd", f.IsFD()).
		Bool("error", f.IsError()).
		Int("len", int(f.Len)).
		Hex("data", f.Payload()).
		Uint64("timestamp_us", f.Timestamp).
		Str("frame", f.String()).
		Msg(msg)
}
