package stream

import (
	"context"
	"errors"
	"io"

	"github.com/mrogier/actaflow/internal/log"
)

// ErrStopStream is returned by a Handler to end the session cleanly
// after a terminal event.
var ErrStopStream = errors.New("stream: stop requested")

// ErrConnectionLost classifies a transport failure that is not a clean
// close: the server vanished without an explicit error event.
var ErrConnectionLost = errors.New("stream: connection lost")

// Handler receives decoded frames in receipt order. Returning
// ErrStopStream ends the session; any other error is propagated.
type Handler func(Frame) error

// Run reads src until it ends, decoding chunks and dispatching every
// frame to handle in order. Between reads the decoder and the dispatch
// run to completion, so frames from one chunk are never interleaved
// with the next. The source is closed before Run returns.
func Run(ctx context.Context, src Source, handle Handler) error {
	defer func() { _ = src.Close() }()

	var dec Decoder
	for {
		chunk, err := src.NextChunk(ctx)
		if len(chunk) > 0 {
			if stop, derr := dispatch(dec.Feed(chunk), handle); stop || derr != nil {
				return derr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				_, derr := dispatch(dec.Flush(), handle)
				return derr
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn(log.CatStream, "stream transport failed", "error", err)
			return errors.Join(ErrConnectionLost, err)
		}
	}
}

// dispatch feeds frames to the handler, reporting whether the handler
// requested a stop.
func dispatch(frames []Frame, handle Handler) (bool, error) {
	for _, f := range frames {
		if err := handle(f); err != nil {
			if errors.Is(err, ErrStopStream) {
				return true, nil
			}
			return true, err
		}
	}
	return false, nil
}
