// Package stream decodes the backend's line-oriented push protocol and
// runs the read loop that feeds decoded frames to a handler.
//
// The protocol frames events as:
//
//	event: <name>\n
//	data: <json>\n
//	\n
//
// Chunks arrive at arbitrary byte boundaries, so the decoder keeps a
// carry-over buffer and guarantees identical output regardless of how
// the transport splits the stream.
package stream

import "strings"

const (
	eventPrefix = "event: "
	dataPrefix  = "data: "
)

// Frame is one decoded (event type, data payload) unit.
type Frame struct {
	Event string
	Data  string
}

// Decoder turns raw byte chunks into Frames. The zero value is ready to
// use. Decoder is not safe for concurrent use; each stream owns one.
type Decoder struct {
	buf          string
	pendingEvent string
	pendingData  string
	hasEvent     bool
}

// Feed appends a chunk to the internal buffer and returns every frame
// completed by it. It never fails; unrecognized lines are ignored.
func (d *Decoder) Feed(chunk []byte) []Frame {
	text := d.buf + string(chunk)

	// A trailing CR may be the first half of a CRLF split across
	// chunks; hold it back until the next byte arrives.
	carry := ""
	if strings.HasSuffix(text, "\r") {
		carry = "\r"
		text = text[:len(text)-1]
	}

	// Normalize CRLF and stray CR so the split below only sees LF.
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")

	lines := strings.Split(normalized, "\n")
	// The final fragment may be an incomplete line; keep it for the
	// next chunk instead of emitting it.
	d.buf = lines[len(lines)-1] + carry
	lines = lines[:len(lines)-1]

	var frames []Frame
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, eventPrefix):
			d.pendingEvent = strings.TrimSpace(line[len(eventPrefix):])
			d.hasEvent = true
		case strings.HasPrefix(line, dataPrefix):
			// Last write wins: multi-line data blocks are not
			// accumulated. Pinned by a regression test.
			d.pendingData = line[len(dataPrefix):]
		case line == "":
			if d.hasEvent {
				frames = append(frames, Frame{Event: d.pendingEvent, Data: d.pendingData})
				d.reset()
			}
		}
	}
	return frames
}

// Flush emits the pending frame, if any, at stream end. Streams that
// close without a trailing blank line still deliver their final event.
func (d *Decoder) Flush() []Frame {
	var frames []Frame
	// End of stream terminates whatever line is still buffered.
	if d.buf != "" {
		frames = d.Feed([]byte("\n"))
	}
	if d.hasEvent {
		frames = append(frames, Frame{Event: d.pendingEvent, Data: d.pendingData})
		d.reset()
	}
	return frames
}

func (d *Decoder) reset() {
	d.pendingEvent = ""
	d.pendingData = ""
	d.hasEvent = false
}
