package transport

import "bytes"

const (
	eventOpen  = "<event"
	eventClose = "</event>"
)

// DefaultMaxEventSize caps one framed event when Config.MaxEventSize is
// unset.
const DefaultMaxEventSize = 256 * 1024

// splitEvents is a bufio.SplitFunc yielding one CoT event per token.
// CoT streams carry no length prefix or newline discipline; the closing
// </event> tag is the only reliable frame boundary. Servers pack
// several events into one segment and split single events across
// segments freely, so the scanner accumulates until a closing tag
// shows up. Bytes before the opening tag (XML declarations, stray
// whitespace, a truncated predecessor) are discarded with the frame
// they precede. A partial event at stream end is dropped.
func splitEvents(data []byte, atEOF bool) (int, []byte, error) {
	end := bytes.Index(data, []byte(eventClose))
	if end < 0 {
		// Request more data; at EOF this drops the partial tail.
		return 0, nil, nil
	}

	advance := end + len(eventClose)
	start := bytes.Index(data[:end], []byte(eventOpen))
	if start < 0 {
		// Closing tag with no opening tag: skip the garbage.
		return advance, nil, nil
	}
	return advance, data[start:advance], nil
}
