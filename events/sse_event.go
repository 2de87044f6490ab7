package events

import (
	"fmt"
	"io"
	"strings"
)

// SSEEvent represents a single Server-Sent Event frame.
// ID, Event and Data map onto the "id:", "event:" and "data:" fields of the stream.
type SSEEvent struct {
	ID    string
	Event string
	Data  string
}

// NewSSEEvent creates an unnamed SSEEvent carrying data.
func NewSSEEvent(data string) SSEEvent {
	return SSEEvent{Data: data}
}

// WriteTo writes the frame in text/event-stream format. Multi-line data is split into
// one "data:" line per line, as the format requires.
func (e SSEEvent) WriteTo(w io.Writer) (int64, error) {
	var b strings.Builder
	if e.ID != "" {
		fmt.Fprintf(&b, "id: %s\n", e.ID)
	}
	if e.Event != "" {
		fmt.Fprintf(&b, "event: %s\n", e.Event)
	}
	for _, line := range strings.Split(e.Data, "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteString("\n")
	n, err := io.WriteString(w, b.String())
	return int64(n), err
}
