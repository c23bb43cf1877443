// Package stream adapts pipeline events to the line-delimited JSON wire
// format: one JSON object per line, newline-terminated, no envelope. The
// transport advertises text/event-stream headers for proxy friendliness but
// the framing is plain NDJSON, which existing clients depend on.
package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/writgo/content-engine/internal/pipeline"
)

// progressLine is the wire shape of a progress event.
type progressLine struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Percent int    `json:"percent"`
}

// errorLine is the wire shape of the terminal error event.
type errorLine struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// successLine is the wire shape of the terminal success event.
type successLine struct {
	Type string `json:"type"`
	*pipeline.Result
}

// Emitter writes pipeline events as NDJSON lines, flushing after each one
// so the caller observes liveness during long stages.
type Emitter struct {
	w       io.Writer
	flusher http.Flusher
}

// NewEmitter wraps a writer; if it also implements http.Flusher each line
// is flushed immediately.
func NewEmitter(w io.Writer) *Emitter {
	e := &Emitter{w: w}
	if f, ok := w.(http.Flusher); ok {
		e.flusher = f
	}
	return e
}

// WriteHeaders sets the streaming response headers.
func WriteHeaders(h http.Header) {
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
}

// Emit writes one event as a single JSON line.
func (e *Emitter) Emit(ev pipeline.Event) error {
	var line any
	switch ev.Type {
	case pipeline.EventProgress:
		line = progressLine{Type: string(ev.Type), Message: ev.Message, Percent: ev.Percent}
	case pipeline.EventError:
		l := errorLine{Type: string(ev.Type), Error: ev.Message}
		if ev.Err != nil {
			l.Code = string(ev.Err.Code)
			l.Error = ev.Err.Message
			l.Details = ev.Err.Detail
		}
		line = l
	case pipeline.EventSuccess:
		line = successLine{Type: string(ev.Type), Result: ev.Result}
	default:
		return fmt.Errorf("unknown event type %q", ev.Type)
	}

	data, err := json.Marshal(line)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := e.w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	if e.flusher != nil {
		e.flusher.Flush()
	}
	return nil
}
