package xml

import (
	"encoding/xml"
	"fmt"
	"io"
)

// Reader is a forward-only cursor over the events of one XML part.
//
// Lookahead is limited to a single event: Peek reads the next event and keeps
// it until Next consumes it. The underlying stream is never rewound.
type Reader struct {
	dec     *xml.Decoder
	pending *Event
	open    []string
	done    bool
}

// NewReader creates a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{dec: xml.NewDecoder(r)}
}

// Next returns the next event, or io.EOF once the document is exhausted.
func (r *Reader) Next() (Event, error) {
	if r.pending != nil {
		ev := *r.pending
		r.pending = nil
		return ev, nil
	}
	return r.read()
}

// Peek returns the next event without consuming it.
func (r *Reader) Peek() (Event, error) {
	if r.pending != nil {
		return *r.pending, nil
	}
	ev, err := r.read()
	if err != nil {
		return Event{}, err
	}
	r.pending = &ev
	return ev, nil
}

// InputOffset returns the decoder's byte offset, for error reporting.
func (r *Reader) InputOffset() int64 {
	return r.dec.InputOffset()
}

func (r *Reader) read() (Event, error) {
	if r.done {
		return Event{}, io.EOF
	}
	tok, err := r.dec.RawToken()
	if err == io.EOF {
		r.done = true
		if len(r.open) > 0 {
			return Event{}, &xml.SyntaxError{
				Msg:  fmt.Sprintf("unexpected EOF: element <%s> not closed", r.open[len(r.open)-1]),
				Line: r.line(),
			}
		}
		return Event{}, io.EOF
	}
	if err != nil {
		return Event{}, err
	}

	ev := fromToken(tok)
	switch ev.Kind {
	case KindStart:
		r.open = append(r.open, ev.Name)
	case KindEnd:
		if len(r.open) == 0 {
			return Event{}, &xml.SyntaxError{
				Msg:  fmt.Sprintf("unexpected end element </%s>", ev.Name),
				Line: r.line(),
			}
		}
		top := r.open[len(r.open)-1]
		if top != ev.Name {
			return Event{}, &xml.SyntaxError{
				Msg:  fmt.Sprintf("element <%s> closed by </%s>", top, ev.Name),
				Line: r.line(),
			}
		}
		r.open = r.open[:len(r.open)-1]
	}
	return ev, nil
}

func (r *Reader) line() int {
	line, _ := r.dec.InputPos()
	return line
}
