package xml

import (
	"bufio"
	"io"
	"strings"
)

var (
	textEscaper = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
	)
	attrEscaper = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		`"`, "&quot;",
		"\t", "&#x9;",
		"\n", "&#xA;",
		"\r", "&#xD;",
	)
)

// Writer serializes events. A start tag is left unterminated until the next
// write so that an immediately following matching end collapses into a
// self-closing tag, which keeps property elements like <w:b/> compact.
type Writer struct {
	bw       *bufio.Writer
	openName string
	open     bool
	err      error
}

// NewWriter creates a Writer over w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{bw: bufio.NewWriter(w)}
}

// Write emits a single event. Empty text is dropped so that an element whose
// content was removed still collapses to a self-closing tag.
func (w *Writer) Write(ev Event) error {
	if w.err != nil {
		return w.err
	}
	if ev.Kind == KindText && ev.Text == "" {
		return nil
	}
	if w.open {
		w.open = false
		if ev.Kind == KindEnd && ev.Name == w.openName {
			w.writeString("/>")
			return w.err
		}
		w.writeString(">")
	}

	switch ev.Kind {
	case KindStart:
		w.writeString("<")
		w.writeString(ev.Name)
		for _, a := range ev.Attrs {
			w.writeString(" ")
			w.writeString(qualifiedName(a.Name))
			w.writeString(`="`)
			w.writeString(attrEscaper.Replace(a.Value))
			w.writeString(`"`)
		}
		w.open = true
		w.openName = ev.Name
	case KindEnd:
		w.writeString("</")
		w.writeString(ev.Name)
		w.writeString(">")
	case KindText:
		w.writeString(textEscaper.Replace(ev.Text))
	case KindOther:
		w.writeString(ev.Raw)
	}
	return w.err
}

// WriteAll emits events in order.
func (w *Writer) WriteAll(events []Event) error {
	for _, ev := range events {
		if err := w.Write(ev); err != nil {
			return err
		}
	}
	return nil
}

// WriteRaw emits an already serialized fragment verbatim.
func (w *Writer) WriteRaw(fragment string) error {
	if w.err != nil {
		return w.err
	}
	if w.open {
		w.open = false
		w.writeString(">")
	}
	w.writeString(fragment)
	return w.err
}

// Flush terminates any pending start tag and flushes buffered output.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	if w.open {
		w.open = false
		w.writeString(">")
	}
	if err := w.bw.Flush(); err != nil {
		w.err = err
	}
	return w.err
}

func (w *Writer) writeString(s string) {
	if w.err != nil {
		return
	}
	if _, err := w.bw.WriteString(s); err != nil {
		w.err = err
	}
}
