package xml

import (
	"encoding/xml"
	"strings"
)

// Kind identifies the structural role of an Event.
type Kind int

const (
	// KindStart is an opening tag. Self-closing tags produce a start and an end.
	KindStart Kind = iota
	// KindEnd is a closing tag.
	KindEnd
	// KindText is character data, already unescaped.
	KindText
	// KindOther covers comments, processing instructions and directives.
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindStart:
		return "start"
	case KindEnd:
		return "end"
	case KindText:
		return "text"
	case KindOther:
		return "other"
	default:
		return "unknown"
	}
}

// Event is one token of the stream. It owns all of its data, so it stays
// valid after the Reader advances.
type Event struct {
	Kind  Kind
	Name  string     // qualified name as written, e.g. "w:tc"
	Attrs []xml.Attr // start events only
	Text  string     // text events only
	Raw   string     // other events only, serialized form
}

// Start builds a start event.
func Start(name string, attrs ...xml.Attr) Event {
	return Event{Kind: KindStart, Name: name, Attrs: attrs}
}

// End builds an end event.
func End(name string) Event {
	return Event{Kind: KindEnd, Name: name}
}

// Text builds a text event.
func Text(s string) Event {
	return Event{Kind: KindText, Text: s}
}

// IsStart reports whether the event opens an element with the given name.
func (e Event) IsStart(name string) bool {
	return e.Kind == KindStart && e.Name == name
}

// IsEnd reports whether the event closes an element with the given name.
func (e Event) IsEnd(name string) bool {
	return e.Kind == KindEnd && e.Name == name
}

// IsBlank reports whether the event is whitespace-only character data.
func (e Event) IsBlank() bool {
	return e.Kind == KindText && strings.TrimSpace(e.Text) == ""
}

// qualifiedName renders a raw token name back to prefix:local form.
func qualifiedName(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

// fromToken converts a raw decoder token into an owned Event.
func fromToken(tok xml.Token) Event {
	switch t := tok.(type) {
	case xml.StartElement:
		attrs := make([]xml.Attr, len(t.Attr))
		copy(attrs, t.Attr)
		return Event{Kind: KindStart, Name: qualifiedName(t.Name), Attrs: attrs}
	case xml.EndElement:
		return Event{Kind: KindEnd, Name: qualifiedName(t.Name)}
	case xml.CharData:
		return Event{Kind: KindText, Text: string(t)}
	case xml.Comment:
		return Event{Kind: KindOther, Raw: "<!--" + string(t) + "-->"}
	case xml.ProcInst:
		raw := "<?" + t.Target
		if len(t.Inst) > 0 {
			raw += " " + string(t.Inst)
		}
		return Event{Kind: KindOther, Raw: raw + "?>"}
	case xml.Directive:
		return Event{Kind: KindOther, Raw: "<!" + string(t) + ">"}
	default:
		return Event{Kind: KindOther}
	}
}

// NewAttr builds an attribute from a qualified name such as "w:val".
func NewAttr(name, value string) xml.Attr {
	if prefix, local, ok := strings.Cut(name, ":"); ok {
		return xml.Attr{Name: xml.Name{Space: prefix, Local: local}, Value: value}
	}
	return xml.Attr{Name: xml.Name{Local: name}, Value: value}
}
