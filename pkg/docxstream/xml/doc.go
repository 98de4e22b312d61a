// Package xml provides a forward-only event stream over WordprocessingML parts.
//
// The docxstream engine never builds a tree for word/document.xml. Instead it
// consumes the part as a flat sequence of events and re-emits them, rewriting
// only the elements it cares about. This package supplies the three pieces
// needed for that:
//
//   - event.go: the Event type (start, end, text, other) and small predicates
//   - reader.go: Reader, a cursor over encoding/xml raw tokens with a
//     one-event lookahead buffer (Peek)
//   - writer.go: Writer, which serializes events back to bytes and accepts
//     pre-rendered fragments through WriteRaw
//
// # Names
//
// Element and attribute names keep their source prefix. A run text element is
// the event named "w:t", not {http://schemas.openxmlformats.org/...}t. This
// keeps the output byte-compatible with what Word wrote and avoids the
// namespace rewriting done by encoding/xml's Encoder.
//
// Character data goes through encoding/xml's line-end normalization, so a
// literal "\r\n" or "\r" inside text is written back as "\n".
//
// # Well-formedness
//
// Reader tracks open elements and reports mismatched or unclosed tags as
// *encoding/xml.SyntaxError. Anything the decoder rejects is returned as-is.
//
// Example:
//
//	r := xml.NewReader(src)
//	w := xml.NewWriter(dst)
//	for {
//	    ev, err := r.Next()
//	    if err == io.EOF {
//	        break
//	    }
//	    if err != nil {
//	        return err
//	    }
//	    if err := w.Write(ev); err != nil {
//	        return err
//	    }
//	}
//	return w.Flush()
package xml
