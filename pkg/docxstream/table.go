package docxstream

import (
	"io"
	"regexp"
	"strings"

	docxml "github.com/benjaminschreck/docxstream/pkg/docxstream/xml"
)

const (
	tagTable     = "w:tbl"
	tagRow       = "w:tr"
	tagCell      = "w:tc"
	tagCellProps = "w:tcPr"
	tagVMerge    = "w:vMerge"
	tagText      = "w:t"
	attrVal      = "w:val"

	loopStartMarker = "{{#"
	loopEndMarker   = "}}"
)

// tablePlaceholderRegex marks a row as a data row. It matches cell tokens
// such as "[name]" or "{{#users}}[name]".
var tablePlaceholderRegex = regexp.MustCompile(`\S(.+?)]`)

// tableItem is either one non-row event (table properties, grid, whitespace)
// or a complete <w:tr> element.
type tableItem struct {
	events         []docxml.Event
	row            bool
	hasPlaceholder bool
}

// tableTemplate is a captured <w:tbl>, in source order.
type tableTemplate struct {
	start    docxml.Event
	items    []tableItem
	template int // index in items of the data row driving expansion, or -1
	loopKey  string
	rows     int
}

// eventSource is what table capture and rendering read from: the document
// reader, or a captured slice when a row is replayed.
type eventSource interface {
	Next() (docxml.Event, error)
	Peek() (docxml.Event, error)
	InputOffset() int64
}

// sliceSource replays captured events.
type sliceSource struct {
	events []docxml.Event
	pos    int
}

func (s *sliceSource) Next() (docxml.Event, error) {
	if s.pos >= len(s.events) {
		return docxml.Event{}, io.EOF
	}
	ev := s.events[s.pos]
	s.pos++
	return ev, nil
}

func (s *sliceSource) Peek() (docxml.Event, error) {
	if s.pos >= len(s.events) {
		return docxml.Event{}, io.EOF
	}
	return s.events[s.pos], nil
}

func (s *sliceSource) InputOffset() int64 {
	return 0
}

// captureTable reads everything up to the </w:tbl> matching start. The last
// row matching tablePlaceholderRegex becomes the template; the loop key comes
// from the first row whose first text node opens with "{{#".
func captureTable(src eventSource, start docxml.Event) (*tableTemplate, error) {
	tbl := &tableTemplate{start: start, template: -1}

	for {
		ev, err := nextEvent(src)
		if err != nil {
			return nil, err
		}

		switch {
		case ev.IsStart(tagTable):
			return nil, nestedTableError(src)
		case ev.IsStart(tagRow):
			item, err := tbl.captureRow(src, ev)
			if err != nil {
				return nil, err
			}
			tbl.items = append(tbl.items, item)
			tbl.rows++
			if item.hasPlaceholder {
				tbl.template = len(tbl.items) - 1
			}
		case ev.IsEnd(tagTable):
			return tbl, nil
		default:
			tbl.items = append(tbl.items, tableItem{events: []docxml.Event{ev}})
		}
	}
}

func (t *tableTemplate) captureRow(src eventSource, start docxml.Event) (tableItem, error) {
	item := tableItem{row: true, events: []docxml.Event{start}}
	depth := 1
	inText := 0
	firstText := true

	for depth > 0 {
		ev, err := nextEvent(src)
		if err != nil {
			return tableItem{}, err
		}

		switch ev.Kind {
		case docxml.KindStart:
			switch ev.Name {
			case tagTable:
				return tableItem{}, nestedTableError(src)
			case tagRow:
				depth++
			case tagText:
				inText++
			}
		case docxml.KindEnd:
			switch ev.Name {
			case tagRow:
				depth--
			case tagText:
				inText--
			}
		case docxml.KindText:
			if tablePlaceholderRegex.MatchString(ev.Text) {
				item.hasPlaceholder = true
			}
			if inText > 0 && firstText {
				firstText = false
				if key, rest, ok := splitLoopKey(ev.Text); ok && t.loopKey == "" {
					t.loopKey = key
					ev.Text = rest
				}
			}
		}
		item.events = append(item.events, ev)
	}
	return item, nil
}

// splitLoopKey extracts "{{#key}}" from the start of text. The key ends at
// the nearest "}}", and every occurrence of it is removed from the text.
func splitLoopKey(text string) (key, rest string, ok bool) {
	if !strings.HasPrefix(text, loopStartMarker) {
		return "", text, false
	}
	pos := strings.Index(text, loopEndMarker)
	if pos < 0 {
		return "", text, false
	}
	key = text[:pos+len(loopEndMarker)]
	return key, strings.ReplaceAll(text, key, ""), true
}

func nestedTableError(src eventSource) error {
	return NewTemplateError("table starts inside another table", src.InputOffset(), ErrNestedTable)
}

// nextEvent reads one event and turns an early end of input into an error;
// callers only use it where an element is still open.
func nextEvent(src eventSource) (docxml.Event, error) {
	ev, err := src.Next()
	if err == io.EOF {
		return docxml.Event{}, NewTemplateError("unexpected end of document", src.InputOffset(), io.ErrUnexpectedEOF)
	}
	if err != nil {
		return docxml.Event{}, NewTemplateError("malformed document", src.InputOffset(), err)
	}
	return ev, nil
}

// rowLayout indexes the text nodes of a template row. Only text inside <w:t>
// is rendered; cell is -1 for text outside any cell.
type rowLayout struct {
	texts []textSlot
	cells int
}

type textSlot struct {
	event int
	cell  int
}

func analyzeRow(row []docxml.Event) rowLayout {
	var layout rowLayout
	cell := -1
	inCell := false
	inText := 0

	for i, ev := range row {
		switch {
		case ev.IsStart(tagCell):
			cell++
			inCell = true
		case ev.IsEnd(tagCell):
			inCell = false
		case ev.IsStart(tagText):
			inText++
		case ev.IsEnd(tagText):
			inText--
		case ev.Kind == docxml.KindText && inText > 0:
			slot := textSlot{event: i, cell: -1}
			if inCell {
				slot.cell = cell
			}
			layout.texts = append(layout.texts, slot)
		}
	}
	layout.cells = cell + 1
	return layout
}

// matchingEnd returns the index of the end event closing the element that
// starts at row[start].
func matchingEnd(row []docxml.Event, start int) int {
	name := row[start].Name
	depth := 0
	for i := start; i < len(row); i++ {
		switch {
		case row[i].IsStart(name):
			depth++
		case row[i].IsEnd(name):
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return len(row) - 1
}
