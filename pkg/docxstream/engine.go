package docxstream

import (
	"context"
	"io"

	docxml "github.com/benjaminschreck/docxstream/pkg/docxstream/xml"
)

// cellPropsBeforeVMerge lists the <w:tcPr> children that precede w:vMerge in
// the schema's sequence.
var cellPropsBeforeVMerge = map[string]bool{
	"w:cnfStyle": true,
	"w:tcW":      true,
	"w:gridSpan": true,
	"w:hMerge":   true,
}

// Stats summarizes one Process call.
type Stats struct {
	Tables         int
	TablesExpanded int
	RowsGenerated  int
	Images         int
}

// Engine rewrites one document body. It substitutes whole-node placeholders,
// expands loop tables and replaces base64 image values with inline drawings.
//
// An Engine borrows its ImageRegistry for a single pass and is not safe for
// concurrent use.
type Engine struct {
	data      PlaceholderMap
	formatter ValueFormatter
	images    *ImageRegistry
	logger    *Logger
	stats     Stats
}

// NewEngine creates an engine. A nil formatter selects DefaultFormatter; a
// nil registry gets a private one whose relationships are never written.
func NewEngine(data PlaceholderMap, formatter ValueFormatter, images *ImageRegistry) *Engine {
	if formatter == nil {
		formatter = NewDefaultFormatter()
	}
	if images == nil {
		images = NewImageRegistry(nil, NewRelationshipAllocator())
	}
	return &Engine{
		data:      data,
		formatter: formatter,
		images:    images,
		logger:    GetLogger(),
	}
}

// SetLogger replaces the logger used for debug output.
func (e *Engine) SetLogger(logger *Logger) {
	if logger != nil {
		e.logger = logger
	}
}

// Stats returns the counters collected so far.
func (e *Engine) Stats() Stats {
	return e.stats
}

// Process streams the document body from src to dst. Output is only
// meaningful when Process returns nil.
func (e *Engine) Process(ctx context.Context, src io.Reader, dst io.Writer) error {
	r := docxml.NewReader(src)
	w := docxml.NewWriter(dst)

	if err := e.render(ctx, r, w); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}

	e.logger.WithFields(Fields{
		"tables":   e.stats.Tables,
		"expanded": e.stats.TablesExpanded,
		"rows":     e.stats.RowsGenerated,
		"images":   e.stats.Images,
	}).Debug("Document body processed")
	return nil
}

// render copies events from src to w with plain substitution. Tables are
// handed to processTable; a <w:t> whose value is an image payload is replaced
// by a drawing as a whole.
func (e *Engine) render(ctx context.Context, src eventSource, w *docxml.Writer) error {
	inText := false

	for {
		ev, err := src.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return NewTemplateError("malformed document", src.InputOffset(), err)
		}

		switch {
		case ev.IsStart(tagTable):
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := e.processTable(ctx, src, w, ev); err != nil {
				return err
			}
			continue

		case ev.IsStart(tagText):
			next, err := src.Peek()
			if err != nil && err != io.EOF {
				return NewTemplateError("malformed document", src.InputOffset(), err)
			}
			if err == nil && next.Kind == docxml.KindText {
				if value := e.formatter.Replace(next.Text, e.data); IsImagePayload(value) {
					if _, err := src.Next(); err != nil {
						return err
					}
					if err := e.embedImage(w, value); err != nil {
						return err
					}
					if err := skipElement(src, tagText); err != nil {
						return err
					}
					continue
				}
			}
			inText = true

		case ev.IsEnd(tagText):
			inText = false

		case ev.Kind == docxml.KindText && inText:
			ev = docxml.Text(e.formatter.Replace(ev.Text, e.data))
		}

		if err := w.Write(ev); err != nil {
			return err
		}
	}
}

// skipElement consumes events up to and including the end of the element
// whose start was already read.
func skipElement(src eventSource, name string) error {
	depth := 1
	for depth > 0 {
		ev, err := nextEvent(src)
		if err != nil {
			return err
		}
		switch {
		case ev.IsStart(name):
			depth++
		case ev.IsEnd(name):
			depth--
		}
	}
	return nil
}

// embedImage registers payload and writes its drawing in place of a <w:t>.
func (e *Engine) embedImage(w *docxml.Writer, payload string) error {
	ref, err := e.images.Submit(payload)
	if err != nil {
		return err
	}
	e.stats.Images++
	e.logger.DebugImage(ref)
	return w.WriteRaw(imageDrawing(ref))
}

// processTable captures a table and either expands its template row over the
// loop array or replays every row once.
func (e *Engine) processTable(ctx context.Context, src eventSource, w *docxml.Writer, start docxml.Event) error {
	tbl, err := captureTable(src, start)
	if err != nil {
		return err
	}
	e.stats.Tables++
	e.logger.DebugTable(tbl.loopKey, tbl.rows, tbl.template)

	if err := w.Write(tbl.start); err != nil {
		return err
	}

	items, ok := e.loopItems(tbl.loopKey)
	if ok && tbl.template >= 0 {
		e.stats.TablesExpanded++
		for i, item := range tbl.items {
			switch {
			case i == tbl.template:
				if err := e.expandRows(ctx, w, item.events, newRecordStream(items)); err != nil {
					return err
				}
			case item.row && item.hasPlaceholder:
				// Superseded by the later template row.
			default:
				if err := w.WriteAll(item.events); err != nil {
					return err
				}
			}
		}
	} else {
		for _, item := range tbl.items {
			if !item.row {
				if err := w.WriteAll(item.events); err != nil {
					return err
				}
				continue
			}
			if err := e.render(ctx, &sliceSource{events: item.events}, w); err != nil {
				return err
			}
		}
	}

	return w.Write(docxml.End(tbl.start.Name))
}

// loopItems returns the array bound to key, if any.
func (e *Engine) loopItems(key string) ([]any, bool) {
	if key == "" {
		return nil, false
	}
	v, ok := e.data[key]
	if !ok {
		return nil, false
	}
	items, ok := normalize(v).([]any)
	return items, ok
}

// renderedRow holds one record's rendering of the template row: one string
// per text slot and the concatenated value of every cell.
type renderedRow struct {
	texts []string
	cells []string
}

func (e *Engine) renderRow(row []docxml.Event, layout rowLayout, index int, rec Record) renderedRow {
	out := renderedRow{
		texts: make([]string, len(layout.texts)),
		cells: make([]string, layout.cells),
	}
	for i, slot := range layout.texts {
		text := e.formatter.ReplaceInRow(index, row[slot.event].Text, rec)
		out.texts[i] = text
		if slot.cell >= 0 {
			out.cells[slot.cell] += text
		}
	}
	return out
}

// expandRows emits the template row once per record, computing merge
// directives from the previous, current and next rendered rows.
func (e *Engine) expandRows(ctx context.Context, w *docxml.Writer, row []docxml.Event, records *recordStream) error {
	layout := analyzeRow(row)

	rec, ok := records.Next()
	if !ok {
		return nil
	}
	cur := e.renderRow(row, layout, 0, rec)

	var (
		tracker mergeTracker
		prev    []string
	)
	for index := 0; ; index++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		var next *renderedRow
		var nextCells []string
		if rec, ok := records.Next(); ok {
			r := e.renderRow(row, layout, index+1, rec)
			next = &r
			nextCells = r.cells
		}

		directives := tracker.directives(prev, cur.cells, nextCells)
		if err := e.emitRow(w, row, layout, cur.texts, directives); err != nil {
			return err
		}
		e.stats.RowsGenerated++

		if next == nil {
			return nil
		}
		prev = cur.cells
		cur = *next
	}
}

// emitRow writes one generated row. Cells with a directive get a w:vMerge
// marker; continue cells keep their markup but lose all text.
func (e *Engine) emitRow(w *docxml.Writer, row []docxml.Event, layout rowLayout, texts []string, directives []mergeDirective) error {
	slot := 0
	cell := -1
	suppress := false

	for i := 0; i < len(row); i++ {
		ev := row[i]

		switch {
		case ev.IsStart(tagCell):
			cell++
			directive := mergeNone
			if cell < len(directives) {
				directive = directives[cell]
			}
			suppress = directive == mergeContinue
			if err := w.Write(ev); err != nil {
				return err
			}
			if directive == mergeNone {
				continue
			}
			props := i + 1
			for props < len(row) && row[props].IsBlank() {
				props++
			}
			if props < len(row) && row[props].IsStart(tagCellProps) {
				if err := w.WriteAll(row[i+1 : props]); err != nil {
					return err
				}
				end, err := writeCellProps(w, row, props, directive)
				if err != nil {
					return err
				}
				i = end
				continue
			}
			if err := w.WriteAll([]docxml.Event{
				docxml.Start(tagCellProps),
				vMergeStart(directive),
				docxml.End(tagVMerge),
				docxml.End(tagCellProps),
			}); err != nil {
				return err
			}
			continue

		case ev.IsEnd(tagCell):
			suppress = false

		case ev.IsStart(tagText) && !suppress:
			if slot < len(layout.texts) && layout.texts[slot].event == i+1 && IsImagePayload(texts[slot]) {
				if err := e.embedImage(w, texts[slot]); err != nil {
					return err
				}
				slot++
				i = matchingEnd(row, i)
				continue
			}

		case ev.Kind == docxml.KindText:
			if slot < len(layout.texts) && layout.texts[slot].event == i {
				ev = docxml.Text(texts[slot])
				slot++
			}
			if suppress {
				continue
			}
		}

		if err := w.Write(ev); err != nil {
			return err
		}
	}
	return nil
}

// writeCellProps copies the <w:tcPr> starting at row[start], replacing any
// existing w:vMerge with the directive in schema position. It returns the
// index of the closing </w:tcPr>.
func writeCellProps(w *docxml.Writer, row []docxml.Event, start int, directive mergeDirective) (int, error) {
	end := matchingEnd(row, start)
	inserted := false
	insert := func() error {
		inserted = true
		return w.WriteAll([]docxml.Event{vMergeStart(directive), docxml.End(tagVMerge)})
	}

	if err := w.Write(row[start]); err != nil {
		return 0, err
	}
	depth := 0
	for i := start + 1; i < end; i++ {
		ev := row[i]
		if depth == 0 && ev.Kind == docxml.KindStart {
			if ev.Name == tagVMerge {
				i = matchingEnd(row, i)
				continue
			}
			if !inserted && !cellPropsBeforeVMerge[ev.Name] {
				if err := insert(); err != nil {
					return 0, err
				}
			}
		}
		switch ev.Kind {
		case docxml.KindStart:
			depth++
		case docxml.KindEnd:
			depth--
		}
		if err := w.Write(ev); err != nil {
			return 0, err
		}
	}
	if !inserted {
		if err := insert(); err != nil {
			return 0, err
		}
	}
	return end, w.Write(row[end])
}

func vMergeStart(directive mergeDirective) docxml.Event {
	return docxml.Start(tagVMerge, docxml.NewAttr(attrVal, directive.String()))
}
