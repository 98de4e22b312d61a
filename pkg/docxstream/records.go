package docxstream

// recordStream flattens loop items lazily and concatenates their records, so
// a large data array is never flattened up front.
type recordStream struct {
	items []any
	pos   int
	buf   []Record
}

func newRecordStream(items []any) *recordStream {
	return &recordStream{items: items}
}

// Next returns the following record, or false when every item is exhausted.
func (s *recordStream) Next() (Record, bool) {
	for len(s.buf) == 0 {
		if s.pos >= len(s.items) {
			return nil, false
		}
		s.buf = Flatten(s.items[s.pos])
		s.pos++
	}
	rec := s.buf[0]
	s.buf = s.buf[1:]
	return rec, true
}
