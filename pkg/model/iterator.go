package model

// RecordIterator streams records out of a source or a transformation stage.
// The usage pattern follows database result sets:
//
//	for it.Next() {
//	    r := it.Record()
//	    ...
//	}
//	if err := it.Err(); err != nil { ... }
//
// A consumer that stops early must Close the iterator so the producer can
// release its resources. Err reports the first failure encountered while
// producing; a partial stream followed by a non-nil Err holds only records
// produced before the failure.
type RecordIterator interface {
	// Next advances to the next record, returning false when the stream is
	// exhausted or failed.
	Next() bool
	// Record returns the current record. Only valid after Next returned true.
	Record() Record
	// Err returns the first production error, or nil on clean exhaustion.
	Err() error
	// Close releases producer resources. Safe to call more than once.
	Close() error
}

// SliceIterator replays a fixed slice of records.
type SliceIterator struct {
	records []Record
	pos     int
	err     error
}

// NewSliceIterator wraps records in an iterator.
func NewSliceIterator(records []Record) *SliceIterator {
	return &SliceIterator{records: records, pos: -1}
}

// NewFailingIterator replays records, then fails with err instead of a clean
// exhaustion. Used to exercise partial stream handling.
func NewFailingIterator(records []Record, err error) *SliceIterator {
	return &SliceIterator{records: records, pos: -1, err: err}
}

// Next implements RecordIterator.
func (s *SliceIterator) Next() bool {
	if s.pos+1 >= len(s.records) {
		return false
	}
	s.pos++
	return true
}

// Record implements RecordIterator.
func (s *SliceIterator) Record() Record {
	if s.pos < 0 || s.pos >= len(s.records) {
		return nil
	}
	return s.records[s.pos]
}

// Err implements RecordIterator.
func (s *SliceIterator) Err() error {
	if s.pos+1 >= len(s.records) {
		return s.err
	}
	return nil
}

// Close implements RecordIterator.
func (s *SliceIterator) Close() error {
	return nil
}

// TransformIterator applies a function to every record of an inner iterator.
// The record typer and the record processor are both transformations over a
// source stream.
type TransformIterator struct {
	inner     RecordIterator
	transform func(Record) Record
	current   Record
}

// NewTransformIterator wraps inner, applying transform to each record.
func NewTransformIterator(inner RecordIterator, transform func(Record) Record) *TransformIterator {
	return &TransformIterator{inner: inner, transform: transform}
}

// Next implements RecordIterator.
func (t *TransformIterator) Next() bool {
	if !t.inner.Next() {
		return false
	}
	t.current = t.transform(t.inner.Record())
	return true
}

// Record implements RecordIterator.
func (t *TransformIterator) Record() Record {
	return t.current
}

// Err implements RecordIterator.
func (t *TransformIterator) Err() error {
	return t.inner.Err()
}

// Close implements RecordIterator.
func (t *TransformIterator) Close() error {
	return t.inner.Close()
}

// Drain consumes the iterator, returning the produced records and the
// production error, then closes it.
func Drain(it RecordIterator) ([]Record, error) {
	var out []Record
	for it.Next() {
		out = append(out, it.Record())
	}
	err := it.Err()
	if cerr := it.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return out, err
}
