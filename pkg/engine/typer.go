package engine

import "github.com/oneconcern/trawler/pkg/model"

// TypeRecords labels every record of a stream with one record type. Nothing
// else about the records is touched; downstream stages branch on the label.
func TypeRecords(records model.RecordIterator, recordType string) model.RecordIterator {
	return model.NewTransformIterator(records, func(r model.Record) model.Record {
		r.SetType(recordType)
		return r
	})
}
