// Package process holds the record processor contract plus the default
// processor, which wires primary keys and time fields onto harvested
// records. Scoring, author resolution and company attribution belong to
// richer processors plugged in behind the same contract.
package process

import (
	"context"

	"go.uber.org/zap"

	"github.com/oneconcern/trawler/pkg/model"
)

// SecondsPerWeek buckets timestamps into week numbers.
const SecondsPerWeek = 7 * 24 * 60 * 60

// Processor enriches a typed record stream on its way into storage. Process
// wraps the stream without buffering it. Update runs once per cycle after
// every source has been synchronized.
type Processor interface {
	Process(records model.RecordIterator) model.RecordIterator
	Update(ctx context.Context) error
}

// Option alters the processor settings.
type Option func(*settings)

type settings struct {
	l *zap.Logger
}

// WithLogger sets the processor logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.l = l
		}
	}
}

// New returns the default processor.
func New(opts ...Option) Processor {
	p := &defaultProcessor{settings: settings{l: zap.NewNop()}}
	for _, apply := range opts {
		apply(&p.settings)
	}
	return p
}

type defaultProcessor struct {
	settings
}

// PrimaryKey derives the stable identity of a typed record, or "" when the
// record is missing its natural key.
func PrimaryKey(r model.Record) string {
	switch r.Type() {
	case model.TypeCommit:
		return r.GetString("commit_id")
	case model.TypeReview:
		return r.GetString("id")
	case model.TypeEmail:
		return r.GetString("message_id")
	case model.TypeMember:
		if id := r.GetString("member_id"); id != "" {
			return "member:" + id
		}
	}
	return ""
}

func (p *defaultProcessor) Process(records model.RecordIterator) model.RecordIterator {
	return model.NewTransformIterator(records, p.enrich)
}

func (p *defaultProcessor) Update(_ context.Context) error {
	return nil
}

func (p *defaultProcessor) enrich(r model.Record) model.Record {
	if pk := PrimaryKey(r); pk != "" {
		r.SetPrimaryKey(pk)
	} else {
		// the merge layer drops keyless records, they cannot be addressed
		p.l.Debug("record without a natural key", zap.String("type", r.Type()))
	}
	if _, ok := r.GetInt64(model.FieldDate); !ok {
		if joined, ok := r.GetInt64("date_joined"); ok {
			r[model.FieldDate] = joined
		}
	}
	if date, ok := r.GetInt64(model.FieldDate); ok {
		r[model.FieldDate] = date
		r[model.FieldWeek] = date / SecondsPerWeek
	}
	return r
}
