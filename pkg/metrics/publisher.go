package metrics

import (
	"context"
	"time"
)

// Publisher posts one cycle's statistics as a single batch. A nil Publisher
// publishes nowhere, so callers need no metrics conditionals.
type Publisher struct {
	store       Store
	measurement string
	tags        map[string]string
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithMeasurement sets the measurement name points are filed under.
func WithMeasurement(name string) PublisherOption {
	return func(p *Publisher) {
		if name != "" {
			p.measurement = name
		}
	}
}

// WithTags adds tags to every posted point.
func WithTags(tags map[string]string) PublisherOption {
	return func(p *Publisher) {
		for k, v := range tags {
			p.tags[k] = v
		}
	}
}

// NewPublisher wraps a store.
func NewPublisher(store Store, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		store:       store,
		measurement: "update_cycle",
		tags:        map[string]string{},
	}
	for _, apply := range opts {
		apply(p)
	}
	return p
}

// Publish posts the cycle tallies.
func (p *Publisher) Publish(ctx context.Context, stats *CycleStats) error {
	if p == nil || p.store == nil || stats == nil {
		return nil
	}
	tags := make(map[string]string, len(p.tags)+1)
	for k, v := range p.tags {
		tags[k] = v
	}
	if stats.Run != "" {
		tags["run"] = stats.Run
	}
	return p.store.WriteBatch(ctx, []MetricPoint{{
		Measurement: p.measurement,
		Tags:        tags,
		Fields:      stats.Fields(),
		Timestamp:   time.Now(),
	}})
}
