package flow

import (
	"context"
	"time"
)

// BuildInput is what a RecordBuilder part sees when a flow opens.
type BuildInput struct {
	Options   Options
	IDs       IDs
	ServiceID string
	Resource  Attributes
	Start     time.Time
	Root      bool
}

// RecordBuilder overrides parts of record construction. Each nil part keeps
// the default: engine resource, Options.Attributes, no events, Options.Links,
// no status and Options.Extensions.
type RecordBuilder struct {
	Resource   func(ctx context.Context, in BuildInput) Attributes
	Attributes func(ctx context.Context, in BuildInput) Attributes
	Events     func(ctx context.Context, in BuildInput) []Event
	Links      func(ctx context.Context, in BuildInput) []Link
	Status     func(ctx context.Context, in BuildInput) *Status
	Extensions func(ctx context.Context, in BuildInput) map[string]any
}

func (b RecordBuilder) apply(ctx context.Context, in BuildInput, data *RecordData) {
	data.Resource = in.Resource
	if b.Resource != nil {
		data.Resource = b.Resource(ctx, in)
	}

	data.Attributes = NewAttributes(in.Options.Attributes...)
	if b.Attributes != nil {
		data.Attributes = b.Attributes(ctx, in)
	}

	if b.Events != nil {
		data.Events = b.Events(ctx, in)
	}

	data.Links = in.Options.Links
	if b.Links != nil {
		data.Links = b.Links(ctx, in)
	}

	if b.Status != nil {
		data.Status = b.Status(ctx, in)
	}

	data.Extensions = in.Options.Extensions
	if b.Extensions != nil {
		data.Extensions = b.Extensions(ctx, in)
	}
}
