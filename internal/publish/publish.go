package publish

import (
	"context"
	"errors"
	"fmt"

	"github.com/DushanTharusha/smart-refrigerator-iot-system-main/internal/protocol"
)

// Publisher forwards a stored prediction to a downstream system
type Publisher interface {
	Name() string
	Publish(ctx context.Context, event *protocol.PredictionEvent) error
	Close() error
}

// Result is the outcome of handing one event to one publisher
type Result struct {
	Publisher string
	Err       error
}

// Fanout sends every event to all configured publishers in order
type Fanout struct {
	publishers []Publisher
}

// NewFanout creates a fanout over the given publishers
func NewFanout(publishers ...Publisher) *Fanout {
	return &Fanout{publishers: publishers}
}

// Len returns the number of publishers
func (f *Fanout) Len() int {
	if f == nil {
		return 0
	}
	return len(f.publishers)
}

// Publish delivers the event to each publisher. A failing publisher does not
// stop delivery to the rest.
func (f *Fanout) Publish(ctx context.Context, event *protocol.PredictionEvent) []Result {
	if f == nil {
		return nil
	}

	results := make([]Result, 0, len(f.publishers))
	for _, p := range f.publishers {
		err := p.Publish(ctx, event)
		if err != nil {
			err = fmt.Errorf("%s: %w", p.Name(), err)
		}
		results = append(results, Result{Publisher: p.Name(), Err: err})
	}
	return results
}

// Close closes every publisher and joins their errors
func (f *Fanout) Close() error {
	if f == nil {
		return nil
	}

	var errs []error
	for _, p := range f.publishers {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		}
	}
	return errors.Join(errs...)
}
