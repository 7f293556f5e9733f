package sensor

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// SampleSink takes ECG samples in arrival order.
type SampleSink interface {
	Push(v float64) error
}

// Router sends ECG frames to the QRS pipeline. Other channels go to the
// handler registered for their kind, or are counted and dropped.
type Router struct {
	ecg      SampleSink
	handlers [numKinds]func(Frame)

	routed  [numKinds]atomic.Uint64
	dropped atomic.Uint64
}

func NewRouter(ecg SampleSink) *Router {
	return &Router{ecg: ecg}
}

// Handle registers fn for frames of kind k. ECG frames always go to the
// sample sink.
func (r *Router) Handle(k Kind, fn func(Frame)) {
	if k == KindECG || k == KindInvalid || k >= numKinds {
		panic(fmt.Sprintf("sensor: cannot register a handler for %v", k))
	}
	r.handlers[k] = fn
}

func (r *Router) Route(f Frame) error {
	if f.Kind == KindInvalid || f.Kind >= numKinds {
		r.dropped.Add(1)
		return fmt.Errorf("route frame: %w: %v", ErrUnknownKind, f.Kind)
	}
	r.routed[f.Kind].Add(1)

	if f.Kind == KindECG {
		return r.ecg.Push(f.Value)
	}
	if fn := r.handlers[f.Kind]; fn != nil {
		fn(f)
		return nil
	}
	r.dropped.Add(1)
	return nil
}

// RouteAll routes every frame in order and joins the errors.
func (r *Router) RouteAll(frames []Frame) error {
	var errs []error
	for _, f := range frames {
		if err := r.Route(f); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Count is the number of frames of kind k seen so far.
func (r *Router) Count(k Kind) uint64 {
	if k >= numKinds {
		return 0
	}
	return r.routed[k].Load()
}

// Dropped counts frames that had no consumer.
func (r *Router) Dropped() uint64 { return r.dropped.Load() }
