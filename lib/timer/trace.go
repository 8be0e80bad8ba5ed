package timer

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/raulk/clock"
	"go.uber.org/zap"
)

type traceKey struct{}

type traceEvent struct {
	name    string
	elapsed time.Duration
}

// trace collects named events with their offset from the start of a run.
type trace struct {
	lock   sync.Mutex
	clk    clock.Clock
	start  time.Time
	events []traceEvent
}

func (t *trace) record(name string) {
	t.lock.Lock()
	defer t.lock.Unlock()
	t.events = append(t.events, traceEvent{name: name, elapsed: t.clk.Since(t.start)})
}

// sorted returns a copy of the events ordered by elapsed time.
func (t *trace) sorted() []traceEvent {
	t.lock.Lock()
	defer t.lock.Unlock()
	ret := append([]traceEvent(nil), t.events...)
	sort.SliceStable(ret, func(i, j int) bool { return ret[i].elapsed < ret[j].elapsed })
	return ret
}

// WithTracing returns a context that collects the events passed to Record.
func WithTracing(ctx context.Context, clk clock.Clock) context.Context {
	return context.WithValue(ctx, traceKey{}, &trace{clk: clk, start: clk.Now()})
}

// Record appends event to the trace carried by ctx. It is a no-op when ctx
// was not created with WithTracing.
func Record(ctx context.Context, event string) {
	if t, ok := ctx.Value(traceKey{}).(*trace); ok {
		t.record(event)
	}
}

// Events returns the recorded events of ctx's trace in order of elapsed time.
func Events(ctx context.Context) []string {
	t, ok := ctx.Value(traceKey{}).(*trace)
	if !ok {
		return nil
	}
	events := t.sorted()
	ret := make([]string, len(events))
	for i, e := range events {
		ret[i] = e.name
	}
	return ret
}

// LogTracingInfo writes the trace of ctx to log at debug level, one field per
// event with its offset in milliseconds.
func LogTracingInfo(ctx context.Context, log *zap.Logger) error {
	v := ctx.Value(traceKey{})
	if v == nil {
		return nil
	}
	t, ok := v.(*trace)
	if !ok {
		return fmt.Errorf("expected trace but got: %v", v)
	}
	events := t.sorted()
	fields := make([]zap.Field, len(events))
	for i, e := range events {
		fields[i] = zap.Int64(fmt.Sprintf("%03d:%s", i, e.name), e.elapsed.Milliseconds())
	}
	log.Debug("trace", fields...)
	return nil
}
