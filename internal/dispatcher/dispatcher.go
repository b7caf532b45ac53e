// Package dispatcher routes host command strings to registered handlers.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	// ErrUnknownCommand is returned by Dispatch for unregistered commands.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrQueueFull is returned when a non-blocking buffered handler drops an event.
	ErrQueueFull = errors.New("queue full")
	// ErrClosed is returned for events dispatched after Close.
	ErrClosed = errors.New("dispatcher closed")
)

// Event is one command received from the host.
type Event struct {
	Command   string
	Args      []string
	Timestamp time.Time
}

// HandlerFunc processes an event and returns a result.
type HandlerFunc func(Event) (any, error)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*registration)

type registration struct {
	queue    int
	blocking bool
	logged   bool
	guarded  bool
}

// Buffered runs the handler on its own goroutine behind a queue of size
// commands. Dispatch returns "queued" without waiting for the result.
func Buffered(size int) Option {
	return func(r *registration) { r.queue = size }
}

// Blocking makes Dispatch wait for room in a full queue instead of
// returning ErrQueueFull.
func Blocking() Option {
	return func(r *registration) { r.blocking = true }
}

// Logged logs every call at debug level and failures at error level.
func Logged() Option {
	return func(r *registration) { r.logged = true }
}

// Guarded turns a panic in the handler into an error.
func Guarded() Option {
	return func(r *registration) { r.guarded = true }
}

// Dispatcher routes events to registered handlers.
type Dispatcher struct {
	handlers map[string]HandlerFunc
	logger   Logger
	inst     instruments

	mu      sync.RWMutex
	buffers map[string]chan Event
	closed  bool
	workers sync.WaitGroup
}

// instruments are the dispatcher's OTel metrics.
type instruments struct {
	queueSize metric.Int64ObservableGauge
	processed metric.Int64Counter
	dropped   metric.Int64Counter
	failed    metric.Int64Counter
}

// New creates a Dispatcher. Metrics go to the global meter provider and
// are no-ops until one is installed.
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		buffers:  make(map[string]chan Event),
		logger:   logger,
	}
	if err := d.instrument(meter()); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Dispatcher) instrument(m metric.Meter) error {
	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&d.inst.processed, "dispatcher.commands.processed", "Commands handled"},
		{&d.inst.dropped, "dispatcher.commands.dropped", "Commands dropped because a queue was full"},
		{&d.inst.failed, "dispatcher.commands.failed", "Commands whose handler returned an error or panicked"},
	}
	for _, c := range counters {
		counter, err := m.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return fmt.Errorf("creating %s: %w", c.name, err)
		}
		*c.dst = counter
	}

	gauge, err := m.Int64ObservableGauge("dispatcher.queue.size",
		metric.WithDescription("Commands waiting in handler queues"))
	if err != nil {
		return fmt.Errorf("creating dispatcher.queue.size: %w", err)
	}
	d.inst.queueSize = gauge

	_, err = m.RegisterCallback(d.observeQueues, gauge)
	if err != nil {
		return fmt.Errorf("registering queue callback: %w", err)
	}
	return nil
}

func (d *Dispatcher) observeQueues(_ context.Context, o metric.Observer) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for cmd, buf := range d.buffers {
		o.ObserveInt64(d.inst.queueSize, int64(len(buf)), commandAttr(cmd))
	}
	return nil
}

func commandAttr(command string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("command", command))
}

// Register adds a handler for the given command. Layers apply inside out:
// metrics, panic recovery, the queue, then logging.
func (d *Dispatcher) Register(command string, h HandlerFunc, opts ...Option) {
	var r registration
	for _, opt := range opts {
		opt(&r)
	}

	layers := []struct {
		on   bool
		wrap func(HandlerFunc) HandlerFunc
	}{
		{r.guarded, func(next HandlerFunc) HandlerFunc { return withRecover(command, next) }},
		{r.queue > 0, func(next HandlerFunc) HandlerFunc { return d.withBuffer(command, r, next) }},
		{r.logged, func(next HandlerFunc) HandlerFunc { return d.withLogging(command, next) }},
	}

	handler := d.withMetrics(command, h)
	for _, l := range layers {
		if l.on {
			handler = l.wrap(handler)
		}
	}
	d.handlers[command] = handler
}

// Dispatch routes an event to its registered handler.
func (d *Dispatcher) Dispatch(e Event) (any, error) {
	h, ok := d.handlers[e.Command]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, e.Command)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	return h(e)
}

// HasHandler returns true if a handler is registered for the command.
func (d *Dispatcher) HasHandler(command string) bool {
	_, ok := d.handlers[command]
	return ok
}

// Commands returns the registered command names, sorted.
func (d *Dispatcher) Commands() []string {
	out := make([]string, 0, len(d.handlers))
	for cmd := range d.handlers {
		out = append(out, cmd)
	}
	sort.Strings(out)
	return out
}

// Close stops accepting buffered events and waits until every queue is drained.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, buf := range d.buffers {
		close(buf)
	}
	d.mu.Unlock()

	d.workers.Wait()
}

func (d *Dispatcher) withMetrics(command string, h HandlerFunc) HandlerFunc {
	attr := commandAttr(command)
	return func(e Event) (any, error) {
		result, err := h(e)
		d.inst.processed.Add(context.Background(), 1, attr)
		if err != nil {
			d.inst.failed.Add(context.Background(), 1, attr)
		}
		return result, err
	}
}

func withRecover(command string, h HandlerFunc) HandlerFunc {
	return func(e Event) (result any, err error) {
		defer func() {
			if r := recover(); r != nil {
				result = nil
				err = fmt.Errorf("%s: handler panicked: %v", command, r)
			}
		}()
		return h(e)
	}
}

func (d *Dispatcher) withBuffer(command string, r registration, h HandlerFunc) HandlerFunc {
	buffer := make(chan Event, r.queue)

	d.mu.Lock()
	d.buffers[command] = buffer
	d.mu.Unlock()

	d.workers.Add(1)
	go func() {
		defer d.workers.Done()
		for e := range buffer {
			if _, err := h(e); err != nil {
				d.logger.Error("queued command failed", "command", command, "error", err)
			}
		}
	}()

	attr := commandAttr(command)

	return func(e Event) (any, error) {
		d.mu.RLock()
		defer d.mu.RUnlock()
		if d.closed {
			return nil, fmt.Errorf("%w: %s", ErrClosed, command)
		}

		if r.blocking {
			buffer <- e
			return "queued", nil
		}
		select {
		case buffer <- e:
			return "queued", nil
		default:
			d.inst.dropped.Add(context.Background(), 1, attr)
			return nil, fmt.Errorf("%w: %s", ErrQueueFull, command)
		}
	}
}

func (d *Dispatcher) withLogging(command string, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		d.logger.Debug("handling command", "command", command, "args", len(e.Args))
		start := time.Now()
		result, err := h(e)
		took := time.Since(start)
		if err != nil {
			d.logger.Error("command failed", "command", command, "took", took, "error", err)
			return result, err
		}
		d.logger.Debug("command handled", "command", command, "took", took)
		return result, nil
	}
}
