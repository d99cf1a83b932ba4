package riverconf

import (
	"context"
	"maps"
	"slices"
	"sync"
)

// ResultSink receives encoded handler results. Configure one with
// [WithResultSink]; when none is configured, results are discarded.
type ResultSink func(ctx context.Context, handler, contentType string, result []byte) error

// handlerExecutor is the internal interface for type-erased handler
// execution. It allows storing handlers with different payload types in a
// single registry.
type handlerExecutor interface {
	Execute(ctx context.Context, payload []byte, sink ResultSink) error
}

// handlerBinding ties a registered executor to its resolved options.
type handlerBinding struct {
	exec handlerExecutor
	opts HandlerOptions
}

// handlerRegistry stores handler bindings by name.
type handlerRegistry struct {
	bindings map[string]*handlerBinding
	mu       sync.RWMutex
}

func newHandlerRegistry() *handlerRegistry {
	return &handlerRegistry{
		bindings: make(map[string]*handlerBinding),
	}
}

// register adds a binding. It reports false if the name is already taken.
func (r *handlerRegistry) register(name string, b *handlerBinding) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.bindings[name]; exists {
		return false
	}
	r.bindings[name] = b
	return true
}

func (r *handlerRegistry) get(name string) (*handlerBinding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bindings[name]
	return b, ok
}

// names returns all registered handler names, sorted.
func (r *handlerRegistry) names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.bindings))
}

// Handler returns a registration option that decorates a typed task with the
// given handler options. The task must implement Name() and Handle(ctx, P)
// methods; the payload type P is inferred from the Handle signature and
// decoded with the configured input serde.
//
// Example:
//
//	type ChargeCard struct {
//	    stripe *stripe.Client
//	}
//
//	func (t *ChargeCard) Name() string { return "charge_card" }
//	func (t *ChargeCard) Handle(ctx context.Context, p ChargePayload) error {
//	    return t.stripe.Charge(ctx, p.CustomerID, p.AmountCents)
//	}
//
//	opts.NewService(pool,
//	    riverconf.Handler(&ChargeCard{stripe: client}, riverconf.HandlerOptions{
//	        Options: riverconf.Options{AbortTimeout: time.Minute},
//	    }),
//	)
func Handler[P any, T interface {
	Name() string
	Handle(context.Context, P) error
}](task T, o HandlerOptions) ServiceOption {
	return func(c *serviceConfig) {
		resolved := o.withDefaults(task.Name())
		c.handlers = append(c.handlers, &handlerBinding{
			opts: resolved,
			exec: &taskWrapper[P, T]{task: task, serde: resolved.InputSerde},
		})
	}
}

// ResultHandler registers a task whose Handle returns a value. The result is
// encoded with the output serde and delivered to the service's result sink,
// if one is configured.
//
// Example:
//
//	type RenderInvoice struct{}
//
//	func (t *RenderInvoice) Name() string { return "render_invoice" }
//	func (t *RenderInvoice) Handle(ctx context.Context, p RenderPayload) (InvoicePDF, error) {
//	    ...
//	}
func ResultHandler[P, R any, T interface {
	Name() string
	Handle(context.Context, P) (R, error)
}](task T, o HandlerOptions) ServiceOption {
	return func(c *serviceConfig) {
		resolved := o.withDefaults(task.Name())
		c.handlers = append(c.handlers, &handlerBinding{
			opts: resolved,
			exec: &resultWrapper[P, R, T]{
				task:   task,
				name:   resolved.Name,
				input:  resolved.InputSerde,
				output: resolved.OutputSerde,
			},
		})
	}
}

// taskWrapper wraps a typed task for type-erased storage. It decodes
// payloads with the handler's input serde and calls the typed Handle.
type taskWrapper[P any, T interface {
	Name() string
	Handle(context.Context, P) error
}] struct {
	task  T
	serde Serde
}

func (w *taskWrapper[P, T]) Execute(ctx context.Context, raw []byte, _ ResultSink) error {
	var payload P
	if len(raw) > 0 {
		if err := w.serde.Unmarshal(raw, &payload); err != nil {
			return err
		}
	}
	return w.task.Handle(ctx, payload)
}

// resultWrapper is taskWrapper for tasks that produce a result.
type resultWrapper[P, R any, T interface {
	Name() string
	Handle(context.Context, P) (R, error)
}] struct {
	task   T
	input  Serde
	output Serde
	name   string
}

func (w *resultWrapper[P, R, T]) Execute(ctx context.Context, raw []byte, sink ResultSink) error {
	var payload P
	if len(raw) > 0 {
		if err := w.input.Unmarshal(raw, &payload); err != nil {
			return err
		}
	}

	result, err := w.task.Handle(ctx, payload)
	if err != nil {
		return err
	}

	// Encoding is skipped without a sink; nobody would see the bytes.
	if sink == nil {
		return nil
	}
	data, err := w.output.Marshal(result)
	if err != nil {
		return err
	}
	return sink(ctx, w.name, w.output.ContentType(), data)
}
