package sandbox

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/securevm/internal/membrane"
	"github.com/GriffinCanCode/securevm/internal/realm"
	"github.com/GriffinCanCode/securevm/internal/shared/id"
)

const reinterruptEvery = 10 * time.Millisecond

// Context is one isolated realm behind a membrane. All interaction goes
// through Eval/Execute and the bindings given to New; the sanitized realm is
// never exposed. A Context is safe for use by one goroutine at a time; calls
// are serialized.
type Context struct {
	mu     sync.Mutex
	id     id.ContextID
	config Config

	host      *realm.Side
	scope     *realm.Scope
	membrane  *membrane.Membrane
	stringify goja.Callable
	console   *console

	logger   *zap.Logger
	observer Observer
	closed   bool
}

// New creates a Context and installs bindings in its realm. Binding values
// that are not goja values are converted by the host runtime first; goja
// values must belong to the host runtime.
func New(config Config, bindings map[string]interface{}, opts ...Option) (*Context, error) {
	o := options{
		logger:   zap.NewNop(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	hostVM := o.host
	if hostVM == nil {
		hostVM = goja.New()
		hostVM.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	}
	host, err := realm.NewSide(hostVM)
	if err != nil {
		return nil, &realm.ConstructionError{Reason: "host realm unusable", Err: err}
	}

	factory := o.factory
	if factory == nil {
		factory = &realm.GojaFactory{Location: config.Location, Logger: o.logger}
	}
	r, err := factory.NewRealm()
	if err != nil {
		var cerr *realm.ConstructionError
		if errors.As(err, &cerr) {
			return nil, err
		}
		return nil, &realm.ConstructionError{Reason: "realm factory failed", Err: err}
	}
	if r != nil && r.Runtime != nil && config.MaxCallStackSize > 0 {
		r.Runtime.SetMaxCallStackSize(config.MaxCallStackSize)
	}

	wl := realm.DefaultWhitelist()
	if o.whitelist != nil {
		wl = *o.whitelist
	}
	scope, err := realm.Sanitize(r, wl, realm.WithLogger(o.logger))
	if err != nil {
		return nil, err
	}

	mopts := []membrane.Option{
		membrane.WithIntrinsics(wl.Filter(realm.IntrinsicNames)...),
		membrane.WithLogger(o.logger),
	}
	if o.membraneObserver != nil {
		mopts = append(mopts, membrane.WithObserver(o.membraneObserver))
	}
	m, err := membrane.New(host, scope.Side(), mopts...)
	if err != nil {
		return nil, &realm.ConstructionError{Reason: "build membrane", Err: err}
	}

	cid := id.NewContextID()
	c := &Context{
		id:       cid,
		config:   config,
		host:     host,
		scope:    scope,
		membrane: m,
		console:  &console{},
		logger:   o.logger.With(zap.String("context_id", cid.String())),
		observer: o.observer,
	}
	if err := c.captureStringify(); err != nil {
		return nil, &realm.ConstructionError{Reason: "host realm unusable", Err: err}
	}

	if config.EnableConsole {
		obj, err := c.console.object(hostVM)
		if err != nil {
			return nil, fmt.Errorf("create console: %w", err)
		}
		if err := scope.Define("console", m.Inward(obj)); err != nil {
			return nil, fmt.Errorf("install console: %w", err)
		}
	}

	names := make([]string, 0, len(bindings))
	for name := range bindings {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := c.bind(name, bindings[name]); err != nil {
			return nil, err
		}
	}

	warnings := scope.Warnings()
	c.observer.ContextCreated(len(warnings))
	c.logger.Debug("sandbox context created",
		zap.Int("bindings", len(bindings)),
		zap.Int("warnings", len(warnings)))
	return c, nil
}

func (c *Context) captureStringify() error {
	jsonObj, ok := c.host.Runtime.Get("JSON").(*goja.Object)
	if !ok {
		return fmt.Errorf("JSON is not available")
	}
	stringify, ok := goja.AssertFunction(jsonObj.Get("stringify"))
	if !ok {
		return fmt.Errorf("JSON.stringify is not callable")
	}
	c.stringify = stringify
	return nil
}

func (c *Context) bind(name string, value interface{}) error {
	var v goja.Value
	switch val := value.(type) {
	case goja.Value:
		v = val
	default:
		v = c.host.Runtime.ToValue(val)
	}
	if err := c.scope.Define(name, c.membrane.Inward(v)); err != nil {
		return fmt.Errorf("install binding %q: %w", name, err)
	}
	return nil
}

// Eval evaluates code in the sandbox and returns the completion value bridged
// into the host realm. Values thrown by the code are returned as *RuntimeError.
func (c *Context) Eval(code string) (goja.Value, error) {
	return c.EvalContext(context.Background(), code)
}

// EvalContext is Eval with cancellation.
func (c *Context) EvalContext(ctx context.Context, code string) (goja.Value, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	start := time.Now()
	v, err := c.run(ctx, code, nil)
	c.observer.EvaluationFinished(status(err), time.Since(start))
	return v, err
}

// Execute runs code and exports the outcome the way API callers consume it.
func (c *Context) Execute(ctx context.Context, code string) (*Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}

	start := time.Now()
	result := &Result{
		Console: []LogEntry{},
	}

	_, err := c.run(ctx, code, result)
	result.Duration = time.Since(start)
	result.Console = c.console.drain()
	if clock := c.scope.Clock(); clock != nil {
		result.Pending = clock.Pending()
	}
	c.observer.EvaluationFinished(status(err), result.Duration)

	if err != nil {
		result.Value, result.JSON = nil, ""
		result.Error = err
		return result, err
	}
	return result, nil
}

// run evaluates code and drains the clock under the watchdog. When result is
// not nil the completion value is exported there before the watchdog stops,
// since serializing it may call sandbox getters.
func (c *Context) run(ctx context.Context, code string, result *Result) (goja.Value, error) {
	c.console.reset()

	vm := c.scope.Runtime()
	stop := c.watch(ctx, vm)
	defer stop()

	out, err := c.evaluate(code)
	if err == nil && result != nil {
		result.Value, result.JSON = c.export(out)
	}
	if reason, halted := c.membrane.Halted(); halted {
		err = &RuntimeError{Message: fmt.Sprint(reason), interrupted: true}
	}
	if err != nil {
		var rerr *RuntimeError
		if errors.As(err, &rerr) && rerr.Interrupted() {
			// Callbacks queued by abandoned code would trip the next evaluation.
			if clock := c.scope.Clock(); clock != nil {
				clock.Reset()
			}
		}
		return nil, err
	}
	return out, nil
}

func (c *Context) evaluate(code string) (goja.Value, error) {
	v, err := c.scope.Evaluate(code)
	if err != nil {
		return nil, c.bridgeError(err)
	}
	out := c.membrane.Outward(v)

	if clock := c.scope.Clock(); clock != nil && c.config.TimerBudget > 0 {
		if _, err := clock.Drain(c.config.TimerBudget); err != nil {
			return nil, c.bridgeError(err)
		}
	}
	return out, nil
}

// watch interrupts vm when ctx is done or the timeout elapses. The engine
// drops an interrupt once raised, so after the deadline the membrane is
// halted and vm is interrupted again every reinterruptEvery until the
// returned stop is called.
func (c *Context) watch(ctx context.Context, vm *goja.Runtime) func() {
	var timeout <-chan time.Time
	var timer *time.Timer
	if c.config.Timeout > 0 {
		timer = time.NewTimer(c.config.Timeout)
		timeout = timer.C
	}

	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		var reason string
		select {
		case <-timeout:
			reason = "execution timeout exceeded"
		case <-ctx.Done():
			reason = "context cancelled"
		case <-done:
			return
		}
		c.membrane.Halt(reason)
		vm.Interrupt(reason)

		ticker := time.NewTicker(reinterruptEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				vm.Interrupt(reason)
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		<-exited
		if timer != nil {
			timer.Stop()
		}
		vm.ClearInterrupt()
		c.membrane.Resume()
	}
}

func (c *Context) bridgeError(err error) error {
	var ex *goja.Exception
	if errors.As(err, &ex) {
		return &RuntimeError{
			Value:   c.membrane.Thrown(err),
			Message: describe(ex),
		}
	}
	var ie *goja.InterruptedError
	if errors.As(err, &ie) {
		return &RuntimeError{Message: fmt.Sprint(ie.Value()), cause: ie, interrupted: true}
	}
	return &RuntimeError{Message: err.Error(), cause: err}
}

// describe renders a thrown value. Rendering may run sandbox code, which is
// allowed to misbehave.
func describe(ex *goja.Exception) (msg string) {
	defer func() {
		if recover() != nil {
			msg = "uncaught exception"
		}
	}()
	return strings.TrimSpace(ex.Error())
}

func (c *Context) export(v goja.Value) (interface{}, string) {
	if realm.IsNullish(v) {
		return nil, ""
	}
	if _, ok := v.(*goja.Object); !ok {
		s, err := c.stringify(goja.Undefined(), v)
		if err != nil || realm.IsNullish(s) {
			return v.Export(), ""
		}
		return v.Export(), s.String()
	}

	s, err := c.stringify(goja.Undefined(), v)
	if err != nil || realm.IsNullish(s) {
		c.logger.Debug("result is not serializable", zap.Error(err))
		return nil, ""
	}
	var out interface{}
	if err := sonic.UnmarshalString(s.String(), &out); err != nil {
		return nil, s.String()
	}
	return out, s.String()
}

// ID returns the context's identifier, also attached to its log entries.
func (c *Context) ID() id.ContextID {
	return c.id
}

// Host returns the host runtime. It must not be used concurrently with Eval.
func (c *Context) Host() *goja.Runtime {
	return c.host.Runtime
}

// Warnings returns the bindings that resisted sanitization.
func (c *Context) Warnings() []realm.SanitizationWarning {
	return c.scope.Warnings()
}

// Stats returns the membrane's identity cache sizes.
func (c *Context) Stats() membrane.Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.membrane.Stats()
}

// Close releases the Context. Later calls fail with ErrClosed.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	if clock := c.scope.Clock(); clock != nil {
		clock.Reset()
	}
	c.membrane.Prune()
	return nil
}

func status(err error) string {
	if err == nil {
		return StatusOK
	}
	var rerr *RuntimeError
	if errors.As(err, &rerr) && rerr.Interrupted() {
		return StatusInterrupted
	}
	return StatusError
}
