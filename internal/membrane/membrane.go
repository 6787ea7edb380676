package membrane

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/securevm/internal/realm"
)

// Membrane is a pair of bridges between a host realm and a sandbox realm.
// Every object crossing it is replaced by a wrapper in the destination realm;
// wrapping is idempotent and a wrapper crossing back yields its original.
type Membrane struct {
	inward  *bridge
	outward *bridge
	halt    *haltState
}

// ErrHalted is thrown into the host when it calls sandbox code through a
// halted membrane.
var ErrHalted = errors.New("sandbox execution halted")

// haltState is shared by both bridges. While set, the outward bridge refuses
// to run sandbox code.
type haltState struct {
	reason atomic.Pointer[haltReason]
}

type haltReason struct {
	value interface{}
}

func (h *haltState) halted() (interface{}, bool) {
	r := h.reason.Load()
	if r == nil {
		return nil, false
	}
	return r.value, true
}

// Stats reports identity cache sizes.
type Stats struct {
	Inward  int `json:"inward"`
	Outward int `json:"outward"`
}

// Option configures a Membrane.
type Option func(*options)

type options struct {
	intrinsics []string
	observer   Observer
	logger     *zap.Logger
}

// WithIntrinsics maps the named intrinsics (and their prototypes) to the other
// realm's counterparts when they cross. Code intrinsics are always mapped.
func WithIntrinsics(names ...string) Option {
	return func(o *options) {
		o.intrinsics = append(o.intrinsics, names...)
	}
}

// WithObserver reports bridging events to obs.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithLogger sets the logger for bridging failures.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New builds a membrane between host and sandbox.
func New(host, sandbox *realm.Side, opts ...Option) (*Membrane, error) {
	if host == nil || sandbox == nil {
		return nil, fmt.Errorf("membrane: both realms are required")
	}
	if host.Runtime == sandbox.Runtime {
		return nil, fmt.Errorf("membrane: host and sandbox share a runtime")
	}

	o := options{
		observer: nopObserver{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	halt := &haltState{}
	in := &bridge{
		dir:      Inward,
		from:     host,
		to:       sandbox,
		cache:    NewIdentityCache(),
		safe:     true,
		subst:    make(map[*goja.Object]*goja.Object),
		observer: o.observer,
		logger:   o.logger,
	}
	out := &bridge{
		dir:      Outward,
		from:     sandbox,
		to:       host,
		cache:    NewIdentityCache(),
		subst:    make(map[*goja.Object]*goja.Object),
		halt:     halt,
		observer: o.observer,
		logger:   o.logger,
	}
	in.opposite = out
	out.opposite = in

	names := append(append([]string(nil), realm.CodeIntrinsics...), o.intrinsics...)
	for _, name := range names {
		pair(in, out, host.Intrinsics.Get(name), sandbox.Intrinsics.Get(name))
		pair(in, out, host.Intrinsics.Prototype(name), sandbox.Intrinsics.Prototype(name))
	}

	return &Membrane{inward: in, outward: out, halt: halt}, nil
}

func pair(in, out *bridge, hostObj, sandboxObj *goja.Object) {
	if hostObj == nil || sandboxObj == nil {
		return
	}
	in.subst[hostObj] = sandboxObj
	out.subst[sandboxObj] = hostObj
}

// Inward bridges a host value into the sandbox.
func (m *Membrane) Inward(v goja.Value) goja.Value {
	return m.inward.wrap(v)
}

// Outward bridges a sandbox value to the host.
func (m *Membrane) Outward(v goja.Value) goja.Value {
	return m.outward.wrap(v)
}

// Thrown bridges an error raised by sandbox code into a host value.
func (m *Membrane) Thrown(err error) goja.Value {
	return m.outward.thrown(err)
}

// Halt makes every call from the host into sandbox code fail with ErrHalted
// until Resume. Safe for concurrent use; it is how a watchdog stops code
// that keeps catching the engine's one-shot interrupt.
func (m *Membrane) Halt(reason interface{}) {
	m.halt.reason.Store(&haltReason{value: reason})
}

// Resume lifts a Halt.
func (m *Membrane) Resume() {
	m.halt.reason.Store(nil)
}

// Halted returns the reason given to Halt, if the membrane is halted.
func (m *Membrane) Halted() (interface{}, bool) {
	return m.halt.halted()
}

// Stats returns the current identity cache sizes.
func (m *Membrane) Stats() Stats {
	return Stats{
		Inward:  m.inward.cache.Len(),
		Outward: m.outward.cache.Len(),
	}
}

// Prune drops cache entries whose wrappers have been collected.
func (m *Membrane) Prune() int {
	return m.inward.cache.Prune() + m.outward.cache.Prune()
}
