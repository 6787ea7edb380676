package realm

import (
	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// Strategy names how a binding was neutralized.
type Strategy string

const (
	StrategyKept     Strategy = "kept"
	StrategySelf     Strategy = "self"
	StrategyDelete   Strategy = "delete"
	StrategyUndefine Strategy = "undefine"
	StrategyFreeze   Strategy = "freeze"
	StrategyFailed   Strategy = "failed"
)

// Scope is a sanitized realm. It exposes the whitelisted bindings plus the
// evaluator and function constructor captured before sanitization.
type Scope struct {
	side     *Side
	function *goja.Object
	eval     goja.Callable
	clock    *Clock

	warnings []SanitizationWarning
	report   map[Strategy]int
}

// SanitizeOption configures Sanitize.
type SanitizeOption func(*sanitizeOptions)

type sanitizeOptions struct {
	logger *zap.Logger
}

// WithLogger routes sanitization logs to logger.
func WithLogger(logger *zap.Logger) SanitizeOption {
	return func(o *sanitizeOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Sanitize strips r down to the bindings in wl. The realm is claimed; handing
// the same realm to Sanitize again fails with ErrRealmReused.
//
// Every own key of the global object outside the whitelist is, in order,
// deleted, overwritten with undefined, or (for protected objects) given a null
// prototype and made non-extensible. A binding pointing back at the global
// itself is left alone. Keys that resist all three produce warnings.
func Sanitize(r *Realm, wl Whitelist, opts ...SanitizeOption) (*Scope, error) {
	o := sanitizeOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	if r == nil || r.Runtime == nil {
		return nil, &ConstructionError{Reason: "factory returned no realm"}
	}
	if !r.claim() {
		return nil, ErrRealmReused
	}

	vm := r.Runtime
	fn, ok := vm.Get("Function").(*goja.Object)
	if !ok {
		return nil, &ConstructionError{Reason: "missing Function binding", Err: ErrNoFunctionConstructor}
	}
	if _, ok := goja.AssertConstructor(fn); !ok {
		return nil, &ConstructionError{Reason: "Function is not a constructor", Err: ErrNoFunctionConstructor}
	}
	evalFn, ok := goja.AssertFunction(vm.Get("eval"))
	if !ok {
		return nil, &ConstructionError{Reason: "missing eval binding"}
	}
	side, err := NewSide(vm)
	if err != nil {
		return nil, &ConstructionError{Reason: "capture reflective capabilities", Err: err}
	}
	if r.Global != nil {
		side.Global = r.Global
	}

	s := &Scope{
		side:     side,
		function: fn,
		eval:     evalFn,
		clock:    r.clock,
		report:   make(map[Strategy]int),
	}

	keys, err := side.Reflect.OwnKeys(side.Global)
	if err != nil {
		return nil, &ConstructionError{Reason: "enumerate global bindings", Err: err}
	}
	for _, key := range keys {
		name, isName := keyName(key)
		kept := isName && wl.Has(name)
		if sym, ok := key.(*goja.Symbol); ok {
			kept = wl.HasSymbol(sym)
		}
		if kept {
			s.report[StrategyKept]++
			continue
		}
		strategy, reason := neutralize(side.Reflect, side.Global, key)
		s.report[strategy]++
		if strategy == StrategyFailed {
			w := SanitizationWarning{Key: name, Reason: reason}
			s.warnings = append(s.warnings, w)
			o.logger.Warn("binding resisted sanitization",
				zap.String("key", w.Key),
				zap.String("reason", w.Reason))
			continue
		}
		o.logger.Debug("binding neutralized",
			zap.String("key", name),
			zap.String("strategy", string(strategy)))
	}

	return s, nil
}

func keyName(key goja.Value) (string, bool) {
	if sym, ok := key.(*goja.Symbol); ok {
		return sym.String(), false
	}
	return key.String(), true
}

func neutralize(ref *Reflector, global *goja.Object, key goja.Value) (Strategy, string) {
	// Platform bindings may throw on read; such a binding is not the self pointer.
	if v, err := ref.Get(global, key); err == nil && v != nil && v.SameAs(global) {
		return StrategySelf, ""
	}

	if ok, err := ref.Delete(global, key); err == nil && ok {
		return StrategyDelete, ""
	}

	if _, err := ref.Set(global, key, goja.Undefined()); err == nil {
		if v, err := ref.Get(global, key); err == nil && IsNullish(v) {
			return StrategyUndefine, ""
		}
	}

	v, err := ref.Get(global, key)
	if err != nil {
		return StrategyFailed, "binding cannot be read, deleted or overwritten"
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		return StrategyFailed, "protected primitive binding"
	}
	reparented, err := ref.SetPrototypeOf(obj, nil)
	if err != nil || !reparented {
		return StrategyFailed, "cannot clear prototype of protected object"
	}
	sealed, err := ref.PreventExtensions(obj)
	if err != nil || !sealed {
		return StrategyFailed, "cannot prevent extensions of protected object"
	}
	return StrategyFreeze, ""
}

// Side returns the sanitized realm as seen by a membrane.
func (s *Scope) Side() *Side {
	return s.side
}

// Runtime returns the sanitized runtime.
func (s *Scope) Runtime() *goja.Runtime {
	return s.side.Runtime
}

// Global returns the sanitized global object.
func (s *Scope) Global() *goja.Object {
	return s.side.Global
}

// Function returns the realm's own function constructor.
func (s *Scope) Function() *goja.Object {
	return s.function
}

// Clock returns the realm's timer queue, or nil.
func (s *Scope) Clock() *Clock {
	return s.clock
}

// Warnings returns the bindings that resisted sanitization.
func (s *Scope) Warnings() []SanitizationWarning {
	return append([]SanitizationWarning(nil), s.warnings...)
}

// Report returns how many bindings each strategy handled.
func (s *Scope) Report() map[Strategy]int {
	out := make(map[Strategy]int, len(s.report))
	for k, v := range s.report {
		out[k] = v
	}
	return out
}

// Evaluate runs code through the realm's own indirect eval. Declarations made
// with var and function persist on the global object.
func (s *Scope) Evaluate(code string) (goja.Value, error) {
	return s.eval(goja.Undefined(), s.side.Runtime.ToValue(code))
}

// Define installs a binding on the global object.
func (s *Scope) Define(name string, v goja.Value) error {
	return s.side.Global.Set(name, v)
}
