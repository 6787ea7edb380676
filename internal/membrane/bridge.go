package membrane

import (
	"errors"
	"fmt"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/securevm/internal/realm"
)

// bridge carries values from one realm into another. Two bridges facing
// opposite ways make up a membrane.
type bridge struct {
	dir      Direction
	from     *realm.Side
	to       *realm.Side
	cache    *IdentityCache
	opposite *bridge

	// safe bridges refuse reshaping of the objects they expose.
	safe bool

	// subst maps intrinsics of the source realm to their counterparts.
	subst map[*goja.Object]*goja.Object

	// halt is set only on the bridge whose source is the sandbox.
	halt *haltState

	observer Observer
	logger   *zap.Logger
}

// wrap converts a value of the source realm into one usable by the
// destination realm. Primitives pass through.
func (b *bridge) wrap(v goja.Value) goja.Value {
	if v == nil {
		return goja.Undefined()
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		return v
	}
	return b.wrapObject(obj)
}

func (b *bridge) wrapObject(raw *goja.Object) *goja.Object {
	if raw == nil {
		return nil
	}
	if mapped, ok := b.subst[raw]; ok {
		return mapped
	}
	if wrapper, ok := b.cache.Lookup(raw); ok {
		b.observer.Hit(b.dir)
		return wrapper
	}
	// raw may itself be a wrapper the other bridge made; hand back its original.
	if original, ok := b.opposite.cache.Original(raw); ok {
		b.observer.Unbridged(b.dir)
		return original
	}
	return b.newWrapper(raw)
}

func (b *bridge) newWrapper(raw *goja.Object) *goja.Object {
	target := b.shadow(raw)
	w := &wrapper{
		bridge: b,
		raw:    raw,
		target: target,
		pinned: b.pinnedKeys(target),
	}
	proxy := b.to.Runtime.NewProxy(target, w.traps())
	obj := b.to.Runtime.ToValue(proxy).(*goja.Object)

	// Recorded before any member is bridged so cycles resolve to this wrapper.
	b.cache.Record(raw, obj)
	b.observer.Wrapped(b.dir)
	return obj
}

// shadow builds the proxy target: a stateless stand-in of the right kind in
// the destination realm.
func (b *bridge) shadow(raw *goja.Object) *goja.Object {
	vm := b.to.Runtime
	if _, ok := goja.AssertConstructor(raw); ok {
		return vm.ToValue(func(goja.ConstructorCall) *goja.Object { return nil }).(*goja.Object)
	}
	if _, ok := goja.AssertFunction(raw); ok {
		return vm.ToValue(func(goja.FunctionCall) goja.Value { return goja.Undefined() }).(*goja.Object)
	}
	if b.from.Reflect.IsArray(raw) {
		return vm.NewArray()
	}
	return vm.NewObject()
}

// pinnedKeys returns the non-configurable own keys of a shadow target, mapped
// to whether they are writable. Proxy invariants require the traps to keep
// reporting them.
func (b *bridge) pinnedKeys(target *goja.Object) map[string]bool {
	ref := b.to.Reflect
	keys, err := ref.OwnKeys(target)
	if err != nil {
		return nil
	}
	var pinned map[string]bool
	for _, key := range keys {
		desc, err := ref.GetOwnPropertyDescriptor(target, key)
		if err != nil || desc == nil {
			continue
		}
		if desc.Get("configurable").ToBoolean() {
			continue
		}
		if pinned == nil {
			pinned = make(map[string]bool)
		}
		writable := desc.Get("writable")
		pinned[key.String()] = writable != nil && writable.ToBoolean()
	}
	return pinned
}

// thrown converts an error raised in the source realm into a value the
// destination realm can throw.
func (b *bridge) thrown(err error) goja.Value {
	var ex *goja.Exception
	if errors.As(err, &ex) {
		return b.wrap(ex.Value())
	}
	b.logger.Debug("reflective operation failed",
		zap.Stringer("direction", b.dir),
		zap.Error(err))
	return b.to.Runtime.NewGoError(err)
}

// enter refuses to forward into the source realm while the membrane is halted.
func (b *bridge) enter() {
	if b.halt == nil {
		return
	}
	if reason, ok := b.halt.halted(); ok {
		panic(b.to.Runtime.NewGoError(fmt.Errorf("%w: %v", ErrHalted, reason)))
	}
}
