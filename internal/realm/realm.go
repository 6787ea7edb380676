package realm

import (
	"fmt"
	"sync/atomic"

	"github.com/dop251/goja"
)

// Realm is a freshly created global scope waiting to be sanitized.
// A Realm may be claimed exactly once.
type Realm struct {
	Runtime *goja.Runtime
	Global  *goja.Object

	clock   *Clock
	claimed atomic.Bool
}

// Factory produces fresh, single-use realms.
type Factory interface {
	NewRealm() (*Realm, error)
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func() (*Realm, error)

// NewRealm calls f.
func (f FactoryFunc) NewRealm() (*Realm, error) {
	return f()
}

// New wraps an existing runtime that has never been exposed to untrusted code.
func New(vm *goja.Runtime) *Realm {
	if vm == nil {
		return nil
	}
	return &Realm{
		Runtime: vm,
		Global:  vm.GlobalObject(),
	}
}

// Clock returns the realm's timer queue, or nil when the factory installed no timers.
func (r *Realm) Clock() *Clock {
	return r.clock
}

func (r *Realm) claim() bool {
	return r.claimed.CompareAndSwap(false, true)
}

// Side is one realm as seen by the membrane: its runtime, global object,
// reflective capability set and intrinsic table.
type Side struct {
	Runtime    *goja.Runtime
	Global     *goja.Object
	Reflect    *Reflector
	Intrinsics Intrinsics
}

// NewSide captures the reflective capabilities and intrinsics of vm.
// It must run before any untrusted code has had a chance to touch the realm.
func NewSide(vm *goja.Runtime) (*Side, error) {
	if vm == nil {
		return nil, fmt.Errorf("realm: nil runtime")
	}
	reflector, err := NewReflector(vm)
	if err != nil {
		return nil, err
	}
	return &Side{
		Runtime:    vm,
		Global:     vm.GlobalObject(),
		Reflect:    reflector,
		Intrinsics: captureIntrinsics(vm),
	}, nil
}
