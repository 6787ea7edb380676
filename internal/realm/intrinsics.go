package realm

import (
	"github.com/dop251/goja"
)

// Hidden intrinsics reachable only through function instances.
const (
	GeneratorFunction      = "%GeneratorFunction%"
	AsyncFunction          = "%AsyncFunction%"
	AsyncGeneratorFunction = "%AsyncGeneratorFunction%"
)

// IntrinsicNames lists the objects a membrane may map between realms.
var IntrinsicNames = []string{
	"Object",
	"Function",
	"Array",
	"ArrayBuffer",
	"AggregateError",
	"BigInt",
	"BigInt64Array",
	"BigUint64Array",
	"Boolean",
	"DataView",
	"Date",
	"Error",
	"EvalError",
	"FinalizationRegistry",
	"Float32Array",
	"Float64Array",
	"Int8Array",
	"Int16Array",
	"Int32Array",
	"JSON",
	"Map",
	"Math",
	"Number",
	"Promise",
	"Proxy",
	"RangeError",
	"ReferenceError",
	"Reflect",
	"RegExp",
	"Set",
	"String",
	"Symbol",
	"SyntaxError",
	"TypeError",
	"URIError",
	"Uint8Array",
	"Uint8ClampedArray",
	"Uint16Array",
	"Uint32Array",
	"WeakMap",
	"WeakRef",
	"WeakSet",
	"eval",
}

// CodeIntrinsics are the evaluators that compile source text. They are always
// mapped so code never runs in the realm it was not written for.
var CodeIntrinsics = []string{
	"Function",
	"eval",
	GeneratorFunction,
	AsyncFunction,
	AsyncGeneratorFunction,
}

var hiddenSources = map[string]string{
	GeneratorFunction:      "(function*(){}).constructor",
	AsyncFunction:          "(async function(){}).constructor",
	AsyncGeneratorFunction: "(async function*(){}).constructor",
}

// Intrinsics maps intrinsic names to a realm's own objects.
type Intrinsics map[string]*goja.Object

// Get returns the named intrinsic or nil.
func (in Intrinsics) Get(name string) *goja.Object {
	return in[name]
}

// Prototype returns the prototype object of the named intrinsic, or nil.
func (in Intrinsics) Prototype(name string) *goja.Object {
	obj := in[name]
	if obj == nil {
		return nil
	}
	proto, _ := obj.Get("prototype").(*goja.Object)
	return proto
}

func captureIntrinsics(vm *goja.Runtime) Intrinsics {
	in := make(Intrinsics, len(IntrinsicNames)+len(hiddenSources))
	for _, name := range IntrinsicNames {
		if obj, ok := vm.Get(name).(*goja.Object); ok {
			in[name] = obj
		}
	}
	for name, src := range hiddenSources {
		// Engines without async generators fail to compile the check.
		v, err := vm.RunString(src)
		if err != nil {
			continue
		}
		if obj, ok := v.(*goja.Object); ok {
			in[name] = obj
		}
	}
	return in
}
