package realm

import (
	"sort"

	"github.com/dop251/goja"
)

// defaultNames are the bindings a sanitized realm keeps.
var defaultNames = []string{
	// host environment
	"atob",
	"btoa",
	"clearInterval",
	"clearTimeout",
	"crypto",
	"location",
	"queueMicrotask",
	"requestIdleCallback",
	"setInterval",
	"setTimeout",

	// language intrinsics
	"Infinity",
	"AggregateError",
	"Array",
	"ArrayBuffer",
	"Atomics",
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
	"Function",
	"Int8Array",
	"Int16Array",
	"Int32Array",
	"Intl",
	"JSON",
	"Map",
	"Math",
	"NaN",
	"Number",
	"Object",
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
	"URL",
	"Uint8Array",
	"Uint8ClampedArray",
	"Uint16Array",
	"Uint32Array",
	"WeakMap",
	"WeakRef",
	"WeakSet",
	"WebAssembly",
	"decodeURI",
	"decodeURIComponent",
	"encodeURI",
	"encodeURIComponent",
	"escape",
	"eval",
	"isFinite",
	"isNaN",
	"parseFloat",
	"parseInt",
	"undefined",
	"unescape",
}

// Whitelist is an immutable set of global binding keys that survive
// sanitization: names, plus symbols for symbol-keyed bindings. Keys missing
// from a realm are ignored. Symbols match by identity, so a factory that
// installs a symbol-keyed binding must share the *goja.Symbol with the
// whitelist.
type Whitelist struct {
	names   map[string]struct{}
	symbols map[*goja.Symbol]struct{}
}

// DefaultWhitelist returns the standard binding set.
func DefaultWhitelist() Whitelist {
	return NewWhitelist(defaultNames...)
}

// NewWhitelist builds a whitelist from names. Empty names are skipped.
func NewWhitelist(names ...string) Whitelist {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		if name == "" {
			continue
		}
		set[name] = struct{}{}
	}
	return Whitelist{names: set}
}

// WithSymbols returns a copy that also keeps the given symbol keys.
func (w Whitelist) WithSymbols(symbols ...*goja.Symbol) Whitelist {
	out := NewWhitelist(w.Names()...)
	out.symbols = make(map[*goja.Symbol]struct{}, len(w.symbols)+len(symbols))
	for sym := range w.symbols {
		out.symbols[sym] = struct{}{}
	}
	for _, sym := range symbols {
		if sym != nil {
			out.symbols[sym] = struct{}{}
		}
	}
	return out
}

// HasSymbol reports whether the symbol key is whitelisted.
func (w Whitelist) HasSymbol(sym *goja.Symbol) bool {
	_, ok := w.symbols[sym]
	return ok
}

func (w Whitelist) symbolList() []*goja.Symbol {
	out := make([]*goja.Symbol, 0, len(w.symbols))
	for sym := range w.symbols {
		out = append(out, sym)
	}
	return out
}

// Has reports whether name is whitelisted.
func (w Whitelist) Has(name string) bool {
	_, ok := w.names[name]
	return ok
}

// Len returns the number of keys, names and symbols.
func (w Whitelist) Len() int {
	return len(w.names) + len(w.symbols)
}

// Names returns the names in sorted order.
func (w Whitelist) Names() []string {
	out := make([]string, 0, len(w.names))
	for name := range w.names {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// With returns a copy extended with names.
func (w Whitelist) With(names ...string) Whitelist {
	return NewWhitelist(append(w.Names(), names...)...).WithSymbols(w.symbolList()...)
}

// Without returns a copy with names removed.
func (w Whitelist) Without(names ...string) Whitelist {
	drop := NewWhitelist(names...)
	keep := make([]string, 0, len(w.names))
	for name := range w.names {
		if !drop.Has(name) {
			keep = append(keep, name)
		}
	}
	return NewWhitelist(keep...).WithSymbols(w.symbolList()...)
}

// Filter returns the whitelisted subset of names, preserving order.
func (w Whitelist) Filter(names []string) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		if w.Has(name) {
			out = append(out, name)
		}
	}
	return out
}
