package membrane

import (
	"strconv"

	"github.com/dop251/goja"
)

// protoKey is the legacy accessor that reparents an object on assignment.
const protoKey = "__proto__"

// wrapper holds the state of one proxy: the raw object it stands for and
// the shadow target the engine checks invariants against.
type wrapper struct {
	*bridge
	raw    *goja.Object
	target *goja.Object
	pinned map[string]bool
}

func (w *wrapper) traps() *goja.ProxyTrapConfig {
	return &goja.ProxyTrapConfig{
		GetPrototypeOf:    w.getPrototypeOf,
		SetPrototypeOf:    w.setPrototypeOf,
		IsExtensible:      w.isExtensible,
		PreventExtensions: w.preventExtensions,

		GetOwnPropertyDescriptor: func(_ *goja.Object, prop string) goja.PropertyDescriptor {
			return w.getOwnPropertyDescriptor(w.key(prop), prop)
		},
		GetOwnPropertyDescriptorIdx: func(_ *goja.Object, prop int) goja.PropertyDescriptor {
			name := strconv.Itoa(prop)
			return w.getOwnPropertyDescriptor(w.key(name), name)
		},
		GetOwnPropertyDescriptorSym: func(_ *goja.Object, prop *goja.Symbol) goja.PropertyDescriptor {
			return w.getOwnPropertyDescriptor(prop, "")
		},

		DefineProperty: func(_ *goja.Object, prop string, desc goja.PropertyDescriptor) bool {
			return w.defineProperty(w.key(prop), desc)
		},
		DefinePropertyIdx: func(_ *goja.Object, prop int, desc goja.PropertyDescriptor) bool {
			return w.defineProperty(w.key(strconv.Itoa(prop)), desc)
		},
		DefinePropertySym: func(_ *goja.Object, prop *goja.Symbol, desc goja.PropertyDescriptor) bool {
			return w.defineProperty(prop, desc)
		},

		Has: func(_ *goja.Object, prop string) bool {
			return w.has(w.key(prop), prop)
		},
		HasIdx: func(_ *goja.Object, prop int) bool {
			name := strconv.Itoa(prop)
			return w.has(w.key(name), name)
		},
		HasSym: func(_ *goja.Object, prop *goja.Symbol) bool {
			return w.has(prop, "")
		},

		Get: func(target *goja.Object, prop string, _ goja.Value) goja.Value {
			if writable, ok := w.pinned[prop]; ok && !writable {
				return target.Get(prop)
			}
			return w.get(w.key(prop))
		},
		GetIdx: func(_ *goja.Object, prop int, _ goja.Value) goja.Value {
			return w.get(w.key(strconv.Itoa(prop)))
		},
		GetSym: func(_ *goja.Object, prop *goja.Symbol, _ goja.Value) goja.Value {
			return w.get(prop)
		},

		Set: func(_ *goja.Object, prop string, value goja.Value, _ goja.Value) bool {
			if w.safe && prop == protoKey {
				return false
			}
			return w.set(w.key(prop), value)
		},
		SetIdx: func(_ *goja.Object, prop int, value goja.Value, _ goja.Value) bool {
			return w.set(w.key(strconv.Itoa(prop)), value)
		},
		SetSym: func(_ *goja.Object, prop *goja.Symbol, value goja.Value, _ goja.Value) bool {
			return w.set(prop, value)
		},

		DeleteProperty: func(_ *goja.Object, prop string) bool {
			return w.deleteProperty(w.key(prop), prop)
		},
		DeletePropertyIdx: func(_ *goja.Object, prop int) bool {
			name := strconv.Itoa(prop)
			return w.deleteProperty(w.key(name), name)
		},
		DeletePropertySym: func(_ *goja.Object, prop *goja.Symbol) bool {
			return w.deleteProperty(prop, "")
		},

		OwnKeys:   w.ownKeys,
		Apply:     w.apply,
		Construct: w.construct,
	}
}

// key builds a property key. String keys are primitives, so a key made in
// either realm is valid in both.
func (w *wrapper) key(name string) goja.Value {
	return w.from.Reflect.Key(name)
}

func (w *wrapper) throw(err error) {
	panic(w.thrown(err))
}

func (w *wrapper) get(key goja.Value) goja.Value {
	w.enter()
	v, err := w.from.Reflect.Get(w.raw, key)
	if err != nil {
		w.throw(err)
	}
	return w.wrap(v)
}

func (w *wrapper) set(key, value goja.Value) bool {
	w.enter()
	ok, err := w.from.Reflect.Set(w.raw, key, w.opposite.wrap(value))
	if err != nil {
		w.throw(err)
	}
	return ok
}

func (w *wrapper) has(key goja.Value, name string) bool {
	w.enter()
	if _, ok := w.pinned[name]; ok {
		return true
	}
	ok, err := w.from.Reflect.Has(w.raw, key)
	if err != nil {
		w.throw(err)
	}
	return ok
}

func (w *wrapper) deleteProperty(key goja.Value, name string) bool {
	w.enter()
	if _, ok := w.pinned[name]; ok {
		return false
	}
	ok, err := w.from.Reflect.Delete(w.raw, key)
	if err != nil {
		w.throw(err)
	}
	return ok
}

func (w *wrapper) ownKeys(*goja.Object) *goja.Object {
	w.enter()
	keys, err := w.from.Reflect.OwnKeys(w.raw)
	if err != nil {
		w.throw(err)
	}
	seen := make(map[string]bool, len(w.pinned))
	items := make([]interface{}, 0, len(keys)+len(w.pinned))
	for _, key := range keys {
		if _, isSym := key.(*goja.Symbol); !isSym {
			seen[key.String()] = true
		}
		items = append(items, key)
	}
	for name := range w.pinned {
		if !seen[name] {
			items = append(items, name)
		}
	}
	return w.to.Runtime.NewArray(items...)
}

func (w *wrapper) getOwnPropertyDescriptor(key goja.Value, name string) goja.PropertyDescriptor {
	w.enter()
	desc, err := w.from.Reflect.GetOwnPropertyDescriptor(w.raw, key)
	if err != nil {
		w.throw(err)
	}

	if writable, ok := w.pinned[name]; ok {
		// Read through the target so the engine sees the shape it expects;
		// only the value comes from the raw object.
		own, err := w.to.Reflect.GetOwnPropertyDescriptor(w.target, key)
		if err != nil || own == nil {
			return goja.PropertyDescriptor{}
		}
		pd := goja.PropertyDescriptor{
			Value:        own.Get("value"),
			Writable:     flag(own.Get("writable")),
			Enumerable:   flag(own.Get("enumerable")),
			Configurable: flag(own.Get("configurable")),
		}
		if desc != nil && writable {
			if v := desc.Get("value"); v != nil {
				pd.Value = w.wrap(v)
			}
		}
		return pd
	}

	if desc == nil {
		return goja.PropertyDescriptor{}
	}
	pd := goja.PropertyDescriptor{
		Enumerable: flag(desc.Get("enumerable")),
		// The shadow target cannot mirror non-configurable state.
		Configurable: goja.FLAG_TRUE,
	}
	getter, setter := desc.Get("get"), desc.Get("set")
	if getter != nil || setter != nil {
		pd.Getter = w.wrap(getter)
		pd.Setter = w.wrap(setter)
		return pd
	}
	pd.Value = w.wrap(desc.Get("value"))
	pd.Writable = flag(desc.Get("writable"))
	return pd
}

func (w *wrapper) defineProperty(key goja.Value, pd goja.PropertyDescriptor) bool {
	w.enter()
	if pd.Configurable == goja.FLAG_FALSE {
		return false
	}

	desc := w.from.Reflect.Descriptor()
	put := func(name string, v interface{}) {
		if err := desc.Set(name, v); err != nil {
			w.throw(err)
		}
	}
	if pd.Value != nil {
		put("value", w.opposite.wrap(pd.Value))
	}
	if pd.Writable != goja.FLAG_NOT_SET {
		put("writable", pd.Writable == goja.FLAG_TRUE)
	}
	if pd.Enumerable != goja.FLAG_NOT_SET {
		put("enumerable", pd.Enumerable == goja.FLAG_TRUE)
	}
	// Accessors cross as wrappers recorded in the opposite cache, so reading
	// the descriptor back yields the original function.
	if pd.Getter != nil {
		put("get", w.opposite.wrap(pd.Getter))
	}
	if pd.Setter != nil {
		put("set", w.opposite.wrap(pd.Setter))
	}
	put("configurable", true)

	ok, err := w.from.Reflect.DefineProperty(w.raw, key, desc)
	if err != nil {
		w.throw(err)
	}
	return ok
}

func (w *wrapper) getPrototypeOf(*goja.Object) *goja.Object {
	w.enter()
	proto, err := w.from.Reflect.GetPrototypeOf(w.raw)
	if err != nil {
		w.throw(err)
	}
	return w.wrapObject(proto)
}

func (w *wrapper) setPrototypeOf(_ *goja.Object, proto *goja.Object) bool {
	if w.safe {
		return false
	}
	w.enter()
	ok, err := w.from.Reflect.SetPrototypeOf(w.raw, w.opposite.wrapObject(proto))
	if err != nil {
		w.throw(err)
	}
	return ok
}

func (w *wrapper) isExtensible(target *goja.Object) bool {
	ok, err := w.to.Reflect.IsExtensible(target)
	return err == nil && ok
}

func (w *wrapper) preventExtensions(*goja.Object) bool {
	return false
}

func (w *wrapper) apply(_ *goja.Object, this goja.Value, args []goja.Value) goja.Value {
	w.enter()
	fn, ok := goja.AssertFunction(w.raw)
	if !ok {
		panic(w.to.Runtime.NewTypeError("bridged value is not a function"))
	}
	res, err := fn(w.opposite.wrap(this), w.opposite.wrapAll(args)...)
	if err != nil {
		w.throw(err)
	}
	return w.wrap(res)
}

func (w *wrapper) construct(_ *goja.Object, args []goja.Value, newTarget *goja.Object) *goja.Object {
	w.enter()
	ctor, ok := goja.AssertConstructor(w.raw)
	if !ok {
		panic(w.to.Runtime.NewTypeError("bridged value is not a constructor"))
	}
	res, err := ctor(w.opposite.wrapObject(newTarget), w.opposite.wrapAll(args)...)
	if err != nil {
		w.throw(err)
	}
	return w.wrapObject(res)
}

func (b *bridge) wrapAll(args []goja.Value) []goja.Value {
	out := make([]goja.Value, len(args))
	for i, arg := range args {
		out[i] = b.wrap(arg)
	}
	return out
}

func flag(v goja.Value) goja.Flag {
	if v == nil || goja.IsUndefined(v) {
		return goja.FLAG_NOT_SET
	}
	if v.ToBoolean() {
		return goja.FLAG_TRUE
	}
	return goja.FLAG_FALSE
}
